package domain

import "testing"

func TestNewTestId_Unique(t *testing.T) {
	a := NewTestId()
	b := NewTestId()
	if a == b {
		t.Fatalf("expected distinct TestIds, got %q twice", a)
	}
	if a.String() == "" {
		t.Fatalf("expected non-empty TestId string")
	}
}

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state State
		want  bool
	}{
		{StateSetup, false},
		{StateLoading, false},
		{StateLoaded, false},
		{StateExecuting, false},
		{StateCompleted, true},
		{StateFailed, true},
		{StateCancelled, true},
	}
	for _, tt := range tests {
		if got := tt.state.IsTerminal(); got != tt.want {
			t.Errorf("State(%s).IsTerminal() = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestTestRecord_IsLive(t *testing.T) {
	r := &TestRecord{State: StateExecuting}
	if !r.IsLive() {
		t.Errorf("expected Executing record to be live")
	}
	r.State = StateCompleted
	if r.IsLive() {
		t.Errorf("expected Completed record to not be live")
	}
	var nilRecord *TestRecord
	if nilRecord.IsLive() {
		t.Errorf("expected nil record to not be live")
	}
}

func TestTopicDirective_Key(t *testing.T) {
	a := TopicDirective{Topic: "orders", Role: RoleProducer}
	b := TopicDirective{Topic: "orders", Role: RoleConsumer}
	if a.Key() == b.Key() {
		t.Errorf("expected different keys for different roles on the same topic")
	}

	c := TopicDirective{Topic: "orders", Role: RoleProducer}
	if a.Key() != c.Key() {
		t.Errorf("expected identical keys for identical (topic, role) pairs")
	}
}

func TestEvidence_Passed(t *testing.T) {
	e := &Evidence{ScenarioCount: 2, PassedCount: 2}
	if !e.Passed() {
		t.Errorf("expected all-passed evidence to report Passed() == true")
	}

	e.PassedCount = 1
	if e.Passed() {
		t.Errorf("expected partially-passed evidence to report Passed() == false")
	}

	empty := &Evidence{}
	if empty.Passed() {
		t.Errorf("expected zero-scenario evidence to report Passed() == false")
	}
}
