// Package domain holds the core data model shared by every component of the
// orchestrator: test records, directive sets, credentials, and evidence.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// TestId is a globally unique, externally printable, opaque test identifier.
type TestId string

// NewTestId generates a fresh TestId.
func NewTestId() TestId {
	return TestId(uuid.New().String())
}

func (id TestId) String() string { return string(id) }

// State is the supervisor FSM's state, also surfaced on TestRecord.
type State string

const (
	StateSetup     State = "Setup"
	StateLoading   State = "Loading"
	StateLoaded    State = "Loaded"
	StateExecuting State = "Executing"
	StateCompleted State = "Completed"
	StateFailed    State = "Failed"
	StateCancelled State = "Cancelled"
)

// IsTerminal reports whether the state admits no further transitions.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// Outcome is the terminal result of a completed test.
type Outcome string

const (
	OutcomePassed    Outcome = "passed"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// TestRecord is created by the dispatcher on submit and mutated only by the
// dispatcher and, via protocol, by the owning supervisor.
type TestRecord struct {
	ID                TestId
	State             State
	BucketRef         string
	SubmittedAt       time.Time
	StartedAt         *time.Time
	EndedAt           *time.Time
	Outcome           Outcome
	ErrorKind         ErrorKind
	ErrorMessage      string
	CurrentSupervisor string

	// Attempt is set to 1 when the dispatcher creates the record on submit.
	// Nothing increments it: a record cannot be restarted once it has left
	// Setup.
	Attempt int

	Tags []string
}

// IsLive reports whether the record is still in a non-terminal state.
func (r *TestRecord) IsLive() bool {
	return r != nil && !r.State.IsTerminal()
}
