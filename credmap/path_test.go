package credmap

import "testing"

func decodeDoc() map[string]interface{} {
	return map[string]interface{}{
		"username": "svc-acct",
		"nested": map[string]interface{}{
			"secret": "top-secret",
		},
		"items": []interface{}{
			map[string]interface{}{"name": "a"},
			map[string]interface{}{"name": "b"},
		},
	}
}

func TestResolve_FieldAccess(t *testing.T) {
	v, ok, err := Resolve(decodeDoc(), "$.username")
	if err != nil || !ok {
		t.Fatalf("unexpected err=%v ok=%v", err, ok)
	}
	if v != "svc-acct" {
		t.Errorf("got %v, want svc-acct", v)
	}
}

func TestResolve_NestedField(t *testing.T) {
	v, ok, err := Resolve(decodeDoc(), "$.nested.secret")
	if err != nil || !ok {
		t.Fatalf("unexpected err=%v ok=%v", err, ok)
	}
	if v != "top-secret" {
		t.Errorf("got %v, want top-secret", v)
	}
}

func TestResolve_OptionalMissing(t *testing.T) {
	_, ok, err := Resolve(decodeDoc(), "$.missing?")
	if err != nil {
		t.Fatalf("expected no error for optional miss, got %v", err)
	}
	if ok {
		t.Errorf("expected ok=false for missing optional field")
	}
}

func TestResolve_RequiredMissingErrors(t *testing.T) {
	_, _, err := Resolve(decodeDoc(), "$.missing")
	if err == nil {
		t.Fatalf("expected error for missing required field")
	}
}

func TestResolve_Index(t *testing.T) {
	v, ok, err := Resolve(decodeDoc(), "$.items[0].name")
	if err != nil || !ok {
		t.Fatalf("unexpected err=%v ok=%v", err, ok)
	}
	if v != "a" {
		t.Errorf("got %v, want a", v)
	}
}

func TestResolve_Length(t *testing.T) {
	v, ok, err := Resolve(decodeDoc(), "$.items.length()")
	if err != nil || !ok {
		t.Fatalf("unexpected err=%v ok=%v", err, ok)
	}
	if v != float64(2) {
		t.Errorf("got %v, want 2", v)
	}
}

func TestResolve_Wildcard(t *testing.T) {
	v, ok, err := Resolve(decodeDoc(), "$.items[*].name")
	if err != nil || !ok {
		t.Fatalf("unexpected err=%v ok=%v", err, ok)
	}
	names, isSlice := v.([]interface{})
	if !isSlice || len(names) != 2 {
		t.Fatalf("got %#v, want a 2-element slice", v)
	}
	if names[0] != "a" || names[1] != "b" {
		t.Errorf("got %v, want [a b]", names)
	}
}
