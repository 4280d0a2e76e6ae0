package domain

import "time"

// TestStatus is a point-in-time snapshot of one test's record, returned by
// the dispatcher's status operation and rendered by the control plane.
type TestStatus struct {
	TestID       TestId
	State        State
	BucketRef    string
	StartedAt    *time.Time
	EndedAt      *time.Time
	Outcome      Outcome
	ErrorKind    ErrorKind
	ErrorMessage string
}

// QueueStatus counts TestRecords by state, both live ones and the terminal
// ones still held in the dispatcher's cache, and names whichever test
// currently holds the single Executing slot, if any.
type QueueStatus struct {
	CountsByState map[State]int
	Executing     *TestId
}

// HealthStatus is the result of the dispatcher's self-check.
type HealthStatus struct {
	Healthy bool
	Reason  string
}
