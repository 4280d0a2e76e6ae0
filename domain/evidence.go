package domain

import "time"

// ScenarioResult records one executed scenario's outcome for the cucumber
// evidence report.
type ScenarioResult struct {
	Name     string
	Passed   bool
	Duration time.Duration
	Message  string
}

// Evidence is a directory tree rooted at StorageDirective.EvidenceRoot: a
// scenario report, per-scenario structured logs, and any attachments
// written by the scenario executor. Evidence contents are finalized before
// upload begins; upload is all-or-fail.
type Evidence struct {
	Root          string
	ScenarioCount int
	PassedCount   int
	Scenarios     []ScenarioResult
	Attachments   []string
	FinalizedAt   time.Time
}

// Passed reports whether every scenario in the evidence set passed.
func (e *Evidence) Passed() bool {
	return e != nil && e.ScenarioCount > 0 && e.PassedCount == e.ScenarioCount
}
