// Package dispatcher implements the admission queue (C8): a single ordered
// collection of TestRecords, at most one of which may be Executing at a
// time, fronting one supervisor.Supervisor per live test.
package dispatcher

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/busmesh/testorch/domain"
	"github.com/busmesh/testorch/infrastructure/errors"
	"github.com/busmesh/testorch/supervisor"
)

const defaultTerminalCacheSize = 500

// SupervisorFactory constructs the Dependencies for a new test's
// supervisor, apart from the ones the dispatcher itself supplies
// (Status, Slot).
type SupervisorFactory func(testID domain.TestId) supervisor.Dependencies

// runningSupervisor pairs a live Supervisor with the cancel func for its
// Run goroutine's root context.
type runningSupervisor struct {
	sup    *supervisor.Supervisor
	cancel context.CancelFunc
}

// Dispatcher is the single admission queue for the orchestrator process.
// All state mutation is serialized through its mailbox goroutine; public
// methods send a closure and, where a return value is needed, wait on a
// reply channel.
type Dispatcher struct {
	mailbox chan func()

	records     map[domain.TestId]*domain.TestRecord
	terminal    *lru.Cache[domain.TestId, *domain.TestRecord]
	executingID *domain.TestId
	running     map[domain.TestId]*runningSupervisor

	slot              *executingSlot
	newDependencies   SupervisorFactory
	supervisorBuilder func(domain.TestId, supervisor.Dependencies) *supervisor.Supervisor
}

// Config configures a new Dispatcher.
type Config struct {
	SupervisorFactory SupervisorFactory
	TerminalCacheSize int
}

// New constructs a Dispatcher and starts its mailbox goroutine.
func New(cfg Config) (*Dispatcher, error) {
	size := cfg.TerminalCacheSize
	if size <= 0 {
		size = defaultTerminalCacheSize
	}
	cache, err := lru.New[domain.TestId, *domain.TestRecord](size)
	if err != nil {
		return nil, errors.InvalidConfiguration("failed to construct terminal-record cache: " + err.Error())
	}

	d := &Dispatcher{
		mailbox:         make(chan func()),
		records:         make(map[domain.TestId]*domain.TestRecord),
		terminal:        cache,
		running:         make(map[domain.TestId]*runningSupervisor),
		slot:            newExecutingSlot(),
		newDependencies: cfg.SupervisorFactory,
		supervisorBuilder: func(id domain.TestId, deps supervisor.Dependencies) *supervisor.Supervisor {
			return supervisor.New(id, deps)
		},
	}
	go d.run()
	return d, nil
}

func (d *Dispatcher) run() {
	for fn := range d.mailbox {
		fn()
	}
}

// do submits fn to the mailbox and blocks until it has run.
func (d *Dispatcher) do(fn func()) {
	done := make(chan struct{})
	d.mailbox <- func() {
		fn()
		close(done)
	}
	<-done
}

// Submit allocates a TestId and inserts a record in Setup. Returns
// immediately.
func (d *Dispatcher) Submit(bucketRef string, tags []string) domain.TestId {
	testID := domain.NewTestId()
	d.do(func() {
		d.records[testID] = &domain.TestRecord{
			ID:          testID,
			State:       domain.StateSetup,
			BucketRef:   bucketRef,
			SubmittedAt: currentTime(),
			Attempt:     1,
			Tags:        tags,
		}
	})
	return testID
}

// Start attempts to move testID from Setup to Loading and spawns its
// supervisor. Idempotent once the test has already left Setup.
func (d *Dispatcher) Start(parent context.Context, testID domain.TestId, bucketRef string, tags []string) (accepted bool, reason string) {
	d.do(func() {
		record, ok := d.records[testID]
		if !ok {
			accepted, reason = false, "unknown test"
			return
		}
		if _, started := d.running[testID]; started || record.State != domain.StateSetup {
			accepted, reason = true, "already started"
			return
		}
		if bucketRef != "" {
			record.BucketRef = bucketRef
		}
		if len(tags) > 0 {
			record.Tags = tags
		}

		deps := d.newDependencies(testID)
		deps.Status = d
		deps.Slot = d.slot

		ctx, cancel := context.WithCancel(parent)
		sup := d.supervisorBuilder(testID, deps)
		d.running[testID] = &runningSupervisor{sup: sup, cancel: cancel}

		go func() {
			sup.Run(ctx, record.BucketRef)
		}()

		accepted = true
	})
	return accepted, reason
}

// Status returns a snapshot of testID's state and times.
func (d *Dispatcher) Status(testID domain.TestId) (domain.TestStatus, error) {
	var status domain.TestStatus
	var err error
	d.do(func() {
		record, ok := d.lookup(testID)
		if !ok {
			err = errors.NotFound("test", string(testID))
			return
		}
		status = toStatus(record)
	})
	return status, err
}

// QueueStatus counts records by state and names whichever test currently
// holds the Executing slot.
func (d *Dispatcher) QueueStatus(testIDFilter *domain.TestId) domain.QueueStatus {
	var result domain.QueueStatus
	d.do(func() {
		counts := make(map[domain.State]int)
		tally := func(r *domain.TestRecord) {
			if testIDFilter != nil && r.ID != *testIDFilter {
				return
			}
			counts[r.State]++
		}
		for _, r := range d.records {
			tally(r)
		}
		for _, id := range d.terminal.Keys() {
			if r, ok := d.terminal.Peek(id); ok {
				tally(r)
			}
		}
		result = domain.QueueStatus{CountsByState: counts, Executing: d.executingID}
	})
	return result
}

// Cancel signals testID's supervisor to cancel. Returns true iff the test
// was live and the signal was delivered.
func (d *Dispatcher) Cancel(testID domain.TestId) (cancelled bool, reason string) {
	d.do(func() {
		record, ok := d.records[testID]
		if !ok {
			cancelled, reason = false, "unknown test"
			return
		}
		if record.State.IsTerminal() {
			cancelled, reason = false, "test already terminal"
			return
		}
		running, ok := d.running[testID]
		if !ok {
			cancelled, reason = false, "test has not started"
			return
		}
		running.sup.Cancel()
		cancelled = true
	})
	return cancelled, reason
}

// Health invokes QueueStatus(nil) as a self-check; a mailbox that never
// drains (Health itself times out) implies the orchestrator is wedged.
func (d *Dispatcher) Health(ctx context.Context) domain.HealthStatus {
	done := make(chan domain.QueueStatus, 1)
	go func() { done <- d.QueueStatus(nil) }()
	select {
	case <-done:
		return domain.HealthStatus{Healthy: true}
	case <-ctx.Done():
		return domain.HealthStatus{Healthy: false, Reason: "queue-status self-check timed out"}
	}
}

// OnTransition implements supervisor.StatusSink, keeping this dispatcher's
// records and executing-slot bookkeeping current as each Supervisor
// advances.
func (d *Dispatcher) OnTransition(testID domain.TestId, state domain.State, outcome domain.Outcome, kind domain.ErrorKind, message string) {
	d.do(func() {
		record, ok := d.records[testID]
		if !ok {
			return
		}
		record.State = state
		if outcome != "" {
			record.Outcome = outcome
		}
		if kind != domain.ErrorKindNone {
			record.ErrorKind = kind
			record.ErrorMessage = message
		}

		switch state {
		case domain.StateExecuting:
			id := testID
			d.executingID = &id
			now := currentTime()
			record.StartedAt = &now
		}

		if state.IsTerminal() {
			if d.executingID != nil && *d.executingID == testID {
				d.executingID = nil
			}
			now := currentTime()
			record.EndedAt = &now
			if running, ok := d.running[testID]; ok {
				running.cancel()
			}
			delete(d.records, testID)
			delete(d.running, testID)
			d.terminal.Add(testID, record)
		}
	})
}

func (d *Dispatcher) lookup(testID domain.TestId) (*domain.TestRecord, bool) {
	if r, ok := d.records[testID]; ok {
		return r, true
	}
	return d.terminal.Peek(testID)
}

func toStatus(r *domain.TestRecord) domain.TestStatus {
	return domain.TestStatus{
		TestID:       r.ID,
		State:        r.State,
		BucketRef:    r.BucketRef,
		StartedAt:    r.StartedAt,
		EndedAt:      r.EndedAt,
		Outcome:      r.Outcome,
		ErrorKind:    r.ErrorKind,
		ErrorMessage: r.ErrorMessage,
	}
}

// executingSlot is the dispatcher-wide semaphore enforcing at-most-one
// test in Executing, satisfying supervisor.ExecutingSlot.
type executingSlot struct {
	ch chan struct{}
}

func newExecutingSlot() *executingSlot {
	return &executingSlot{ch: make(chan struct{}, 1)}
}

func (s *executingSlot) Acquire(ctx context.Context) error {
	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *executingSlot) Release() {
	select {
	case <-s.ch:
	default:
	}
}

var currentTimeFunc = func() time.Time { return time.Now() }

func currentTime() time.Time { return currentTimeFunc() }
