// Package supervisor implements the per-test finite-state machine (C7) that
// joins the outcomes of the storage adapter (C1), secret adapter (C2),
// producer/consumer workers (C4, C5), and the scenario executor (C6).
package supervisor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/busmesh/testorch/domain"
	"github.com/busmesh/testorch/infrastructure/errors"
	"github.com/busmesh/testorch/infrastructure/logging"
)

// Storage is the subset of storageadapter.Adapter a Supervisor calls.
type Storage interface {
	Fetch(ctx context.Context, testID domain.TestId, bucketURI string) (domain.StorageDirective, error)
	Upload(ctx context.Context, testID domain.TestId, bucketURI, evidenceRoot string) error
}

// Secrets is the subset of secretsadapter.Adapter a Supervisor calls.
type Secrets interface {
	ResolveAll(ctx context.Context, directives []domain.TopicDirective) ([]domain.SecurityDirective, error)
}

// Spawner starts one producer or consumer worker per topic directive and
// blocks until it reports Ready, returning a handle the registry can arm
// and a Worker the supervisor stops on teardown.
type Spawner interface {
	SpawnProducer(ctx context.Context, directive domain.TopicDirective, security domain.SecurityDirective) (domain.WorkerHandle, domain.Stoppable, error)
	SpawnConsumer(ctx context.Context, directive domain.TopicDirective, security domain.SecurityDirective) (domain.WorkerHandle, domain.Stoppable, error)
}

// ScenarioRunner is satisfied by the adapter that scenario.AsScenarioRunner
// returns around a scenario.Executor.
type ScenarioRunner interface {
	Initialize() error
	StartTest(ctx context.Context) (ScenarioResult, error)
	Stop()
}

// ScenarioResult mirrors scenario.TestExecutionResult structurally so this
// package does not need to import the scenario package directly.
type ScenarioResult struct {
	Passed        bool
	ScenarioCount int
	PassedCount   int
	FailedCount   int
	EvidencePaths []string
}

// ScenarioFactory builds a ScenarioRunner once the storage directive and
// armed glue package list are known.
type ScenarioFactory func(domain.StorageDirective) ScenarioRunner

// Registry arms and disarms the DSL gateway's process-wide worker registry.
type Registry interface {
	Arm(testID domain.TestId, handles map[string]domain.WorkerHandle)
	Disarm(testID domain.TestId)
}

// StatusSink receives state transitions as they happen, so the dispatcher's
// TestRecord stays current without polling the supervisor.
type StatusSink interface {
	OnTransition(testID domain.TestId, state domain.State, outcome domain.Outcome, kind domain.ErrorKind, message string)
}

// ExecutingSlot enforces the at-most-one-test-Executing invariant across
// the whole dispatcher, not just within one Supervisor. Acquire blocks
// until the slot is free or ctx is done; Release must be called exactly
// once per successful Acquire.
type ExecutingSlot interface {
	Acquire(ctx context.Context) error
	Release()
}

// Dependencies are the collaborators a Supervisor is constructed with. All
// are interfaces so the FSM can be exercised in tests without a live
// broker, object store, or secret service.
type Dependencies struct {
	Storage         Storage
	Secrets         Secrets
	Spawner         Spawner
	ScenarioFactory ScenarioFactory
	Registry        Registry
	Status          StatusSink
	Slot            ExecutingSlot
	Logger          *logging.Logger
	TeardownTimeout time.Duration
}

// Supervisor drives one test through Setup -> Loading -> Loaded ->
// Executing -> a terminal state. A single goroutine (Run) owns all
// mutable state; Cancel is the only method safe to call concurrently.
type Supervisor struct {
	deps      Dependencies
	testID    domain.TestId
	bucketRef string

	mu    sync.Mutex
	state domain.State

	cancelCh   chan struct{}
	cancelOnce sync.Once

	workers map[string]domain.Stoppable
}

// New constructs a Supervisor for one test, starting in Setup.
func New(testID domain.TestId, deps Dependencies) *Supervisor {
	if deps.TeardownTimeout == 0 {
		deps.TeardownTimeout = 30 * time.Second
	}
	return &Supervisor{
		deps:     deps,
		testID:   testID,
		state:    domain.StateSetup,
		cancelCh: make(chan struct{}),
		workers:  make(map[string]domain.Stoppable),
	}
}

// State returns the supervisor's current FSM state.
func (s *Supervisor) State() domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) setState(state domain.State, outcome domain.Outcome, kind domain.ErrorKind, message string) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	if s.deps.Status != nil {
		s.deps.Status.OnTransition(s.testID, state, outcome, kind, message)
	}
}

// Cancel requests best-effort cancellation of an in-flight Run. Safe to
// call at any time, including before Run starts or after it has finished;
// idempotent.
func (s *Supervisor) Cancel() {
	s.cancelOnce.Do(func() { close(s.cancelCh) })
}

// Run drives the test from Setup through to a terminal state. It is
// idempotent only in the sense that calling it twice on the same
// Supervisor is a programming error; the dispatcher calls it exactly once
// per test.
func (s *Supervisor) Run(parent context.Context, bucketRef string) {
	s.bucketRef = bucketRef
	ctx, stop := context.WithCancel(parent)
	defer stop()
	go func() {
		select {
		case <-s.cancelCh:
			stop()
		case <-ctx.Done():
		}
	}()

	directive, err := s.load(ctx, bucketRef)
	if err != nil {
		s.finish(ctx, directive, err)
		return
	}

	if s.cancelled() {
		s.cancel(ctx, directive)
		return
	}

	s.setState(domain.StateLoaded, "", domain.ErrorKindNone, "")

	if s.deps.Slot != nil {
		if err := s.deps.Slot.Acquire(ctx); err != nil {
			s.finish(ctx, directive, err)
			return
		}
		defer s.deps.Slot.Release()
	}

	if s.cancelled() {
		s.cancel(ctx, directive)
		return
	}

	runner := s.deps.ScenarioFactory(directive)
	if err := runner.Initialize(); err != nil {
		s.finish(ctx, directive, err)
		return
	}

	s.setState(domain.StateExecuting, "", domain.ErrorKindNone, "")

	result, err := runner.StartTest(ctx)
	if err != nil {
		if s.cancelled() {
			s.cancel(ctx, directive)
			return
		}
		s.finish(ctx, directive, err)
		return
	}

	outcome := domain.OutcomeFailed
	if result.Passed {
		outcome = domain.OutcomePassed
	}

	if err := s.writeUnmatchedEvidence(directive.EvidenceRoot); err != nil {
		s.finish(ctx, directive, err)
		return
	}

	if err := s.deps.Storage.Upload(ctx, s.testID, bucketRef, directive.EvidenceRoot); err != nil {
		s.finish(ctx, directive, err)
		return
	}

	s.teardown(ctx, outcome, domain.ErrorKindNone, "")
}

// cancelled reports whether Cancel has been called, without blocking.
func (s *Supervisor) cancelled() bool {
	select {
	case <-s.cancelCh:
		return true
	default:
		return false
	}
}

// cancel tears a cancelled test down as Cancelled, attempting a best-effort
// evidence upload first if a directive was already fetched.
func (s *Supervisor) cancel(ctx context.Context, directive domain.StorageDirective) {
	if directive.EvidenceRoot != "" {
		_ = s.writeUnmatchedEvidence(directive.EvidenceRoot)
		uploadCtx, stop := context.WithTimeout(context.Background(), s.deps.TeardownTimeout)
		defer stop()
		_ = s.deps.Storage.Upload(uploadCtx, s.testID, s.bucketRef, directive.EvidenceRoot)
	}
	s.teardown(ctx, domain.OutcomeCancelled, domain.ErrorKindNone, "")
}

// finish fails the test on err, unless cancellation raced the failure, in
// which case it is reported as Cancelled instead.
func (s *Supervisor) finish(ctx context.Context, directive domain.StorageDirective, err error) {
	if s.cancelled() {
		s.cancel(ctx, directive)
		return
	}
	s.fail(ctx, err)
}

// load performs C1.fetch, C2.resolveAll, and spawns one worker per topic
// directive, waiting for every worker to report Ready before returning.
func (s *Supervisor) load(ctx context.Context, bucketRef string) (domain.StorageDirective, error) {
	s.setState(domain.StateLoading, "", domain.ErrorKindNone, "")

	directive, err := s.deps.Storage.Fetch(ctx, s.testID, bucketRef)
	if err != nil {
		return domain.StorageDirective{}, err
	}

	securityDirectives, err := s.deps.Secrets.ResolveAll(ctx, directive.TopicDirectives)
	if err != nil {
		return domain.StorageDirective{}, err
	}
	securityByKey := make(map[string]domain.SecurityDirective, len(securityDirectives))
	for _, sd := range securityDirectives {
		securityByKey[sd.Topic+"|"+string(sd.Role)] = sd
	}

	handles := make(map[string]domain.WorkerHandle, len(directive.TopicDirectives))

	type spawnResult struct {
		key    string
		handle domain.WorkerHandle
		worker domain.Stoppable
		err    error
	}
	results := make(chan spawnResult, len(directive.TopicDirectives))

	for _, td := range directive.TopicDirectives {
		td := td
		security := securityByKey[td.Key()]
		go func() {
			var handle domain.WorkerHandle
			var worker domain.Stoppable
			var err error
			switch td.Role {
			case domain.RoleProducer:
				handle, worker, err = s.deps.Spawner.SpawnProducer(ctx, td, security)
			case domain.RoleConsumer:
				handle, worker, err = s.deps.Spawner.SpawnConsumer(ctx, td, security)
			default:
				err = errors.InvalidTopicDirective(td.Topic, "unknown role "+string(td.Role))
			}
			results <- spawnResult{key: td.Key(), handle: handle, worker: worker, err: err}
		}()
	}

	var firstErr error
	for range directive.TopicDirectives {
		r := <-results
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		handles[r.handle.Topic] = r.handle
		s.mu.Lock()
		s.workers[r.key] = r.worker
		s.mu.Unlock()
	}
	if firstErr != nil {
		s.stopAllWorkers()
		return domain.StorageDirective{}, firstErr
	}

	s.deps.Registry.Arm(s.testID, handles)
	return directive, nil
}

func (s *Supervisor) fail(ctx context.Context, err error) {
	kind := classifyKind(err)
	s.teardown(ctx, domain.OutcomeFailed, kind, err.Error())
}

func (s *Supervisor) teardown(ctx context.Context, outcome domain.Outcome, kind domain.ErrorKind, message string) {
	done := make(chan struct{})
	go func() {
		s.deps.Registry.Disarm(s.testID)
		s.stopAllWorkers()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.deps.TeardownTimeout):
		if s.deps.Logger != nil {
			s.deps.Logger.Warn(ctx, "teardown timed out", map[string]interface{}{
				"testId":  s.testID,
				"timeout": s.deps.TeardownTimeout.String(),
			})
		}
		outcome = domain.OutcomeFailed
		kind = domain.ErrorKindInternal
		message = errors.TeardownTimeout(string(s.testID)).Error()
	}

	state := domain.StateFailed
	if outcome == domain.OutcomePassed {
		state = domain.StateCompleted
	} else if outcome == domain.OutcomeCancelled {
		state = domain.StateCancelled
	}
	s.setState(state, outcome, kind, message)
}

func (s *Supervisor) stopAllWorkers() {
	s.mu.Lock()
	workers := make([]domain.Stoppable, 0, len(s.workers))
	for _, w := range s.workers {
		workers = append(workers, w)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w domain.Stoppable) {
			defer wg.Done()
			w.Stop()
		}(w)
	}
	wg.Wait()
}

// unmatchedEvidenceFile holds, per consumer topic, the count of records
// delivered from the broker but never claimed by glue code during the
// test — the evidence counterpart of ConsumedRecord's unmatched-at-teardown
// contract.
const unmatchedEvidenceFile = "unmatched.json"

type unmatchedTopicReport struct {
	Topic     string `json:"topic"`
	Unmatched int    `json:"unmatched"`
	Pending   int    `json:"pending"`
}

type unmatchedReport struct {
	Topics         []unmatchedTopicReport `json:"topics"`
	TotalUnmatched int                    `json:"totalUnmatched"`
	TotalPending   int                    `json:"totalPending"`
}

// writeUnmatchedEvidence asks every still-tracked consumer worker how many
// delivered records it holds unclaimed, and writes the tally into
// evidenceRoot before upload. Producer workers and any worker that does not
// implement domain.UnmatchedReporter are skipped. A no-op (no file written)
// when no consumer worker reports anything, so producer-only tests don't
// carry an empty report.
func (s *Supervisor) writeUnmatchedEvidence(evidenceRoot string) error {
	s.mu.Lock()
	workers := make(map[string]domain.Stoppable, len(s.workers))
	for key, w := range s.workers {
		workers[key] = w
	}
	s.mu.Unlock()

	var report unmatchedReport
	for key, w := range workers {
		reporter, ok := w.(domain.UnmatchedReporter)
		if !ok {
			continue
		}
		topic, _, _ := strings.Cut(key, "|")
		unmatched, pending := reporter.UnmatchedCount(), reporter.PendingCount()
		report.Topics = append(report.Topics, unmatchedTopicReport{Topic: topic, Unmatched: unmatched, Pending: pending})
		report.TotalUnmatched += unmatched
		report.TotalPending += pending
	}
	if len(report.Topics) == 0 {
		return nil
	}

	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return errors.Internal("failed to marshal unmatched evidence", err)
	}
	path := filepath.Join(evidenceRoot, unmatchedEvidenceFile)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return errors.StreamingFailure(evidenceRoot, unmatchedEvidenceFile, err)
	}
	return nil
}
