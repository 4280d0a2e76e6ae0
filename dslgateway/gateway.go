// Package dslgateway is the process-wide registry glue code talks to while
// a test is Executing (C9): a single armed test's WorkerHandles, resolved
// by topic, plus curried entry points to the admission queue that map
// timeouts and an open circuit onto the control-plane's error vocabulary.
package dslgateway

import (
	"context"
	"sync"
	"time"

	"github.com/busmesh/testorch/domain"
	"github.com/busmesh/testorch/infrastructure/errors"
	"github.com/busmesh/testorch/infrastructure/resilience"
	"github.com/busmesh/testorch/supervisor"
)

// Registry is the process-wide, single-armed-test worker directory. It
// satisfies supervisor.Registry; glue code resolves topics against it via
// Produce/AwaitConsume.
type Registry struct {
	mu      sync.RWMutex
	armedID domain.TestId
	armed   bool
	handles map[string]domain.WorkerHandle
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

var _ supervisor.Registry = (*Registry)(nil)

// Arm implements supervisor.Registry, entering the armed(testId, handles)
// state on C7's entry to Executing.
func (r *Registry) Arm(testID domain.TestId, handles map[string]domain.WorkerHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.armedID = testID
	r.armed = true
	r.handles = handles
}

// Disarm implements supervisor.Registry, returning to empty on C7's exit
// from Executing. A Disarm for a testID other than the currently armed one
// is a no-op — it raced a subsequent Arm and must not clobber it.
func (r *Registry) Disarm(testID domain.TestId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.armed || r.armedID != testID {
		return
	}
	r.armed = false
	r.armedID = ""
	r.handles = nil
}

func (r *Registry) resolve(topic string) (domain.WorkerHandle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.armed {
		return domain.WorkerHandle{}, errors.DslNotInitialized()
	}
	handle, ok := r.handles[topic]
	if !ok {
		return domain.WorkerHandle{}, errors.ProducerNotAvailable(topic)
	}
	return handle, nil
}

// Produce resolves topic to its armed producer handle and issues req
// against it.
func (r *Registry) Produce(ctx context.Context, topic string, req domain.ProduceRequest) (domain.ProduceAck, error) {
	handle, err := r.resolve(topic)
	if err != nil {
		return domain.ProduceAck{}, err
	}
	if handle.Kind != domain.WorkerKindProducer || handle.Produce == nil {
		return domain.ProduceAck{}, errors.ProducerNotAvailable(topic)
	}
	return handle.Produce(ctx, req)
}

// AwaitConsume resolves topic to its armed consumer handle and waits for a
// record correlated with correlationID.
func (r *Registry) AwaitConsume(ctx context.Context, topic, correlationID string, timeout time.Duration) (domain.ConsumedRecord, error) {
	handle, err := r.resolve(topic)
	if err != nil {
		return domain.ConsumedRecord{}, err
	}
	if handle.Kind != domain.WorkerKindConsumer || handle.AwaitConsume == nil {
		return domain.ConsumedRecord{}, errors.ConsumerNotAvailable(topic)
	}
	return handle.AwaitConsume(ctx, correlationID, timeout)
}

// ControlPlane backs C11's six operations with a timeout and a circuit
// breaker around the dispatcher, per spec's "curried entry points" note.
// The breaker is keyed to the dispatcher as a whole, not per-operation: a
// wedged dispatcher should trip every entry point together.
type ControlPlane struct {
	dispatcher Dispatcher
	breaker    *resilience.CircuitBreaker
	askTimeout time.Duration
}

// Dispatcher is the subset of dispatcher.Dispatcher the control plane
// calls, declared here so this package does not import dispatcher (it
// would be the only import cycle risk in the tree: dispatcher already
// imports supervisor, and supervisor does not need to know about the
// control plane).
type Dispatcher interface {
	Submit(bucketRef string, tags []string) domain.TestId
	Start(ctx context.Context, testID domain.TestId, bucketRef string, tags []string) (accepted bool, reason string)
	Status(testID domain.TestId) (domain.TestStatus, error)
	QueueStatus(testIDFilter *domain.TestId) domain.QueueStatus
	Cancel(testID domain.TestId) (cancelled bool, reason string)
	Health(ctx context.Context) domain.HealthStatus
}

// Config configures a ControlPlane.
type Config struct {
	Dispatcher Dispatcher
	AskTimeout time.Duration
	Breaker    resilience.Config
}

// NewControlPlane constructs a ControlPlane wrapping dispatcher.
func NewControlPlane(cfg Config) *ControlPlane {
	askTimeout := cfg.AskTimeout
	if askTimeout <= 0 {
		askTimeout = 5 * time.Second
	}
	breakerCfg := cfg.Breaker
	if breakerCfg.MaxFailures == 0 {
		breakerCfg = resilience.DefaultGatewayCBConfig(nil)
	}
	return &ControlPlane{
		dispatcher: cfg.Dispatcher,
		breaker:    resilience.New(breakerCfg),
		askTimeout: askTimeout,
	}
}

// ask runs fn through the circuit breaker with a bounded deadline, mapping
// breaker and timeout failures onto the curried entry points' error
// vocabulary.
func (cp *ControlPlane) ask(parent context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, cp.askTimeout)
	defer cancel()

	err := cp.breaker.Execute(ctx, func() error { return fn(ctx) })
	switch err {
	case nil:
		return nil
	case resilience.ErrCircuitOpen, resilience.ErrTooManyRequests:
		return errors.ServiceUnavailable("dispatcher circuit is open")
	}
	if ctx.Err() != nil {
		return errors.ServiceTimeout("dispatcher call")
	}
	return err
}

// InitializeTest curries submit(bucketRef) through the breaker/timeout.
func (cp *ControlPlane) InitializeTest(ctx context.Context, bucketRef string, tags []string) (domain.TestId, error) {
	var testID domain.TestId
	err := cp.ask(ctx, func(ctx context.Context) error {
		testID = cp.dispatcher.Submit(bucketRef, tags)
		return nil
	})
	return testID, err
}

// StartTest curries start(testId, bucketRef, tags?).
func (cp *ControlPlane) StartTest(ctx context.Context, testID domain.TestId, bucketRef string, tags []string) (accepted bool, reason string, err error) {
	err = cp.ask(ctx, func(ctx context.Context) error {
		accepted, reason = cp.dispatcher.Start(ctx, testID, bucketRef, tags)
		return nil
	})
	return accepted, reason, err
}

// GetStatus curries status(testId).
func (cp *ControlPlane) GetStatus(ctx context.Context, testID domain.TestId) (domain.TestStatus, error) {
	var status domain.TestStatus
	err := cp.ask(ctx, func(ctx context.Context) error {
		var statusErr error
		status, statusErr = cp.dispatcher.Status(testID)
		return statusErr
	})
	return status, err
}

// GetQueueStatus curries queueStatus(testIdFilter?).
func (cp *ControlPlane) GetQueueStatus(ctx context.Context, testIDFilter *domain.TestId) (domain.QueueStatus, error) {
	var qs domain.QueueStatus
	err := cp.ask(ctx, func(ctx context.Context) error {
		qs = cp.dispatcher.QueueStatus(testIDFilter)
		return nil
	})
	return qs, err
}

// CancelTest curries cancel(testId).
func (cp *ControlPlane) CancelTest(ctx context.Context, testID domain.TestId) (cancelled bool, reason string, err error) {
	err = cp.ask(ctx, func(ctx context.Context) error {
		cancelled, reason = cp.dispatcher.Cancel(testID)
		return nil
	})
	return cancelled, reason, err
}

// Health is not routed through the breaker. While the breaker is open it
// reports unhealthy straight away without calling the dispatcher; otherwise
// it delegates to the dispatcher's queueStatus(None) self-check.
func (cp *ControlPlane) Health(ctx context.Context) domain.HealthStatus {
	if cp.breaker.State() == resilience.StateOpen {
		return domain.HealthStatus{Healthy: false, Reason: "dispatcher circuit is open"}
	}
	return cp.dispatcher.Health(ctx)
}
