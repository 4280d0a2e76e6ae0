package busworkers

import (
	"context"
	"strconv"
	"sync"
	"time"

	kafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/busmesh/testorch/domain"
	"github.com/busmesh/testorch/infrastructure/errors"
)

// ConsumerWorker owns one inbound kafka.Consumer session for one topic,
// fanning delivered records into a CorrelationBuffer that glue code claims
// against during a scenario run.
type ConsumerWorker struct {
	topic string

	mu     sync.Mutex
	state  State
	client *kafka.Consumer
	buffer *CorrelationBuffer

	stopCh chan struct{}
	once   sync.Once
}

// NewConsumerWorker constructs a ConsumerWorker in the Created state.
// bufferSize of 0 defaults to 4096, per TopicDirective.metadata["buffer_size"].
func NewConsumerWorker(topic string, bufferSize int) *ConsumerWorker {
	return &ConsumerWorker{
		topic:  topic,
		state:  StateCreated,
		buffer: NewCorrelationBuffer(bufferSize),
		stopCh: make(chan struct{}),
	}
}

// Initialize subscribes to the topic, applying SASL auth from security when
// its AuthConfig is non-empty. Idempotent.
func (w *ConsumerWorker) Initialize(bootstrapServers, groupID string, security domain.SecurityDirective) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateInitialized || w.state == StateReady {
		return nil
	}
	if !canAdvanceTo(w.state, StateInitialized) {
		return errors.Internal("consumer worker cannot initialize from state "+string(w.state), nil)
	}

	cfg := configMap(bootstrapServers, security)
	(*cfg)["group.id"] = groupID
	(*cfg)["auto.offset.reset"] = "earliest"

	client, err := kafka.NewConsumer(cfg)
	if err != nil {
		return errors.ConsumerNotAvailable(w.topic)
	}
	if err := client.Subscribe(w.topic, nil); err != nil {
		client.Close()
		return errors.ConsumerNotAvailable(w.topic)
	}
	w.client = client
	w.state = StateInitialized
	return nil
}

// Ready transitions to Ready and starts the poll loop feeding the buffer.
func (w *ConsumerWorker) Ready(ctx context.Context) error {
	w.mu.Lock()
	if !canAdvanceTo(w.state, StateReady) {
		w.mu.Unlock()
		return errors.Internal("consumer worker cannot become ready from state "+string(w.state), nil)
	}
	w.state = StateReady
	w.mu.Unlock()

	go w.pollLoop(ctx)
	return nil
}

func (w *ConsumerWorker) pollLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		ev := w.client.Poll(200)
		if ev == nil {
			continue
		}
		msg, ok := ev.(*kafka.Message)
		if !ok {
			continue
		}
		w.buffer.Deliver(toConsumedRecord(msg))
	}
}

func toConsumedRecord(msg *kafka.Message) domain.ConsumedRecord {
	headers := make(map[string][]byte, len(msg.Headers))
	correlationID := ""
	for _, h := range msg.Headers {
		headers[h.Key] = h.Value
		if h.Key == "x-correlation-id" {
			correlationID = string(h.Value)
		}
	}
	if correlationID == "" {
		correlationID = string(msg.Key)
	}

	return domain.ConsumedRecord{
		Topic:         *msg.TopicPartition.Topic,
		Partition:     msg.TopicPartition.Partition,
		Offset:        int64(msg.TopicPartition.Offset),
		CorrelationID: correlationID,
		Headers:       headers,
		Payload:       msg.Value,
		ConsumedAt:    msg.Timestamp,
		State:         domain.MatchPending,
	}
}

// Handle returns a WorkerHandle the DSL gateway registers for this topic.
func (w *ConsumerWorker) Handle() domain.WorkerHandle {
	return domain.WorkerHandle{Topic: w.topic, Kind: domain.WorkerKindConsumer, AwaitConsume: w.AwaitConsume}
}

// AwaitConsume blocks until a record correlated with correlationID arrives
// or the wait times out.
func (w *ConsumerWorker) AwaitConsume(ctx context.Context, correlationID string, timeout time.Duration) (domain.ConsumedRecord, error) {
	waitCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case record := <-w.buffer.Claim(correlationID):
		return record, nil
	case <-waitCtx.Done():
		return domain.ConsumedRecord{}, errors.ServiceTimeout("await_consume correlation=" + correlationID)
	}
}

// UnmatchedCount reports records evicted from the buffer before being
// claimed, for teardown evidence.
func (w *ConsumerWorker) UnmatchedCount() int {
	return w.buffer.UnmatchedCount()
}

// PendingCount reports records still buffered and unclaimed at the moment
// of the call, for teardown evidence. Satisfies domain.UnmatchedReporter
// alongside UnmatchedCount.
func (w *ConsumerWorker) PendingCount() int {
	return w.buffer.PendingCount()
}

// Stop unwinds the session; idempotent.
func (w *ConsumerWorker) Stop() {
	w.once.Do(func() {
		w.mu.Lock()
		w.state = StateStopping
		w.mu.Unlock()

		close(w.stopCh)
		w.mu.Lock()
		if w.client != nil {
			w.client.Close()
		}
		w.state = StateStopped
		w.mu.Unlock()
	})
}

// State returns the worker's current lifecycle state.
func (w *ConsumerWorker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// parseBufferSize reads metadata["buffer_size"], defaulting to 0 (caller
// applies the 4096 default) on missing or malformed values.
func parseBufferSize(metadata map[string]string) int {
	raw, ok := metadata["buffer_size"]
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
