package busworkers

import (
	"context"
	"encoding/json"
	"sync"

	kafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"golang.org/x/time/rate"

	"github.com/busmesh/testorch/domain"
	"github.com/busmesh/testorch/infrastructure/errors"
)

// ProduceAck and ProduceRequest are the domain vocabulary the DSL gateway
// and this worker share; aliased here so the rest of this file need not
// qualify every reference with domain.
type (
	ProduceAck     = domain.ProduceAck
	ProduceRequest = domain.ProduceRequest
)

// ProducerWorker owns one outbound kafka.Producer session for one topic.
// Produces for distinct keys may reorder; produces for the same key
// preserve submission order, which falls directly out of driving every
// produce through this worker's single mailbox goroutine.
type ProducerWorker struct {
	topic   string
	format  string
	limiter *rate.Limiter

	mu     sync.Mutex
	state  State
	client *kafka.Producer

	mailbox chan workRequest
	stopCh  chan struct{}
}

type workRequest struct {
	req   ProduceRequest
	reply chan workReply
}

type workReply struct {
	ack ProduceAck
	err error
}

// NewProducerWorker constructs a ProducerWorker in the Created state.
// format is "json" or "raw" per TopicDirective.metadata["format"];
// produceRate of 0 means unlimited.
func NewProducerWorker(topic, format string, produceRate float64) *ProducerWorker {
	var limiter *rate.Limiter
	if produceRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(produceRate), int(produceRate)+1)
	}
	return &ProducerWorker{
		topic:   topic,
		format:  format,
		limiter: limiter,
		state:   StateCreated,
		mailbox: make(chan workRequest),
		stopCh:  make(chan struct{}),
	}
}

// Initialize connects the producer session, applying SASL auth from
// security when its AuthConfig is non-empty. Idempotent: a second call with
// an already-initialized worker is a no-op success.
func (w *ProducerWorker) Initialize(bootstrapServers string, security domain.SecurityDirective) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateInitialized || w.state == StateReady {
		return nil
	}
	if !canAdvanceTo(w.state, StateInitialized) {
		return errors.Internal("producer worker cannot initialize from state "+string(w.state), nil)
	}

	client, err := kafka.NewProducer(configMap(bootstrapServers, security))
	if err != nil {
		return errors.KafkaProduceError(w.topic, err)
	}
	w.client = client
	w.state = StateInitialized
	return nil
}

// Ready transitions the worker to Ready and starts its mailbox loop.
func (w *ProducerWorker) Ready(ctx context.Context) error {
	w.mu.Lock()
	if !canAdvanceTo(w.state, StateReady) {
		w.mu.Unlock()
		return errors.Internal("producer worker cannot become ready from state "+string(w.state), nil)
	}
	w.state = StateReady
	w.mu.Unlock()

	go w.run(ctx)
	return nil
}

// Handle returns a WorkerHandle the DSL gateway registers for this topic.
func (w *ProducerWorker) Handle() domain.WorkerHandle {
	return domain.WorkerHandle{Topic: w.topic, Kind: domain.WorkerKindProducer, Produce: w.Produce}
}

// Produce publishes one record and blocks for the broker acknowledgement.
func (w *ProducerWorker) Produce(ctx context.Context, req ProduceRequest) (ProduceAck, error) {
	reply := make(chan workReply, 1)
	select {
	case w.mailbox <- workRequest{req: req, reply: reply}:
	case <-ctx.Done():
		return ProduceAck{}, ctx.Err()
	case <-w.stopCh:
		return ProduceAck{}, errors.ProducerNotAvailable(w.topic)
	}

	select {
	case r := <-reply:
		return r.ack, r.err
	case <-ctx.Done():
		return ProduceAck{}, ctx.Err()
	}
}

func (w *ProducerWorker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case work := <-w.mailbox:
			ack, err := w.produceOne(ctx, work.req)
			work.reply <- workReply{ack: ack, err: err}
		}
	}
}

func (w *ProducerWorker) produceOne(ctx context.Context, req ProduceRequest) (ProduceAck, error) {
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return ProduceAck{}, err
		}
	}

	value, err := w.serialize(req)
	if err != nil {
		return ProduceAck{}, err
	}

	headers := make([]kafka.Header, 0, len(req.Headers))
	for k, v := range req.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: v})
	}
	headers = append(headers, kafka.Header{Key: "x-correlation-id", Value: []byte(req.EventTestID)})

	topic := w.topic
	deliveryChan := make(chan kafka.Event, 1)
	err = w.client.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            req.Key,
		Value:          value,
		Headers:        headers,
	}, deliveryChan)
	if err != nil {
		return ProduceAck{}, errors.KafkaProduceError(w.topic, err)
	}

	select {
	case ev := <-deliveryChan:
		msg, ok := ev.(*kafka.Message)
		if !ok {
			return ProduceAck{}, errors.KafkaProduceError(w.topic, nil)
		}
		if msg.TopicPartition.Error != nil {
			return ProduceAck{}, errors.KafkaProduceError(w.topic, msg.TopicPartition.Error)
		}
		return ProduceAck{Partition: msg.TopicPartition.Partition, Offset: int64(msg.TopicPartition.Offset)}, nil
	case <-ctx.Done():
		return ProduceAck{}, ctx.Err()
	}
}

func (w *ProducerWorker) serialize(req ProduceRequest) ([]byte, error) {
	payloadType := req.PayloadType
	if payloadType == "" {
		payloadType = w.format
	}
	switch payloadType {
	case "", "raw":
		return req.Payload, nil
	case "json":
		var v interface{}
		if err := json.Unmarshal(req.Payload, &v); err != nil {
			return nil, errors.InvalidInput("payload", "not valid JSON for format=json: "+err.Error())
		}
		return json.Marshal(v)
	case "avro-binary":
		return nil, errors.SchemaRegistryNotInitialized()
	default:
		return nil, errors.InvalidInput("payloadType", "unknown format "+payloadType)
	}
}

// Stop unwinds the session; idempotent.
func (w *ProducerWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateStopped || w.state == StateStopping {
		return
	}
	w.state = StateStopping
	close(w.stopCh)
	if w.client != nil {
		w.client.Close()
	}
	w.state = StateStopped
}

// State returns the worker's current lifecycle state.
func (w *ProducerWorker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}
