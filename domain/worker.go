package domain

import (
	"context"
	"time"
)

// Stoppable is satisfied by any running worker the supervisor must tear
// down; kept minimal so both the supervisor and the concrete worker
// packages can depend on it without depending on each other.
type Stoppable interface {
	Stop()
}

// UnmatchedReporter is optionally satisfied by a Stoppable consumer worker
// that buffers delivered records until glue code claims them. The
// supervisor type-asserts for it at teardown to report records still
// unclaimed when the test ends, per ConsumedRecord's unmatched-at-teardown
// contract.
type UnmatchedReporter interface {
	UnmatchedCount() int
	PendingCount() int
}

// WorkerKind distinguishes a producer worker handle from a consumer one.
type WorkerKind string

const (
	WorkerKindProducer WorkerKind = "producer"
	WorkerKindConsumer WorkerKind = "consumer"
)

// WorkerHandle references a live producer or consumer worker, keyed by
// topic. Created by the supervisor once a worker signals ready; registered
// in the DSL gateway while the test is Executing; unregistered on teardown.
// Exclusively owned by the supervisor. Exactly one of Produce/AwaitConsume
// is non-nil, matching Kind.
type WorkerHandle struct {
	Topic        string
	Kind         WorkerKind
	Produce      func(ctx context.Context, req ProduceRequest) (ProduceAck, error)
	AwaitConsume func(ctx context.Context, correlationID string, timeout time.Duration) (ConsumedRecord, error)
}

// ProduceRequest is the payload of a produce call the DSL gateway issues
// against a producer WorkerHandle.
type ProduceRequest struct {
	EventTestID TestId
	Key         []byte
	Payload     []byte
	Headers     map[string][]byte
	PayloadType string // "json" | "raw"
}

// ProduceAck is the result of a successful produce.
type ProduceAck struct {
	Partition int32
	Offset    int64
}

// MatchState tracks whether a buffered consumed record has been claimed by
// glue code during the test.
type MatchState string

const (
	MatchPending MatchState = "pending"
	MatchMatched MatchState = "matched"
)

// ConsumedRecord is a deserialized payload plus headers, correlation id,
// offset, and partition, buffered inside the consumer worker. Records
// unclaimed at end of test are reported as unmatched in evidence.
type ConsumedRecord struct {
	Topic         string
	Partition     int32
	Offset        int64
	CorrelationID string
	Headers       map[string][]byte
	Payload       []byte
	ConsumedAt    time.Time
	State         MatchState
}
