package busworkers

import (
	"context"
	"strconv"

	"github.com/busmesh/testorch/domain"
	"github.com/busmesh/testorch/supervisor"
)

// KafkaSpawner constructs and initializes producer/consumer workers from a
// topic directive and its resolved security directive, satisfying
// supervisor.Spawner.
type KafkaSpawner struct {
	DefaultBootstrapServers string
	GroupIDPrefix           string
}

var _ supervisor.Spawner = (*KafkaSpawner)(nil)

func (k *KafkaSpawner) bootstrapServers(directive domain.TopicDirective) string {
	if directive.BootstrapOverride != "" {
		return directive.BootstrapOverride
	}
	return k.DefaultBootstrapServers
}

// SpawnProducer constructs, initializes, and starts a ProducerWorker for
// the given topic directive, blocking until it is Ready.
func (k *KafkaSpawner) SpawnProducer(ctx context.Context, directive domain.TopicDirective, security domain.SecurityDirective) (domain.WorkerHandle, domain.Stoppable, error) {
	rate, _ := strconv.ParseFloat(directive.Metadata["produce_rate"], 64)
	worker := NewProducerWorker(directive.Topic, directive.Metadata["format"], rate)

	if err := worker.Initialize(k.bootstrapServers(directive), security); err != nil {
		return domain.WorkerHandle{}, nil, err
	}
	if err := worker.Ready(ctx); err != nil {
		return domain.WorkerHandle{}, nil, err
	}

	return worker.Handle(), worker, nil
}

// SpawnConsumer constructs, initializes, and starts a ConsumerWorker for
// the given topic directive, blocking until it is Ready.
func (k *KafkaSpawner) SpawnConsumer(ctx context.Context, directive domain.TopicDirective, security domain.SecurityDirective) (domain.WorkerHandle, domain.Stoppable, error) {
	groupID := k.GroupIDPrefix + directive.Topic
	worker := NewConsumerWorker(directive.Topic, parseBufferSize(directive.Metadata))

	if err := worker.Initialize(k.bootstrapServers(directive), groupID, security); err != nil {
		return domain.WorkerHandle{}, nil, err
	}
	if err := worker.Ready(ctx); err != nil {
		return domain.WorkerHandle{}, nil, err
	}

	return worker.Handle(), worker, nil
}
