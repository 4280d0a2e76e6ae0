// Command orchestratord is the process entry point for the test
// orchestration engine. It wires the object-store adapter (C1), the secret
// adapter (C2), the Kafka worker spawner (C4/C5), the scenario executor
// (C6), the per-test supervisor (C7), the admission queue (C8), the DSL
// gateway (C9/C11's backing control plane), and the control-plane HTTP port
// (C11) into one running daemon.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/busmesh/testorch/busworkers"
	"github.com/busmesh/testorch/controlplane"
	"github.com/busmesh/testorch/credmap"
	"github.com/busmesh/testorch/dispatcher"
	"github.com/busmesh/testorch/domain"
	"github.com/busmesh/testorch/dslgateway"
	"github.com/busmesh/testorch/infrastructure/config"
	"github.com/busmesh/testorch/infrastructure/logging"
	"github.com/busmesh/testorch/infrastructure/resilience"
	"github.com/busmesh/testorch/infrastructure/service"
	"github.com/busmesh/testorch/scenario"
	"github.com/busmesh/testorch/secretsadapter"
	"github.com/busmesh/testorch/storageadapter"
	"github.com/busmesh/testorch/supervisor"
)

func main() {
	_ = godotenv.Load()

	logger := logging.NewFromEnv("orchestratord")

	storage := storageadapter.NewAdapter(
		config.GetEnv("SCRATCH_ROOT", os.TempDir()+"/testorch"),
		storageadapter.DefaultProviderFactory,
	)

	secrets, err := secretsadapter.New(secretsadapter.Config{
		Endpoint:      mustEnv(logger, "SECRET_SERVICE_ENDPOINT"),
		RequestParams: config.RequestParamsFromEnv(),
		Mapping: credmap.ResponseMapping{
			Username: credmap.FieldMapping{SourcePaths: []string{config.GetEnv("SECRET_USERNAME_PATH", "$.data.username")}},
			Secret:   credmap.FieldMapping{SourcePaths: []string{config.GetEnv("SECRET_PASSWORD_PATH", "$.data.password")}},
		},
		RetryConfig: resilience.DefaultRetryConfig(),
		Breaker:     resilience.New(resilience.StrictGatewayCBConfig(logger)),
		Logger:      logger,
	})
	if err != nil {
		logger.Fatalf("failed to construct secrets adapter: %v", err)
	}

	spawner := &busworkers.KafkaSpawner{
		DefaultBootstrapServers: config.GetEnv("KAFKA_BOOTSTRAP_SERVERS", "localhost:9092"),
		GroupIDPrefix:           config.GetEnv("KAFKA_GROUP_PREFIX", "testorch-"),
	}

	registry := dslgateway.NewRegistry()
	staticGlue := config.SplitAndTrimCSV(config.GetEnv("GLUE_PACKAGES", ""))
	teardownTimeout := config.GetEnvDuration("TEARDOWN_TIMEOUT", 30*time.Second)

	supervisorFactory := func(testID domain.TestId) supervisor.Dependencies {
		return supervisor.Dependencies{
			Storage: storage,
			Secrets: secrets,
			Spawner: spawner,
			ScenarioFactory: func(sd domain.StorageDirective) supervisor.ScenarioRunner {
				glue := append(append([]string{}, staticGlue...), sd.UserGluePackages...)
				return scenario.AsScenarioRunner(scenario.New(scenario.Config{
					StorageDirective: sd,
					GluePackages:     glue,
					Tags:             strings.Join(sd.Tags, ","),
					Logger:           logger,
				}))
			},
			Registry:        registry,
			Logger:          logger,
			TeardownTimeout: teardownTimeout,
		}
	}

	queue, err := dispatcher.New(dispatcher.Config{
		SupervisorFactory: supervisorFactory,
		TerminalCacheSize: config.GetEnvInt("TERMINAL_CACHE_SIZE", 0),
	})
	if err != nil {
		logger.Fatalf("failed to construct dispatcher: %v", err)
	}

	cp := dslgateway.NewControlPlane(dslgateway.Config{
		Dispatcher: queue,
		AskTimeout: config.GetEnvDuration("CONTROL_PLANE_ASK_TIMEOUT", 5*time.Second),
		Breaker:    resilience.DefaultGatewayCBConfig(logger),
	})

	base := service.NewBase(&service.BaseConfig{
		ID:      "orchestratord",
		Name:    "testorch",
		Version: config.GetEnv("VERSION", "dev"),
		Logger:  logger,
		Dependencies: map[string]service.DependencyPing{
			"dispatcher": func(ctx context.Context) error {
				if health := cp.Health(ctx); !health.Healthy {
					return fmt.Errorf("dispatcher unhealthy: %s", health.Reason)
				}
				return nil
			},
		},
	})

	handlers := controlplane.NewHandlers(cp, logger)
	controlplane.RegisterRoutes(base.Router(), handlers, logger)

	service.Run(base, service.ServerConfig{
		Port:           config.GetEnv("PORT", "8080"),
		MetricsEnabled: config.GetEnvBool("METRICS_ENABLED", true),
	}, logger)
}

func mustEnv(logger *logging.Logger, key string) string {
	value, err := config.RequireEnv(key)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	return value
}
