package busworkers

import (
	"strings"

	kafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/busmesh/testorch/domain"
)

// configMap builds the broker ConfigMap shared by producer and consumer
// Initialize, layering SASL credentials from a resolved SecurityDirective
// on top of the plaintext bootstrap-servers base when AuthConfig is set.
func configMap(bootstrapServers string, security domain.SecurityDirective) *kafka.ConfigMap {
	cfg := &kafka.ConfigMap{
		"bootstrap.servers": bootstrapServers,
	}
	if security.AuthConfig == "" {
		return cfg
	}

	username, password := parseAuthConfig(security.AuthConfig)
	(*cfg)["security.protocol"] = "SASL_SSL"
	(*cfg)["sasl.mechanism"] = "PLAIN"
	(*cfg)["sasl.username"] = username
	(*cfg)["sasl.password"] = password
	return cfg
}

// parseAuthConfig reads the "username=...;password=..." shape assembled by
// credmap.AssembleAuthConfig.
func parseAuthConfig(authConfig string) (username, password string) {
	for _, part := range strings.Split(authConfig, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "username":
			username = kv[1]
		case "password":
			password = kv[1]
		}
	}
	return username, password
}
