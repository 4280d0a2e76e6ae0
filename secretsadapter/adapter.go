// Package secretsadapter resolves a SecurityDirective for each TopicDirective
// by invoking a remote secret service, mapping its response through credmap,
// and assembling the opaque authConfig a worker connects with.
package secretsadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/busmesh/testorch/credmap"
	"github.com/busmesh/testorch/domain"
	"github.com/busmesh/testorch/infrastructure/errors"
	"github.com/busmesh/testorch/infrastructure/httputil"
	"github.com/busmesh/testorch/infrastructure/logging"
	"github.com/busmesh/testorch/infrastructure/redaction"
	"github.com/busmesh/testorch/infrastructure/resilience"
)

// statusErrorRedactor scrubs credential-shaped content out of a secret
// service's own error body before it is embedded in a ServiceError — that
// body reaches the external status API verbatim otherwise, and the
// service is exactly the thing responding with the credentials in play.
var statusErrorRedactor = redaction.NewRedactor(redaction.DefaultConfig())

// RequestTemplate is the declarative JSON body template POSTed to the
// secret-service endpoint for every topic directive, plus the field
// mapping used to decode its response.
type RequestTemplate struct {
	Endpoint string
	Body     interface{}
	Mapping  credmap.ResponseMapping
}

// Adapter is the secret-service HTTP client. One instance serves every
// topic directive in a test's directive set.
type Adapter struct {
	client        *http.Client
	requestParams map[string]string
	retryConfig   resilience.RetryConfig
	breaker       *resilience.CircuitBreaker
	logger        *logging.Logger
	template      RequestTemplate
}

// Config configures a new Adapter.
type Config struct {
	Endpoint      string
	RequestParams map[string]string
	Mapping       credmap.ResponseMapping
	BodyTemplate  interface{}
	RetryConfig   resilience.RetryConfig
	Breaker       *resilience.CircuitBreaker
	Logger        *logging.Logger
}

// New builds an Adapter, wiring the shared HTTP client and retry defaults.
func New(cfg Config) (*Adapter, error) {
	client, err := httputil.NewClient(httputil.ClientConfig{
		BaseURL:   cfg.Endpoint,
		ServiceID: "secretsadapter",
	}, httputil.DefaultClientDefaults())
	if err != nil {
		return nil, errors.InvalidConfiguration("failed to build secret-service client: " + err.Error())
	}
	retryCfg := cfg.RetryConfig
	if retryCfg.MaxAttempts == 0 {
		retryCfg = resilience.DefaultRetryConfig()
	}
	return &Adapter{
		client:        client,
		requestParams: cfg.RequestParams,
		retryConfig:   retryCfg,
		breaker:       cfg.Breaker,
		logger:        cfg.Logger,
		template: RequestTemplate{
			Endpoint: cfg.Endpoint,
			Body:     cfg.BodyTemplate,
			Mapping:  cfg.Mapping,
		},
	}, nil
}

// ResolveAll processes every topic directive concurrently, returning one
// SecurityDirective per directive in input order. The first failure aborts
// the whole call: the other directives' in-flight requests are cancelled and
// that first error is returned. Transient failures are retried internally
// per directive before being surfaced.
func (a *Adapter) ResolveAll(ctx context.Context, directives []domain.TopicDirective) ([]domain.SecurityDirective, error) {
	results := make([]domain.SecurityDirective, len(directives))
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var firstErr error
	var errOnce sync.Once

	var wg sync.WaitGroup
	for i, d := range directives {
		wg.Add(1)
		go func(idx int, directive domain.TopicDirective) {
			defer wg.Done()
			sd, err := a.resolveOne(ctx, directive)
			results[idx] = sd
			if err != nil {
				errOnce.Do(func() { firstErr = err; cancel() })
			}
		}(i, d)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

func (a *Adapter) resolveOne(ctx context.Context, directive domain.TopicDirective) (domain.SecurityDirective, error) {
	var creds domain.Credentials

	doRequest := func() error {
		body, err := a.buildRequestBody(directive)
		if err != nil {
			return err
		}
		doc, err := a.post(ctx, directive.Topic, body)
		if err != nil {
			return err
		}
		creds, err = credmap.MapCredentials(directive.Topic, directive.Role, doc, a.template.Mapping)
		return err
	}

	if err := resilience.Retry(ctx, a.retryConfig, func() error {
		if a.breaker == nil {
			return doRequest()
		}
		return a.breaker.Execute(ctx, doRequest)
	}); err != nil {
		return domain.SecurityDirective{}, err
	}

	authConfig := credmap.AssembleAuthConfig(creds)
	protocol := domain.ProtocolPlaintext
	if authConfig != "" {
		protocol = domain.ProtocolAuthTLS
	}
	return domain.SecurityDirective{
		Topic:      directive.Topic,
		Role:       directive.Role,
		Protocol:   protocol,
		AuthConfig: authConfig,
	}, nil
}

func (a *Adapter) buildRequestBody(directive domain.TopicDirective) ([]byte, error) {
	rendered, err := credmap.RenderTemplate(a.template.Body, credmap.TemplateContext{
		RequestParams:   a.requestParams,
		Metadata:        directive.Metadata,
		Topic:           directive.Topic,
		Role:            string(directive.Role),
		ClientPrincipal: directive.ClientPrincipal,
	})
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(rendered)
	if err != nil {
		return nil, errors.MappingFailed("failed to encode request body: " + err.Error())
	}
	return encoded, nil
}

func (a *Adapter) post(ctx context.Context, topic string, body []byte) (interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.template.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.InvalidConfiguration("failed to build secret-service request: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errors.TransientExternal("secret-service request", err)
	}
	defer resp.Body.Close()

	respBody, _, err := httputil.ReadAllWithLimit(resp.Body, 1<<20)
	if err != nil {
		return nil, errors.TransientExternal("secret-service response read", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var doc interface{}
		if err := json.Unmarshal(respBody, &doc); err != nil {
			return nil, errors.MappingFailed("failed to decode secret-service response: " + err.Error())
		}
		return doc, nil
	}

	return nil, classifyStatusError(topic, resp.StatusCode, respBody)
}

// classifyStatusError turns a non-2xx response into the appropriate
// ServiceError, pre-parsing the status/error envelope with gjson instead of
// a second full encoding/json unmarshal on the error path.
func classifyStatusError(topic string, status int, body []byte) error {
	message := gjson.GetBytes(body, "error").String()
	if message == "" {
		message = gjson.GetBytes(body, "message").String()
	}
	message = statusErrorRedactor.RedactString(message)
	redactedBody := statusErrorRedactor.RedactString(string(body))

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.Unauthorized(topic, &resilience.HTTPStatusError{StatusCode: status, Body: message})
	case status == http.StatusNotFound:
		return errors.NotFound("secret", topic)
	case status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable:
		return errors.TransientExternal("secret-service", &resilience.HTTPStatusError{StatusCode: status, Body: redactedBody})
	case status >= 500:
		return errors.TransientExternal("secret-service", &resilience.HTTPStatusError{StatusCode: status, Body: redactedBody})
	default:
		return errors.InvalidInput("secret-service response", message)
	}
}

// ContainsSecrets reports whether line appears to contain raw credential
// material, for asserting log-line cleanliness in tests.
func ContainsSecrets(line string, creds domain.Credentials) bool {
	if creds.Secret != "" && strings.Contains(line, creds.Secret) {
		return true
	}
	if creds.Username != "" && strings.Contains(line, creds.Username) {
		return true
	}
	return false
}
