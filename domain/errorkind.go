package domain

// ErrorKind is a closed taxonomy of the reasons a test can become Failed,
// reported on TestRecord and surfaced verbatim on the status endpoint.
type ErrorKind string

const (
	ErrorKindNone ErrorKind = ""

	// ErrorKindConfiguration covers a bad bucket URI, bad bootstrap
	// override, unknown field reference, or a non-request-params.*
	// config path. Fatal; fails submit/start synchronously.
	ErrorKindConfiguration ErrorKind = "Configuration"

	// ErrorKindValidation covers an empty features directory or a
	// missing directive file. Fatal for the test; reported in status.
	ErrorKindValidation ErrorKind = "Validation"

	// ErrorKindDuplicateTopic is reported when two directives share a
	// (topic, role) key within the same test's directive set.
	ErrorKindDuplicateTopic ErrorKind = "DuplicateTopic"

	// ErrorKindTransientExhausted is a transient external failure
	// (network, 429, 503, timeout) that exhausted its retry budget.
	ErrorKindTransientExhausted ErrorKind = "Transient-Exhausted"

	// ErrorKindAuth covers 401/403/404 responses from the secret
	// service. Non-transient; immediate fail.
	ErrorKindAuth ErrorKind = "Auth"

	// ErrorKindMapping covers a bad JSON path, missing required field,
	// or transformation failure in the credential mapper.
	ErrorKindMapping ErrorKind = "Mapping"

	// ErrorKindExecutor covers scenario compile/runtime errors.
	ErrorKindExecutor ErrorKind = "Executor"

	// ErrorKindDSL covers DslNotInitialized, ProducerNotAvailable,
	// ConsumerNotAvailable, SchemaNotFound surfaced to glue code.
	ErrorKindDSL ErrorKind = "DSL"

	// ErrorKindInternal covers supervisor timeout and teardown timeout.
	ErrorKindInternal ErrorKind = "Internal"
)
