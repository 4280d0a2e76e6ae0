package supervisor

import (
	"github.com/busmesh/testorch/domain"
	"github.com/busmesh/testorch/infrastructure/errors"
)

// classifyKind maps a ServiceError's code to the closed ErrorKind taxonomy
// reported on TestRecord. Errors that are not *errors.ServiceError (a bug in
// a collaborator, not a classified failure mode) map to ErrorKindInternal.
func classifyKind(err error) domain.ErrorKind {
	svcErr := errors.GetServiceError(err)
	if svcErr == nil {
		return domain.ErrorKindInternal
	}

	switch svcErr.Code {
	case errors.ErrCodeInvalidConfiguration, errors.ErrCodeInvalidBucketURI, errors.ErrCodeInvalidBootstrap:
		return domain.ErrorKindConfiguration
	case errors.ErrCodeInvalidInput, errors.ErrCodeMissingParameter,
		errors.ErrCodeInvalidTopicDirective, errors.ErrCodeMissingFeaturesDir,
		errors.ErrCodeEmptyFeaturesDir, errors.ErrCodeMissingTopicDirectives:
		return domain.ErrorKindValidation
	case errors.ErrCodeDuplicateTopic:
		return domain.ErrorKindDuplicateTopic
	case errors.ErrCodeTransientExhausted, errors.ErrCodeTransientExternal, errors.ErrCodeStreamingFailure:
		return domain.ErrorKindTransientExhausted
	case errors.ErrCodeUnauthorized, errors.ErrCodeForbidden, errors.ErrCodeNotFound:
		return domain.ErrorKindAuth
	case errors.ErrCodeMappingFailed, errors.ErrCodePathNotResolved,
		errors.ErrCodeTransformFailed, errors.ErrCodeTemplateUnresolve:
		return domain.ErrorKindMapping
	case errors.ErrCodeScenarioCompile, errors.ErrCodeScenarioRuntime:
		return domain.ErrorKindExecutor
	case errors.ErrCodeDslNotInitialized, errors.ErrCodeProducerNotAvailable,
		errors.ErrCodeConsumerNotAvailable, errors.ErrCodeSchemaRegistryNotInit,
		errors.ErrCodeSchemaNotFound, errors.ErrCodeKafkaProduceError:
		return domain.ErrorKindDSL
	default:
		return domain.ErrorKindInternal
	}
}
