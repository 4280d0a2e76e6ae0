package credmap

import (
	"github.com/busmesh/testorch/domain"
)

// ResponseMapping declares how a secret-service JSON response resolves into
// a Credentials record, one FieldMapping per output field.
type ResponseMapping struct {
	Username FieldMapping
	Secret   FieldMapping
}

// MapCredentials applies mapping against the decoded secret-service response
// body and returns the resolved Credentials for (topic, role).
func MapCredentials(topic string, role domain.Role, body interface{}, mapping ResponseMapping) (domain.Credentials, error) {
	username, err := mapping.Username.Apply(body)
	if err != nil {
		return domain.Credentials{}, err
	}
	secret, err := mapping.Secret.Apply(body)
	if err != nil {
		return domain.Credentials{}, err
	}
	return domain.Credentials{
		Topic:    topic,
		Role:     role,
		Username: username,
		Secret:   secret,
	}, nil
}

// AssembleAuthConfig builds the opaque authConfig string embedded in a
// SecurityDirective from resolved Credentials, in the SASL-style
// "key=value;..." shape consumers pass straight to the bus client.
func AssembleAuthConfig(creds domain.Credentials) string {
	if creds.Username == "" && creds.Secret == "" {
		return ""
	}
	return "username=" + creds.Username + ";password=" + creds.Secret
}
