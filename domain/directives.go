package domain

// Role is a topic's role within a test: producing records onto it or
// consuming records from it.
type Role string

const (
	RoleProducer Role = "producer"
	RoleConsumer Role = "consumer"
)

// EventFilter narrows the set of records a consumer topic directive cares
// about; both fields are opaque, test-defined strings.
type EventFilter struct {
	EventType      string `yaml:"eventType" json:"eventType"`
	PayloadVersion string `yaml:"payloadVersion" json:"payloadVersion"`
}

// TopicDirective is read-only after it is parsed from the test bundle's
// topic manifest. The pair (Topic, Role) is unique within a TestRecord's
// directive set; the same topic may appear twice, once per role.
type TopicDirective struct {
	Topic             string            `yaml:"topic" json:"topic"`
	Role              Role              `yaml:"role" json:"role"`
	ClientPrincipal   string            `yaml:"clientPrincipal" json:"clientPrincipal"`
	EventFilters      []EventFilter     `yaml:"eventFilters" json:"eventFilters"`
	Metadata          map[string]string `yaml:"metadata" json:"metadata"`
	BootstrapOverride string            `yaml:"bootstrapOverride" json:"bootstrapOverride"`
}

// Key returns the (topic, role) uniqueness key for this directive.
func (d TopicDirective) Key() string {
	return d.Topic + "|" + string(d.Role)
}

// StorageDirective is produced by the object-store adapter after fetching
// and unpacking a test bundle.
type StorageDirective struct {
	AssetRoot        string
	EvidenceRoot     string
	TopicDirectives  []TopicDirective
	UserGluePackages []string
	Tags             []string
	BucketRef        string
}

// Credentials are per-(topic, role), internal, strongly owned by the test
// supervisor, and never escape it except embedded in a SecurityDirective.
type Credentials struct {
	Topic    string
	Role     Role
	Username string
	Secret   string
}

// Protocol is the wire security mode a worker connects with.
type Protocol string

const (
	ProtocolPlaintext Protocol = "plaintext"
	ProtocolAuthTLS   Protocol = "auth+tls"
)

// SecurityDirective is per-(topic, role). AuthConfig is sensitive and must
// never be logged verbatim; it is empty for plaintext.
type SecurityDirective struct {
	Topic      string
	Role       Role
	Protocol   Protocol
	AuthConfig string
}
