package types

// ProjectConfig is the top-level lineage.yaml configuration.
type ProjectConfig struct {
	Postgres      PostgresConfig      `yaml:"postgres" json:"postgres"`
	Legacy        LegacyConfig        `yaml:"legacy" json:"legacy"`
	ObjectStore   ObjectStoreConfig   `yaml:"objectstore" json:"objectstore"`
	Notify        NotifyConfig        `yaml:"notify,omitempty" json:"notify,omitempty"`
	StepFunctions StepFunctionsConfig `yaml:"stepfunctions,omitempty" json:"stepfunctions,omitempty"`
}

// PostgresConfig configures the relational store. Either DSN or SecretARN
// must be set; when SecretARN is set the DSN is resolved from Secrets
// Manager at startup.
type PostgresConfig struct {
	DSN           string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
	SecretARN     string `yaml:"secret_arn,omitempty" json:"secretArn,omitempty"`
	MigrationsDir string `yaml:"migrations_dir,omitempty" json:"migrationsDir,omitempty"`
}

// LegacyConfig configures the legacy document-store collaborator.
type LegacyConfig struct {
	Table    string `yaml:"table" json:"table"`
	Region   string `yaml:"region,omitempty" json:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
}

// ObjectStoreConfig configures the object-storage collaborator.
type ObjectStoreConfig struct {
	Region   string `yaml:"region,omitempty" json:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
}

// NotifyConfig configures the record-update message queue. Empty QueueURL
// disables notifications.
type NotifyConfig struct {
	QueueURL string `yaml:"queue_url,omitempty" json:"queueUrl,omitempty"`
	Region   string `yaml:"region,omitempty" json:"region,omitempty"`
}

// StepFunctionsConfig configures execution ARN resolution.
type StepFunctionsConfig struct {
	Region string `yaml:"region,omitempty" json:"region,omitempty"`
}
