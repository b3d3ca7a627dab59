package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"production"`

	// Store selects the repository backend: "postgres" or "memory".
	Store              string `envconfig:"STORE" default:"postgres"`
	DBConnectionString string `envconfig:"DB_CONNECTION_STRING"`
	DBMaxConns         int32  `envconfig:"DB_MAX_CONNS" default:"25"`

	JWTSecret   string `envconfig:"JWT_SECRET" required:"true"`
	JWTTTLHours int    `envconfig:"JWT_TTL_HOURS" default:"720"`

	// Object storage settings
	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"local"`
	StorageRoot    string `envconfig:"STORAGE_ROOT" default:"."`
	S3URL          string `envconfig:"S3_URL"`
	S3Bucket       string `envconfig:"S3_BUCKET"`
	S3Region       string `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey    string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey    string `envconfig:"S3_SECRET_KEY"`

	// PDF processing settings
	ReferenceDPI   float64 `envconfig:"REFERENCE_DPI" default:"150"`
	MaxUploadMB    int64   `envconfig:"MAX_UPLOAD_MB" default:"50"`
	PdftoppmPath   string  `envconfig:"PDFTOPPM_PATH" default:"pdftoppm"`
	ImagePrefetch  int     `envconfig:"IMAGE_PREFETCH" default:"4"`
	DefaultQuota   int     `envconfig:"DEFAULT_QUOTA" default:"5"`
	ListLimitMax   int     `envconfig:"LIST_LIMIT_MAX" default:"200"`
	ConverterURL   string  `envconfig:"CONVERTER_BASE_URL"`
	ConverterTOSec int     `envconfig:"CONVERTER_TIMEOUT_SEC" default:"120"`

	// Google Play receipt verification
	GooglePlayPackageName        string `envconfig:"GOOGLE_PLAY_PACKAGE_NAME"`
	GoogleServiceAccountKeyPath  string `envconfig:"GOOGLE_SERVICE_ACCOUNT_KEY_PATH"`
	GoogleServiceAccountSecretID string `envconfig:"GOOGLE_SERVICE_ACCOUNT_SECRET"`

	// Payment behaviour
	AllowUnverifiedReceipts bool `envconfig:"PAYMENT_ALLOW_UNVERIFIED_RECEIPTS" default:"false"`
	EnableMockPurchase      bool `envconfig:"PAYMENT_ENABLE_MOCK_PURCHASE" default:"false"`
	SubscriptionDays        int  `envconfig:"SUBSCRIPTION_DEFAULT_DAYS" default:"30"`

	// Pub/Sub settings
	GCPProjectID       string `envconfig:"GCP_PROJECT_ID"`
	PubSubEventsTopic  string `envconfig:"PUBSUB_EVENTS_TOPIC" default:"pdf-editor-events"`
	PubSubEmulatorHost string `envconfig:"PUBSUB_EMULATOR_HOST"`

	// Per-user request throttling
	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"20"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"40"`

	Catalog Catalog `ignored:"true"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.Catalog = DefaultCatalog()
	return &cfg, nil
}

// IsDevelopment reports whether the app runs with ENV=development.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) validate() error {
	switch c.Store {
	case "postgres":
		if c.DBConnectionString == "" {
			return fmt.Errorf("DB_CONNECTION_STRING is required when STORE=postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported STORE %q", c.Store)
	}
	switch c.StorageBackend {
	case "local":
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND=s3")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.StorageBackend)
	}
	if c.ReferenceDPI <= 0 {
		return fmt.Errorf("REFERENCE_DPI must be positive")
	}
	return nil
}
