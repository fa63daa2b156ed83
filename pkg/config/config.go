package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Checkout CheckoutConfig
	Gateway  GatewayConfig
	Stripe   StripeConfig
	Eventing EventingConfig
	Outbox   OutboxConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	BigQuery BigQueryConfig
	Cron     CronConfig
	Features FeatureFlagsConfig
	HTTP     HTTPConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LAGGEDOUT_APP_ENV" required:"true"`
	Port         string `envconfig:"LAGGEDOUT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LAGGEDOUT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"LAGGEDOUT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"LAGGEDOUT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type HTTPConfig struct {
	ReadTimeout     time.Duration `envconfig:"LAGGEDOUT_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"LAGGEDOUT_HTTP_WRITE_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"LAGGEDOUT_HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	AllowedOrigins  []string      `envconfig:"LAGGEDOUT_HTTP_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type DBConfig struct {
	DSN    string `envconfig:"LAGGEDOUT_DB_DSN"`
	Driver string `envconfig:"LAGGEDOUT_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"LAGGEDOUT_DB_HOST"`
	Port     int    `envconfig:"LAGGEDOUT_DB_PORT" default:"5432"`
	User     string `envconfig:"LAGGEDOUT_DB_USER"`
	Password string `envconfig:"LAGGEDOUT_DB_PASSWORD"`
	Name     string `envconfig:"LAGGEDOUT_DB_NAME"`
	SSLMode  string `envconfig:"LAGGEDOUT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LAGGEDOUT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LAGGEDOUT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LAGGEDOUT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LAGGEDOUT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LAGGEDOUT_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"LAGGEDOUT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LAGGEDOUT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LAGGEDOUT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LAGGEDOUT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LAGGEDOUT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"LAGGEDOUT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LAGGEDOUT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LAGGEDOUT_JWT_EXPIRATION_MINUTES" default:"60"`
}

// CheckoutConfig bounds how long a pending order stays payable.
type CheckoutConfig struct {
	Currency    string        `envconfig:"LAGGEDOUT_CHECKOUT_CURRENCY" default:"USD"`
	OrderTTL    time.Duration `envconfig:"LAGGEDOUT_CHECKOUT_ORDER_TTL" default:"30m"`
	ExpiryGrace time.Duration `envconfig:"LAGGEDOUT_CHECKOUT_EXPIRY_GRACE" default:"15m"`
	IdemTTL     time.Duration `envconfig:"LAGGEDOUT_CHECKOUT_IDEMPOTENCY_TTL" default:"24h"`

	// Verify attempts allowed per user per window; zero disables the limiter.
	VerifyLimit  int           `envconfig:"LAGGEDOUT_CHECKOUT_VERIFY_LIMIT" default:"10"`
	VerifyWindow time.Duration `envconfig:"LAGGEDOUT_CHECKOUT_VERIFY_WINDOW" default:"1m"`
}

func (c CheckoutConfig) validate() error {
	if c.OrderTTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvOrderTTL)
	}
	if len(strings.TrimSpace(c.Currency)) != 3 {
		return fmt.Errorf("checkout currency must be an ISO-4217 code, got %q", c.Currency)
	}
	return nil
}

// GatewayConfig selects the payment gateway and carries the callback signing secret.
type GatewayConfig struct {
	Provider       string        `envconfig:"LAGGEDOUT_GATEWAY_PROVIDER" default:"stripe"`
	SigningSecret  string        `envconfig:"LAGGEDOUT_GATEWAY_SIGNING_SECRET" required:"true"`
	RequestTimeout time.Duration `envconfig:"LAGGEDOUT_GATEWAY_REQUEST_TIMEOUT" default:"10s"`
	BreakerMaxFail uint32        `envconfig:"LAGGEDOUT_GATEWAY_BREAKER_MAX_FAILURES" default:"5"`
	BreakerOpenFor time.Duration `envconfig:"LAGGEDOUT_GATEWAY_BREAKER_OPEN_FOR" default:"30s"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"LAGGEDOUT_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"LAGGEDOUT_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"LAGGEDOUT_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type EventingConfig struct {
	ConsumerIdempotencyTTL time.Duration `envconfig:"LAGGEDOUT_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	ConsumerClaimLease     time.Duration `envconfig:"LAGGEDOUT_EVENTING_CLAIM_LEASE" default:"5m"`
	WebhookDedupeTTL       time.Duration `envconfig:"LAGGEDOUT_EVENTING_WEBHOOK_DEDUPE_TTL" default:"72h"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"LAGGEDOUT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"LAGGEDOUT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"LAGGEDOUT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"LAGGEDOUT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"LAGGEDOUT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"LAGGEDOUT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic           string `envconfig:"LAGGEDOUT_PUBSUB_DOMAIN_TOPIC" default:"lo-domain-events"`
	NotificationSub       string `envconfig:"LAGGEDOUT_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"lo-notifications"`
	AnalyticsSub          string `envconfig:"LAGGEDOUT_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"lo-analytics"`
	MaxOutstandingMessage int    `envconfig:"LAGGEDOUT_PUBSUB_MAX_OUTSTANDING" default:"50"`
}

type BigQueryConfig struct {
	Dataset         string `envconfig:"LAGGEDOUT_BIGQUERY_DATASET" default:"laggedout"`
	PurchasesTable  string `envconfig:"LAGGEDOUT_BIGQUERY_PURCHASES_TABLE" default:"purchase_facts"`
	RefundsTable    string `envconfig:"LAGGEDOUT_BIGQUERY_REFUNDS_TABLE" default:"refund_facts"`
	InsertBatchSize int    `envconfig:"LAGGEDOUT_BIGQUERY_BATCH_SIZE" default:"1"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"LAGGEDOUT_CRON_INTERVAL" default:"1m"`
	LockTTL  time.Duration `envconfig:"LAGGEDOUT_CRON_LOCK_TTL" default:"55s"`
	Batch    int           `envconfig:"LAGGEDOUT_CRON_EXPIRY_BATCH" default:"200"`

	OutboxRetention       time.Duration `envconfig:"LAGGEDOUT_CRON_OUTBOX_RETENTION" default:"720h"`
	NotificationRetention time.Duration `envconfig:"LAGGEDOUT_CRON_NOTIFICATION_RETENTION" default:"720h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LAGGEDOUT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LAGGEDOUT_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	missing := []string{}
	for _, env := range legacyDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}
	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
