package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	GCS           GCSConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Mongo         MongoConfig
	Stripe        StripeConfig
	HitPay        HitPayConfig
	Sendgrid      SendgridConfig
	Outbox        OutboxConfig
	Bakery        BakeryConfig
	CORS          CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.Bakery.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BAKEHOUSE_APP_ENV" required:"true"`
	Port         string `envconfig:"BAKEHOUSE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BAKEHOUSE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BAKEHOUSE_LOG_WARN_STACK" default:"false"`
	PublicURL    string `envconfig:"BAKEHOUSE_PUBLIC_URL" default:"http://localhost:3000/"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"BAKEHOUSE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BAKEHOUSE_DB_DSN"`
	Driver string `envconfig:"BAKEHOUSE_DB_DRIVER" default:"pgx"`

	Host     string `envconfig:"BAKEHOUSE_DB_HOST"`
	Port     int    `envconfig:"BAKEHOUSE_DB_PORT" default:"5432"`
	User     string `envconfig:"BAKEHOUSE_DB_USER"`
	Password string `envconfig:"BAKEHOUSE_DB_PASSWORD"`
	Name     string `envconfig:"BAKEHOUSE_DB_NAME"`
	SSLMode  string `envconfig:"BAKEHOUSE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BAKEHOUSE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BAKEHOUSE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BAKEHOUSE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BAKEHOUSE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BAKEHOUSE_REDIS_URL" required:"true"`
	Password     string        `envconfig:"BAKEHOUSE_REDIS_PASSWORD"`
	DB           int           `envconfig:"BAKEHOUSE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BAKEHOUSE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BAKEHOUSE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BAKEHOUSE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BAKEHOUSE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BAKEHOUSE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BAKEHOUSE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BAKEHOUSE_JWT_ISSUER" default:"bakehouse"`
	ExpirationMinutes int    `envconfig:"BAKEHOUSE_JWT_EXPIRATION_MINUTES" default:"1440"`
}

// TTL returns the access token lifetime.
func (j JWTConfig) TTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"BAKEHOUSE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"BAKEHOUSE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"BAKEHOUSE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"BAKEHOUSE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"BAKEHOUSE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"BAKEHOUSE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginIPLimit    int           `envconfig:"BAKEHOUSE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	LoginEmailLimit int           `envconfig:"BAKEHOUSE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	RegisterWindow  time.Duration `envconfig:"BAKEHOUSE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"1h"`
	RegisterIPLimit int           `envconfig:"BAKEHOUSE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate   bool `envconfig:"BAKEHOUSE_AUTO_MIGRATE" default:"false"`
	ForceExports  bool `envconfig:"BAKEHOUSE_FORCE_EXPORTS" default:"false"`
	AnalyticsSink bool `envconfig:"BAKEHOUSE_ANALYTICS_SINK" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"BAKEHOUSE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"BAKEHOUSE_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"BAKEHOUSE_GCP_CREDENTIALS_JSON"`
}

type GCSConfig struct {
	ExportBucket string `envconfig:"BAKEHOUSE_GCS_EXPORT_BUCKET"`
	ExportPrefix string `envconfig:"BAKEHOUSE_GCS_EXPORT_PREFIX" default:"exports"`
}

type PubSubConfig struct {
	DomainTopic              string `envconfig:"BAKEHOUSE_PUBSUB_DOMAIN_TOPIC" default:"bakehouse-domain-events"`
	NotificationSubscription string `envconfig:"BAKEHOUSE_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"bakehouse-notifications"`
	AnalyticsSubscription    string `envconfig:"BAKEHOUSE_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"bakehouse-analytics"`
}

type BigQueryConfig struct {
	Dataset    string `envconfig:"BAKEHOUSE_BIGQUERY_DATASET" default:"bakehouse"`
	SalesTable string `envconfig:"BAKEHOUSE_BIGQUERY_SALES_TABLE" default:"order_payments"`
}

type MongoConfig struct {
	URI               string `envconfig:"BAKEHOUSE_MONGO_URI"`
	Database          string `envconfig:"BAKEHOUSE_MONGO_DATABASE" default:"bakehouse"`
	BackupsCollection string `envconfig:"BAKEHOUSE_MONGO_BACKUPS_COLLECTION" default:"backup_orders"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"BAKEHOUSE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"BAKEHOUSE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"BAKEHOUSE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"BAKEHOUSE_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"BAKEHOUSE_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"BAKEHOUSE_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type HitPayConfig struct {
	BaseURL     string        `envconfig:"BAKEHOUSE_HITPAY_URL" default:"https://api.sandbox.hit-pay.com/v1/"`
	APIKey      string        `envconfig:"BAKEHOUSE_HITPAY_API_KEY"`
	Salt        string        `envconfig:"BAKEHOUSE_HITPAY_SALT"`
	RedirectURL string        `envconfig:"BAKEHOUSE_HITPAY_REDIRECT_URL"`
	WebhookURL  string        `envconfig:"BAKEHOUSE_HITPAY_WEBHOOK_URL"`
	Timeout     time.Duration `envconfig:"BAKEHOUSE_HITPAY_TIMEOUT" default:"10s"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"BAKEHOUSE_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"BAKEHOUSE_SENDGRID_FROM_EMAIL" default:"hello@bakehouse.example"`
	FromName    string `envconfig:"BAKEHOUSE_SENDGRID_FROM_NAME" default:"Bakehouse"`
}

// BakeryConfig holds the knobs of the order workflow itself.
type BakeryConfig struct {
	Timezone                 string        `envconfig:"BAKEHOUSE_TIMEZONE" default:"Asia/Singapore"`
	Currency                 string        `envconfig:"BAKEHOUSE_CURRENCY" default:"SGD"`
	OrderNumberAttempts      int           `envconfig:"BAKEHOUSE_ORDER_NUMBER_ATTEMPTS" default:"5"`
	OrderNumberBackoff       time.Duration `envconfig:"BAKEHOUSE_ORDER_NUMBER_BACKOFF" default:"20ms"`
	ConfirmationEmailDelay   time.Duration `envconfig:"BAKEHOUSE_CONFIRMATION_EMAIL_DELAY" default:"5m"`
	ExportRecipient          string        `envconfig:"BAKEHOUSE_EXPORT_RECIPIENT" default:"hello@bakehouse.example"`
	CronInterval             time.Duration `envconfig:"BAKEHOUSE_CRON_INTERVAL" default:"1m"`
	PendingPaymentWindowDays int           `envconfig:"BAKEHOUSE_PENDING_PAYMENT_WINDOW_DAYS" default:"1"`
}

// Location resolves the configured timezone.
func (b BakeryConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(b.Timezone)
	if name == "" {
		name = "Asia/Singapore"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", EnvTimezone, name, err)
	}
	return loc, nil
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"BAKEHOUSE_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
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
