package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "idp"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv = "IDP_APP_ENV"
	EnvDBDSN  = "IDP_DB_DSN"
	EnvDBHost = "IDP_DB_HOST"
	EnvDBUser = "IDP_DB_USER"
	EnvDBName = "IDP_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	GCS          GCSConfig
	Uploads      UploadsConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"IDP_APP_ENV" required:"true"`
	Port         string `envconfig:"IDP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"IDP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"IDP_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"IDP_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"IDP_DB_DSN"`
	Driver string `envconfig:"IDP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"IDP_DB_HOST"`
	LegacyPort     int    `envconfig:"IDP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"IDP_DB_USER"`
	LegacyPassword string `envconfig:"IDP_DB_PASSWORD"`
	LegacyName     string `envconfig:"IDP_DB_NAME"`
	LegacySSLMode  string `envconfig:"IDP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"IDP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"IDP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"IDP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"IDP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"IDP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"IDP_REDIS_ADDR"`
	Password     string        `envconfig:"IDP_REDIS_PASSWORD"`
	DB           int           `envconfig:"IDP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"IDP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"IDP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"IDP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"IDP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"IDP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"IDP_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"IDP_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"IDP_JWT_EXPIRATION_MINUTES" required:"true"`
	SessionTTLMinutes int    `envconfig:"IDP_SESSION_TTL_MINUTES" default:"43200"`
}

// SessionTTL returns the access-session TTL configured in minutes.
func (j JWTConfig) SessionTTL() time.Duration {
	if j.SessionTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.SessionTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"IDP_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"IDP_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"IDP_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"IDP_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"IDP_ARGON_KEY_LEN" default:"32"`
}

type RateLimitConfig struct {
	LoginWindow       time.Duration `envconfig:"IDP_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit   int           `envconfig:"IDP_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit      int           `envconfig:"IDP_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	PublicFormWindow  time.Duration `envconfig:"IDP_RATE_LIMIT_PUBLIC_FORM_WINDOW" default:"1m"`
	PublicFormIPLimit int           `envconfig:"IDP_RATE_LIMIT_PUBLIC_FORM_IP_LIMIT" default:"30"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"IDP_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"IDP_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"IDP_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"IDP_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName        string        `envconfig:"IDP_GCS_BUCKET_NAME" required:"true"`
	UploadURLExpiry   time.Duration `envconfig:"IDP_GCS_UPLOAD_URL_EXPIRY" default:"15m"`
	DownloadURLExpiry time.Duration `envconfig:"IDP_GCS_DOWNLOAD_URL_EXPIRY" default:"1h"`
}

type UploadsConfig struct {
	MaxUploadBytes int64         `envconfig:"IDP_MAX_UPLOAD_BYTES" default:"5242880"`
	DraftRetention time.Duration `envconfig:"IDP_DRAFT_RETENTION" default:"168h"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"IDP_PUBSUB_DOMAIN_TOPIC" default:"idp-domain-events"`
	DomainSubscription string `envconfig:"IDP_PUBSUB_DOMAIN_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"IDP_OUTBOX_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"IDP_OUTBOX_POLL_INTERVAL_MS" default:"500"`
	MaxAttempts    int `envconfig:"IDP_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval          time.Duration `envconfig:"IDP_CRON_INTERVAL" default:"24h"`
	ExpiryWarningDays int           `envconfig:"IDP_CRON_EXPIRY_WARNING_DAYS" default:"30"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
