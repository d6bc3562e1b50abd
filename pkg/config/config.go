package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every environment variable the service reads.
	EnvPrefix = "motiv"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "MOTIV_DB_DSN"
	EnvDBHost = "MOTIV_DB_HOST"
	EnvDBUser = "MOTIV_DB_USER"
	EnvDBName = "MOTIV_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Leaderboard  LeaderboardConfig
	Reconcile    ReconcileConfig
	Ledger       LedgerConfig
	Projects     ProjectsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
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
	Env          string `envconfig:"MOTIV_APP_ENV" required:"true"`
	Port         string `envconfig:"MOTIV_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MOTIV_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MOTIV_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MOTIV_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MOTIV_DB_DSN"`
	Driver string `envconfig:"MOTIV_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MOTIV_DB_HOST"`
	LegacyPort     int    `envconfig:"MOTIV_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MOTIV_DB_USER"`
	LegacyPassword string `envconfig:"MOTIV_DB_PASSWORD"`
	LegacyName     string `envconfig:"MOTIV_DB_NAME"`
	LegacySSLMode  string `envconfig:"MOTIV_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MOTIV_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MOTIV_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MOTIV_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MOTIV_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MOTIV_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MOTIV_REDIS_ADDR"`
	Password     string        `envconfig:"MOTIV_REDIS_PASSWORD"`
	DB           int           `envconfig:"MOTIV_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MOTIV_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MOTIV_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MOTIV_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MOTIV_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MOTIV_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig describes tokens minted by the identity service. The scoring
// engine only verifies them; it never issues credentials of its own.
type JWTConfig struct {
	Secret            string `envconfig:"MOTIV_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MOTIV_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MOTIV_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MOTIV_AUTO_MIGRATE" default:"false"`
}

type LeaderboardConfig struct {
	CacheTTL time.Duration `envconfig:"MOTIV_LEADERBOARD_CACHE_TTL" default:"1m"`
}

type ReconcileConfig struct {
	Interval  time.Duration `envconfig:"MOTIV_RECONCILE_INTERVAL" default:"1h"`
	BatchSize int           `envconfig:"MOTIV_RECONCILE_BATCH_SIZE" default:"500"`
}

type LedgerConfig struct {
	RetryAttempts int           `envconfig:"MOTIV_LEDGER_RETRY_ATTEMPTS" default:"3"`
	RetryBackoff  time.Duration `envconfig:"MOTIV_LEDGER_RETRY_BACKOFF" default:"50ms"`
}

// ProjectsConfig points at the project-store service queried for badge
// criteria counters.
type ProjectsConfig struct {
	BaseURL      string        `envconfig:"MOTIV_PROJECTS_BASE_URL"`
	ServiceToken string        `envconfig:"MOTIV_PROJECTS_SERVICE_TOKEN"`
	Timeout      time.Duration `envconfig:"MOTIV_PROJECTS_TIMEOUT" default:"5s"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"MOTIV_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	NotificationTopic        string `envconfig:"MOTIV_PUBSUB_NOTIFICATION_TOPIC" default:"motiv-notification-events"`
	NotificationSubscription string `envconfig:"MOTIV_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MOTIV_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MOTIV_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MOTIV_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
