package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
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
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Orders        OrdersConfig
}

// Load reads the environment, fills the database DSN from the discrete
// FARMLINK_DB_* variables when no DSN is given, and rejects settings the
// binaries cannot run with.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.DB.DSN == "" {
		dsn, err := cfg.DB.legacyDSN()
		if err != nil {
			return nil, err
		}
		cfg.DB.DSN = dsn
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var problems []string
	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}
	check(c.JWT.ExpirationMinutes > 0, EnvJWTExpMins+" must be positive")
	check(c.Orders.PendingNudgeDays > 0, EnvOrdersPendingNudgeDays+" must be positive")
	check(c.Orders.CronInterval > 0, "FARMLINK_ORDERS_CRON_INTERVAL must be positive")
	check(c.Outbox.MaxAttempts > 0, "FARMLINK_OUTBOX_MAX_ATTEMPTS must be positive")
	check(c.Outbox.RetentionDays > 0, "FARMLINK_OUTBOX_RETENTION_DAYS must be positive")
	check(c.AuthRateLimit.LoginWindow > 0, "FARMLINK_AUTH_RATE_LIMIT_LOGIN_WINDOW must be positive")
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

type AppConfig struct {
	Env          string   `envconfig:"FARMLINK_APP_ENV" required:"true"`
	Port         string   `envconfig:"FARMLINK_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"FARMLINK_LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"FARMLINK_LOG_FORMAT" default:"json"`
	LogWarnStack bool     `envconfig:"FARMLINK_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"FARMLINK_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FARMLINK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FARMLINK_DB_DSN"`
	Driver string `envconfig:"FARMLINK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FARMLINK_DB_HOST"`
	LegacyPort     int    `envconfig:"FARMLINK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FARMLINK_DB_USER"`
	LegacyPassword string `envconfig:"FARMLINK_DB_PASSWORD"`
	LegacyName     string `envconfig:"FARMLINK_DB_NAME"`
	LegacySSLMode  string `envconfig:"FARMLINK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FARMLINK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FARMLINK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FARMLINK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FARMLINK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"FARMLINK_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FARMLINK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FARMLINK_REDIS_ADDR"`
	Password     string        `envconfig:"FARMLINK_REDIS_PASSWORD"`
	DB           int           `envconfig:"FARMLINK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FARMLINK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FARMLINK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FARMLINK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FARMLINK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FARMLINK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"FARMLINK_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"FARMLINK_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"FARMLINK_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"FARMLINK_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"FARMLINK_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"FARMLINK_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"FARMLINK_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"FARMLINK_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"FARMLINK_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"FARMLINK_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"FARMLINK_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"FARMLINK_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FARMLINK_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FARMLINK_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"FARMLINK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FARMLINK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"FARMLINK_PUBSUB_ORDERS_TOPIC" default:"fl-order-events"`
	OrdersSubscription string `envconfig:"FARMLINK_PUBSUB_ORDERS_SUBSCRIPTION"`
	// ProductsTopic receives catalog events. Empty routes them to OrdersTopic.
	ProductsTopic string `envconfig:"FARMLINK_PUBSUB_PRODUCTS_TOPIC"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"FARMLINK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"FARMLINK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"FARMLINK_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"FARMLINK_OUTBOX_RETENTION_DAYS" default:"30"`
}

// OrdersConfig tunes the order lifecycle background jobs.
type OrdersConfig struct {
	PendingNudgeDays int           `envconfig:"FARMLINK_ORDERS_PENDING_NUDGE_DAYS" default:"3"`
	CronInterval     time.Duration `envconfig:"FARMLINK_ORDERS_CRON_INTERVAL" default:"1h"`
}

// legacyDSN assembles a postgres URL from host, user and database name. The
// password and sslmode are optional.
func (db DBConfig) legacyDSN() (string, error) {
	var missing []string
	for env, value := range map[string]string{EnvDBHost: db.LegacyHost, EnvDBUser: db.LegacyUser, EnvDBName: db.LegacyName} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return "", fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	user := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		user = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}
	u := url.URL{
		Scheme: "postgres",
		User:   user,
		Host:   net.JoinHostPort(db.LegacyHost, strconv.Itoa(db.LegacyPort)),
		Path:   db.LegacyName,
	}
	if db.LegacySSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {db.LegacySSLMode}}.Encode()
	}
	return u.String(), nil
}
