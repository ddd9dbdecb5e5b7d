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
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Cart          CartConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Storefront    StorefrontConfig
	Housekeeping  HousekeepingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadStorefront reads only the storefront client settings, for tools that
// talk to a running API and need none of the server config.
func LoadStorefront() (StorefrontConfig, error) {
	var cfg StorefrontConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return StorefrontConfig{}, fmt.Errorf("parsing storefront config: %w", err)
	}
	return cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"RAFFLEHOUSE_APP_ENV" required:"true"`
	Port         string `envconfig:"RAFFLEHOUSE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"RAFFLEHOUSE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RAFFLEHOUSE_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"RAFFLEHOUSE_LOG_FORMAT" default:"json"`
	MetricsAddr  string `envconfig:"RAFFLEHOUSE_METRICS_ADDR" default:":9090"`
	CORSOrigins  string `envconfig:"RAFFLEHOUSE_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type DBConfig struct {
	DSN    string `envconfig:"RAFFLEHOUSE_DB_DSN"`
	Driver string `envconfig:"RAFFLEHOUSE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"RAFFLEHOUSE_DB_HOST"`
	Port     int    `envconfig:"RAFFLEHOUSE_DB_PORT" default:"5432"`
	User     string `envconfig:"RAFFLEHOUSE_DB_USER"`
	Password string `envconfig:"RAFFLEHOUSE_DB_PASSWORD"`
	Name     string `envconfig:"RAFFLEHOUSE_DB_NAME"`
	SSLMode  string `envconfig:"RAFFLEHOUSE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RAFFLEHOUSE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RAFFLEHOUSE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RAFFLEHOUSE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RAFFLEHOUSE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"RAFFLEHOUSE_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RAFFLEHOUSE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"RAFFLEHOUSE_REDIS_ADDR"`
	Password     string        `envconfig:"RAFFLEHOUSE_REDIS_PASSWORD"`
	DB           int           `envconfig:"RAFFLEHOUSE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RAFFLEHOUSE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RAFFLEHOUSE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RAFFLEHOUSE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RAFFLEHOUSE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RAFFLEHOUSE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"RAFFLEHOUSE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"RAFFLEHOUSE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"RAFFLEHOUSE_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenDays  int    `envconfig:"RAFFLEHOUSE_REFRESH_TOKEN_TTL_DAYS" default:"7"`
}

// TokenTTL returns the access token lifetime.
func (j JWTConfig) TokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// RefreshTokenTTL returns how long a refresh session survives in redis.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenDays <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenDays) * 24 * time.Hour
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"RAFFLEHOUSE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"RAFFLEHOUSE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"RAFFLEHOUSE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"RAFFLEHOUSE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"RAFFLEHOUSE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"RAFFLEHOUSE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"RAFFLEHOUSE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"RAFFLEHOUSE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"RAFFLEHOUSE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"1h"`
	RegisterIPLimit    int           `envconfig:"RAFFLEHOUSE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"10"`
	RegisterEmailLimit int           `envconfig:"RAFFLEHOUSE_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	AnswerWindow       time.Duration `envconfig:"RAFFLEHOUSE_ANSWER_RATE_LIMIT_WINDOW" default:"1m"`
	AnswerUserLimit    int           `envconfig:"RAFFLEHOUSE_ANSWER_RATE_LIMIT_USER_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"RAFFLEHOUSE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"RAFFLEHOUSE_AUTO_MIGRATE" default:"false"`
}

type CartConfig struct {
	MaxQuantity  int           `envconfig:"RAFFLEHOUSE_CART_MAX_QUANTITY" default:"100"`
	EntryPassTTL time.Duration `envconfig:"RAFFLEHOUSE_ENTRY_PASS_TTL" default:"10m"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"RAFFLEHOUSE_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	EventsTopic    string        `envconfig:"RAFFLEHOUSE_PUBSUB_EVENTS_TOPIC" default:"rh-domain-events"`
	Ordered        bool          `envconfig:"RAFFLEHOUSE_PUBSUB_ORDERED" default:"true"`
	PublishTimeout time.Duration `envconfig:"RAFFLEHOUSE_PUBSUB_PUBLISH_TIMEOUT" default:"15s"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"RAFFLEHOUSE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"RAFFLEHOUSE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"RAFFLEHOUSE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type HousekeepingConfig struct {
	Interval         time.Duration `envconfig:"RAFFLEHOUSE_HOUSEKEEPING_INTERVAL" default:"1h"`
	CartAbandonAfter time.Duration `envconfig:"RAFFLEHOUSE_HOUSEKEEPING_CART_ABANDON_AFTER" default:"72h"`
	OutboxRetention  time.Duration `envconfig:"RAFFLEHOUSE_HOUSEKEEPING_OUTBOX_RETENTION" default:"720h"`
}

type StorefrontConfig struct {
	BaseURL string        `envconfig:"RAFFLEHOUSE_STOREFRONT_BASE_URL" default:"http://localhost:8080"`
	Token   string        `envconfig:"RAFFLEHOUSE_STOREFRONT_TOKEN"`
	Timeout time.Duration `envconfig:"RAFFLEHOUSE_STOREFRONT_TIMEOUT" default:"10s"`
	Env     string        `envconfig:"RAFFLEHOUSE_APP_ENV" default:"prod"`
}

// StrictInvariants reports whether cart totals drift should panic instead of
// being logged. Only dev builds run strict.
func (s StorefrontConfig) StrictInvariants() bool {
	return strings.EqualFold(s.Env, AppEnvDev)
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = "file:rafflehouse.db?cache=shared"
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
