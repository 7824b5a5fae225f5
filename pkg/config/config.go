package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "LUCA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "LUCA_DB_DSN"
	EnvDBHost = "LUCA_DB_HOST"
	EnvDBUser = "LUCA_DB_USER"
	EnvDBName = "LUCA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Vault        VaultConfig
	OAuth        OAuthConfig
	Webhooks     WebhookConfig
	Attribution  AttributionConfig
	Worker       WorkerConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"LUCA_APP_ENV" required:"true"`
	Port         string `envconfig:"LUCA_APP_PORT" required:"true"`
	BaseURL      string `envconfig:"LUCA_APP_BASE_URL" required:"true"`
	FrontendURL  string `envconfig:"LUCA_APP_FRONTEND_URL" required:"true"`
	LogLevel     string `envconfig:"LUCA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LUCA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LUCA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LUCA_DB_DSN"`
	Driver string `envconfig:"LUCA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LUCA_DB_HOST"`
	LegacyPort     int    `envconfig:"LUCA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LUCA_DB_USER"`
	LegacyPassword string `envconfig:"LUCA_DB_PASSWORD"`
	LegacyName     string `envconfig:"LUCA_DB_NAME"`
	LegacySSLMode  string `envconfig:"LUCA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LUCA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LUCA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LUCA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LUCA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LUCA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LUCA_REDIS_ADDR"`
	Password     string        `envconfig:"LUCA_REDIS_PASSWORD"`
	DB           int           `envconfig:"LUCA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LUCA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LUCA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LUCA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LUCA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LUCA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies bearer tokens minted by the external identity provider.
type JWTConfig struct {
	Secret string `envconfig:"LUCA_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"LUCA_JWT_ISSUER" required:"true"`
}

type VaultConfig struct {
	Secret string `envconfig:"LUCA_VAULT_SECRET" required:"true"`
}

// OAuthConfig carries per-platform client credentials. A platform whose
// pair is empty stays disabled; connect attempts against it fail with
// CONFIG_ERROR instead of crashing startup.
type OAuthConfig struct {
	StateTTL time.Duration `envconfig:"LUCA_OAUTH_STATE_TTL" default:"10m"`

	SallaClientID        string `envconfig:"LUCA_OAUTH_SALLA_CLIENT_ID"`
	SallaClientSecret    string `envconfig:"LUCA_OAUTH_SALLA_CLIENT_SECRET"`
	ShopifyClientID      string `envconfig:"LUCA_OAUTH_SHOPIFY_CLIENT_ID"`
	ShopifyClientSecret  string `envconfig:"LUCA_OAUTH_SHOPIFY_CLIENT_SECRET"`
	MetaClientID         string `envconfig:"LUCA_OAUTH_META_CLIENT_ID"`
	MetaClientSecret     string `envconfig:"LUCA_OAUTH_META_CLIENT_SECRET"`
	GoogleClientID       string `envconfig:"LUCA_OAUTH_GOOGLE_CLIENT_ID"`
	GoogleClientSecret   string `envconfig:"LUCA_OAUTH_GOOGLE_CLIENT_SECRET"`
	TikTokClientID       string `envconfig:"LUCA_OAUTH_TIKTOK_CLIENT_ID"`
	TikTokClientSecret   string `envconfig:"LUCA_OAUTH_TIKTOK_CLIENT_SECRET"`
	SnapchatClientID     string `envconfig:"LUCA_OAUTH_SNAPCHAT_CLIENT_ID"`
	SnapchatClientSecret string `envconfig:"LUCA_OAUTH_SNAPCHAT_CLIENT_SECRET"`
}

type WebhookConfig struct {
	ShopifySecret string `envconfig:"LUCA_WEBHOOK_SHOPIFY_SECRET"`
	SallaSecret   string `envconfig:"LUCA_WEBHOOK_SALLA_SECRET"`
}

type AttributionConfig struct {
	ClickWindow time.Duration `envconfig:"LUCA_ATTRIBUTION_CLICK_WINDOW" default:"168h"`
	ViewWindow  time.Duration `envconfig:"LUCA_ATTRIBUTION_VIEW_WINDOW" default:"24h"`
	MaxWindow   time.Duration `envconfig:"LUCA_ATTRIBUTION_MAX_WINDOW" default:"672h"`
}

type WorkerConfig struct {
	Interval       time.Duration `envconfig:"LUCA_WORKER_INTERVAL" default:"15m"`
	LockTTL        time.Duration `envconfig:"LUCA_WORKER_LOCK_TTL" default:"30m"`
	RollupDays     int           `envconfig:"LUCA_WORKER_ROLLUP_DAYS" default:"35"`
	SpendSyncDays  int           `envconfig:"LUCA_WORKER_SPEND_SYNC_DAYS" default:"7"`
	MetricsPort    string        `envconfig:"LUCA_WORKER_METRICS_PORT" default:"9090"`
	RequestTimeout time.Duration `envconfig:"LUCA_WORKER_REQUEST_TIMEOUT" default:"30s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LUCA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LUCA_AUTO_MIGRATE" default:"false"`
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
