package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	LicenseKeys  LicenseKeyConfig
	BrandKeys    BrandKeyConfig
	StatusCache  StatusCacheConfig
	Audit        AuditConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
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
	Env          string `envconfig:"KEYWARD_APP_ENV" required:"true"`
	Port         string `envconfig:"KEYWARD_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"KEYWARD_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KEYWARD_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"KEYWARD_DB_DSN"`
	Driver string `envconfig:"KEYWARD_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"KEYWARD_DB_HOST"`
	LegacyPort     int    `envconfig:"KEYWARD_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KEYWARD_DB_USER"`
	LegacyPassword string `envconfig:"KEYWARD_DB_PASSWORD"`
	LegacyName     string `envconfig:"KEYWARD_DB_NAME"`
	LegacySSLMode  string `envconfig:"KEYWARD_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KEYWARD_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KEYWARD_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KEYWARD_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KEYWARD_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"KEYWARD_REDIS_URL" required:"true"`
	Address      string        `envconfig:"KEYWARD_REDIS_ADDR"`
	Password     string        `envconfig:"KEYWARD_REDIS_PASSWORD"`
	DB           int           `envconfig:"KEYWARD_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KEYWARD_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KEYWARD_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KEYWARD_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KEYWARD_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KEYWARD_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// LicenseKeyConfig drives the deterministic codec protecting license key
// material at rest. The IV is fixed on purpose: lookups compare ciphertext,
// so a given plaintext must always encrypt to the same value.
type LicenseKeyConfig struct {
	Secret    string `envconfig:"KEYWARD_LICENSE_KEY_SECRET" required:"true"`
	IV        string `envconfig:"KEYWARD_LICENSE_KEY_IV" required:"true"`
	BlockSize int    `envconfig:"KEYWARD_LICENSE_KEY_BLOCK_SIZE" default:"256"`
	Mode      string `envconfig:"KEYWARD_LICENSE_KEY_MODE" default:"CBC"`
}

// BrandKeyConfig drives the codec protecting brand API keys. Separate from
// the license key codec so the two secrets can rotate independently.
type BrandKeyConfig struct {
	Secret    string `envconfig:"KEYWARD_BRAND_KEY_SECRET" required:"true"`
	IV        string `envconfig:"KEYWARD_BRAND_KEY_IV" required:"true"`
	BlockSize int    `envconfig:"KEYWARD_BRAND_KEY_BLOCK_SIZE" default:"256"`
	Mode      string `envconfig:"KEYWARD_BRAND_KEY_MODE" default:"CBC"`
}

type StatusCacheConfig struct {
	TTL time.Duration `envconfig:"KEYWARD_STATUS_CACHE_TTL" default:"20m"`
}

type AuditConfig struct {
	QueueSize    int           `envconfig:"KEYWARD_AUDIT_QUEUE_SIZE" default:"256"`
	WriteTimeout time.Duration `envconfig:"KEYWARD_AUDIT_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"KEYWARD_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"KEYWARD_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"KEYWARD_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"KEYWARD_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"KEYWARD_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"KEYWARD_PUBSUB_NOTIFICATION_TOPIC" default:"kw-notification-events"`
}

// NotificationsEnabled reports whether outbound notification dispatch can be
// wired; it requires a configured Pub/Sub project.
func (c *Config) NotificationsEnabled() bool {
	return strings.TrimSpace(c.GCP.ProjectID) != ""
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
