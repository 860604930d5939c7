package config

// EnvPrefix namespaces all environment variables consumed by envconfig.
const EnvPrefix = "KEYWARD"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "KEYWARD_APP_ENV"
	EnvPort     = "KEYWARD_APP_PORT"
	EnvDBDSN    = "KEYWARD_DB_DSN"
	EnvDBHost   = "KEYWARD_DB_HOST"
	EnvDBUser   = "KEYWARD_DB_USER"
	EnvDBName   = "KEYWARD_DB_NAME"
	EnvRedisURL = "KEYWARD_REDIS_URL"

	EnvLicenseKeySecret = "KEYWARD_LICENSE_KEY_SECRET"
	EnvLicenseKeyIV     = "KEYWARD_LICENSE_KEY_IV"
	EnvBrandKeySecret   = "KEYWARD_BRAND_KEY_SECRET"
	EnvBrandKeyIV       = "KEYWARD_BRAND_KEY_IV"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
