package config

// EnvPrefix scopes every environment variable consumed by the service.
const EnvPrefix = "siamgems"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "SIAMGEMS_APP_ENV"
	EnvPort     = "SIAMGEMS_APP_PORT"
	EnvRedisURL = "SIAMGEMS_REDIS_URL"

	EnvDBDSN  = "SIAMGEMS_DB_DSN"
	EnvDBHost = "SIAMGEMS_DB_HOST"
	EnvDBUser = "SIAMGEMS_DB_USER"
	EnvDBName = "SIAMGEMS_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
