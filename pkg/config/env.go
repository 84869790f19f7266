package config

const EnvPrefix = "BAKEHOUSE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv      = "BAKEHOUSE_APP_ENV"
	EnvPort        = "BAKEHOUSE_APP_PORT"
	EnvDBDSN       = "BAKEHOUSE_DB_DSN"
	EnvDBHost      = "BAKEHOUSE_DB_HOST"
	EnvDBUser      = "BAKEHOUSE_DB_USER"
	EnvDBName      = "BAKEHOUSE_DB_NAME"
	EnvRedisURL    = "BAKEHOUSE_REDIS_URL"
	EnvJWTSecret   = "BAKEHOUSE_JWT_SECRET"
	EnvTimezone    = "BAKEHOUSE_TIMEZONE"
	EnvHitPaySalt  = "BAKEHOUSE_HITPAY_SALT"
	EnvMongoURI    = "BAKEHOUSE_MONGO_URI"
	EnvCORSOrigins = "BAKEHOUSE_CORS_ALLOWED_ORIGINS"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
