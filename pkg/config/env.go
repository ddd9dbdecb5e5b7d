package config

const EnvPrefix = "RAFFLEHOUSE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv        = "RAFFLEHOUSE_APP_ENV"
	EnvPort          = "RAFFLEHOUSE_APP_PORT"
	EnvDBDSN         = "RAFFLEHOUSE_DB_DSN"
	EnvDBHost        = "RAFFLEHOUSE_DB_HOST"
	EnvDBUser        = "RAFFLEHOUSE_DB_USER"
	EnvDBName        = "RAFFLEHOUSE_DB_NAME"
	EnvRedisURL      = "RAFFLEHOUSE_REDIS_URL"
	EnvJWTSecret     = "RAFFLEHOUSE_JWT_SECRET"
	EnvJWTIssuer     = "RAFFLEHOUSE_JWT_ISSUER"
	EnvJWTExpMins    = "RAFFLEHOUSE_JWT_EXPIRATION_MINUTES"
	EnvUseSQLite     = "RAFFLEHOUSE_USE_SQLITE"
	EnvCartMaxQty    = "RAFFLEHOUSE_CART_MAX_QUANTITY"
	EnvEntryPassTTL  = "RAFFLEHOUSE_ENTRY_PASS_TTL"
	EnvCORSOrigins   = "RAFFLEHOUSE_CORS_ORIGINS"
	EnvEventsTopic   = "RAFFLEHOUSE_PUBSUB_EVENTS_TOPIC"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
