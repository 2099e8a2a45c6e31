package config

// EnvPrefix is handed to envconfig; every field carries an explicit tag so the
// prefix only matters for untagged fields.
const EnvPrefix = "FARMLINK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv                 = "FARMLINK_APP_ENV"
	EnvPort                   = "FARMLINK_APP_PORT"
	EnvLogLevel               = "FARMLINK_LOG_LEVEL"
	EnvDBDSN                  = "FARMLINK_DB_DSN"
	EnvDBHost                 = "FARMLINK_DB_HOST"
	EnvDBUser                 = "FARMLINK_DB_USER"
	EnvDBName                 = "FARMLINK_DB_NAME"
	EnvDBPassword             = "FARMLINK_DB_PASSWORD"
	EnvRedisURL               = "FARMLINK_REDIS_URL"
	EnvJWTSecret              = "FARMLINK_JWT_SECRET"
	EnvJWTIssuer              = "FARMLINK_JWT_ISSUER"
	EnvJWTExpMins             = "FARMLINK_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "FARMLINK_REFRESH_TOKEN_TTL_MINUTES"
	EnvGCPProjectID           = "FARMLINK_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic      = "FARMLINK_PUBSUB_ORDERS_TOPIC"
	EnvPubSubOrdersSub        = "FARMLINK_PUBSUB_ORDERS_SUBSCRIPTION"
	EnvOrdersPendingNudgeDays = "FARMLINK_ORDERS_PENDING_NUDGE_DAYS"
)

