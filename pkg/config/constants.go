package config

const EnvPrefix = "RECOVERO"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv    = "RECOVERO_APP_ENV"
	EnvPort      = "RECOVERO_APP_PORT"
	EnvPublicURL = "RECOVERO_PUBLIC_URL"
	EnvLogLevel  = "RECOVERO_LOG_LEVEL"

	EnvDBDSN  = "RECOVERO_DB_DSN"
	EnvDBHost = "RECOVERO_DB_HOST"
	EnvDBUser = "RECOVERO_DB_USER"
	EnvDBName = "RECOVERO_DB_NAME"

	EnvRedisURL  = "RECOVERO_REDIS_URL"
	EnvJWTSecret = "RECOVERO_JWT_SECRET"

	EnvCheckoutURL        = "RECOVERO_CHECKOUT_URL"
	EnvEmailDelayHours    = "RECOVERO_EMAIL_DELAY_HOURS"
	EnvWhatsAppDelayHours = "RECOVERO_WHATSAPP_DELAY_HOURS"
	EnvReminderBatchSize  = "RECOVERO_REMINDER_BATCH_SIZE"
	EnvPurgeDays          = "RECOVERO_PURGE_DAYS"
	EnvCouponAmount       = "RECOVERO_COUPON_AMOUNT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
