package config

const EnvPrefix = "VENDORCRM"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv       = "VENDORCRM_APP_ENV"
	EnvPort         = "VENDORCRM_APP_PORT"
	EnvDBDSN        = "VENDORCRM_DB_DSN"
	EnvDBHost       = "VENDORCRM_DB_HOST"
	EnvDBPort       = "VENDORCRM_DB_PORT"
	EnvDBUser       = "VENDORCRM_DB_USER"
	EnvDBPassword   = "VENDORCRM_DB_PASSWORD"
	EnvDBName       = "VENDORCRM_DB_NAME"
	EnvRedisURL     = "VENDORCRM_REDIS_URL"
	EnvJWTSecret    = "VENDORCRM_JWT_SECRET"
	EnvJWTIssuer    = "VENDORCRM_JWT_ISSUER"
	EnvJWTExpMins   = "VENDORCRM_JWT_EXPIRATION_MINUTES"
	EnvUploadsDir   = "VENDORCRM_UPLOADS_DIR"
	EnvWhatsAppURL  = "VENDORCRM_WHATSAPP_API_URL"
	EnvWhatsAppTok  = "VENDORCRM_WHATSAPP_TOKEN"
	EnvWhatsAppTo   = "VENDORCRM_WHATSAPP_RECIPIENTS"
	EnvDomainTopic  = "VENDORCRM_PUBSUB_DOMAIN_TOPIC"
	EnvCORSOrigins  = "VENDORCRM_CORS_ALLOWED_ORIGINS"
	EnvOutboxMaxTry = "VENDORCRM_OUTBOX_MAX_ATTEMPTS"
)

var dbPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
