package config

const (
	EnvPrefix = "LAGGEDOUT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv      = "LAGGEDOUT_APP_ENV"
	EnvPort        = "LAGGEDOUT_APP_PORT"
	EnvDBDSN       = "LAGGEDOUT_DB_DSN"
	EnvDBHost      = "LAGGEDOUT_DB_HOST"
	EnvDBUser      = "LAGGEDOUT_DB_USER"
	EnvDBName      = "LAGGEDOUT_DB_NAME"
	EnvRedisURL    = "LAGGEDOUT_REDIS_URL"
	EnvJWTSecret   = "LAGGEDOUT_JWT_SECRET"
	EnvJWTIssuer   = "LAGGEDOUT_JWT_ISSUER"
	EnvGatewayKey  = "LAGGEDOUT_GATEWAY_SIGNING_SECRET"
	EnvGCPProject  = "LAGGEDOUT_GCP_PROJECT_ID"
	EnvOrderTTL    = "LAGGEDOUT_CHECKOUT_ORDER_TTL"
	EnvDomainTopic = "LAGGEDOUT_PUBSUB_DOMAIN_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
