package config

const (
	EnvPrefix = "UPORDERS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	QueueDriverPubSub   = "pubsub"
	QueueDriverRabbitMQ = "rabbitmq"
	QueueDriverMemory   = "memory"

	PricePolicyTrust   = "trust"
	PricePolicyReject  = "reject"
	PricePolicyReprice = "reprice"

	EnvAppEnv         = "UPORDERS_APP_ENV"
	EnvPort           = "UPORDERS_APP_PORT"
	EnvDBDSN          = "UPORDERS_DB_DSN"
	EnvDBDriver       = "UPORDERS_DB_DRIVER"
	EnvDBHost         = "UPORDERS_DB_HOST"
	EnvDBUser         = "UPORDERS_DB_USER"
	EnvDBName         = "UPORDERS_DB_NAME"
	EnvDBPassword     = "UPORDERS_DB_PASSWORD"
	EnvDBLockTimeout  = "UPORDERS_DB_LOCK_TIMEOUT"
	EnvRedisURL       = "UPORDERS_REDIS_URL"
	EnvJWTSecret      = "UPORDERS_JWT_SECRET"
	EnvQueueDriver    = "UPORDERS_QUEUE_DRIVER"
	EnvGCPProjectID   = "UPORDERS_GCP_PROJECT_ID"
	EnvPricePolicy    = "UPORDERS_WORKER_PRICE_POLICY"
	EnvPriceTolerance = "UPORDERS_WORKER_PRICE_TOLERANCE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
