package config

const (
	EnvPrefix = "FABSHOP"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	SquareEnvSandbox    = "sandbox"
	SquareEnvProduction = "production"

	DocumentStorageLocal = "local"
	DocumentStorageGCS   = "gcs"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	DefaultSQLiteDSN = "file:fabshop.db?cache=shared&_busy_timeout=5000"
)

const (
	EnvAppEnv            = "FABSHOP_APP_ENV"
	EnvPort              = "FABSHOP_APP_PORT"
	EnvDBDSN             = "FABSHOP_DB_DSN"
	EnvDBHost            = "FABSHOP_DB_HOST"
	EnvDBUser            = "FABSHOP_DB_USER"
	EnvDBName            = "FABSHOP_DB_NAME"
	EnvRedisURL          = "FABSHOP_REDIS_URL"
	EnvUseSQLite         = "FABSHOP_USE_SQLITE"
	EnvSquareAccessToken = "FABSHOP_SQUARE_ACCESS_TOKEN"
	EnvSquareWebhookKey  = "FABSHOP_SQUARE_WEBHOOK_SIGNATURE_KEY"
	EnvDocumentsStorage  = "FABSHOP_DOCUMENTS_STORAGE"
	EnvDocumentsLocalDir = "FABSHOP_DOCUMENTS_LOCAL_DIR"
	EnvGCSBucket         = "FABSHOP_GCS_BUCKET_NAME"
	EnvTaxPolicy         = "FABSHOP_TAX_CUSTOM_FAB_POLICY"
	EnvManufacturingTax  = "FABSHOP_TAX_MANUFACTURING_STATES"
	EnvWebhookShards     = "FABSHOP_WEBHOOKS_SHARDS"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
