package config

// EnvPrefix is passed to envconfig; individual tags spell the full names.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "NILECART_DB_DSN"
	EnvDBHost = "NILECART_DB_HOST"
	EnvDBUser = "NILECART_DB_USER"
	EnvDBName = "NILECART_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
