package config

// EnvPrefix is empty because every variable carries its full ABCXYZ_ name in the struct tags.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv      = "ABCXYZ_APP_ENV"
	EnvPort        = "ABCXYZ_APP_PORT"
	EnvLogLevel    = "ABCXYZ_LOG_LEVEL"
	EnvDBDSN       = "ABCXYZ_DB_DSN"
	EnvDBHost      = "ABCXYZ_DB_HOST"
	EnvDBUser      = "ABCXYZ_DB_USER"
	EnvDBPassword  = "ABCXYZ_DB_PASSWORD"
	EnvDBName      = "ABCXYZ_DB_NAME"
	EnvUseSQLite   = "ABCXYZ_USE_SQLITE"
	EnvRedisURL    = "ABCXYZ_REDIS_URL"
	EnvJWTSecret   = "ABCXYZ_JWT_SECRET"
	EnvJWTIssuer   = "ABCXYZ_JWT_ISSUER"
	EnvArtifactDir = "ABCXYZ_FORECAST_ARTIFACT_DIR"
	EnvDefaultACut = "ABCXYZ_DEFAULT_A_CUT"
	EnvDefaultBCut = "ABCXYZ_DEFAULT_B_CUT"
	EnvDefaultXCut = "ABCXYZ_DEFAULT_X_CUT"
	EnvDefaultYCut = "ABCXYZ_DEFAULT_Y_CUT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
