package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App            AppConfig
	Service        ServiceConfig
	DB             DBConfig
	Redis          RedisConfig
	JWT            JWTConfig
	FeatureFlags   FeatureFlagsConfig
	Classification ClassificationConfig
	Forecast       ForecastConfig
	Cron           CronConfig
	RateLimit      RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Classification.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string        `envconfig:"ABCXYZ_APP_ENV" required:"true"`
	Port         string        `envconfig:"ABCXYZ_APP_PORT" default:"8080"`
	LogLevel     string        `envconfig:"ABCXYZ_LOG_LEVEL" default:"info"`
	LogWarnStack bool          `envconfig:"ABCXYZ_LOG_WARN_STACK" default:"false"`
	ReadTimeout  time.Duration `envconfig:"ABCXYZ_HTTP_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"ABCXYZ_HTTP_WRITE_TIMEOUT" default:"120s"`
	MaxUploadMB  int           `envconfig:"ABCXYZ_MAX_UPLOAD_MB" default:"20"`
	CORSOrigins  []string      `envconfig:"ABCXYZ_CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev) || strings.EqualFold(a.Env, "development")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

// MaxUploadBytes converts the configured upload ceiling to bytes.
func (a AppConfig) MaxUploadBytes() int64 {
	if a.MaxUploadMB <= 0 {
		return 20 << 20
	}
	return int64(a.MaxUploadMB) << 20
}

type ServiceConfig struct {
	Kind string `envconfig:"ABCXYZ_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ABCXYZ_DB_DSN"`
	Driver string `envconfig:"ABCXYZ_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ABCXYZ_DB_HOST"`
	LegacyPort     int    `envconfig:"ABCXYZ_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ABCXYZ_DB_USER"`
	LegacyPassword string `envconfig:"ABCXYZ_DB_PASSWORD"`
	LegacyName     string `envconfig:"ABCXYZ_DB_NAME"`
	LegacySSLMode  string `envconfig:"ABCXYZ_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"ABCXYZ_SQLITE_PATH" default:"abcxyz.db"`

	MaxOpenConns    int           `envconfig:"ABCXYZ_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ABCXYZ_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ABCXYZ_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ABCXYZ_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ABCXYZ_REDIS_URL"`
	Address      string        `envconfig:"ABCXYZ_REDIS_ADDR"`
	Password     string        `envconfig:"ABCXYZ_REDIS_PASSWORD"`
	DB           int           `envconfig:"ABCXYZ_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ABCXYZ_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ABCXYZ_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ABCXYZ_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ABCXYZ_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ABCXYZ_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// JWTConfig holds the verification settings for bearer tokens minted by the identity service.
type JWTConfig struct {
	Secret string `envconfig:"ABCXYZ_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"ABCXYZ_JWT_ISSUER"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"ABCXYZ_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"ABCXYZ_AUTO_MIGRATE" default:"false"`
	// RedisResultStore keeps classification results in Redis when Redis is configured.
	RedisResultStore bool `envconfig:"ABCXYZ_REDIS_RESULT_STORE" default:"true"`
}

type ClassificationConfig struct {
	ResultTTL     time.Duration `envconfig:"ABCXYZ_RESULT_TTL" default:"168h"`
	MemoryHistory int           `envconfig:"ABCXYZ_RESULT_MEMORY_HISTORY" default:"20"`
	DefaultACut   float64       `envconfig:"ABCXYZ_DEFAULT_A_CUT" default:"0.80"`
	DefaultBCut   float64       `envconfig:"ABCXYZ_DEFAULT_B_CUT" default:"0.95"`
	DefaultXCut   float64       `envconfig:"ABCXYZ_DEFAULT_X_CUT" default:"0.50"`
	DefaultYCut   float64       `envconfig:"ABCXYZ_DEFAULT_Y_CUT" default:"0.90"`
}

func (c ClassificationConfig) validate() error {
	if !(c.DefaultACut > 0 && c.DefaultACut < c.DefaultBCut && c.DefaultBCut < 1) {
		return fmt.Errorf("%s and %s must satisfy 0 < a < b < 1", EnvDefaultACut, EnvDefaultBCut)
	}
	if !(c.DefaultXCut >= 0 && c.DefaultXCut < c.DefaultYCut) {
		return fmt.Errorf("%s and %s must satisfy 0 <= x < y", EnvDefaultXCut, EnvDefaultYCut)
	}
	return nil
}

type ForecastConfig struct {
	ArtifactDir         string `envconfig:"ABCXYZ_FORECAST_ARTIFACT_DIR" default:"artifacts/xgb"`
	ModelName           string `envconfig:"ABCXYZ_FORECAST_MODEL_NAME" default:"xgboost"`
	ModelVersion        string `envconfig:"ABCXYZ_FORECAST_MODEL_VERSION" default:"XGB_2025-11-04_v1"`
	BaselineConcurrency int    `envconfig:"ABCXYZ_FORECAST_BASELINE_CONCURRENCY" default:"8"`
	RetentionDays       int    `envconfig:"ABCXYZ_FORECAST_RETENTION_DAYS" default:"365"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"ABCXYZ_CRON_INTERVAL" default:"24h"`
	LockTTL  time.Duration `envconfig:"ABCXYZ_CRON_LOCK_TTL" default:"1h"`
}

// RateLimitConfig throttles the expensive endpoints per caller. A zero limit disables a policy.
type RateLimitConfig struct {
	Window        time.Duration `envconfig:"ABCXYZ_RATE_LIMIT_WINDOW" default:"1m"`
	UploadLimit   int           `envconfig:"ABCXYZ_RATE_LIMIT_UPLOADS" default:"10"`
	ForecastLimit int           `envconfig:"ABCXYZ_RATE_LIMIT_FORECASTS" default:"30"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		if db.DSN == "" {
			db.DSN = db.SQLitePath
		}
		db.Driver = DriverSQLite
		return nil
	}
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
