package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Reviewer      ReviewerConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Review        ReviewConfig
	Uploads       UploadsConfig
	Analysis      AnalysisConfig
	GCP           GCPConfig
	Notifications NotificationsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.HistoryArchive && !cfg.FeatureFlags.UseSQLite {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Analysis.Enabled && strings.TrimSpace(c.GCP.ProjectID) == "" {
		return fmt.Errorf("%s is required when analysis is enabled", EnvGCPProjectID)
	}
	if c.Notifications.Enabled {
		if strings.TrimSpace(c.GCP.ProjectID) == "" {
			return fmt.Errorf("%s is required when notifications are enabled", EnvGCPProjectID)
		}
		if strings.TrimSpace(c.Notifications.Topic) == "" {
			return fmt.Errorf("%s is required when notifications are enabled", EnvNotificationsTopic)
		}
	}
	if c.Review.RetentionWindow <= 0 {
		return fmt.Errorf("%s must be positive", EnvRetentionWindow)
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"DOCREVIEW_APP_ENV" required:"true"`
	Port         string `envconfig:"DOCREVIEW_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DOCREVIEW_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DOCREVIEW_LOG_WARN_STACK" default:"false"`

	CORSAllowedOrigins []string `envconfig:"DOCREVIEW_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN        string `envconfig:"DOCREVIEW_DB_DSN"`
	SQLitePath string `envconfig:"DOCREVIEW_SQLITE_PATH" default:"docreview.db"`

	LegacyHost     string `envconfig:"DOCREVIEW_DB_HOST"`
	LegacyPort     int    `envconfig:"DOCREVIEW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DOCREVIEW_DB_USER"`
	LegacyPassword string `envconfig:"DOCREVIEW_DB_PASSWORD"`
	LegacyName     string `envconfig:"DOCREVIEW_DB_NAME"`
	LegacySSLMode  string `envconfig:"DOCREVIEW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DOCREVIEW_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"DOCREVIEW_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DOCREVIEW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DOCREVIEW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DOCREVIEW_REDIS_URL"`
	Address      string        `envconfig:"DOCREVIEW_REDIS_ADDR"`
	Password     string        `envconfig:"DOCREVIEW_REDIS_PASSWORD"`
	DB           int           `envconfig:"DOCREVIEW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DOCREVIEW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DOCREVIEW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DOCREVIEW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DOCREVIEW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DOCREVIEW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"DOCREVIEW_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"DOCREVIEW_JWT_ISSUER" default:"docreview"`
	ExpirationMinutes int    `envconfig:"DOCREVIEW_JWT_EXPIRATION_MINUTES" default:"480"`
}

// SessionTTL is how long a reviewer session lives in Redis.
func (j JWTConfig) SessionTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// ReviewerConfig holds the single reviewer credential. The password is only
// ever stored as an argon2id hash produced by security.HashPassword.
type ReviewerConfig struct {
	Username     string `envconfig:"DOCREVIEW_REVIEWER_USERNAME" required:"true"`
	PasswordHash string `envconfig:"DOCREVIEW_REVIEWER_PASSWORD_HASH" required:"true"`
}

// PasswordConfig tunes argon2id when producing new reviewer hashes.
type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"DOCREVIEW_PASSWORD_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"DOCREVIEW_PASSWORD_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"DOCREVIEW_PASSWORD_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"DOCREVIEW_PASSWORD_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"DOCREVIEW_PASSWORD_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"DOCREVIEW_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginUsernameLimit int           `envconfig:"DOCREVIEW_AUTH_RATE_LIMIT_LOGIN_USERNAME_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"DOCREVIEW_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	TrustProxyHeaders  bool          `envconfig:"DOCREVIEW_TRUST_PROXY_HEADERS" default:"false"`
}

type FeatureFlagsConfig struct {
	UseSQLite      bool `envconfig:"DOCREVIEW_USE_SQLITE" default:"false"`
	AutoMigrate    bool `envconfig:"DOCREVIEW_AUTO_MIGRATE" default:"false"`
	HistoryArchive bool `envconfig:"DOCREVIEW_HISTORY_ARCHIVE" default:"false"`
}

type ReviewConfig struct {
	RetentionWindow     time.Duration `envconfig:"DOCREVIEW_RETENTION_WINDOW" default:"5m"`
	SweepInterval       time.Duration `envconfig:"DOCREVIEW_SWEEP_INTERVAL" default:"15s"`
	SweepTimeout        time.Duration `envconfig:"DOCREVIEW_SWEEP_TIMEOUT" default:"30s"`
	MaxFilesPerUpload   int           `envconfig:"DOCREVIEW_MAX_FILES_PER_UPLOAD" default:"10"`
	AnalysisConcurrency int           `envconfig:"DOCREVIEW_ANALYSIS_CONCURRENCY" default:"4"`
}

type UploadsConfig struct {
	MaxUploadMB int `envconfig:"DOCREVIEW_MAX_UPLOAD_MB" default:"20"`
}

// MaxUploadBytes converts the configured megabyte cap into bytes.
func (u UploadsConfig) MaxUploadBytes() int64 {
	if u.MaxUploadMB <= 0 {
		return 0
	}
	return int64(u.MaxUploadMB) << 20
}

type AnalysisConfig struct {
	Enabled         bool          `envconfig:"DOCREVIEW_ANALYSIS_ENABLED" default:"false"`
	Region          string        `envconfig:"DOCREVIEW_ANALYSIS_REGION" default:"us-central1"`
	Model           string        `envconfig:"DOCREVIEW_ANALYSIS_MODEL" default:"gemini-1.5-pro"`
	MaxOutputTokens int           `envconfig:"DOCREVIEW_ANALYSIS_MAX_OUTPUT_TOKENS" default:"500"`
	MaxInputChars   int           `envconfig:"DOCREVIEW_ANALYSIS_MAX_INPUT_CHARS" default:"20000"`
	Timeout         time.Duration `envconfig:"DOCREVIEW_ANALYSIS_TIMEOUT" default:"30s"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"DOCREVIEW_GCP_PROJECT_ID"`
}

type NotificationsConfig struct {
	Enabled bool          `envconfig:"DOCREVIEW_NOTIFICATIONS_ENABLED" default:"false"`
	Topic   string        `envconfig:"DOCREVIEW_NOTIFICATIONS_TOPIC"`
	Timeout time.Duration `envconfig:"DOCREVIEW_NOTIFICATIONS_TIMEOUT" default:"10s"`
}

func (db *DBConfig) ensureDSN() error {
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
