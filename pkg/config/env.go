package config

const (
	EnvPrefix = "DOCREVIEW"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv = "DOCREVIEW_APP_ENV"
	EnvPort   = "DOCREVIEW_APP_PORT"

	EnvDBDSN  = "DOCREVIEW_DB_DSN"
	EnvDBHost = "DOCREVIEW_DB_HOST"
	EnvDBUser = "DOCREVIEW_DB_USER"
	EnvDBName = "DOCREVIEW_DB_NAME"

	EnvRedisURL = "DOCREVIEW_REDIS_URL"

	EnvJWTSecret  = "DOCREVIEW_JWT_SECRET"
	EnvJWTExpMins = "DOCREVIEW_JWT_EXPIRATION_MINUTES"

	EnvReviewerUsername     = "DOCREVIEW_REVIEWER_USERNAME"
	EnvReviewerPasswordHash = "DOCREVIEW_REVIEWER_PASSWORD_HASH"

	EnvHistoryArchive  = "DOCREVIEW_HISTORY_ARCHIVE"
	EnvUseSQLite       = "DOCREVIEW_USE_SQLITE"
	EnvRetentionWindow = "DOCREVIEW_RETENTION_WINDOW"

	EnvAnalysisEnabled      = "DOCREVIEW_ANALYSIS_ENABLED"
	EnvGCPProjectID         = "DOCREVIEW_GCP_PROJECT_ID"
	EnvNotificationsEnabled = "DOCREVIEW_NOTIFICATIONS_ENABLED"
	EnvNotificationsTopic   = "DOCREVIEW_NOTIFICATIONS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
