package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvStorageDriver  = "STORAGE_DRIVER"
	EnvNotifierDriver = "NOTIFIER_DRIVER"

	EnvLeaseTTL  = "LEASE_TTL"
	EnvLeaseWait = "LEASE_WAIT"

	EnvMinSyncIntervalMinutes = "MIN_SYNC_INTERVAL_MINUTES"
	EnvFetchTimeout           = "ICAL_FETCH_TIMEOUT"
	EnvFetchMaxBytes          = "ICAL_FETCH_MAX_BYTES"
	EnvImportHorizon          = "ICAL_IMPORT_HORIZON"
	EnvSchedulerReload        = "ICAL_SCHEDULER_RELOAD"
	EnvSchedulerEnabled       = "ICAL_SCHEDULER_ENABLED"

	EnvSurvivorPolicy = "SURVIVOR_POLICY"
	EnvPublicBaseURL  = "PUBLIC_BASE_URL"

	EnvOutboxPollInterval = "OUTBOX_POLL_INTERVAL"
	EnvOutboxBatchSize    = "OUTBOX_BATCH_SIZE"
	EnvOutboxMaxAttempts  = "OUTBOX_MAX_ATTEMPTS"
)
