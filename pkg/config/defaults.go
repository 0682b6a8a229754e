package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "cowork"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 100

	DefaultStorageDriver  = StorageMongo
	DefaultNotifierDriver = NotifierLog

	DefaultLeaseTTL  = 2 * time.Minute
	DefaultLeaseWait = 5 * time.Second

	DefaultMinSyncIntervalMinutes = 15
	DefaultFetchTimeout           = 20 * time.Second
	DefaultFetchMaxBytes          = 5 * 1024 * 1024
	DefaultImportHorizon          = 180 * 24 * time.Hour
	DefaultSchedulerReload        = 5 * time.Minute
	DefaultSchedulerEnabled       = false

	DefaultSurvivorPolicy = SurvivorKeep
	DefaultPublicBaseURL  = "http://localhost:8080"

	DefaultOutboxPollInterval = 5 * time.Second
	DefaultOutboxBatchSize    = 50
	DefaultOutboxMaxAttempts  = 5
)

const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"

	NotifierKafka = "kafka"
	NotifierLog   = "log"

	SurvivorKeep    = "keep"
	SurvivorConfirm = "confirm"
)
