package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := NewForTest()
	cfg.Port = DefaultPort
	cfg.RateLimitRequests = DefaultRateLimitRequests
	cfg.RateLimitWindow = DefaultRateLimitWindow
	cfg.RequestTimeout = DefaultRequestTimeout
	cfg.IdempotencyTTL = DefaultIdempotencyTTL
	cfg.MaxRequestSize = DefaultMaxRequestSize
	cfg.IdleTimeout = DefaultIdleTimeout
	cfg.ShutdownTimeout = DefaultShutdownTimeout
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Port = "0"
	cfg.SurvivorPolicy = "promote"
	cfg.LeaseTTL = 0
	cfg.PublicBaseURL = "ftp://example.com"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Port must be between")
	assert.Contains(t, err.Error(), "SurvivorPolicy must be")
	assert.Contains(t, err.Error(), "LeaseTTL must be positive")
	assert.Contains(t, err.Error(), "PublicBaseURL must be")
}

func TestValidate_MongoOnlyCheckedForMongoDriver(t *testing.T) {
	cfg := validConfig()
	cfg.MongoURI = "postgres://nope"
	require.NoError(t, cfg.Validate())

	cfg.StorageDriver = StorageMongo
	cfg.MongoConnTimeout = time.Second
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MongoURI must start with")
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv(EnvStorageDriver, "MEMORY")
	t.Setenv(EnvSurvivorPolicy, "confirm")
	t.Setenv(EnvLeaseWait, "750ms")
	t.Setenv(EnvSchedulerEnabled, "true")
	t.Setenv(EnvPublicBaseURL, "https://book.example.com/")
	t.Setenv(EnvLogLevel, "error")

	cfg := Load("test")

	assert.Equal(t, StorageMemory, cfg.StorageDriver)
	assert.Equal(t, SurvivorConfirm, cfg.SurvivorPolicy)
	assert.Equal(t, 750*time.Millisecond, cfg.LeaseWait)
	assert.True(t, cfg.SchedulerEnabled)
	assert.Equal(t, "https://book.example.com", cfg.PublicBaseURL)
}

func TestRedactMongoURI(t *testing.T) {
	assert.Equal(t, "mongodb://***:***@db:27017", redactMongoURI("mongodb://admin:secret@db:27017"))
	assert.Equal(t, "mongodb://db:27017", redactMongoURI("mongodb://db:27017"))
}

func TestClampSyncInterval(t *testing.T) {
	cfg := NewForTest()
	assert.Equal(t, 15, cfg.ClampSyncInterval(5))
	assert.Equal(t, 60, cfg.ClampSyncInterval(60))
}

func TestNormalizePagination(t *testing.T) {
	assert.Equal(t, 10, NormalizePaginationLimit(0))
	assert.Equal(t, DefaultPaginationLimit, NormalizePaginationLimit(10_000))
	assert.Equal(t, int64(0), NormalizeOffset(-4))
}
