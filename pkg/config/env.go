package config

const (
	EnvStoreDriver = "STORE_DRIVER"

	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"
	EnvMongoTransactions = "MONGO_TRANSACTIONS"

	EnvSQLDSN = "SQL_DSN"

	EnvCacheDriver            = "CACHE_DRIVER"
	EnvCacheCapacity          = "CACHE_CAPACITY"
	EnvCacheExpireAfterAccess = "CACHE_EXPIRE_AFTER_ACCESS"

	EnvRedisAddr      = "REDIS_ADDR"
	EnvRedisPassword  = "REDIS_PASSWORD"
	EnvRedisDB        = "REDIS_DB"
	EnvRedisKeyPrefix = "REDIS_KEY_PREFIX"

	EnvReserveMaxAttempts = "RESERVE_MAX_ATTEMPTS"
	EnvReserveRetryDelay  = "RESERVE_RETRY_DELAY"

	EnvIdentityTokenKey = "IDENTITY_TOKEN_KEY"

	EnvEventsEnabled  = "EVENTS_ENABLED"
	EnvEventsTopic    = "EVENTS_TOPIC"
	EnvEventsDLQTopic = "EVENTS_DLQ_TOPIC"
	EnvInstanceID     = "INSTANCE_ID"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRPS   = "RATE_LIMIT_RPS"
	EnvRateLimitBurst = "RATE_LIMIT_BURST"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvProvisionStartOfDay      = "PROVISION_START_OF_DAY"
	EnvProvisionEndOfDay        = "PROVISION_END_OF_DAY"
	EnvProvisionSlotDurationMin = "PROVISION_SLOT_DURATION_MIN"
	EnvProvisionBreakMin        = "PROVISION_BREAK_DURATION_MIN"
	EnvProvisionWorkingDays     = "PROVISION_WORKING_DAYS"
	EnvProvisionDaysAhead       = "PROVISION_DAYS_AHEAD"
)
