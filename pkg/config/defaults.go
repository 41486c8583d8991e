package config

import "time"

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"

	CacheMemory = "memory"
	CacheRedis  = "redis"
)

const (
	DefaultStoreDriver = StoreMongo

	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "slotbook"
	DefaultMongoConnTimeout  = 10 * time.Second
	DefaultMongoTransactions = true

	DefaultSQLDSN = "file:slotbook.db"

	DefaultCacheDriver            = CacheMemory
	DefaultCacheCapacity          = 500
	DefaultCacheExpireAfterAccess = 30 * time.Minute

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisDB        = 0
	DefaultRedisKeyPrefix = "slotbook:availability"

	DefaultReserveMaxAttempts = 2
	DefaultReserveRetryDelay  = 200 * time.Millisecond

	DefaultEventsEnabled  = false
	DefaultEventsTopic    = "reservation-events"
	DefaultEventsDLQTopic = "reservation-events-dlq"

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRPS   = 5.0
	DefaultRateLimitBurst = 10

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultProvisionStartOfDay      = "09:00"
	DefaultProvisionEndOfDay        = "17:00"
	DefaultProvisionSlotDurationMin = 60
	DefaultProvisionBreakMin        = 0
	DefaultProvisionDaysAhead       = 14

	DefaultPageSize = 20
	MaxPageSize     = 100
)

var DefaultProvisionWorkingDays = []string{"monday", "tuesday", "wednesday", "thursday", "friday"}
