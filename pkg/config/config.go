package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"slotbook/pkg/client"
	"slotbook/pkg/logger"

	"github.com/google/uuid"
)

type Config struct {
	StoreDriver string

	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration
	MongoTransactions bool

	SQLDSN string

	CacheDriver            string
	CacheCapacity          int
	CacheExpireAfterAccess time.Duration

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	ReserveMaxAttempts int
	ReserveRetryDelay  time.Duration

	IdentityTokenKey string

	EventsEnabled  bool
	EventsTopic    string
	EventsDLQTopic string
	InstanceID     string

	Port string

	RateLimitRPS   float64
	RateLimitBurst int

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	ProvisionStartOfDay      string
	ProvisionEndOfDay        string
	ProvisionSlotDurationMin int
	ProvisionBreakMin        int
	ProvisionWorkingDays     []string
	ProvisionDaysAhead       int

	Log    *logger.Logger
	Client *client.Client
}

// Load reads the environment, validates the result and logs it. Invalid
// configuration is fatal.
func Load(serviceName string) *Config {
	cfg := FromEnv(serviceName)

	err := cfg.Validate()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// FromEnv builds a Config from the environment without validating it.
func FromEnv(serviceName string) *Config {
	return &Config{
		StoreDriver: strings.ToLower(getEnvStr(EnvStoreDriver, DefaultStoreDriver)),

		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),
		MongoTransactions: getEnvBool(EnvMongoTransactions, DefaultMongoTransactions),

		SQLDSN: getEnvStr(EnvSQLDSN, DefaultSQLDSN),

		CacheDriver:            strings.ToLower(getEnvStr(EnvCacheDriver, DefaultCacheDriver)),
		CacheCapacity:          getEnvNum(EnvCacheCapacity, DefaultCacheCapacity),
		CacheExpireAfterAccess: getEnvDuration(EnvCacheExpireAfterAccess, DefaultCacheExpireAfterAccess),

		RedisAddr:      getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword:  getEnvStr(EnvRedisPassword, ""),
		RedisDB:        getEnvNum(EnvRedisDB, DefaultRedisDB),
		RedisKeyPrefix: getEnvStr(EnvRedisKeyPrefix, DefaultRedisKeyPrefix),

		ReserveMaxAttempts: getEnvNum(EnvReserveMaxAttempts, DefaultReserveMaxAttempts),
		ReserveRetryDelay:  getEnvDuration(EnvReserveRetryDelay, DefaultReserveRetryDelay),

		IdentityTokenKey: getEnvStr(EnvIdentityTokenKey, ""),

		EventsEnabled:  getEnvBool(EnvEventsEnabled, DefaultEventsEnabled),
		EventsTopic:    getEnvStr(EnvEventsTopic, DefaultEventsTopic),
		EventsDLQTopic: getEnvStr(EnvEventsDLQTopic, DefaultEventsDLQTopic),
		InstanceID:     getEnvStr(EnvInstanceID, defaultInstanceID()),

		Port: getEnvStr(EnvPort, DefaultPort),

		RateLimitRPS:   getEnvFloat(EnvRateLimitRPS, DefaultRateLimitRPS),
		RateLimitBurst: getEnvNum(EnvRateLimitBurst, DefaultRateLimitBurst),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		ProvisionStartOfDay:      getEnvStr(EnvProvisionStartOfDay, DefaultProvisionStartOfDay),
		ProvisionEndOfDay:        getEnvStr(EnvProvisionEndOfDay, DefaultProvisionEndOfDay),
		ProvisionSlotDurationMin: getEnvNum(EnvProvisionSlotDurationMin, DefaultProvisionSlotDurationMin),
		ProvisionBreakMin:        getEnvNum(EnvProvisionBreakMin, DefaultProvisionBreakMin),
		ProvisionWorkingDays:     getEnvList(EnvProvisionWorkingDays, DefaultProvisionWorkingDays),
		ProvisionDaysAhead:       getEnvNum(EnvProvisionDaysAhead, DefaultProvisionDaysAhead),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}
}

// SetStore opens the connection for the configured store driver.
func (cfg *Config) SetStore() {
	switch cfg.StoreDriver {
	case StoreMongo:
		cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
	default:
		cfg.Client.SetSQL(cfg.Log, cfg.StoreDriver, cfg.SQLDSN, cfg.MongoConnTimeout)
	}
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.MongoConnTimeout)
}

var (
	timeOfDayRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
	mongoURIRegex  = regexp.MustCompile(`^mongodb(\+srv)?://`)
	weekdays       = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}
)

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StoreDriver {
	case StoreMongo:
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if len(cfg.MongoURI) < 10 || !mongoURIRegex.MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
	case StorePostgres, StoreSQLite:
		if cfg.SQLDSN == "" {
			errors = append(errors, "SQLDSN cannot be empty when StoreDriver is a SQL driver")
		}
	default:
		errors = append(errors, fmt.Sprintf("StoreDriver must be one of mongo, postgres, sqlite, got: %s", cfg.StoreDriver))
	}

	if cfg.MongoConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}

	switch cfg.CacheDriver {
	case CacheMemory:
	case CacheRedis:
		if cfg.RedisAddr == "" {
			errors = append(errors, "RedisAddr cannot be empty when CacheDriver is redis")
		}
	default:
		errors = append(errors, fmt.Sprintf("CacheDriver must be memory or redis, got: %s", cfg.CacheDriver))
	}
	if cfg.CacheCapacity <= 0 {
		errors = append(errors, fmt.Sprintf("CacheCapacity must be positive, got: %d", cfg.CacheCapacity))
	}
	if cfg.CacheExpireAfterAccess <= 0 {
		errors = append(errors, fmt.Sprintf("CacheExpireAfterAccess must be positive, got: %s", cfg.CacheExpireAfterAccess))
	}

	if cfg.ReserveMaxAttempts < 1 {
		errors = append(errors, fmt.Sprintf("ReserveMaxAttempts must be at least 1, got: %d", cfg.ReserveMaxAttempts))
	}
	if cfg.ReserveRetryDelay < 0 {
		errors = append(errors, fmt.Sprintf("ReserveRetryDelay cannot be negative, got: %s", cfg.ReserveRetryDelay))
	}

	if cfg.IdentityTokenKey != "" {
		key, err := base64.StdEncoding.DecodeString(cfg.IdentityTokenKey)
		if err != nil || (len(key) != 16 && len(key) != 24 && len(key) != 32) {
			errors = append(errors, "IdentityTokenKey must be a base64 encoded 16, 24 or 32 byte key")
		}
	}

	if cfg.EventsEnabled && cfg.EventsTopic == "" {
		errors = append(errors, "EventsTopic cannot be empty when events are enabled")
	}

	if cfg.RateLimitRPS <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRPS must be positive, got: %g", cfg.RateLimitRPS))
	}
	if cfg.RateLimitBurst <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitBurst must be positive, got: %d", cfg.RateLimitBurst))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if !timeOfDayRegex.MatchString(cfg.ProvisionStartOfDay) {
		errors = append(errors, fmt.Sprintf("ProvisionStartOfDay must be in HH:MM format (00:00-23:59), got: %s", cfg.ProvisionStartOfDay))
	}
	if !timeOfDayRegex.MatchString(cfg.ProvisionEndOfDay) {
		errors = append(errors, fmt.Sprintf("ProvisionEndOfDay must be in HH:MM format (00:00-23:59), got: %s", cfg.ProvisionEndOfDay))
	} else if cfg.ProvisionEndOfDay <= cfg.ProvisionStartOfDay {
		errors = append(errors, fmt.Sprintf("ProvisionEndOfDay (%s) must be after ProvisionStartOfDay (%s)", cfg.ProvisionEndOfDay, cfg.ProvisionStartOfDay))
	}
	if cfg.ProvisionSlotDurationMin <= 0 {
		errors = append(errors, fmt.Sprintf("ProvisionSlotDurationMin must be positive, got: %d", cfg.ProvisionSlotDurationMin))
	}
	if cfg.ProvisionBreakMin < 0 {
		errors = append(errors, fmt.Sprintf("ProvisionBreakMin cannot be negative, got: %d", cfg.ProvisionBreakMin))
	}
	if cfg.ProvisionDaysAhead <= 0 {
		errors = append(errors, fmt.Sprintf("ProvisionDaysAhead must be positive, got: %d", cfg.ProvisionDaysAhead))
	}
	for _, day := range cfg.ProvisionWorkingDays {
		if !slices.Contains(weekdays, day) {
			errors = append(errors, fmt.Sprintf("ProvisionWorkingDays contains an unknown weekday: %s", day))
		}
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"store_driver", cfg.StoreDriver,
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"mongo_transactions", cfg.MongoTransactions,
		"sql_dsn", redactDSN(cfg.SQLDSN),
		"cache_driver", cfg.CacheDriver,
		"cache_capacity", cfg.CacheCapacity,
		"cache_expire_after_access", cfg.CacheExpireAfterAccess,
		"redis_addr", cfg.RedisAddr,
		"redis_password_set", cfg.RedisPassword != "",
		"reserve_max_attempts", cfg.ReserveMaxAttempts,
		"reserve_retry_delay", cfg.ReserveRetryDelay,
		"identity_key_set", cfg.IdentityTokenKey != "",
		"events_enabled", cfg.EventsEnabled,
		"events_topic", cfg.EventsTopic,
		"instance_id", cfg.InstanceID,
		"port", cfg.Port,
		"rate_limit_rps", cfg.RateLimitRPS,
		"rate_limit_burst", cfg.RateLimitBurst,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func redactDSN(dsn string) string {
	credentialRegex := regexp.MustCompile(`(://)[^:/@]+:[^@]+@`)
	dsn = credentialRegex.ReplaceAllString(dsn, "${1}***:***@")
	return regexp.MustCompile(`(password=)\S+`).ReplaceAllString(dsn, "${1}***")
}

func defaultInstanceID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return uuid.NewString()
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return slices.Clone(fallback)
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}
