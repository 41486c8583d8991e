package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"slotbook/internal/migrations/mongo"
	migratesql "slotbook/internal/migrations/sql"
	"slotbook/internal/reservations/repository"
	"slotbook/pkg/client"
	"slotbook/pkg/config"
	dbsql "slotbook/pkg/db/sql"
	"slotbook/pkg/logger"

	"github.com/google/uuid"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	EnvMongoTestURI    = "MONGO_TEST_URI"
	EnvPostgresTestDSN = "POSTGRES_TEST_DSN"
)

// NewConfig returns a configuration suitable for tests: short timeouts, a
// discarded logger and a fast retry delay.
func NewConfig() *config.Config {
	return &config.Config{
		CacheCapacity:          config.DefaultCacheCapacity,
		CacheExpireAfterAccess: config.DefaultCacheExpireAfterAccess,
		ReserveMaxAttempts:     config.DefaultReserveMaxAttempts,
		ReserveRetryDelay:      5 * time.Millisecond,
		ReadTimeout:            5 * time.Second,
		WriteTimeout:           5 * time.Second,
		InstanceID:             "test-instance",
		Log:                    logger.Discard(),
		Client:                 client.NewClient(),
	}
}

// NewSQLiteStore opens a migrated SQLite database in a temp dir and returns
// the repositories bound to it.
func NewSQLiteStore(t *testing.T) (*repository.Store, *config.Config) {
	t.Helper()

	ctx := context.Background()
	cfg := NewConfig()
	cfg.StoreDriver = config.StoreSQLite
	cfg.SQLDSN = filepath.Join(t.TempDir(), "slotbook.db")

	db, err := dbsql.Open(ctx, dbsql.DriverSQLite, cfg.SQLDSN)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := migratesql.RunMigration(ctx, cfg.Log, db); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}

	cfg.Client.SQL = db
	return repository.NewStore(cfg), cfg
}

// NewMongoStore connects to the replica set named by MONGO_TEST_URI and
// migrates a throwaway database. The test is skipped when the variable is unset.
func NewMongoStore(t *testing.T) (*repository.Store, *config.Config) {
	t.Helper()

	uri := os.Getenv(EnvMongoTestURI)
	if uri == "" {
		t.Skipf("%s not set, skipping mongo test", EnvMongoTestURI)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mc, err := mongodriver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("failed to connect to MongoDB: %v", err)
	}
	if err := mc.Ping(ctx, nil); err != nil {
		t.Fatalf("failed to ping MongoDB: %v", err)
	}

	cfg := NewConfig()
	cfg.StoreDriver = config.StoreMongo
	cfg.MongoTransactions = true
	cfg.MongoDatabaseName = fmt.Sprintf("slotbook_test_%s", uuid.NewString()[:8])
	cfg.Client.Mongo = mc

	if err := mongo.RunMigration(ctx, cfg.Log, mc, cfg.MongoDatabaseName); err != nil {
		t.Fatalf("failed to migrate mongo: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = mc.Database(cfg.MongoDatabaseName).Drop(ctx)
		_ = mc.Disconnect(ctx)
	})

	return repository.NewStore(cfg), cfg
}

// NewPostgresStore migrates a throwaway schema in the database named by
// POSTGRES_TEST_DSN. Unlike SQLite the pool is not limited to one connection,
// so concurrent callers really race. The test is skipped when the variable is unset.
func NewPostgresStore(t *testing.T) (*repository.Store, *config.Config) {
	t.Helper()

	dsn := os.Getenv(EnvPostgresTestDSN)
	if dsn == "" {
		t.Skipf("%s not set, skipping postgres test", EnvPostgresTestDSN)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	admin, err := dbsql.Open(ctx, dbsql.DriverPostgres, dsn)
	if err != nil {
		t.Fatalf("failed to open postgres: %v", err)
	}
	schema := fmt.Sprintf("slotbook_test_%s", uuid.NewString()[:8])
	if _, err := admin.ExecContext(ctx, "CREATE SCHEMA "+schema); err != nil {
		_ = admin.Close()
		t.Fatalf("failed to create schema %s: %v", schema, err)
	}

	cfg := NewConfig()
	cfg.StoreDriver = config.StorePostgres
	cfg.SQLDSN = withSearchPath(dsn, schema)

	db, err := dbsql.Open(ctx, dbsql.DriverPostgres, cfg.SQLDSN)
	if err != nil {
		_ = admin.Close()
		t.Fatalf("failed to open postgres schema %s: %v", schema, err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Close()
		_, _ = admin.ExecContext(ctx, "DROP SCHEMA "+schema+" CASCADE")
		_ = admin.Close()
	})

	if err := migratesql.RunMigration(ctx, cfg.Log, db); err != nil {
		t.Fatalf("failed to migrate postgres: %v", err)
	}

	cfg.Client.SQL = db
	return repository.NewStore(cfg), cfg
}

// withSearchPath pins every pooled connection to schema. lib/pq passes
// unknown DSN settings through as run-time parameters.
func withSearchPath(dsn, schema string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + "search_path=" + schema
	}
	return dsn + " search_path=" + schema
}
