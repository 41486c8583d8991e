package main

import (
	"context"
	"time"

	mongoMigration "slotbook/internal/migrations/mongo"
	sqlMigration "slotbook/internal/migrations/sql"
	"slotbook/pkg/config"
)

const JobName = "slotbook-migration"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	cfg := config.Load(JobName)
	cfg.SetStore()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting migration job", "store_driver", cfg.StoreDriver)

	var err error
	switch cfg.StoreDriver {
	case config.StoreMongo:
		err = mongoMigration.RunMigration(ctx, cfg.Log, cfg.Client.Mongo, cfg.MongoDatabaseName)
	default:
		err = sqlMigration.RunMigration(ctx, cfg.Log, cfg.Client.SQL)
	}
	if err != nil {
		cfg.GracefulShutdown()
		cfg.Log.Fatal("Migration failed", "error", err)
	}

	cfg.Log.Info("Migration completed successfully")
}
