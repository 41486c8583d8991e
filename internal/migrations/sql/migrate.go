package sql

import (
	"context"
	"fmt"

	"slotbook/internal/reservations/repository"
	dbsql "slotbook/pkg/db/sql"
	"slotbook/pkg/logger"
)

// Times are unix seconds. The unique constraint on reservations.slot_id is
// what rejects a second reservation for a slot.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS ` + repository.SlotsTable + ` (
		id         TEXT PRIMARY KEY,
		start_time BIGINT NOT NULL,
		end_time   BIGINT NOT NULL,
		reserved   BOOLEAN NOT NULL DEFAULT FALSE,
		version    BIGINT NOT NULL DEFAULT 0,
		CONSTRAINT uniq_slots_start_time UNIQUE (start_time),
		CONSTRAINT chk_slots_interval CHECK (end_time > start_time)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_slots_available ON ` + repository.SlotsTable + ` (reserved, start_time)`,
	`CREATE TABLE IF NOT EXISTS ` + repository.ReservationsTable + ` (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		slot_id    TEXT NOT NULL REFERENCES ` + repository.SlotsTable + ` (id),
		created_at BIGINT NOT NULL,
		CONSTRAINT uniq_reservations_slot UNIQUE (slot_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_user_slot ON ` + repository.ReservationsTable + ` (user_id, slot_id)`,
}

func RunMigration(ctx context.Context, log *logger.Logger, db *dbsql.DB) error {
	log.Info("Running sql migrations", "driver", db.Driver)

	tm := dbsql.NewTransactionManager(db)
	err := tm.WithinTransaction(ctx, func(ctx context.Context) error {
		for i, stmt := range statements {
			if _, err := db.Conn(ctx).ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("statement %d: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to apply sql migrations: %w", err)
	}

	log.Info("All sql migrations applied successfully", "statements", len(statements))
	return nil
}
