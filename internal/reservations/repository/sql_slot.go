package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	reservationserrors "slotbook/internal/reservations/errors"
	"slotbook/pkg/config"
	dbsql "slotbook/pkg/db/sql"
	"slotbook/pkg/model"

	"github.com/google/uuid"
)

// Slot times are stored as unix seconds so that one query text orders and
// matches identically on every supported dialect.
type sqlSlotRepository struct {
	cfg *config.Config
	db  *dbsql.DB
}

func NewSQLSlotRepository(cfg *config.Config) SlotRepository {
	return &sqlSlotRepository{
		cfg: cfg,
		db:  cfg.Client.SQL,
	}
}

const slotColumns = "id, start_time, end_time, reserved, version"

func (r *sqlSlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	slot.StartTime = model.NormalizeTime(slot.StartTime)
	slot.EndTime = model.NormalizeTime(slot.EndTime)

	_, err := r.db.Conn(ctx).ExecContext(ctx,
		r.db.Rebind("INSERT INTO "+SlotsTable+" ("+slotColumns+") VALUES (?, ?, ?, ?, ?)"),
		slot.ID, slot.StartTime.Unix(), slot.EndTime.Unix(), slot.Reserved, slot.Version,
	)
	if err != nil {
		if dbsql.IsUniqueViolation(err) {
			return reservationserrors.ErrDuplicateSlot
		}
		return fmt.Errorf("failed to create slot: %w", err)
	}
	return nil
}

func (r *sqlSlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	row := r.db.Conn(ctx).QueryRowContext(ctx,
		r.db.Rebind("SELECT "+slotColumns+" FROM "+SlotsTable+" WHERE id = ?"), id)
	slot, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservationserrors.ErrSlotNotFound
		}
		return nil, fmt.Errorf("failed to find slot: %w", err)
	}
	return slot, nil
}

func (r *sqlSlotRepository) FindAvailableFrom(ctx context.Context, from time.Time, page model.PageRequest) ([]*model.Slot, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	rows, err := r.db.Conn(ctx).QueryContext(ctx,
		r.db.Rebind("SELECT "+slotColumns+" FROM "+SlotsTable+
			" WHERE reserved = ? AND start_time >= ? ORDER BY start_time ASC LIMIT ? OFFSET ?"),
		false, model.NormalizeTime(from).Unix(), page.Size, page.Offset(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find available slots: %w", err)
	}
	defer rows.Close()

	slots := make([]*model.Slot, 0, page.Size)
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to decode slot: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate slots: %w", err)
	}
	return slots, nil
}

func (r *sqlSlotRepository) FindByStartTime(ctx context.Context, start time.Time) (*model.Slot, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	row := r.db.Conn(ctx).QueryRowContext(ctx,
		r.db.Rebind("SELECT "+slotColumns+" FROM "+SlotsTable+" WHERE start_time = ?"),
		model.NormalizeTime(start).Unix(),
	)
	slot, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservationserrors.ErrSlotNotFound
		}
		return nil, fmt.Errorf("failed to find slot by start time: %w", err)
	}
	if slot.Reserved {
		return nil, reservationserrors.ErrSlotTaken
	}
	return slot, nil
}

func (r *sqlSlotRepository) TryReserve(ctx context.Context, id string, expectedVersion int64) (bool, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.db.Conn(ctx).ExecContext(ctx,
		r.db.Rebind("UPDATE "+SlotsTable+" SET reserved = ?, version = version + 1 WHERE id = ? AND version = ? AND reserved = ?"),
		true, id, expectedVersion, false,
	)
	if err != nil {
		return false, fmt.Errorf("failed to reserve slot: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read reserve result: %w", err)
	}
	return n == 1, nil
}

func (r *sqlSlotRepository) Release(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.db.Conn(ctx).ExecContext(ctx,
		r.db.Rebind("UPDATE "+SlotsTable+" SET reserved = ?, version = version + 1 WHERE id = ? AND reserved = ?"),
		false, id, true,
	)
	if err != nil {
		return fmt.Errorf("failed to release slot: %w", err)
	}
	return nil
}

func (r *sqlSlotRepository) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()
	return r.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(row rowScanner) (*model.Slot, error) {
	var (
		slot       model.Slot
		start, end int64
	)
	if err := row.Scan(&slot.ID, &start, &end, &slot.Reserved, &slot.Version); err != nil {
		return nil, err
	}
	slot.StartTime = time.Unix(start, 0).UTC()
	slot.EndTime = time.Unix(end, 0).UTC()
	return &slot, nil
}
