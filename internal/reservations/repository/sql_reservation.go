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

type sqlReservationRepository struct {
	cfg *config.Config
	db  *dbsql.DB
}

func NewSQLReservationRepository(cfg *config.Config) ReservationRepository {
	return &sqlReservationRepository{
		cfg: cfg,
		db:  cfg.Client.SQL,
	}
}

func (r *sqlReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if reservation.ID == "" {
		reservation.ID = uuid.NewString()
	}
	if reservation.CreatedAt.IsZero() {
		reservation.CreatedAt = time.Now()
	}
	reservation.CreatedAt = model.NormalizeTime(reservation.CreatedAt)

	_, err := r.db.Conn(ctx).ExecContext(ctx,
		r.db.Rebind("INSERT INTO "+ReservationsTable+" (id, user_id, slot_id, created_at) VALUES (?, ?, ?, ?)"),
		reservation.ID, reservation.UserID, reservation.SlotID, reservation.CreatedAt.Unix(),
	)
	if err != nil {
		if dbsql.IsUniqueViolation(err) {
			return reservationserrors.ErrDuplicateReservation
		}
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	return nil
}

func (r *sqlReservationRepository) FindByUserAndSlot(ctx context.Context, userID, slotID string) (*model.Reservation, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var (
		reservation model.Reservation
		createdAt   int64
	)
	err := r.db.Conn(ctx).QueryRowContext(ctx,
		r.db.Rebind("SELECT id, user_id, slot_id, created_at FROM "+ReservationsTable+" WHERE user_id = ? AND slot_id = ?"),
		userID, slotID,
	).Scan(&reservation.ID, &reservation.UserID, &reservation.SlotID, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservationserrors.ErrReservationNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}
	reservation.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &reservation, nil
}

func (r *sqlReservationRepository) Delete(ctx context.Context, reservation *model.Reservation) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.db.Conn(ctx).ExecContext(ctx,
		r.db.Rebind("DELETE FROM "+ReservationsTable+" WHERE id = ?"), reservation.ID)
	if err != nil {
		return fmt.Errorf("failed to delete reservation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if n == 0 {
		return reservationserrors.ErrReservationNotFound
	}
	return nil
}
