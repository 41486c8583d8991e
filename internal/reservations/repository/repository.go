package repository

import (
	"context"
	"time"

	"slotbook/pkg/config"
	"slotbook/pkg/contracts"
	mongotx "slotbook/pkg/db/mongo"
	dbsql "slotbook/pkg/db/sql"
	"slotbook/pkg/model"
)

const (
	SlotsCollection        = "Slots"
	ReservationsCollection = "Reservations"

	SlotsTable        = "slots"
	ReservationsTable = "reservations"
)

type SlotRepository interface {
	Create(ctx context.Context, slot *model.Slot) error
	FindByID(ctx context.Context, id string) (*model.Slot, error)
	// FindAvailableFrom returns unreserved slots starting at or after from, ascending by start time.
	FindAvailableFrom(ctx context.Context, from time.Time, page model.PageRequest) ([]*model.Slot, error)
	// FindByStartTime returns ErrSlotNotFound when no slot starts at start and
	// ErrSlotTaken when the slot there is already reserved.
	FindByStartTime(ctx context.Context, start time.Time) (*model.Slot, error)
	// TryReserve is a single conditional write. It returns false when the slot is
	// reserved or its version is no longer expectedVersion.
	TryReserve(ctx context.Context, id string, expectedVersion int64) (bool, error)
	// Release marks the slot unreserved and bumps its version. Releasing an
	// unreserved slot is a no-op.
	Release(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

type ReservationRepository interface {
	// Create returns ErrDuplicateReservation when the slot already has a reservation.
	Create(ctx context.Context, reservation *model.Reservation) error
	FindByUserAndSlot(ctx context.Context, userID, slotID string) (*model.Reservation, error)
	Delete(ctx context.Context, reservation *model.Reservation) error
}

// Store bundles the repositories of one backend with the transactor that
// spans them.
type Store struct {
	Slots        SlotRepository
	Reservations ReservationRepository
	Transactor   contracts.Transactor
}

// NewStore builds the repositories for the configured store driver. The
// matching client connection must already be open.
func NewStore(cfg *config.Config) *Store {
	if cfg.StoreDriver == config.StoreMongo {
		var tx contracts.Transactor = contracts.NoTransaction{}
		if cfg.MongoTransactions {
			tx = mongotx.NewTransactionManager(cfg.Client.Mongo)
		}
		return &Store{
			Slots:        NewMongoSlotRepository(cfg),
			Reservations: NewMongoReservationRepository(cfg),
			Transactor:   tx,
		}
	}

	return &Store{
		Slots:        NewSQLSlotRepository(cfg),
		Reservations: NewSQLReservationRepository(cfg),
		Transactor:   dbsql.NewTransactionManager(cfg.Client.SQL),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// A mongo SessionContext cannot be wrapped without breaking transaction
// semantics, so it is returned unchanged with a no-op cancel.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if isSessionContext(ctx) {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}
