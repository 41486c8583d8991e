package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	reservationserrors "slotbook/internal/reservations/errors"
	"slotbook/pkg/config"
	"slotbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoSlotRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
}

func NewMongoSlotRepository(cfg *config.Config) SlotRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(SlotsCollection),
	}
}

func isSessionContext(ctx context.Context) bool {
	_, ok := ctx.(mongo.SessionContext)
	return ok
}

func (r *mongoSlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	slot.StartTime = model.NormalizeTime(slot.StartTime)
	slot.EndTime = model.NormalizeTime(slot.EndTime)

	if _, err := r.collection.InsertOne(ctx, slot); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return reservationserrors.ErrDuplicateSlot
		}
		return fmt.Errorf("failed to create slot: %w", err)
	}
	return nil
}

func (r *mongoSlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var slot model.Slot
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrSlotNotFound
		}
		return nil, fmt.Errorf("failed to find slot: %w", err)
	}
	return &slot, nil
}

func (r *mongoSlotRepository) FindAvailableFrom(ctx context.Context, from time.Time, page model.PageRequest) ([]*model.Slot, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"reserved":   false,
		"start_time": bson.M{"$gte": model.NormalizeTime(from)},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}}).
		SetLimit(int64(page.Size)).
		SetSkip(int64(page.Offset()))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find available slots: %w", err)
	}
	defer cursor.Close(ctx)

	slots := make([]*model.Slot, 0, page.Size)
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}
	return slots, nil
}

func (r *mongoSlotRepository) FindByStartTime(ctx context.Context, start time.Time) (*model.Slot, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var slot model.Slot
	err := r.collection.FindOne(ctx, bson.M{"start_time": model.NormalizeTime(start)}).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrSlotNotFound
		}
		return nil, fmt.Errorf("failed to find slot by start time: %w", err)
	}
	if slot.Reserved {
		return nil, reservationserrors.ErrSlotTaken
	}
	return &slot, nil
}

func (r *mongoSlotRepository) TryReserve(ctx context.Context, id string, expectedVersion int64) (bool, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "version": expectedVersion, "reserved": false}
	update := bson.M{
		"$set": bson.M{"reserved": true},
		"$inc": bson.M{"version": 1},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		// A concurrent transaction touching the same document surfaces as a write conflict.
		if isWriteConflict(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to reserve slot: %w", err)
	}
	return result.MatchedCount == 1, nil
}

func (r *mongoSlotRepository) Release(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "reserved": true}
	update := bson.M{
		"$set": bson.M{"reserved": false},
		"$inc": bson.M{"version": 1},
	}

	if _, err := r.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to release slot: %w", err)
	}
	return nil
}

func (r *mongoSlotRepository) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()
	return r.db.Client().Ping(ctx, nil)
}

func isWriteConflict(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code == 112
	}
	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) {
		for _, we := range writeErr.WriteErrors {
			if we.Code == 112 {
				return true
			}
		}
	}
	return false
}
