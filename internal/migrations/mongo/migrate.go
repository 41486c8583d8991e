package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"slotbook/internal/migrations/mongo/validators"
	"slotbook/internal/reservations/repository"
	"slotbook/pkg/logger"
)

var (
	SlotsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "start_time", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_start_time"),
		},
		{
			Keys: bson.D{
				{Key: "reserved", Value: 1},
				{Key: "start_time", Value: 1},
			},
			Options: options.Index().SetName("available_by_start"),
		},
	}

	// The unique slot_id index is what rejects a second reservation for a slot.
	ReservationsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "slot_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_slot_id"),
		},
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "slot_id", Value: 1},
			},
			Options: options.Index().SetName("by_user_slot"),
		},
	}
)

func RunMigration(ctx context.Context, log *logger.Logger, client *mongo.Client, dbName string) error {
	db := client.Database(dbName)
	log.Info("Running mongo migrations", "database", dbName)

	collections := []struct {
		Name      string
		Indexes   []mongo.IndexModel
		Validator bson.M
	}{
		{
			Name:      repository.SlotsCollection,
			Indexes:   SlotsIndexes,
			Validator: validators.SlotValidator,
		},
		{
			Name:      repository.ReservationsCollection,
			Indexes:   ReservationsIndexes,
			Validator: validators.ReservationValidator,
		},
	}

	for _, def := range collections {
		if err := ensureCollection(ctx, log, db, def.Name, def.Validator); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", def.Name, err)
		}
		if err := ensureIndexes(ctx, log, db, def.Name, def.Indexes); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", def.Name, err)
		}
	}

	log.Info("All mongo migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, log *logger.Logger, db *mongo.Database, name string, validator bson.M) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection already exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, log *logger.Logger, db *mongo.Database, name string, models []mongo.IndexModel) error {
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
