package main

import (
	"context"

	"slotbook/internal/reservations/cache"
	"slotbook/internal/reservations/events"
	"slotbook/internal/reservations/handler"
	"slotbook/internal/reservations/repository"
	"slotbook/internal/reservations/service"
	"slotbook/internal/reservations/validator"
	"slotbook/pkg/app"
	"slotbook/pkg/config"
	"slotbook/pkg/identity"
	"slotbook/pkg/kafka"
	kafka_config "slotbook/pkg/kafka/config"
	kafka_middleware "slotbook/pkg/kafka/middleware"
)

const ServiceName = "reservations"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetStore()

	cfg.Log.Info("Starting Reservations service")
	serverApp := app.NewApplication(cfg)

	store := repository.NewStore(cfg)
	availability := initCache(cfg, serverApp)

	sealer, err := identity.NewSealer(cfg.IdentityTokenKey)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize identity sealer", "error", err)
	}

	var publisher service.EventPublisher
	var eventStats func() any
	if cfg.EventsEnabled {
		p, metrics := initEvents(cfg, serverApp, availability)
		publisher = p
		eventStats = func() any { return metrics.Snapshot() }
	}

	reservationService := service.NewReservationService(store, availability, publisher, cfg)
	reservationHandler := handler.NewReservationHandler(
		reservationService,
		validator.NewReservationValidator(cfg.Log),
		cfg.Log,
	)

	deps := []handler.Dependency{{Name: cfg.StoreDriver, Ping: store.Slots.Ping}}
	if cfg.Client.Redis != nil {
		deps = append(deps, handler.Dependency{
			Name: config.CacheRedis,
			Ping: func(ctx context.Context) error { return cfg.Client.Redis.Ping(ctx).Err() },
		})
	}
	healthHandler := handler.NewHealthHandler(cfg.Log, deps...)
	if eventStats != nil {
		healthHandler.WithEventStats(eventStats)
	}

	cfg.Log.Info("Reservations service initialized",
		"store_driver", cfg.StoreDriver,
		"cache_driver", cfg.CacheDriver,
		"events_enabled", cfg.EventsEnabled,
		"instance_id", cfg.InstanceID,
	)

	serverApp.SetApp(sealer, reservationHandler, healthHandler)
	serverApp.Run()
}

func initCache(cfg *config.Config, serverApp *app.Application) cache.AvailabilityCache {
	if cfg.CacheDriver == config.CacheRedis {
		cfg.SetRedis()
		return cache.NewRedisCache(cfg.Client.Redis, cfg.CacheExpireAfterAccess,
			cache.WithRedisPrefix(cfg.RedisKeyPrefix),
			cache.WithRedisCapacity(cfg.CacheCapacity),
			cache.WithRedisLogger(cfg.Log),
		)
	}

	memory := cache.NewMemoryCache(cfg.CacheCapacity, cfg.CacheExpireAfterAccess)
	serverApp.OnShutdown(memory.Stop)
	return memory
}

// initEvents wires the change-event producer and, for a process-local cache,
// the consumer that evicts it when a peer instance mutates a slot.
func initEvents(cfg *config.Config, serverApp *app.Application, availability cache.AvailabilityCache) (*events.Publisher, *kafka_middleware.Metrics) {
	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	metrics := kafka_middleware.NewMetrics()

	producer, err := kafka.NewProducer(kafkaCfg, cfg.Log, cfg.EventsTopic, cfg.EventsDLQTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	producer.Use(metrics.ProducerMiddleware())
	serverApp.OnShutdown(func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	})

	if cfg.CacheDriver == config.CacheRedis {
		cfg.Log.Info("Shared cache in use, peer invalidation consumer not started")
		return events.NewPublisher(producer, cfg.InstanceID), metrics
	}

	invalidation := events.NewInvalidationHandler(availability, cfg.InstanceID, cfg.Log)
	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		cfg.Log,
		cfg.EventsTopic,
		events.ConsumerGroup(kafkaCfg.ConsumerGroupPrefix, cfg.InstanceID),
		cfg.EventsDLQTopic,
		invalidation.Handle,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	consumer.Use(metrics.ConsumerMiddleware())
	serverApp.Go("cache-invalidation-consumer", consumer.Start)
	serverApp.OnShutdown(func() {
		if err := consumer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka consumer", "error", err)
		}
	})

	return events.NewPublisher(producer, cfg.InstanceID), metrics
}
