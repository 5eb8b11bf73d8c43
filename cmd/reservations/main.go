package main

import (
	"context"
	"roombook/internal/notifications"
	"roombook/internal/reservations/handler"
	"roombook/internal/reservations/repository"
	"roombook/internal/reservations/scheduler"
	"roombook/internal/reservations/service"
	"roombook/internal/reservations/validator"
	"roombook/pkg/app"
	"roombook/pkg/clock"
	"roombook/pkg/config"
	"roombook/pkg/kafka"
	kafka_config "roombook/pkg/kafka/config"
	kafka_middleware "roombook/pkg/kafka/middleware"
)

const ServiceName = "reservations"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Reservations service")
	serverApp := app.NewApplication(cfg)

	dispatcher := notifications.NewDispatcher(
		initSink(cfg, serverApp),
		cfg.NotifyQueueSize,
		cfg.NotifyTimeout,
		cfg.Log.Component("notifications"),
	)
	reservationService, sweeper := initServices(cfg, dispatcher)
	sweeps := scheduler.New(
		scheduler.SweepJobs(sweeper, cfg),
		cfg.SweepRunTimeout,
		cfg.Log.Component("scheduler"),
	)

	// Run returns once Close has drained the queue. The closer is registered
	// after the producer's, so it runs first.
	go dispatcher.Run(context.Background())
	serverApp.AddCloser("notification-dispatcher", dispatcher.Close)
	serverApp.AddWorker("sweep-scheduler", sweeps.Start)

	serverApp.SetApp(
		handler.NewReservationHandler(reservationService, cfg.Log),
		handler.NewHealthHandler(cfg.Client.Mongo, cfg.Log),
	)
	serverApp.Run()
}

func initServices(cfg *config.Config, notifier service.Notifier) (service.ReservationService, *service.Sweeper) {
	rules, err := validator.RulesFromConfig(cfg)
	if err != nil {
		cfg.Log.Fatal("Invalid booking rules", "error", err)
	}

	repos := service.Repositories{
		Reservations: repository.NewMongoReservationRepository(cfg),
		Resources:    repository.NewMongoResourceRepository(cfg),
		Visibility:   repository.NewMongoVisibilityRepository(cfg),
		Locks:        repository.NewMongoResourceLockRepository(cfg),
	}
	clk := clock.Real()

	reservationService := service.NewReservationService(
		repos,
		validator.NewRequestValidator(cfg.Log),
		rules,
		notifier,
		clk,
		cfg,
	)
	sweeper := service.NewSweeper(
		repos.Reservations,
		notifier,
		clk,
		cfg.SweepImminentHorizon,
		cfg.Log.Component("sweeper"),
	)

	cfg.Log.Info("Reservation service initialized", "database", cfg.MongoDatabaseName)
	return reservationService, sweeper
}

// initSink publishes to Kafka when enabled and falls back to the service log.
func initSink(cfg *config.Config, serverApp *app.Application) notifications.Sink {
	if !cfg.KafkaNotificationsEnabled {
		cfg.Log.Info("Kafka notifications disabled, logging notifications instead")
		return notifications.NewLogSink(cfg.Log.Component("notifications"))
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.Log, cfg.NotifyTopic, cfg.NotifyDLQTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}

	metrics := kafka_middleware.NewPublishMetrics()
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log.Component("kafka")))
		producer.Use(kafka_middleware.MetricsProducerMiddleware(metrics))
	}

	serverApp.AddCloser("kafka-producer", func(context.Context) error {
		snap := metrics.Snapshot()
		cfg.Log.Info("Kafka producer stats",
			"topic", producer.Topic(),
			"published", snap.Published,
			"failed", snap.Failed,
			"avg_latency", snap.AvgLatency,
		)
		return producer.Close()
	})

	return notifications.NewKafkaSink(producer, kafkaCfg.ProducerMaxRetries)
}
