package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/tradeops/trademanager/configs"
	"github.com/tradeops/trademanager/internal/consumer"
	"github.com/tradeops/trademanager/internal/idgen"
	"github.com/tradeops/trademanager/internal/pipeline"
	"github.com/tradeops/trademanager/internal/publisher"
	"github.com/tradeops/trademanager/internal/repository"
	"github.com/tradeops/trademanager/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := configs.AppLoad()

	migrateFlag := flag.Bool("migrate", false, "Run database migrations and exit")
	flag.Parse()

	db, err := gorm.Open(postgres.Open(cfg.DBDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if *migrateFlag {
		sqlDB, err := db.DB()
		if err != nil {
			logger.Error("Failed to get sql.DB", "error", err)
			os.Exit(1)
		}
		if err := goose.SetDialect("postgres"); err != nil {
			logger.Error("Goose: failed to set dialect", "error", err)
			os.Exit(1)
		}
		logger.Info("Running database migrations...")
		if err := goose.Up(sqlDB, "internal/migrations"); err != nil {
			logger.Error("Goose migration failed", "error", err)
			os.Exit(1)
		}
		logger.Info("Migrations completed successfully")
		return
	}

	registry := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(registry)
	go func() {
		if err := telemetry.Serve(cfg.MetricsAddr, registry, logger); err != nil {
			logger.Error("Metrics listener stopped", "error", err)
		}
	}()

	rawRepo := repository.NewGormRawMessageRepository(db)
	tradeRepo := repository.NewGormTradeRepository(db)
	excRepo := repository.NewGormExceptionRepository(db)
	fundRepo := repository.NewGormFundRepository(db)

	pub, err := publisher.NewKafkaPublisher(cfg.Kafka.Broker, logger)
	if err != nil {
		logger.Error("Failed to create Kafka publisher", "error", err)
		os.Exit(1)
	}
	defer pub.Close()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{cfg.Kafka.Broker},
		Topic:          cfg.Kafka.InputTopic,
		GroupID:        cfg.Kafka.GroupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		CommitInterval: 0,    // Offsets are committed manually after the raw write.
	})
	defer reader.Close()

	ids := idgen.NewHostGenerator(logger)
	processor := pipeline.NewProcessor(tradeRepo, excRepo, fundRepo, pub, cfg.Kafka.OutputTopic, logger, metrics)
	pool := pipeline.NewPool(processor, cfg.Consumer.WorkerCount, logger)

	intake := consumer.NewConsumer(reader, rawRepo, ids, pool, pub, consumer.Config{
		DeadLetterTopic:     cfg.Kafka.DeadLetterTopic,
		RetryBackoff:        time.Duration(cfg.Consumer.RetryBackoffSeconds) * time.Second,
		DeadLetterAttempts:  cfg.Consumer.DeadLetterAttempts,
		IntakeRatePerSecond: cfg.Consumer.IntakeRatePerSecond,
	}, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool.Start(ctx)
	logger.Info("Trade confirmation consumer started",
		"input_topic", cfg.Kafka.InputTopic,
		"output_topic", cfg.Kafka.OutputTopic,
		"workers", cfg.Consumer.WorkerCount)

	if err := intake.Start(ctx); err != nil {
		logger.Error("Intake loop stopped with error", "error", err)
	}

	// Drain in-flight messages before closing shared resources.
	pool.Stop()
	logger.Info("Shutdown complete")
}
