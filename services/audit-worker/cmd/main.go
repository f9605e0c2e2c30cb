package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/joho/godotenv"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/database"
	kafkautils "github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/kafka"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/repositories"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/rng"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/services/audit-worker/configs"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/services/audit-worker/internal/services"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// main initializes and runs the audit worker service.
func main() {
	_ = godotenv.Load() // optional .env for local runs

	// Initialize global logger with default configuration
	pkg.InitLogger()
	logger := pkg.Logger
	defer logger.Sync() // Ensure all buffered logs are flushed on exit

	// Load configuration from environment and optional config file
	cfg, err := configs.Load(logger)
	if err != nil {
		logger.Fatal("failed_to_load_config", zap.Error(err))
	}

	// Handle graceful shutdown on SIGINT or SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL database connection
	dbConfig := database.Config{
		PrimaryDSN: cfg.PrimaryDbAddr,
		MaxConns:   cfg.MaxDbCons,
		MinConns:   cfg.MinDbCons,
	}
	if cfg.ReplicaDbAddr != "" {
		dbConfig.ReplicaDSNs = []string{cfg.ReplicaDbAddr}
	}
	db, disconnect, err := database.New(ctx, logger, dbConfig)
	if err != nil {
		logger.Fatal("failed_to_connect_database", zap.Error(err))
	}
	defer disconnect() // Ensure database connections are closed on shutdown

	// Kafka consumer with manual commits
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.KafkaBrokers,
		"group.id":           cfg.KafkaConsumerGroup,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false,
	})
	if err != nil {
		logger.Fatal("failed_to_create_kafka_consumer", zap.Error(err))
	}

	var dlq services.Producer
	if cfg.KafkaDLQTopic != "" {
		err = kafkautils.InitKafkaTopics(logger, ctx, kafkautils.KafkaConfig{
			BootstrapServers: cfg.KafkaBrokers,
			Topics: []kafkautils.TopicConfig{
				kafkautils.RetentionTopic(cfg.KafkaDLQTopic, int(cfg.KafkaPartition), cfg.KafkaDLQRetention),
			},
		})
		if err != nil {
			logger.Fatal("failed_to_init_dlq_topic", zap.Error(err))
		}
		producer, err := kafkautils.NewIdempotentProducer(logger, cfg.KafkaBrokers)
		if err != nil {
			logger.Fatal("failed_to_create_dlq_producer", zap.Error(err))
		}
		dlq = producer
	}

	worker := services.NewRequestLogConsumer(services.ConsumerConfig{
		Logger: logger,
		Source: consumer,
		Processor: services.NewRequestLogProcessor(services.ProcessorConfig{
			Logger:      logger,
			Repo:        repositories.NewRequestLogRepository(db),
			MaxAttempts: cfg.PersistMaxAttempts,
			BaseBackoff: cfg.PersistBaseBackoff,
			MaxBackoff:  cfg.PersistMaxBackoff,
			Jitter:      rng.FromSeed(cfg.RandomSeed).R("persist-backoff"),
		}),
		Topic:             cfg.KafkaRequestLogTopic,
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		DLQ:               dlq,
		DLQTopic:          cfg.KafkaDLQTopic,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	worker.Close()
	if err != nil {
		logger.Error("audit_worker_stopped", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("service_shutdown_completed")
}
