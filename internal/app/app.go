package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-history/internal/api"
	"github.com/vladislavdragonenkov/order-history/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/order-history/internal/health"
	"github.com/vladislavdragonenkov/order-history/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/order-history/internal/metrics"
	"github.com/vladislavdragonenkov/order-history/internal/service/ingest"
	"github.com/vladislavdragonenkov/order-history/internal/storage/memory"
	"github.com/vladislavdragonenkov/order-history/internal/storage/postgres"
	"github.com/vladislavdragonenkov/order-history/internal/version"
)

// Run собирает зависимости и держит сервис до отмены контекста.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	storageMetrics := metrics.NewStorageMetrics()
	healthHandler := healthcheck.NewHandler(version.String())

	var (
		repo  domain.OrderRepository
		store *postgres.Store
	)
	switch cfg.StorageDriver {
	case StoragePostgres:
		var err error
		store, err = postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres store: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.WithError(err).Warn("failed to close postgres store")
			}
		}()

		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
			logger.Info("migrations applied")
		}

		repo = postgres.NewOrderRepository(store, storageMetrics)
		healthHandler.RegisterChecker("postgres", healthcheck.NewSimpleChecker("postgres", func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return store.Ping(pingCtx)
		}))
		logger.Info("using postgres storage")
	case StorageMemory, "":
		repo = memory.NewOrderRepository()
		logger.Info("using in-memory storage")
	default:
		return fmt.Errorf("unknown storage driver: %q", cfg.StorageDriver)
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	// Инициализация Kafka consumer (опционально)
	var consumer *kafka.Consumer
	if len(cfg.KafkaBrokers) > 0 {
		handler := ingest.NewHandler(repo)
		topics := []string{cfg.KafkaTopic}

		dlqProducer, err := kafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			// Без producer'а DLQ недоступен, но ingest всё ещё возможен:
			// необработанные сообщения просто не будут маркироваться.
			logger.WithError(err).Warn("failed to create kafka producer, ingest will run without DLQ")
			consumer, err = kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, topics, handler.HandleMessage)
			if err != nil {
				logger.WithError(err).Warn("failed to create kafka consumer, continuing without ingest")
				consumer = nil
			}
		} else {
			consumer, err = kafka.NewConsumerWithDLQ(
				cfg.KafkaBrokers,
				cfg.KafkaGroupID,
				topics,
				handler.HandleMessage,
				dlqProducer,
				cfg.IngestMaxRetries,
			)
			if err != nil {
				logger.WithError(err).Warn("failed to create kafka consumer, continuing without ingest")
				_ = dlqProducer.Close()
				consumer = nil
			} else {
				defer func() {
					if err := dlqProducer.Close(); err != nil {
						logger.WithError(err).Warn("failed to close dlq producer")
					}
				}()
			}
		}

		if consumer != nil {
			if err := consumer.Start(ctx); err != nil {
				return fmt.Errorf("start kafka consumer: %w", err)
			}
		}
	}

	apiServer := api.NewServer(repo, logger.WithField("layer", "http"))

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP сервер слушает %s", cfg.HTTPAddr)
		errCh <- apiServer.Listen(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		if err := apiServer.Shutdown(cfg.ShutdownTimeout); err != nil {
			logger.WithError(err).Warn("http shutdown with error")
		}
		shutdownHTTP(metricsSrv, logger)

		if consumer != nil {
			if err := consumer.Stop(); err != nil {
				logger.WithError(err).Warn("failed to stop kafka consumer")
			}
		}

		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)

		if consumer != nil {
			if stopErr := consumer.Stop(); stopErr != nil {
				logger.WithError(stopErr).Warn("failed to stop kafka consumer")
			}
		}

		return err
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
