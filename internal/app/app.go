package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/ims/internal/health"
	"github.com/vladislavdragonenkov/ims/internal/messaging/kafka"
	idemworker "github.com/vladislavdragonenkov/ims/internal/service/idempotency"
	"github.com/vladislavdragonenkov/ims/internal/service/inventory"
	"github.com/vladislavdragonenkov/ims/internal/service/items"
	"github.com/vladislavdragonenkov/ims/internal/service/orders"
	outboxworker "github.com/vladislavdragonenkov/ims/internal/service/outbox"
	"github.com/vladislavdragonenkov/ims/internal/storage/memory"
	"github.com/vladislavdragonenkov/ims/internal/storage/postgres"
	httptransport "github.com/vladislavdragonenkov/ims/internal/transport/http"
	"github.com/vladislavdragonenkov/ims/internal/version"
)

// Config описывает настройки запуска приложения.
type Config struct {
	// HTTPAddr — адрес REST API.
	HTTPAddr string
	// MetricsAddr — адрес сервисных эндпоинтов (/metrics, /healthz, /livez).
	MetricsAddr string
	// PostgresDSN включает PostgreSQL-хранилище; пустое значение означает
	// in-memory хранилище для разработки и тестов.
	PostgresDSN string
	// KafkaBrokers — список брокеров через запятую; пустое значение
	// отключает публикацию событий из outbox.
	KafkaBrokers string
}

// DefaultConfig возвращает базовые адреса API и метрик.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",
	}
}

// Run собирает зависимости и обслуживает запросы до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	store, storeCleanup, storageCheck, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer storeCleanup()

	ledger := inventory.NewLedger(log.WithField("component", "inventory-ledger"))
	ordersSvc := orders.NewService(store, ledger, log.WithField("component", "orders"))
	itemsSvc := items.NewService(store, log.WithField("component", "items"))
	handler := httptransport.NewHandler(itemsSvc, ordersSvc, store.Idempotency(), log.WithField("component", "http"))

	workersCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	kafkaProducer := startOutboxPipeline(workersCtx, cfg, store, logger)
	defer func() {
		if kafkaProducer == nil {
			return
		}
		if err := kafkaProducer.Close(); err != nil {
			logger.WithError(err).Warn("failed to close kafka producer")
		} else {
			logger.Info("kafka producer closed")
		}
	}()

	cleanupWorker := idemworker.NewCleanupWorker(
		store.Idempotency(),
		idemworker.WithLogger(log.WithField("component", "idempotency-cleanup")),
	)
	go cleanupWorker.Run(workersCtx)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", healthcheck.NewSimpleChecker("storage", storageCheck))

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	apiSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP API")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		stopWorkers()
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		stopWorkers()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// openStore выбирает реализацию хранилища по конфигурации.
func openStore(ctx context.Context, cfg Config, logger *log.Entry) (domain.Store, func(), func() error, error) {
	if cfg.PostgresDSN == "" {
		logger.Info("postgres dsn is not set, using in-memory storage")
		store := memory.NewStore()
		return store, func() {}, func() error { return nil }, nil
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = store.Close()
		return nil, nil, nil, err
	}
	logger.Info("postgres storage initialized")

	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.WithError(err).Warn("failed to close postgres store")
		}
	}
	check := func() error {
		checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return store.Ping(checkCtx)
	}
	return store, cleanup, check, nil
}

// startOutboxPipeline поднимает Kafka producer и outbox worker, если брокеры
// настроены. События копятся в outbox и без Kafka: воркер просто не запущен.
func startOutboxPipeline(ctx context.Context, cfg Config, store domain.Store, logger *log.Entry) *kafka.Producer {
	if cfg.KafkaBrokers == "" {
		logger.Info("kafka brokers are not set, outbox worker is disabled")
		return nil
	}

	brokers := strings.Split(cfg.KafkaBrokers, ",")
	producer, err := kafka.NewProducer(brokers)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil
	}
	logger.WithField("brokers", brokers).Info("kafka producer initialized")

	worker := outboxworker.NewWorker(
		store.Outbox(),
		kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents),
		outboxworker.WithDLQPublisher(kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue)),
		outboxworker.WithLogger(log.WithField("component", "outbox-worker")),
	)
	go worker.Run(ctx)

	return producer
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez", addr, addr)
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
		logger.WithError(err).Warn("http shutdown with error")
	}
}
