package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"

	"github.com/eventbank/ledger/actors"
	"github.com/eventbank/ledger/api"
	"github.com/eventbank/ledger/bank"
	"github.com/eventbank/ledger/circuitbreaker"
	"github.com/eventbank/ledger/config"
	"github.com/eventbank/ledger/domain/account"
	"github.com/eventbank/ledger/domain/feepolicy"
	"github.com/eventbank/ledger/eventstore"
	"github.com/eventbank/ledger/external"
	"github.com/eventbank/ledger/metrics"
	"github.com/eventbank/ledger/notify"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(".")
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider, err := metrics.Setup(metrics.SetupConfig{ServiceName: "ledger"})
	if err != nil {
		logger.Error("failed to setup metrics", "error", err)
		os.Exit(1)
	}
	m, err := metrics.NewMetrics()
	if err != nil {
		logger.Error("failed to create metrics", "error", err)
		os.Exit(1)
	}

	codec := eventstore.NewCodec()
	store, closeStore, err := buildStore(ctx, cfg, codec)
	if err != nil {
		logger.Error("failed to create event store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	hub := notify.NewHub()
	defer hub.Stop()

	breakers := circuitbreaker.NewManager(logger)
	breakers.Subscribe(hub.PublishBreaker)

	var publisher actors.EventPublisher
	if cfg.NATSURL != "" {
		conn, err := nats.Connect(cfg.NATSURL,
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(-1),
		)
		if err != nil {
			logger.Error("failed to connect to NATS", "url", cfg.NATSURL, "error", err)
			os.Exit(1)
		}
		defer conn.Close()

		natsConfig := notify.DefaultNATSPublisherConfig()
		natsConfig.Conn = conn
		publisher, err = notify.NewNATSPublisher(natsConfig, codec)
		if err != nil {
			logger.Error("failed to create NATS publisher", "error", err)
			os.Exit(1)
		}
		logger.Info("NATS event publishing enabled", "url", cfg.NATSURL)
	}

	breakerConfig := circuitbreaker.Config{
		MaxFailures:  cfg.BreakerMaxFailures,
		ResetTimeout: cfg.BreakerResetTimeout,
		CallTimeout:  cfg.BreakerCallTimeout,
	}
	sagaConfig := actors.DefaultTransferSagaConfig()
	sagaConfig.Workers = cfg.SagaWorkers
	sagaConfig.Breaker = breakerConfig
	sagaConfig.Metrics = m

	saga := actors.NewTransferSaga(
		sagaConfig,
		breakers,
		external.NewSimulatedGateway(external.SimulatedGatewayConfig{Latency: 50 * time.Millisecond}),
		external.NewSimulatedGateway(external.SimulatedGatewayConfig{Latency: 200 * time.Millisecond}),
		logger,
	)

	policy := feepolicy.Policy{
		DailyBalanceThreshold: decimal.NewFromFloat(cfg.DailyBalanceThreshold),
		QualifyingDeposit:     decimal.NewFromFloat(cfg.QualifyingDeposit),
		FeeAmount:             decimal.NewFromFloat(cfg.FeeAmount),
	}

	registryConfig := actors.DefaultRegistryConfig()
	registryConfig.FeePolicy = policy
	registryConfig.Metrics = m
	registryConfig.Scheduler = actors.SchedulerConfig{
		Interval: cfg.FeeInterval,
		Lookback: cfg.FeeLookback,
		Enabled:  cfg.FeeSchedulerEnabled,
	}

	decider := account.NewDecider(cfg.ExemptOrigins()...)
	registry := actors.NewRegistry(registryConfig, store, decider, hub, publisher, saga, logger)
	saga.Bind(registry)
	saga.Start()
	defer saga.Stop()
	defer registry.Shutdown()

	service := bank.NewService(registry, store, hub, breakers, m, logger)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.NewRouter(service, logger),
	}

	go func() {
		logger.Info("server listening", "addr", cfg.HTTPAddr, "store", cfg.StoreBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := metrics.Shutdown(shutdownCtx, provider); err != nil {
		logger.Error("failed to shutdown metrics", "error", err)
	}
}

// buildStore создает хранилище событий по конфигурации
func buildStore(ctx context.Context, cfg config.Config, codec *eventstore.Codec) (eventstore.Store, func(), error) {
	switch cfg.StoreBackend {
	case "postgres":
		store, err := eventstore.NewPostgresStore(ctx, eventstore.PostgresStoreConfig{DSN: cfg.DatabaseURL}, codec)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		store := eventstore.NewInMemoryStore(eventstore.DefaultInMemoryStoreConfig())
		return store, func() {}, nil
	}
}
