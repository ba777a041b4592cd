package main

import (
	"context"
	"errors"
	netHttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bluegreen-server/internal/adapters/http"
	"bluegreen-server/internal/adapters/http/request"
	"bluegreen-server/internal/adapters/http/response"
	"bluegreen-server/internal/adapters/http/validator"
	"bluegreen-server/internal/adapters/postgres"
	"bluegreen-server/internal/adapters/ws/userws"
	"bluegreen-server/internal/adapters/ws/userws/subscribers"
	"bluegreen-server/internal/application/deployment"
	"bluegreen-server/internal/application/guard"
	"bluegreen-server/internal/application/history"
	"bluegreen-server/internal/application/status"
	"bluegreen-server/internal/application/topology"
	"bluegreen-server/internal/application/traffic"
	"bluegreen-server/internal/application/workers"
	"bluegreen-server/internal/config"
	"bluegreen-server/internal/domain"
	"bluegreen-server/internal/event"
	"bluegreen-server/internal/health"
	"bluegreen-server/internal/loadbalancer"
	"bluegreen-server/internal/logger"
	"bluegreen-server/internal/metrics"
	"bluegreen-server/internal/registry"
	"bluegreen-server/internal/remote"
	"bluegreen-server/internal/statestore"
	"bluegreen-server/internal/storage/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	log := logger.New(cfg)

	if cfg.JWTSecret == "" {
		panic("FATAL: JWT_SECRET is mandatory for Server!")
	}

	reg, err := registry.Load(cfg.RegistryFile)
	if err != nil {
		log.Error("registry: failed to load applications", "file", cfg.RegistryFile, "error", err)
		os.Exit(1)
	}
	log.Info("registry: applications loaded", "file", cfg.RegistryFile, "count", len(reg.List()))

	bus := event.New()
	bus.OnPanic(func(name string, recovered any) {
		log.Error("event: handler panicked", "event", name, "panic", recovered)
	})

	historyRepo, closeHistory, err := openHistory(ctx, cfg, log)
	if err != nil {
		log.Error("history: failed to open store", "driver", cfg.HistoryDriver, "error", err)
		os.Exit(1)
	}
	defer closeHistory()

	// Infrastructure
	exec := remote.NewExecutor(reg.Hosts(), cfg.SSHDialTimeout, log)
	files := remote.NewFiles(exec)
	lb := loadbalancer.NewHAProxy(exec, files, cfg.InspectTimeout, log)
	store := statestore.New(files, log)
	prober := health.NewProber(cfg.HealthTimeout, log)

	// Services
	resolver := topology.NewResolver(reg, lb, store, log)
	opGuard := guard.New(cfg.MaxOperationsPerHour)

	deploymentService := deployment.NewService(reg, resolver, exec, prober, opGuard, bus, cfg.RemoteCommandTimeout, log)
	trafficController := traffic.NewController(reg, resolver, lb, store, prober, opGuard, bus, log)
	statusService := status.NewService(reg, resolver, prober, bus, log)
	historyService := history.NewService(historyRepo)

	// Event Listeners
	history.NewListener(historyService, log).Register(bus)

	promMetrics := metrics.New()
	promMetrics.Register(bus)

	// WebSocket Handlers
	wsUserHub := userws.NewHub(ctx, log)
	wsUserHandler := userws.NewHandler(wsUserHub, log, cfg.JWTSecret, cfg.AllowedOrigins)

	go wsUserHub.Run()

	// Register event subscribers
	subscribers.Register(bus, wsUserHub)

	// Workers
	scheduler := workers.NewScheduler(log)
	workers.NewManager(scheduler, cfg, log, &workers.ManagerServices{
		Status:  statusService,
		History: historyService,
	}).Start(ctx)

	// HTTP Handlers
	dec := request.NewJSONDecoder()
	res := response.NewJSONWriter(log)

	router := http.NewRouter(cfg, log, &http.RouterDeps{
		WsUser:      wsUserHandler,
		Application: http.NewApplicationHandler(statusService, res),
		Deployment:  http.NewDeploymentHandler(deploymentService, dec, res, log),
		Traffic:     http.NewTrafficHandler(trafficController, dec, res),
		History:     http.NewHistoryHandler(historyService, reg, validator.NewValidator(), res),
		Metrics:     promMetrics.Handler(),
	})

	srv := http.NewServer(router, cfg.Address)

	errCh := make(chan error, 1)
	go func() {
		log.Info("http: starting server", "address", cfg.Address)
		errCh <- srv.ListenAndServe()
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		wsUserHub.Stop()

		// A running deploy keeps its request open; give it time to finish.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http: server shutdown error", "error", err)
		}

	case err := <-errCh:
		if err != nil && !errors.Is(err, netHttp.ErrServerClosed) {
			log.Error("http: server error", "error", err)
		}
	}

	log.Info("server stopped")
}

func openHistory(ctx context.Context, cfg *config.Config, log logger.Logger) (domain.HistoryRepository, func(), error) {
	switch cfg.HistoryDriver {
	case config.HistoryDriverPostgres:
		pool, err := postgres.InitDB(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewHistoryRepository(pool), pool.Close, nil

	default:
		db, err := sqlite.NewSqliteDB(cfg.DBPath, log)
		if err != nil {
			return nil, nil, err
		}
		return sqlite.NewHistoryRepository(db), func() { db.Close() }, nil
	}
}
