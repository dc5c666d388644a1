package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/learnhub/engine/internal/api"
	"github.com/learnhub/engine/internal/api/handlers"
	"github.com/learnhub/engine/internal/graph"
	"github.com/learnhub/engine/internal/metrics"
	"github.com/learnhub/engine/internal/orchestrator"
	"github.com/learnhub/engine/internal/repository"
	"github.com/learnhub/engine/internal/services"
	"github.com/learnhub/engine/pkg/config"
	"github.com/learnhub/engine/pkg/database"
	"github.com/learnhub/engine/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	cfg := config.MustLoad()

	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("starting learnhub engine",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
		zap.String("job_backend", cfg.JobBackend),
	)

	ctx := context.Background()
	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL, database.Options{
		TablePrefix: cfg.DatabasePrefix,
		Verbose:     cfg.IsDevelopment(),
	})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	log.Info("database connected", zap.String("table_prefix", cfg.DatabasePrefix))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCollector(reg)

	runner, closeRunner, err := orchestrator.NewFromConfig(cfg, logger.Named("orchestrator"))
	if err != nil {
		log.Fatal("failed to build job runner", zap.Error(err))
	}
	defer func() {
		if err := closeRunner(); err != nil {
			log.Warn("job runner close failed", zap.Error(err))
		}
	}()

	jwtSecret := []byte(cfg.JWTSecret)
	if len(jwtSecret) == 0 {
		if !cfg.IsDevelopment() {
			log.Fatal("JWT_SECRET must be set outside development")
		}
		log.Warn("JWT_SECRET not set, using development default")
		jwtSecret = []byte("change-me-in-production-please")
	}

	userRepo := repository.NewUserRepository(db)
	nodeRepo := repository.NewNodeRepository(db)
	profileRepo := repository.NewLearnerProfileRepository(db)
	jobRepo := repository.NewBatchJobRepository(db)

	gm := graph.NewManager(logger.Named("graph"), m)
	nodeSvc := services.NewNodeService(nodeRepo, profileRepo, gm)
	profileSvc := services.NewLearnerProfileService(profileRepo)
	jobSvc := services.NewBatchJobService(jobRepo, runner, m)
	authSvc := services.NewAuthService(userRepo, jwtSecret)

	router := api.NewRouter(api.Dependencies{
		HMACSecret:             jwtSecret,
		Metrics:                m,
		Gatherer:               reg,
		RateLimit:              10,
		Burst:                  20,
		HealthHandler:          handlers.NewHealthHandler(readinessChecks(cfg, db)),
		AuthHandler:            handlers.NewAuthHandler(authSvc),
		NodesHandler:           handlers.NewNodesHandler(nodeSvc),
		LearnerProfilesHandler: handlers.NewLearnerProfilesHandler(profileSvc),
		JobsHandler:            handlers.NewJobsHandler(jobSvc),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server exited gracefully")
	}
}

// readinessChecks probes the database, redis when the queue backend is in
// use, and every configured sibling service.
func readinessChecks(cfg *config.Config, db *gorm.DB) map[string]handlers.Check {
	checks := map[string]handlers.Check{
		"database": func(ctx context.Context) error { return database.Ping(ctx, db) },
	}
	if cfg.JobBackend == "queue" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	client := &http.Client{Timeout: 2 * time.Second}
	for name, url := range cfg.Services {
		checks["service:"+name] = handlers.ServiceProbe(client, url)
	}
	return checks
}
