package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/learnhub/engine/internal/executor"
	"github.com/learnhub/engine/internal/graph"
	"github.com/learnhub/engine/internal/orchestrator"
	"github.com/learnhub/engine/internal/queue"
	"github.com/learnhub/engine/internal/queue/tasks"
	"github.com/learnhub/engine/internal/repository"
	"github.com/learnhub/engine/internal/services"
	"github.com/learnhub/engine/pkg/config"
	"github.com/learnhub/engine/pkg/database"
	"github.com/learnhub/engine/pkg/logger"
)

// The worker executes queued batch jobs and periodically reconciles open
// jobs against their runner.
func main() {
	cfg := config.MustLoad()
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}
	_ = rdb.Close()

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	}

	ctx := context.Background()
	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL, database.Options{
		TablePrefix: cfg.DatabasePrefix,
		Verbose:     cfg.IsDevelopment(),
	})
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}

	runner, closeRunner, err := orchestrator.NewFromConfig(cfg, logger.Named("orchestrator"))
	if err != nil {
		log.Fatal("failed to build job runner", zap.Error(err))
	}
	defer func() { _ = closeRunner() }()

	nodeRepo := repository.NewNodeRepository(db)
	gm := graph.NewManager(logger.Named("graph"), nil)
	nodeSvc := services.NewNodeService(nodeRepo, repository.NewLearnerProfileRepository(db), gm)
	jobSvc := services.NewBatchJobService(repository.NewBatchJobRepository(db), runner, nil)
	exec := executor.NewDefault(jobSvc, nodeSvc, nodeRepo, gm, logger.Named("executor"))

	mux := asynq.NewServeMux()
	tasks.NewBatchJobTaskHandler(exec, jobSvc).Register(mux)

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.AsynqConcurrency,
		Queues:      queue.Queues(),
	})

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{})
	entryID, err := scheduler.Register(cfg.JobSyncSchedule, queue.NewSyncTask(), asynq.Queue(queue.QueueMaintenance))
	if err != nil {
		log.Fatal("failed to schedule job sync", zap.Error(err))
	}
	log.Info("job sync scheduled", zap.String("entry", entryID), zap.String("spec", cfg.JobSyncSchedule))

	log.Info("asynq worker starting", zap.Int("concurrency", cfg.AsynqConcurrency))
	if err := srv.Start(mux); err != nil {
		log.Fatal("worker start failed", zap.Error(err))
	}
	if err := scheduler.Start(); err != nil {
		srv.Shutdown()
		log.Fatal("scheduler start failed", zap.Error(err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Info("shutdown signal received", zap.String("signal", sig.String()))

	// Let in-flight tasks finish.
	scheduler.Shutdown()
	srv.Shutdown()
}
