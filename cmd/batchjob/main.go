// Command batchjob runs one tracked batch job to completion. It is the
// entry point of the container the Kubernetes runner launches.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/learnhub/engine/internal/executor"
	"github.com/learnhub/engine/internal/graph"
	"github.com/learnhub/engine/internal/repository"
	"github.com/learnhub/engine/internal/services"
	"github.com/learnhub/engine/pkg/config"
	"github.com/learnhub/engine/pkg/database"
	"github.com/learnhub/engine/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		name    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:           "batchjob",
		Short:         "Run a tracked batch job",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			return run(ctx, name)
		},
	}
	cmd.Flags().StringVar(&name, "container_name", "", "name of the batch job to run")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "abandon the job after this long (0 means no limit)")
	_ = cmd.MarkFlagRequired("container_name")
	return cmd
}

func run(ctx context.Context, name string) error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return err
	}
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()
	log = log.With(zap.String("job", name))

	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL, database.Options{
		TablePrefix: cfg.DatabasePrefix,
		Verbose:     cfg.IsDevelopment(),
	})
	if err != nil {
		log.Error("failed to open database", zap.Error(err))
		return err
	}

	nodeRepo := repository.NewNodeRepository(db)
	gm := graph.NewManager(logger.Named("graph"), nil)
	nodeSvc := services.NewNodeService(nodeRepo, repository.NewLearnerProfileRepository(db), gm)
	// The job container only reports status; it never starts or stops runs.
	jobSvc := services.NewBatchJobService(repository.NewBatchJobRepository(db), nil, nil)

	exec := executor.NewDefault(jobSvc, nodeSvc, nodeRepo, gm, logger.Named("executor"))
	if err := exec.Run(ctx, name); err != nil {
		log.Error("batch job run failed", zap.Error(err))
		return err
	}
	return nil
}
