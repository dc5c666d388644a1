package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/learnhub/engine/internal/queue"
	appErr "github.com/learnhub/engine/pkg/errors"
	"github.com/learnhub/engine/pkg/logger"
	"go.uber.org/zap"
)

// JobRunner executes a tracked batch job by name.
type JobRunner interface {
	Run(ctx context.Context, name string) error
}

// StatusSyncer reconciles open jobs with the runner backend.
type StatusSyncer interface {
	SyncJobStatuses(ctx context.Context) (int, error)
}

// BatchJobTaskHandler handles batch job run and sync tasks.
type BatchJobTaskHandler struct {
	runner JobRunner
	syncer StatusSyncer
}

func NewBatchJobTaskHandler(runner JobRunner, syncer StatusSyncer) *BatchJobTaskHandler {
	return &BatchJobTaskHandler{runner: runner, syncer: syncer}
}

// Register mounts the handlers on mux.
func (h *BatchJobTaskHandler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(queue.TypeBatchJobRun, h.HandleRun)
	mux.HandleFunc(queue.TypeBatchJobSync, h.HandleSync)
}

func (h *BatchJobTaskHandler) HandleRun(ctx context.Context, t *asynq.Task) error {
	var p queue.BatchJobPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		logger.L().Error("invalid batch job task payload", zap.Error(err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if p.Name == "" {
		logger.L().Error("batch job task without name")
		return fmt.Errorf("%w: missing job name", asynq.SkipRetry)
	}

	logger.L().Info("handling batch job task", zap.String("job", p.Name), zap.String("type", p.Type))
	if err := h.runner.Run(ctx, p.Name); err != nil {
		if appErr.IsCode(err, appErr.CodeConflict) || appErr.IsCode(err, appErr.CodeNotFound) {
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		return err
	}
	return nil
}

func (h *BatchJobTaskHandler) HandleSync(ctx context.Context, _ *asynq.Task) error {
	changed, err := h.syncer.SyncJobStatuses(ctx)
	if err != nil {
		logger.L().Error("batch job sync failed", zap.Error(err))
		return err
	}
	logger.L().Debug("batch job sync done", zap.Int("changed", changed))
	return nil
}
