package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/learnhub/engine/internal/queue"
	"go.uber.org/zap"
)

// QueueRunner runs batch jobs as asynq tasks in the worker process. The
// task id is the job name, so duplicates are rejected by the broker.
type QueueRunner struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	retention time.Duration
	log       *zap.Logger
}

func NewQueueRunner(opt asynq.RedisClientOpt, retention time.Duration, log *zap.Logger) *QueueRunner {
	if log == nil {
		log = zap.NewNop()
	}
	return &QueueRunner{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		retention: retention,
		log:       log,
	}
}

var _ Runner = (*QueueRunner)(nil)

func (r *QueueRunner) Create(ctx context.Context, spec JobSpec) error {
	payload, err := json.Marshal(queue.BatchJobPayload{Name: spec.Name, Type: spec.Type, Env: spec.Env})
	if err != nil {
		return fmt.Errorf("marshal batch job payload: %w", err)
	}
	task := asynq.NewTask(queue.TypeBatchJobRun, payload)
	info, err := r.client.EnqueueContext(ctx, task,
		asynq.TaskID(spec.Name),
		asynq.Queue(queue.QueueBatch),
		asynq.MaxRetry(0),
		asynq.Retention(r.retention),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, spec.Name)
	}
	if err != nil {
		return fmt.Errorf("enqueue batch job %s: %w", spec.Name, err)
	}
	r.log.Info("batch job enqueued", zap.String("name", spec.Name), zap.String("queue", info.Queue))
	return nil
}

// Delete cancels a running task or removes a waiting one.
func (r *QueueRunner) Delete(ctx context.Context, name string) error {
	info, err := r.inspector.GetTaskInfo(queue.QueueBatch, name)
	if isTaskMissing(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("inspect batch job %s: %w", name, err)
	}
	if info.State == asynq.TaskStateActive {
		if err := r.inspector.CancelProcessing(name); err != nil {
			return fmt.Errorf("cancel batch job %s: %w", name, err)
		}
		return nil
	}
	if err := r.inspector.DeleteTask(queue.QueueBatch, name); err != nil {
		if isTaskMissing(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("delete batch job %s: %w", name, err)
	}
	return nil
}

func (r *QueueRunner) State(ctx context.Context, name string) (RunState, error) {
	info, err := r.inspector.GetTaskInfo(queue.QueueBatch, name)
	if isTaskMissing(err) {
		return RunMissing, nil
	}
	if err != nil {
		return "", fmt.Errorf("inspect batch job %s: %w", name, err)
	}
	return taskState(info.State), nil
}

// Close releases the broker connections.
func (r *QueueRunner) Close() error {
	return errors.Join(r.client.Close(), r.inspector.Close())
}

func taskState(s asynq.TaskState) RunState {
	switch s {
	case asynq.TaskStateActive:
		return RunRunning
	case asynq.TaskStateCompleted:
		return RunSucceeded
	case asynq.TaskStateArchived:
		return RunFailed
	default:
		return RunPending
	}
}

func isTaskMissing(err error) bool {
	return errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound)
}
