// Package executor runs a tracked batch job to completion inside the worker
// container (or the asynq worker) and records the outcome on its document.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/learnhub/engine/internal/graph"
	"github.com/learnhub/engine/internal/models"
	"github.com/learnhub/engine/internal/repository"
	"github.com/learnhub/engine/internal/services"
	appErr "github.com/learnhub/engine/pkg/errors"
	"go.uber.org/zap"
)

// Handler performs one job type. It returns the generated item id on success.
type Handler interface {
	Run(ctx context.Context, job *models.BatchJob) (string, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job *models.BatchJob) (string, error)

func (f HandlerFunc) Run(ctx context.Context, job *models.BatchJob) (string, error) {
	return f(ctx, job)
}

// Executor dispatches jobs to the handler registered for their type.
type Executor struct {
	jobs     services.BatchJobService
	handlers map[string]Handler
	log      *zap.Logger
}

func New(jobs services.BatchJobService, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{jobs: jobs, handlers: map[string]Handler{}, log: log}
}

// NewDefault returns an executor with every built-in job type registered.
func NewDefault(jobs services.BatchJobService, nodes services.NodeService, nodeRepo repository.NodeRepository, gm *graph.Manager, log *zap.Logger) *Executor {
	return New(jobs, log).
		Register(models.JobTypeCSVIngestion, NewCSVIngestion(nodes)).
		Register(models.JobTypeReferenceRepair, NewReferenceRepair(nodeRepo, gm, log))
}

// Register binds a handler to a job type, replacing any previous one.
func (e *Executor) Register(jobType string, h Handler) *Executor {
	e.handlers[jobType] = h
	return e
}

// Run executes the named job. The job moves to active if still pending,
// then to succeeded or failed. If the job is aborted while running the
// abort stands; the handler's late result is discarded.
func (e *Executor) Run(ctx context.Context, name string) error {
	job, err := e.jobs.GetJob(ctx, name)
	if err != nil {
		return err
	}
	log := e.log.With(zap.String("job", name), zap.String("type", job.Type))

	if job.Status.IsTerminal() {
		log.Warn("batch job already finished", zap.String("status", string(job.Status)))
		return appErr.Newf(appErr.CodeConflict, "batch job %s is already %s", name, job.Status)
	}
	if job.Status == models.JobStatusPending {
		if job, err = e.start(ctx, name); err != nil {
			return err
		}
	}

	// Status writes must land even if ctx is cancelled mid-run.
	wctx := context.WithoutCancel(ctx)

	h, ok := e.handlers[job.Type]
	if !ok {
		err := fmt.Errorf("no handler registered for job type %q", job.Type)
		e.fail(wctx, log, name, "dispatch", err)
		return err
	}

	log.Info("batch job started")
	start := time.Now()
	itemID, runErr := h.Run(ctx, job)
	elapsed := time.Since(start)

	if runErr != nil {
		if ctx.Err() != nil {
			if current, err := e.jobs.GetJob(wctx, name); err == nil && current.Status == models.JobStatusAborted {
				log.Info("batch job stopped after abort", zap.Duration("elapsed", elapsed))
				return runErr
			}
		}
		log.Error("batch job failed", zap.Duration("elapsed", elapsed), zap.Error(runErr))
		e.fail(wctx, log, name, "run", runErr)
		return runErr
	}

	var result *services.JobResult
	if itemID != "" {
		result = &services.JobResult{GeneratedItemID: &itemID}
	}
	if _, err := e.jobs.UpdateJobStatus(wctx, name, models.JobStatusSucceeded, result); err != nil {
		log.Warn("batch job finished but status not recorded", zap.Error(err))
		return err
	}
	log.Info("batch job succeeded", zap.Duration("elapsed", elapsed), zap.String("generated_item_id", itemID))
	return nil
}

// start moves a pending job to active. The API activates the job once the
// runner accepts it, so losing that race to it is fine as long as the job
// is active now.
func (e *Executor) start(ctx context.Context, name string) (*models.BatchJob, error) {
	job, err := e.jobs.UpdateJobStatus(ctx, name, models.JobStatusActive, nil)
	if err == nil {
		return job, nil
	}
	if !appErr.IsCode(err, appErr.CodeConflict) {
		return nil, err
	}
	current, gerr := e.jobs.GetJob(ctx, name)
	if gerr != nil || current.Status != models.JobStatusActive {
		return nil, err
	}
	return current, nil
}

func (e *Executor) fail(ctx context.Context, log *zap.Logger, name, stage string, cause error) {
	jobErr := models.JobError{Message: cause.Error(), Stage: stage}
	var ae *appErr.AppError
	if errors.As(cause, &ae) {
		jobErr.Message = ae.Message
		jobErr.Details = ae.Meta
	}
	_, err := e.jobs.UpdateJobStatus(ctx, name, models.JobStatusFailed, &services.JobResult{Errors: []models.JobError{jobErr}})
	if err != nil {
		log.Warn("record batch job failure", zap.Error(err))
	}
}
