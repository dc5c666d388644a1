package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/learnhub/engine/internal/metrics"
	"github.com/learnhub/engine/internal/models"
	"github.com/learnhub/engine/internal/orchestrator"
	"github.com/learnhub/engine/internal/repository"
	appErr "github.com/learnhub/engine/pkg/errors"
	"github.com/learnhub/engine/pkg/logger"
	"github.com/learnhub/engine/pkg/utils"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	nameAlphabet   = "abcdefghijklmnopqrstuvwxyz0123456789"
	nameSuffixLen  = 6
	defaultSyncAge = time.Minute
)

// BatchJobService tracks batch jobs and drives their runner.
type BatchJobService interface {
	InitiateBatchJob(ctx context.Context, jobType string, input json.RawMessage, env map[string]string) (*models.BatchJob, error)
	GetJobStatus(ctx context.Context, jobType, name string) (*models.BatchJob, error)
	GetJob(ctx context.Context, name string) (*models.BatchJob, error)
	GetAllJobs(ctx context.Context, jobType string, status models.JobStatus) ([]models.BatchJob, error)
	DeleteBatchJob(ctx context.Context, jobType, name string) error
	RemoveJobAndUpdateStatus(ctx context.Context, jobType, name string) (*models.BatchJob, error)
	UpdateJobStatus(ctx context.Context, name string, status models.JobStatus, result *JobResult) (*models.BatchJob, error)
	SyncJobStatuses(ctx context.Context) (int, error)
}

// JobResult is what a worker reports alongside a status change.
type JobResult struct {
	GeneratedItemID *string
	Errors          []models.JobError
}

type batchJobService struct {
	repo    repository.BatchJobRepository
	runner  orchestrator.Runner
	metrics *metrics.Collector
	now     func() time.Time
	syncAge time.Duration
}

func NewBatchJobService(repo repository.BatchJobRepository, runner orchestrator.Runner, m *metrics.Collector) BatchJobService {
	return &batchJobService{
		repo:    repo,
		runner:  runner,
		metrics: m,
		now:     time.Now,
		syncAge: defaultSyncAge,
	}
}

var _ BatchJobService = (*batchJobService)(nil)

// InitiateBatchJob records a pending job and asks the runner to start it.
// A second submission of the same type and input while the first is still
// pending or active is a conflict.
func (s *batchJobService) InitiateBatchJob(ctx context.Context, jobType string, input json.RawMessage, env map[string]string) (*models.BatchJob, error) {
	if !models.IsJobType(jobType) {
		return nil, unknownJobType(jobType)
	}
	if err := checkJobEnv(env); err != nil {
		return nil, err
	}
	canonical, err := utils.CanonicalJSON(input)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInvalid, "input must be valid json")
	}
	key := utils.HexSHA256([]byte(jobType), canonical)

	open, err := s.repo.FindOpenByKey(ctx, jobType, key)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, duplicateJob(open.Name)
	}

	name, err := jobName(jobType, key)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "generate job name failed")
	}
	job := &models.BatchJob{
		Name:           name,
		Type:           jobType,
		IdempotencyKey: key,
		InputData:      string(canonical),
	}
	if err := s.repo.Create(ctx, job); err != nil {
		if appErr.IsCode(err, appErr.CodeAlreadyExists) {
			// lost the race against an identical submission
			return nil, duplicateJob("")
		}
		return nil, err
	}
	s.metrics.RecordJobTransition(jobType, string(models.JobStatusPending))

	log := logger.L().With(zap.String("job", name), zap.String("type", jobType))
	err = s.runner.Create(ctx, orchestrator.JobSpec{Name: name, Type: jobType, Input: canonical, Env: env})
	if err != nil {
		s.metrics.RecordRunnerError("create")
		log.Error("runner create failed", zap.Error(err))
		s.markFailed(ctx, name, "create", err)
		if errors.Is(err, orchestrator.ErrAlreadyExists) {
			return nil, appErr.Wrap(err, appErr.CodeConflict, "batch job already exists on the runner").WithMeta("name", name)
		}
		return nil, appErr.Wrap(err, appErr.CodeInternal, "failed to start batch job").WithMeta("name", name)
	}

	job, err = s.activate(ctx, name)
	if err != nil {
		return nil, err
	}
	log.Info("batch job initiated", zap.String("status", string(job.Status)))
	return job, nil
}

// activate moves a freshly started job to active. A worker may already have
// picked the job up, or even finished it, by the time the runner returns; the
// stored document is returned as is in that case.
func (s *batchJobService) activate(ctx context.Context, name string) (*models.BatchJob, error) {
	job, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusPending {
		return job, nil
	}
	activated, err := s.transition(ctx, name, models.JobStatusActive, repository.JobUpdate{})
	if err == nil {
		return activated, nil
	}
	if !appErr.IsCode(err, appErr.CodeConflict) {
		return nil, err
	}
	job, gerr := s.repo.GetByName(ctx, name)
	if gerr != nil || job.Status == models.JobStatusPending {
		return nil, err
	}
	return job, nil
}

func (s *batchJobService) GetJobStatus(ctx context.Context, jobType, name string) (*models.BatchJob, error) {
	if !models.IsJobType(jobType) {
		return nil, unknownJobType(jobType)
	}
	return s.repo.GetByTypeAndName(ctx, jobType, name)
}

func (s *batchJobService) GetJob(ctx context.Context, name string) (*models.BatchJob, error) {
	return s.repo.GetByName(ctx, name)
}

func (s *batchJobService) GetAllJobs(ctx context.Context, jobType string, status models.JobStatus) ([]models.BatchJob, error) {
	if !models.IsJobType(jobType) {
		return nil, unknownJobType(jobType)
	}
	if status != "" && !status.Valid() {
		return nil, appErr.Newf(appErr.CodeInvalid, "unknown status %q", status).WithMeta("field", "status")
	}
	return s.repo.ListByType(ctx, jobType, status)
}

func (s *batchJobService) DeleteBatchJob(ctx context.Context, jobType, name string) error {
	if !models.IsJobType(jobType) {
		return unknownJobType(jobType)
	}
	if err := s.repo.DeleteByTypeAndName(ctx, jobType, name); err != nil {
		return err
	}
	logger.L().Info("batch job deleted", zap.String("job", name), zap.String("type", jobType))
	return nil
}

// RemoveJobAndUpdateStatus deletes the runner's job and aborts the tracking
// document. The runner delete is best effort: its failure is logged and the
// abort still happens. Jobs already terminal are returned unchanged.
func (s *batchJobService) RemoveJobAndUpdateStatus(ctx context.Context, jobType, name string) (*models.BatchJob, error) {
	job, err := s.GetJobStatus(ctx, jobType, name)
	if err != nil {
		return nil, err
	}
	log := logger.L().With(zap.String("job", name), zap.String("type", jobType))

	if err := s.runner.Delete(ctx, name); err != nil && !errors.Is(err, orchestrator.ErrNotFound) {
		s.metrics.RecordRunnerError("delete")
		log.Warn("runner delete failed, aborting anyway", zap.Error(err))
	}

	if job.Status.IsTerminal() {
		return job, nil
	}
	job, err = s.transition(ctx, name, models.JobStatusAborted, repository.JobUpdate{})
	if err != nil {
		return nil, err
	}
	log.Info("batch job aborted")
	return job, nil
}

func (s *batchJobService) UpdateJobStatus(ctx context.Context, name string, status models.JobStatus, result *JobResult) (*models.BatchJob, error) {
	if !status.Valid() {
		return nil, appErr.Newf(appErr.CodeInvalid, "unknown status %q", status)
	}
	upd := repository.JobUpdate{}
	if result != nil {
		upd.GeneratedItemID = result.GeneratedItemID
		if len(result.Errors) > 0 {
			b, err := json.Marshal(result.Errors)
			if err != nil {
				return nil, appErr.Wrap(err, appErr.CodeInternal, "marshal job errors failed")
			}
			upd.Errors = datatypes.JSON(b)
		}
	}
	return s.transition(ctx, name, status, upd)
}

// SyncJobStatuses reconciles open jobs against the runner. A job the runner
// has finished with, or no longer knows, but whose document is still open
// after the grace period never reported back and is marked failed. It
// returns the number of jobs changed.
func (s *batchJobService) SyncJobStatuses(ctx context.Context) (int, error) {
	var open []models.BatchJob
	for _, st := range []models.JobStatus{models.JobStatusPending, models.JobStatusActive} {
		jobs, err := s.repo.ListByStatus(ctx, st)
		if err != nil {
			return 0, err
		}
		open = append(open, jobs...)
	}

	changed, active := 0, 0
	for _, job := range open {
		if job.Status == models.JobStatusActive {
			active++
		}
		if s.now().Sub(job.LastModifiedTime) < s.syncAge {
			continue
		}
		state, err := s.runner.State(ctx, job.Name)
		if err != nil {
			s.metrics.RecordRunnerError("state")
			logger.L().Warn("runner state failed", zap.String("job", job.Name), zap.Error(err))
			continue
		}
		if !state.Finished() {
			continue
		}
		_, err = s.UpdateJobStatus(ctx, job.Name, models.JobStatusFailed, &JobResult{Errors: []models.JobError{{
			Message: "job ended without reporting a result",
			Stage:   "sync",
			Details: map[string]any{"runner_state": string(state)},
		}}})
		if err != nil {
			if appErr.IsCode(err, appErr.CodeConflict) {
				continue
			}
			return changed, err
		}
		changed++
		if job.Status == models.JobStatusActive {
			active--
		}
	}
	s.metrics.SetActiveJobs(active)
	if changed > 0 {
		logger.L().Info("batch job statuses synced", zap.Int("changed", changed))
	}
	return changed, nil
}

func (s *batchJobService) transition(ctx context.Context, name string, to models.JobStatus, upd repository.JobUpdate) (*models.BatchJob, error) {
	job, err := s.repo.Transition(ctx, name, to, upd)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordJobTransition(job.Type, string(to))
	if to.IsTerminal() {
		s.metrics.RecordJobDuration(job.Type, string(to), s.now().Sub(job.CreatedTime))
	}
	return job, nil
}

func (s *batchJobService) markFailed(ctx context.Context, name, stage string, cause error) {
	_, err := s.UpdateJobStatus(ctx, name, models.JobStatusFailed, &JobResult{Errors: []models.JobError{{
		Message: cause.Error(),
		Stage:   stage,
	}}})
	if err != nil {
		logger.L().Error("mark batch job failed", zap.String("job", name), zap.Error(err))
	}
}

// jobName builds a DNS-1123 label: the type, a key prefix that groups
// resubmissions, and a random suffix.
func jobName(jobType, key string) (string, error) {
	suffix, err := gonanoid.Generate(nameAlphabet, nameSuffixLen)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(jobType, "_", "-") + "-" + key[:8] + "-" + suffix, nil
}

// checkJobEnv rejects env vars that would shadow service configuration
// inside the job.
func checkJobEnv(env map[string]string) error {
	var e *appErr.AppError
	for k := range env {
		if !orchestrator.ReservedEnv(k) {
			continue
		}
		if e == nil {
			e = appErr.New(appErr.CodeInvalid, "env sets reserved configuration keys")
		}
		e.WithMeta("env."+k, "reserved")
	}
	if e == nil {
		return nil
	}
	return e
}

func unknownJobType(jobType string) error {
	return appErr.Newf(appErr.CodeNotFound, "unknown job type %q", jobType).WithMeta("type", jobType)
}

func duplicateJob(name string) error {
	e := appErr.New(appErr.CodeConflict, "an identical batch job is already pending or active")
	if name != "" {
		e = e.WithMeta("name", name)
	}
	return e
}
