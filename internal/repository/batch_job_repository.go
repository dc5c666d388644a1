package repository

import (
	"context"
	"errors"
	"time"

	"github.com/learnhub/engine/internal/models"
	appErr "github.com/learnhub/engine/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// JobUpdate carries optional fields written alongside a status transition.
type JobUpdate struct {
	GeneratedItemID *string
	Errors          datatypes.JSON
}

type BatchJobRepository interface {
	BaseRepository[models.BatchJob]
	GetByName(ctx context.Context, name string) (*models.BatchJob, error)
	GetByTypeAndName(ctx context.Context, jobType, name string) (*models.BatchJob, error)
	ListByType(ctx context.Context, jobType string, status models.JobStatus) ([]models.BatchJob, error)
	ListByStatus(ctx context.Context, status models.JobStatus) ([]models.BatchJob, error)
	// FindOpenByKey returns the non-terminal job with the idempotency key, or nil.
	FindOpenByKey(ctx context.Context, jobType, key string) (*models.BatchJob, error)
	// Transition moves the named job to status `to` if the state machine allows it.
	Transition(ctx context.Context, name string, to models.JobStatus, upd JobUpdate) (*models.BatchJob, error)
	DeleteByTypeAndName(ctx context.Context, jobType, name string) error
}

type batchJobRepository struct {
	BaseRepository[models.BatchJob]
	db *gorm.DB
}

func NewBatchJobRepository(db *gorm.DB) BatchJobRepository {
	return &batchJobRepository{BaseRepository: NewBaseRepository[models.BatchJob](db, "batch job"), db: db}
}

func (r *batchJobRepository) GetByName(ctx context.Context, name string) (*models.BatchJob, error) {
	var j models.BatchJob
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&j).Error; err != nil {
		return nil, jobLookupErr(err, name)
	}
	return &j, nil
}

func (r *batchJobRepository) GetByTypeAndName(ctx context.Context, jobType, name string) (*models.BatchJob, error) {
	var j models.BatchJob
	if err := r.db.WithContext(ctx).Where("type = ? AND name = ?", jobType, name).First(&j).Error; err != nil {
		return nil, jobLookupErr(err, name)
	}
	return &j, nil
}

func (r *batchJobRepository) ListByType(ctx context.Context, jobType string, status models.JobStatus) ([]models.BatchJob, error) {
	q := r.db.WithContext(ctx).Where("type = ?", jobType)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []models.BatchJob
	if err := q.Order("created_time DESC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list batch jobs failed")
	}
	return out, nil
}

func (r *batchJobRepository) ListByStatus(ctx context.Context, status models.JobStatus) ([]models.BatchJob, error) {
	var out []models.BatchJob
	if err := r.db.WithContext(ctx).Where("status = ?", status).Order("created_time ASC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list batch jobs failed")
	}
	return out, nil
}

func (r *batchJobRepository) FindOpenByKey(ctx context.Context, jobType, key string) (*models.BatchJob, error) {
	var j models.BatchJob
	err := r.db.WithContext(ctx).
		Where("type = ? AND idempotency_key = ? AND status IN ?", jobType, key,
			[]models.JobStatus{models.JobStatusPending, models.JobStatusActive}).
		Order("created_time DESC").
		First(&j).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "find open batch job failed")
	}
	return &j, nil
}

// Transition writes are compare-and-swap on the previous status. Writing the
// status a terminal job already has is a no-op.
func (r *batchJobRepository) Transition(ctx context.Context, name string, to models.JobStatus, upd JobUpdate) (*models.BatchJob, error) {
	var out models.BatchJob
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("name = ?", name).First(&out).Error; err != nil {
			return jobLookupErr(err, name)
		}
		from := out.Status
		if from == to && to.IsTerminal() {
			return nil
		}
		if !from.CanTransitionTo(to) {
			return appErr.Newf(appErr.CodeConflict, "batch job %s cannot move from %s to %s", name, from, to).
				WithMeta("status", string(from))
		}

		now := time.Now().UTC()
		updates := map[string]any{"status": to, "last_modified_time": now}
		if to.IsTerminal() {
			updates["active_key"] = nil
		}
		if upd.GeneratedItemID != nil {
			updates["generated_item_id"] = *upd.GeneratedItemID
		}
		if len(upd.Errors) > 0 {
			updates["errors"] = upd.Errors
		}
		res := tx.Model(&models.BatchJob{}).Where("id = ? AND status = ?", out.ID, from).Updates(updates)
		if res.Error != nil {
			return appErr.Wrap(res.Error, appErr.CodeInternal, "update batch job status failed")
		}
		if res.RowsAffected == 0 {
			return appErr.Newf(appErr.CodeConflict, "batch job %s status changed concurrently", name)
		}

		out.Status = to
		out.LastModifiedTime = now
		if to.IsTerminal() {
			out.ActiveKey = nil
		}
		if upd.GeneratedItemID != nil {
			out.GeneratedItemID = upd.GeneratedItemID
		}
		if len(upd.Errors) > 0 {
			out.Errors = upd.Errors
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *batchJobRepository) DeleteByTypeAndName(ctx context.Context, jobType, name string) error {
	res := r.db.WithContext(ctx).Where("type = ? AND name = ?", jobType, name).Delete(&models.BatchJob{})
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "delete batch job failed")
	}
	if res.RowsAffected == 0 {
		return appErr.Newf(appErr.CodeNotFound, "batch job %s not found", name)
	}
	return nil
}

func jobLookupErr(err error, name string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return appErr.Newf(appErr.CodeNotFound, "batch job %s not found", name)
	}
	return appErr.Wrap(err, appErr.CodeInternal, "get batch job failed")
}
