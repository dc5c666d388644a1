package repository

import (
	"context"
	"errors"

	"github.com/learnhub/engine/internal/models"
	appErr "github.com/learnhub/engine/pkg/errors"
	"gorm.io/gorm"
)

type LearnerProfileRepository interface {
	BaseRepository[models.LearnerProfile]
	GetByLearnerID(ctx context.Context, learnerID string) (*models.LearnerProfile, error)
}

type learnerProfileRepository struct {
	BaseRepository[models.LearnerProfile]
	db *gorm.DB
}

func NewLearnerProfileRepository(db *gorm.DB) LearnerProfileRepository {
	return &learnerProfileRepository{BaseRepository: NewBaseRepository[models.LearnerProfile](db, "learner profile"), db: db}
}

func (r *learnerProfileRepository) GetByLearnerID(ctx context.Context, learnerID string) (*models.LearnerProfile, error) {
	var p models.LearnerProfile
	if err := r.db.WithContext(ctx).Where("learner_id = ?", learnerID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.Newf(appErr.CodeNotFound, "learner profile for %s not found", learnerID)
		}
		return nil, appErr.Wrap(err, appErr.CodeInternal, "get learner profile failed")
	}
	return &p, nil
}
