package services

import (
	"context"

	"github.com/learnhub/engine/internal/models"
	"github.com/learnhub/engine/internal/repository"
	appErr "github.com/learnhub/engine/pkg/errors"
	"github.com/learnhub/engine/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type LearnerProfileService interface {
	CreateProfile(ctx context.Context, input *LearnerProfileInput) (*models.LearnerProfile, error)
	GetProfile(ctx context.Context, learnerID string) (*models.LearnerProfile, error)
	UpdateProfile(ctx context.Context, learnerID string, input *LearnerProfileInput) (*models.LearnerProfile, error)
}

// LearnerProfileInput replaces achievements and/or progress when non-nil.
type LearnerProfileInput struct {
	LearnerID    string
	Achievements []string
	Progress     map[string]float64
}

type learnerProfileService struct {
	repo repository.LearnerProfileRepository
}

func NewLearnerProfileService(repo repository.LearnerProfileRepository) LearnerProfileService {
	return &learnerProfileService{repo: repo}
}

var _ LearnerProfileService = (*learnerProfileService)(nil)

func (s *learnerProfileService) CreateProfile(ctx context.Context, input *LearnerProfileInput) (*models.LearnerProfile, error) {
	if err := checkProgress(input.Progress); err != nil {
		return nil, err
	}
	p := &models.LearnerProfile{LearnerID: input.LearnerID}
	if input.Achievements != nil {
		p.Achievements = datatypes.NewJSONType(input.Achievements)
	}
	if input.Progress != nil {
		p.Progress = datatypes.NewJSONType(input.Progress)
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	logger.L().Info("learner profile created", zap.String("learner_id", p.LearnerID))
	return p, nil
}

func (s *learnerProfileService) GetProfile(ctx context.Context, learnerID string) (*models.LearnerProfile, error) {
	return s.repo.GetByLearnerID(ctx, learnerID)
}

func (s *learnerProfileService) UpdateProfile(ctx context.Context, learnerID string, input *LearnerProfileInput) (*models.LearnerProfile, error) {
	if err := checkProgress(input.Progress); err != nil {
		return nil, err
	}
	p, err := s.repo.GetByLearnerID(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	if input.Achievements != nil {
		p.Achievements = datatypes.NewJSONType(input.Achievements)
	}
	if input.Progress != nil {
		p.Progress = datatypes.NewJSONType(input.Progress)
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func checkProgress(progress map[string]float64) error {
	for id, v := range progress {
		if v < 0 || v > 100 {
			return appErr.Newf(appErr.CodeInvalid, "progress for %s must be between 0 and 100", id).WithMeta("field", "progress")
		}
	}
	return nil
}
