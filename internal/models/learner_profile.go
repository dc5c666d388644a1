package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LearnerProfile records what a learner has achieved. Achievements are node
// uuids the learner completed; Progress holds partial completion (0-100)
// for nodes not yet achieved.
type LearnerProfile struct {
	ID               uuid.UUID                              `gorm:"type:uuid;primaryKey" json:"uuid"`
	LearnerID        string                                 `gorm:"type:varchar(128);uniqueIndex;not null" json:"learner_id"`
	Achievements     datatypes.JSONType[[]string]           `gorm:"type:jsonb;not null" json:"achievements"`
	Progress         datatypes.JSONType[map[string]float64] `gorm:"type:jsonb;not null" json:"progress"`
	CreatedTime      time.Time                              `gorm:"autoCreateTime" json:"created_time"`
	LastModifiedTime time.Time                              `gorm:"autoUpdateTime" json:"last_modified_time"`
}

// BeforeCreate assigns the uuid on first save.
func (p *LearnerProfile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Achievements.Data() == nil {
		p.Achievements = datatypes.NewJSONType([]string{})
	}
	if p.Progress.Data() == nil {
		p.Progress = datatypes.NewJSONType(map[string]float64{})
	}
	return nil
}

// Achieved reports whether the node is in the achievement list.
func (p *LearnerProfile) Achieved(nodeID string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.Achievements.Data(), nodeID)
}

// PartialProgress returns the recorded progress for nodeID clamped to [0, 100].
func (p *LearnerProfile) PartialProgress(nodeID string) float64 {
	if p == nil {
		return 0
	}
	v := p.Progress.Data()[nodeID]
	return max(0, min(100, v))
}
