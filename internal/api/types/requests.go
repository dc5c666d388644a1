package types

import (
	"encoding/json"

	"github.com/learnhub/engine/internal/models"
)

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type NodeCreateRequest struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description"`
	Metadata    map[string]any  `json:"metadata"`
	ParentNodes models.NodeRefs `json:"parent_nodes" validate:"noderefs"`
	ChildNodes  models.NodeRefs `json:"child_nodes" validate:"noderefs"`
}

// NodeUpdateRequest leaves absent fields untouched. Version, when sent,
// must equal the stored version.
type NodeUpdateRequest struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string          `json:"description"`
	Metadata    map[string]any   `json:"metadata"`
	ParentNodes *models.NodeRefs `json:"parent_nodes" validate:"omitempty,noderefs"`
	ChildNodes  *models.NodeRefs `json:"child_nodes" validate:"omitempty,noderefs"`
	IsArchived  *bool            `json:"is_archived"`
	Version     *int             `json:"version" validate:"omitempty,gte=1"`
}

type LearnerProfileCreateRequest struct {
	LearnerID    string             `json:"learner_id" validate:"required,max=128"`
	Achievements []string           `json:"achievements" validate:"omitempty,dive,uuid"`
	Progress     map[string]float64 `json:"progress" validate:"omitempty,dive,keys,uuid,endkeys,gte=0,lte=100"`
}

type LearnerProfileUpdateRequest struct {
	Achievements []string           `json:"achievements" validate:"omitempty,dive,uuid"`
	Progress     map[string]float64 `json:"progress" validate:"omitempty,dive,keys,uuid,endkeys,gte=0,lte=100"`
}

// JobCreateRequest submits a batch job. Input is handed to the executor
// verbatim; Env is exported to the job's container and may not set the
// service's own configuration keys.
type JobCreateRequest struct {
	Input json.RawMessage   `json:"input" validate:"required"`
	Env   map[string]string `json:"env" validate:"omitempty,dive,keys,required,jobenv,endkeys"`
}
