package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// JobStatus is the lifecycle state of a batch job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusActive    JobStatus = "active"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusAborted   JobStatus = "aborted"
)

// jobTransitions is the complete table of legal status changes.
// Terminal states have no entry.
var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusPending: {JobStatusActive, JobStatusFailed, JobStatusAborted},
	JobStatusActive:  {JobStatusSucceeded, JobStatusFailed, JobStatusAborted},
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusActive, JobStatusSucceeded, JobStatusFailed, JobStatusAborted:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s JobStatus) IsTerminal() bool {
	return s.Valid() && len(jobTransitions[s]) == 0
}

// CanTransitionTo reports whether s -> next is a legal transition.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	return slices.Contains(jobTransitions[s], next)
}

// Job types accepted by the tracker.
const (
	JobTypeCSVIngestion    = "csv_ingestion"
	JobTypeReferenceRepair = "reference_repair"
)

// JobTypes lists every job type that has an executor.
func JobTypes() []string {
	return []string{JobTypeCSVIngestion, JobTypeReferenceRepair}
}

// IsJobType reports whether t is a known job type.
func IsJobType(t string) bool {
	return slices.Contains(JobTypes(), t)
}

// BatchJob tracks one out-of-process run. Name is also the cluster job name
// and the worker's --container_name. ActiveKey mirrors IdempotencyKey while
// the job is open and is NULL once it is terminal, so the unique index
// admits one open job per key.
type BatchJob struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"uuid"`
	Name             string         `gorm:"type:varchar(63);uniqueIndex;not null" json:"name"`
	Type             string         `gorm:"type:varchar(64);index;not null" json:"type"`
	Status           JobStatus      `gorm:"type:varchar(16);index;not null" json:"status"`
	IdempotencyKey   string         `gorm:"type:varchar(64);index;not null" json:"-"`
	ActiveKey        *string        `gorm:"type:varchar(64);uniqueIndex" json:"-"`
	InputData        string         `gorm:"type:text" json:"input_data"`
	GeneratedItemID  *string        `gorm:"type:text" json:"generated_item_id,omitempty"`
	Errors           datatypes.JSON `gorm:"type:jsonb" json:"errors,omitempty"`
	CreatedTime      time.Time      `gorm:"autoCreateTime" json:"created_time"`
	LastModifiedTime time.Time      `gorm:"autoUpdateTime" json:"last_modified_time"`
}

// BeforeCreate assigns the uuid on first save.
func (j *BatchJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Status == "" {
		j.Status = JobStatusPending
	}
	if j.IdempotencyKey != "" && !j.Status.IsTerminal() {
		key := j.IdempotencyKey
		j.ActiveKey = &key
	}
	return nil
}

// JobError is the structured form stored in BatchJob.Errors.
type JobError struct {
	Message string         `json:"message"`
	Stage   string         `json:"stage,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}
