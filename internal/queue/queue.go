// Package queue names the asynq task types and queues shared by the API,
// the worker and the job runners.
package queue

import "github.com/hibiken/asynq"

// Task types
const (
	TypeBatchJobRun  = "batchjob:run"
	TypeBatchJobSync = "batchjob:sync"
)

// Queues
const (
	QueueBatch       = "batch"
	QueueMaintenance = "maintenance"
)

// Queues returns the worker's queue priorities.
func Queues() map[string]int {
	return map[string]int{
		QueueBatch:       6,
		QueueMaintenance: 1,
	}
}

// BatchJobPayload is the payload of TypeBatchJobRun tasks.
type BatchJobPayload struct {
	Name string            `json:"name"`
	Type string            `json:"type"`
	Env  map[string]string `json:"env,omitempty"`
}

// NewSyncTask builds the periodic status sync task.
func NewSyncTask() *asynq.Task {
	return asynq.NewTask(TypeBatchJobSync, nil, asynq.Queue(QueueMaintenance), asynq.MaxRetry(0))
}
