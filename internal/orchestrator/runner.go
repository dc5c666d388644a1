// Package orchestrator launches batch jobs on an execution backend.
package orchestrator

import (
	"context"
	"errors"

	"github.com/learnhub/engine/pkg/config"
)

// EnvJobType carries the job type into the job's environment.
const EnvJobType = "JOB_TYPE"

// Common errors
var (
	ErrAlreadyExists = errors.New("job already exists")
	ErrNotFound      = errors.New("job not found")
)

// RunState is the backend's view of a job.
type RunState string

const (
	RunPending   RunState = "pending"
	RunRunning   RunState = "running"
	RunSucceeded RunState = "succeeded"
	RunFailed    RunState = "failed"
	// RunMissing means the backend has no record of the job.
	RunMissing RunState = "missing"
)

// ReservedEnv reports whether a caller supplied env var would shadow
// service configuration inside the job.
func ReservedEnv(name string) bool {
	return name == EnvJobType || config.IsKey(name)
}

// Finished reports whether the backend is done with the job.
func (s RunState) Finished() bool {
	return s == RunSucceeded || s == RunFailed || s == RunMissing
}

// JobSpec describes one run. The worker loads its input from the tracking
// document, so Input is informational for backends that want it.
type JobSpec struct {
	Name  string
	Type  string
	Input []byte
	Env   map[string]string
}

// Runner is an execution backend for batch jobs.
type Runner interface {
	// Create starts the job. It returns ErrAlreadyExists when a job with
	// the same name is already known to the backend.
	Create(ctx context.Context, spec JobSpec) error

	// Delete stops and removes the job. It returns ErrNotFound when the
	// backend has no such job.
	Delete(ctx context.Context, name string) error

	// State reports where the job is. Unknown jobs report RunMissing.
	State(ctx context.Context, name string) (RunState, error)
}
