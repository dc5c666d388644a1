package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/learnhub/engine/internal/queue"
	appErr "github.com/learnhub/engine/pkg/errors"
	"github.com/learnhub/engine/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests (required by tasks)
	_, err := logger.Init("info", "json")
	if err != nil {
		panic("failed to init logger: " + err.Error())
	}
	os.Exit(m.Run())
}

// Mock implementations
type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

type mockSyncer struct {
	mock.Mock
}

func (m *mockSyncer) SyncJobStatuses(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func runTask(t *testing.T, name string) *asynq.Task {
	t.Helper()
	b, err := json.Marshal(queue.BatchJobPayload{Name: name, Type: "csv_ingestion"})
	require.NoError(t, err)
	return asynq.NewTask(queue.TypeBatchJobRun, b)
}

func TestHandleRun_Success(t *testing.T) {
	runner := &mockRunner{}
	runner.On("Run", mock.Anything, "csv-ingestion-abc").Return(nil).Once()

	h := NewBatchJobTaskHandler(runner, &mockSyncer{})
	require.NoError(t, h.HandleRun(context.Background(), runTask(t, "csv-ingestion-abc")))
	runner.AssertExpectations(t)
}

func TestHandleRun_ConflictSkipsRetry(t *testing.T) {
	runner := &mockRunner{}
	runner.On("Run", mock.Anything, "done-job").Return(appErr.New(appErr.CodeConflict, "already succeeded"))

	h := NewBatchJobTaskHandler(runner, &mockSyncer{})
	err := h.HandleRun(context.Background(), runTask(t, "done-job"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleRun_HandlerErrorPropagates(t *testing.T) {
	runner := &mockRunner{}
	boom := errors.New("boom")
	runner.On("Run", mock.Anything, "x").Return(boom)

	h := NewBatchJobTaskHandler(runner, &mockSyncer{})
	err := h.HandleRun(context.Background(), runTask(t, "x"))
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleRun_BadPayload(t *testing.T) {
	h := NewBatchJobTaskHandler(&mockRunner{}, &mockSyncer{})

	err := h.HandleRun(context.Background(), asynq.NewTask(queue.TypeBatchJobRun, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	err = h.HandleRun(context.Background(), asynq.NewTask(queue.TypeBatchJobRun, []byte(`{}`)))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleSync(t *testing.T) {
	syncer := &mockSyncer{}
	syncer.On("SyncJobStatuses", mock.Anything).Return(2, nil).Once()
	syncer.On("SyncJobStatuses", mock.Anything).Return(0, errors.New("db down")).Once()

	h := NewBatchJobTaskHandler(&mockRunner{}, syncer)
	require.NoError(t, h.HandleSync(context.Background(), queue.NewSyncTask()))
	assert.Error(t, h.HandleSync(context.Background(), queue.NewSyncTask()))
	syncer.AssertExpectations(t)
}
