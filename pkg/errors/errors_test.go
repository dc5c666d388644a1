package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCauseAndCode(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, CodeInternal, "load node failed")

	require.ErrorIs(t, err, cause)
	assert.True(t, IsCode(err, CodeInternal))
	assert.Equal(t, "internal: load node failed: connection reset", err.Error())
}

func TestCodeOfThroughFmtWrapping(t *testing.T) {
	err := fmt.Errorf("handler: %w", New(CodeConflict, "job already active"))
	assert.Equal(t, CodeConflict, CodeOf(err))
	assert.Equal(t, CodeUnknown, CodeOf(errors.New("plain")))
}

func TestNotFoundNamesUUID(t *testing.T) {
	err := NotFound("competencies", "abc")
	assert.Equal(t, CodeNotFound, err.Code)
	assert.Contains(t, err.Message, "abc")
	assert.Equal(t, "abc", err.Meta["uuid"])
}
