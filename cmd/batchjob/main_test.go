package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmdRequiresContainerName(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "container_name")
}

func TestRootCmdRejectsPositionalArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--container_name", "csv-ingestion-ab12cd34-x1y2z3", "extra"})
	require.Error(t, cmd.Execute())
}
