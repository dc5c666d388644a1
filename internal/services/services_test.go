package services

import (
	"os"
	"testing"

	"github.com/learnhub/engine/pkg/logger"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests (required by services)
	if _, err := logger.Init("error", "json"); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	os.Exit(m.Run())
}
