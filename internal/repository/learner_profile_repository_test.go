package repository

import (
	"context"
	"testing"

	"github.com/learnhub/engine/internal/models"
	"github.com/learnhub/engine/internal/testutil"
	appErr "github.com/learnhub/engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestLearnerProfileRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewLearnerProfileRepository(testutil.NewDB(t))

	_, err := repo.GetByLearnerID(ctx, "ada")
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	p := &models.LearnerProfile{LearnerID: "ada"}
	require.NoError(t, repo.Create(ctx, p))

	got, err := repo.GetByLearnerID(ctx, "ada")
	require.NoError(t, err)
	assert.Empty(t, got.Achievements.Data())

	got.Achievements = datatypes.NewJSONType([]string{"n1"})
	got.Progress = datatypes.NewJSONType(map[string]float64{"n2": 40})
	require.NoError(t, repo.Update(ctx, got))

	got, err = repo.GetByLearnerID(ctx, "ada")
	require.NoError(t, err)
	assert.True(t, got.Achieved("n1"))
	assert.Equal(t, 40.0, got.PartialProgress("n2"))

	err = repo.Create(ctx, &models.LearnerProfile{LearnerID: "ada"})
	assert.True(t, appErr.IsCode(err, appErr.CodeAlreadyExists))
}
