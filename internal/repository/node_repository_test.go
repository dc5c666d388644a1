package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/learnhub/engine/internal/models"
	"github.com/learnhub/engine/internal/testutil"
	appErr "github.com/learnhub/engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeRepositoryCRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewNodeRepository(testutil.NewDB(t))

	n := &models.Node{Collection: models.CollectionSkills, Name: "Fractions"}
	require.NoError(t, repo.CreateNode(ctx, n))
	require.NotEqual(t, uuid.Nil, n.ID)
	assert.Equal(t, 1, n.Version)

	got, err := repo.GetNode(ctx, models.CollectionSkills, n.Key())
	require.NoError(t, err)
	assert.Equal(t, "Fractions", got.Name)
	assert.NotNil(t, got.Parents())
	assert.Zero(t, got.Children().Len())

	_, err = repo.GetNode(ctx, models.CollectionCompetencies, n.Key())
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound), "wrong collection")

	_, err = repo.GetNode(ctx, models.CollectionSkills, "not-a-uuid")
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	got.Name = "Fractions II"
	require.NoError(t, repo.SaveNode(ctx, got))
	assert.Equal(t, 2, got.Version)

	require.NoError(t, repo.DeleteNode(ctx, models.CollectionSkills, n.Key()))
	err = repo.DeleteNode(ctx, models.CollectionSkills, n.Key())
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestNodeRepositorySaveVersionCheck(t *testing.T) {
	ctx := context.Background()
	repo := NewNodeRepository(testutil.NewDB(t))

	n := &models.Node{Collection: models.CollectionDomains, Name: "Math"}
	require.NoError(t, repo.CreateNode(ctx, n))

	stale := *n
	require.NoError(t, repo.SaveNode(ctx, n))

	err := repo.SaveNode(ctx, &stale)
	assert.True(t, appErr.IsCode(err, appErr.CodeConflict))

	ghost := &models.Node{ID: uuid.New(), Collection: models.CollectionDomains, Version: 1}
	err = repo.SaveNode(ctx, ghost)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestNodeRepositoryHidesSoftDeleted(t *testing.T) {
	ctx := context.Background()
	repo := NewNodeRepository(testutil.NewDB(t))

	n := &models.Node{Collection: models.CollectionDomains, Name: "Science"}
	require.NoError(t, repo.CreateNode(ctx, n))
	n.IsDeleted = true
	require.NoError(t, repo.SaveNode(ctx, n))

	_, err := repo.GetNode(ctx, models.CollectionDomains, n.Key())
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	list, total, err := repo.List(ctx, models.CollectionDomains, NodeFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)
}

func TestNodeRepositoryList(t *testing.T) {
	ctx := context.Background()
	repo := NewNodeRepository(testutil.NewDB(t))

	for i := 0; i < 5; i++ {
		n := &models.Node{Collection: models.CollectionSkills, Name: "s", IsArchived: i%2 == 0}
		require.NoError(t, repo.CreateNode(ctx, n))
	}
	require.NoError(t, repo.CreateNode(ctx, &models.Node{Collection: models.CollectionDomains, Name: "d"}))

	list, total, err := repo.List(ctx, models.CollectionSkills, NodeFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, list, 2)

	archived := true
	list, total, err = repo.List(ctx, models.CollectionSkills, NodeFilter{Archived: &archived})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, list, 3)
}

func TestNodeRepositoryInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := NewNodeRepository(testutil.NewDB(t))

	n := &models.Node{Collection: models.CollectionDomains, Name: "rollback"}
	err := repo.InTx(ctx, func(tx NodeRepository) error {
		require.NoError(t, tx.CreateNode(ctx, n))
		return appErr.New(appErr.CodeConflict, "abort")
	})
	require.Error(t, err)

	_, err = repo.GetNode(ctx, models.CollectionDomains, n.Key())
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}
