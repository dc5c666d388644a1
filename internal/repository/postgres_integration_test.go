//go:build integration

package repository

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/learnhub/engine/internal/models"
	"github.com/learnhub/engine/pkg/database"
	appErr "github.com/learnhub/engine/pkg/errors"
	"github.com/learnhub/engine/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// newPostgres starts a disposable PostgreSQL and migrates every model under
// a table prefix.
func newPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	logger.Replace(zap.NewNop())
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("engine"),
		postgres.WithUsername("engine"),
		postgres.WithPassword("engine"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	openCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	db, err := database.OpenPostgres(openCtx, dsn, database.Options{TablePrefix: "it_"})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func TestPostgresRepositories(t *testing.T) {
	db := newPostgres(t)
	ctx := context.Background()

	t.Run("tables carry the prefix", func(t *testing.T) {
		assert.True(t, db.Migrator().HasTable("it_nodes"))
		assert.True(t, db.Migrator().HasTable("it_batch_jobs"))
	})

	t.Run("stale node save conflicts", func(t *testing.T) {
		repo := NewNodeRepository(db)
		n := &models.Node{Collection: models.CollectionSkills, Name: "Counting"}
		require.NoError(t, repo.CreateNode(ctx, n))

		a, err := repo.GetNode(ctx, n.Collection, n.Key())
		require.NoError(t, err)
		b, err := repo.GetNode(ctx, n.Collection, n.Key())
		require.NoError(t, err)

		a.Name = "Counting to ten"
		require.NoError(t, repo.SaveNode(ctx, a))
		b.Name = "Counting to twenty"
		err = repo.SaveNode(ctx, b)
		assert.True(t, appErr.IsCode(err, appErr.CodeConflict), "got %v", err)
	})

	t.Run("jsonb references round trip", func(t *testing.T) {
		repo := NewNodeRepository(db)
		parent := &models.Node{Collection: models.CollectionCompetencies, Name: "Number sense"}
		require.NoError(t, repo.CreateNode(ctx, parent))
		child := &models.Node{Collection: models.CollectionSkills, Name: "Place value"}
		child.SetParents(models.NodeRefs{models.CollectionCompetencies: {parent.Key()}})
		require.NoError(t, repo.CreateNode(ctx, child))

		got, err := repo.GetNode(ctx, child.Collection, child.Key())
		require.NoError(t, err)
		assert.Equal(t, []string{parent.Key()}, got.Parents()[models.CollectionCompetencies])
	})

	t.Run("one open job per key under contention", func(t *testing.T) {
		repo := NewBatchJobRepository(db)
		var created, rejected atomic.Int32
		var g errgroup.Group
		for i := range 8 {
			g.Go(func() error {
				j := &models.BatchJob{
					Name:           fmt.Sprintf("csv-ingestion-race-%d", i),
					Type:           models.JobTypeCSVIngestion,
					IdempotencyKey: "race-key",
					InputData:      "{}",
				}
				err := repo.Create(ctx, j)
				switch {
				case err == nil:
					created.Add(1)
				case appErr.IsCode(err, appErr.CodeAlreadyExists):
					rejected.Add(1)
				default:
					return err
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())
		assert.Equal(t, int32(1), created.Load())
		assert.Equal(t, int32(7), rejected.Load())
	})

	t.Run("concurrent transitions settle once", func(t *testing.T) {
		repo := NewBatchJobRepository(db)
		j := &models.BatchJob{Name: "reference-repair-settle", Type: models.JobTypeReferenceRepair, IdempotencyKey: "settle", InputData: "{}"}
		require.NoError(t, repo.Create(ctx, j))
		_, err := repo.Transition(ctx, j.Name, models.JobStatusActive, JobUpdate{})
		require.NoError(t, err)

		var g errgroup.Group
		for _, to := range []models.JobStatus{models.JobStatusSucceeded, models.JobStatusAborted} {
			g.Go(func() error {
				_, err := repo.Transition(ctx, j.Name, to, JobUpdate{})
				if err != nil && !appErr.IsCode(err, appErr.CodeConflict) {
					return err
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())

		got, err := repo.GetByName(ctx, j.Name)
		require.NoError(t, err)
		assert.True(t, got.Status.IsTerminal())
		assert.Nil(t, got.ActiveKey)
	})
}
