package graph

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/learnhub/engine/internal/models"
	"github.com/learnhub/engine/internal/repository"
	"github.com/learnhub/engine/internal/testutil"
	appErr "github.com/learnhub/engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	t    *testing.T
	db   *gorm.DB
	repo repository.NodeRepository
	m    *Manager
}

func newFixture(t *testing.T) *fixture {
	db := testutil.NewDB(t)
	return &fixture{t: t, db: db, repo: repository.NewNodeRepository(db), m: NewManager(nil, nil)}
}

// create validates, stores and links a node the way the node service does.
func (f *fixture) create(collection, name string, parents models.NodeRefs) *models.Node {
	f.t.Helper()
	ctx := context.Background()
	n := &models.Node{Collection: collection, Name: name}
	n.SetParents(parents)
	require.NoError(f.t, f.m.ValidateReferences(ctx, f.repo, n))
	require.NoError(f.t, f.repo.CreateNode(ctx, n))
	require.NoError(f.t, f.m.Link(ctx, f.repo, n))
	return n
}

func (f *fixture) get(n *models.Node) *models.Node {
	f.t.Helper()
	got, err := f.repo.GetNode(context.Background(), n.Collection, n.Key())
	require.NoError(f.t, err)
	return got
}

// assertNoReferencesTo scans every stored node, soft-deleted ones included.
func (f *fixture) assertNoReferencesTo(ids ...string) {
	f.t.Helper()
	var all []models.Node
	require.NoError(f.t, f.db.Find(&all).Error)
	for _, n := range all {
		for _, id := range ids {
			for _, ref := range n.Parents().Each() {
				assert.NotEqual(f.t, id, ref.ID, "%s %s still lists %s as parent", n.Collection, n.Name, id)
			}
			for _, ref := range n.Children().Each() {
				assert.NotEqual(f.t, id, ref.ID, "%s %s still lists %s as child", n.Collection, n.Name, id)
			}
		}
	}
}

func refs(collection string, nodes ...*models.Node) models.NodeRefs {
	r := models.NodeRefs{}
	for _, n := range nodes {
		r.Add(collection, n.Key())
	}
	return r
}

func TestSubCompetencyUnderCompetency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	x := f.create(models.CollectionCompetencies, "X", nil)
	sub := f.create(models.CollectionSubCompetencies, "sub", refs(models.CollectionCompetencies, x))

	got := f.get(x)
	assert.Equal(t, []string{sub.Key()}, got.Children()[models.CollectionSubCompetencies])
	assert.True(t, f.get(sub).Parents().Contains(models.CollectionCompetencies, x.Key()))

	require.NoError(t, f.m.DeleteNode(ctx, f.repo, f.get(sub), false))

	got = f.get(x)
	assert.False(t, got.Children().Contains(models.CollectionSubCompetencies, sub.Key()))
	assert.Zero(t, got.Children().Len())
	f.assertNoReferencesTo(sub.Key())
}

func TestLinkIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.create(models.CollectionCompetencies, "c", nil)
	s := f.create(models.CollectionSkills, "s", refs(models.CollectionCompetencies, c))

	require.NoError(t, f.m.Link(ctx, f.repo, f.get(s)))
	assert.Equal(t, 1, f.get(c).Children().Len())
}

func TestLinkFromChildSide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s1 := f.create(models.CollectionSkills, "s1", nil)
	s2 := f.create(models.CollectionSkills, "s2", nil)

	c := &models.Node{Collection: models.CollectionCompetencies, Name: "c"}
	c.SetChildren(refs(models.CollectionSkills, s1, s2))
	require.NoError(t, f.m.ValidateReferences(ctx, f.repo, c))
	require.NoError(t, f.repo.CreateNode(ctx, c))
	require.NoError(t, f.m.Link(ctx, f.repo, c))

	for _, s := range []*models.Node{s1, s2} {
		assert.Equal(t, []string{c.Key()}, f.get(s).Parents()[models.CollectionCompetencies])
	}
}

func TestValidateReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	domain := f.create(models.CollectionDomains, "d", nil)

	t.Run("dangling parent", func(t *testing.T) {
		missing := uuid.NewString()
		n := &models.Node{Collection: models.CollectionSubDomains}
		n.SetParents(models.NodeRefs{models.CollectionDomains: {missing}})

		err := f.m.ValidateReferences(ctx, f.repo, n)
		require.Error(t, err)
		assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
		assert.Contains(t, err.Error(), missing)
	})

	t.Run("illegal parent collection", func(t *testing.T) {
		n := &models.Node{Collection: models.CollectionSkills}
		n.SetParents(refs(models.CollectionDomains, domain))

		err := f.m.ValidateReferences(ctx, f.repo, n)
		assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))
	})

	t.Run("illegal child collection", func(t *testing.T) {
		n := &models.Node{Collection: models.CollectionSkills}
		n.SetChildren(refs(models.CollectionDomains, domain))

		err := f.m.ValidateReferences(ctx, f.repo, n)
		assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))
	})

	t.Run("unknown collection", func(t *testing.T) {
		err := f.m.ValidateReferences(ctx, f.repo, &models.Node{Collection: "widgets"})
		assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))
	})

	t.Run("soft deleted parent is dangling", func(t *testing.T) {
		gone := f.create(models.CollectionDomains, "gone", nil)
		require.NoError(t, f.m.DeleteNode(ctx, f.repo, f.get(gone), true))

		n := &models.Node{Collection: models.CollectionSubDomains}
		n.SetParents(refs(models.CollectionDomains, gone))
		err := f.m.ValidateReferences(ctx, f.repo, n)
		assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
	})

	t.Run("valid", func(t *testing.T) {
		n := &models.Node{Collection: models.CollectionSubDomains}
		n.SetParents(refs(models.CollectionDomains, domain))
		assert.NoError(t, f.m.ValidateReferences(ctx, f.repo, n))
	})
}

func TestRelinkMovesNode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(models.CollectionCompetencies, "a", nil)
	b := f.create(models.CollectionCompetencies, "b", nil)
	s := f.create(models.CollectionSkills, "s", refs(models.CollectionCompetencies, a))

	old := f.get(s)
	updated := f.get(s)
	updated.SetParents(refs(models.CollectionCompetencies, b))
	require.NoError(t, f.m.Relink(ctx, f.repo, old, updated))

	assert.Zero(t, f.get(a).Children().Len())
	assert.Equal(t, []string{s.Key()}, f.get(b).Children()[models.CollectionSkills])
}

func TestDetachSkipsMissingNeighbours(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s := &models.Node{Collection: models.CollectionSkills, Name: "orphan"}
	s.SetParents(models.NodeRefs{models.CollectionCompetencies: {uuid.NewString()}})
	require.NoError(t, f.repo.CreateNode(ctx, s))

	assert.NoError(t, f.m.Detach(ctx, f.repo, s))
}

func TestAddToMissingParentFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s := &models.Node{Collection: models.CollectionSkills, Name: "s"}
	s.SetParents(models.NodeRefs{models.CollectionCompetencies: {uuid.NewString()}})
	require.NoError(t, f.repo.CreateNode(ctx, s))

	err := f.m.UpdateChildReferences(ctx, f.repo, s, OpAdd)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestStaleNeighbourWriteConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.create(models.CollectionCompetencies, "c", nil)
	first := f.get(c)
	second := f.get(c)

	first.Name = "renamed"
	require.NoError(t, f.repo.SaveNode(ctx, first))

	second.Description = "lost update"
	err := f.repo.SaveNode(ctx, second)
	assert.True(t, appErr.IsCode(err, appErr.CodeConflict))
}
