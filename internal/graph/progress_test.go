package graph

import (
	"context"
	"testing"

	"github.com/learnhub/engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func profile(achieved []string, partial map[string]float64) *models.LearnerProfile {
	if partial == nil {
		partial = map[string]float64{}
	}
	return &models.LearnerProfile{
		LearnerID:    "learner-1",
		Achievements: datatypes.NewJSONType(achieved),
		Progress:     datatypes.NewJSONType(partial),
	}
}

func TestLoadHierarchyProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	comp := f.create(models.CollectionCompetencies, "comp", nil)
	done := f.create(models.CollectionSkills, "done", refs(models.CollectionCompetencies, comp))
	half := f.create(models.CollectionSkills, "half", refs(models.CollectionCompetencies, comp))
	sub := f.create(models.CollectionSubCompetencies, "sub", refs(models.CollectionCompetencies, comp))
	untouched := f.create(models.CollectionSkills, "untouched", refs(models.CollectionSubCompetencies, sub))

	p := profile([]string{done.Key()}, map[string]float64{half.Key(): 50})
	got, err := f.m.LoadHierarchyProgress(ctx, f.repo, f.get(comp), p)
	require.NoError(t, err)

	assert.Equal(t, comp.Key(), got.UUID)
	assert.Equal(t, 50.0, got.Progress)
	assert.Equal(t, StatusInProgress, got.Status)
	require.Len(t, got.Children, 3)

	byID := map[string]*Progress{}
	for _, c := range got.Children {
		byID[c.UUID] = c
	}
	assert.Equal(t, StatusCompleted, byID[done.Key()].Status)
	assert.Equal(t, 50.0, byID[half.Key()].Progress)
	assert.Equal(t, StatusNotAttempted, byID[sub.Key()].Status)
	require.Len(t, byID[sub.Key()].Children, 1)
	assert.Equal(t, untouched.Key(), byID[sub.Key()].Children[0].UUID)
}

func TestProgressAchievementOverridesChildren(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	comp := f.create(models.CollectionCompetencies, "comp", nil)
	f.create(models.CollectionSkills, "s", refs(models.CollectionCompetencies, comp))

	got, err := f.m.LoadHierarchyProgress(ctx, f.repo, f.get(comp), profile([]string{comp.Key()}, nil))
	require.NoError(t, err)
	assert.Equal(t, 100.0, got.Progress)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestProgressRoundsAndSkipsDangling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	comp := f.create(models.CollectionCompetencies, "comp", nil)
	a := f.create(models.CollectionSkills, "a", refs(models.CollectionCompetencies, comp))
	f.create(models.CollectionSkills, "b", refs(models.CollectionCompetencies, comp))
	f.create(models.CollectionSkills, "c", refs(models.CollectionCompetencies, comp))

	root := f.get(comp)
	children := root.Children()
	children.Add(models.CollectionSkills, "00000000-0000-0000-0000-000000000001")
	root.SetChildren(children)

	got, err := f.m.WithFanout(2).LoadHierarchyProgress(ctx, f.repo, root, profile([]string{a.Key()}, nil))
	require.NoError(t, err)
	assert.Len(t, got.Children, 3)
	assert.Equal(t, 33.33, got.Progress)
}

func TestProgressNilProfile(t *testing.T) {
	f := newFixture(t)
	skill := f.create(models.CollectionSkills, "s", nil)

	got, err := f.m.LoadHierarchyProgress(context.Background(), f.repo, f.get(skill), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusNotAttempted, got.Status)
	assert.Zero(t, got.Progress)
}
