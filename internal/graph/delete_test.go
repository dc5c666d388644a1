package graph

import (
	"context"
	"testing"

	"github.com/learnhub/engine/internal/models"
	appErr "github.com/learnhub/engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteTreeDetachesOutsideParents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	domain := f.create(models.CollectionDomains, "domain", nil)
	subDomain := f.create(models.CollectionSubDomains, "sub-domain", refs(models.CollectionDomains, domain))
	comp := f.create(models.CollectionCompetencies, "comp", refs(models.CollectionSubDomains, subDomain))
	other := f.create(models.CollectionCompetencies, "other", refs(models.CollectionSubDomains, subDomain))
	outsideSub := f.create(models.CollectionSubCompetencies, "outside", refs(models.CollectionCompetencies, other))

	skillParents := refs(models.CollectionCompetencies, comp)
	skillParents.Add(models.CollectionSubCompetencies, outsideSub.Key())
	skill := f.create(models.CollectionSkills, "skill", skillParents)
	subComp := f.create(models.CollectionSubCompetencies, "sub-comp", refs(models.CollectionCompetencies, comp))

	deleted, err := f.m.DeleteTree(ctx, f.repo, f.get(comp), false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{comp.Key(), skill.Key(), subComp.Key()}, deleted)
	assert.Equal(t, comp.Key(), deleted[len(deleted)-1], "root goes last")

	for _, n := range []*models.Node{comp, skill, subComp} {
		_, err := f.repo.GetNode(ctx, n.Collection, n.Key())
		assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
	}
	f.assertNoReferencesTo(comp.Key(), skill.Key(), subComp.Key())

	assert.Equal(t, []string{other.Key()}, f.get(subDomain).Children()[models.CollectionCompetencies])
	assert.Zero(t, f.get(outsideSub).Children().Len())
}

func TestDeleteTreeSoft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pathway := f.create(models.CollectionCurriculumPathways, "p", nil)
	exp := f.create(models.CollectionLearningExperiences, "e", refs(models.CollectionCurriculumPathways, pathway))
	obj := f.create(models.CollectionLearningObjects, "o", refs(models.CollectionLearningExperiences, exp))
	res := f.create(models.CollectionLearningResources, "r", refs(models.CollectionLearningObjects, obj))

	deleted, err := f.m.DeleteTree(ctx, f.repo, f.get(exp), true)
	require.NoError(t, err)
	assert.Len(t, deleted, 3)

	var rows []models.Node
	require.NoError(t, f.db.Where("id IN ?", []string{exp.Key(), obj.Key(), res.Key()}).Find(&rows).Error)
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.True(t, row.IsDeleted, row.Name)
		assert.Zero(t, row.Parents().Len(), row.Name)
		assert.Zero(t, row.Children().Len(), row.Name)
	}
	assert.Zero(t, f.get(pathway).Children().Len())
}

func TestDeleteTreeSharedChildAndCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	comp := f.create(models.CollectionCompetencies, "comp", nil)
	sub := f.create(models.CollectionSubCompetencies, "sub", refs(models.CollectionCompetencies, comp))
	parents := refs(models.CollectionCompetencies, comp)
	parents.Add(models.CollectionSubCompetencies, sub.Key())
	shared := f.create(models.CollectionSkills, "shared", parents)

	// Corrupt the data into a cycle: the skill claims the competency as a child.
	s := f.get(shared)
	s.SetChildren(refs(models.CollectionCompetencies, comp))
	require.NoError(t, f.repo.SaveNode(ctx, s))

	deleted, err := f.m.DeleteTree(ctx, f.repo, f.get(comp), false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{comp.Key(), sub.Key(), shared.Key()}, deleted)
	f.assertNoReferencesTo(deleted...)
}

func TestDeleteNodeLeavesChildrenWithoutParent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	comp := f.create(models.CollectionCompetencies, "comp", nil)
	skill := f.create(models.CollectionSkills, "skill", refs(models.CollectionCompetencies, comp))

	require.NoError(t, f.m.DeleteNode(ctx, f.repo, f.get(comp), false))

	got := f.get(skill)
	assert.Zero(t, got.Parents().Len())
	f.assertNoReferencesTo(comp.Key())
}
