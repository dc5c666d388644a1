package validators

import (
	"testing"

	"github.com/google/uuid"
	"github.com/learnhub/engine/internal/models"
	appErr "github.com/learnhub/engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type refsRequest struct {
	Name    string           `json:"name" validate:"required"`
	Parents models.NodeRefs  `json:"parent_nodes" validate:"noderefs"`
	Extra   *models.NodeRefs `json:"child_nodes" validate:"omitempty,noderefs"`
}

func TestStructAcceptsValidRefs(t *testing.T) {
	req := refsRequest{
		Name:    "Fractions",
		Parents: models.NodeRefs{models.CollectionCompetencies: {uuid.NewString()}},
	}
	require.NoError(t, Struct(req))
}

func TestStructRejectsUnknownCollection(t *testing.T) {
	req := refsRequest{
		Name:    "Fractions",
		Parents: models.NodeRefs{"widgets": {uuid.NewString()}},
	}
	err := Struct(req)
	require.Error(t, err)
	assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))

	var ae *appErr.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "noderefs", ae.Meta["parent_nodes"])
}

func TestStructRejectsMalformedID(t *testing.T) {
	refs := models.NodeRefs{models.CollectionSkills: {"not-a-uuid"}}
	err := Struct(refsRequest{Name: "x", Extra: &refs})

	var ae *appErr.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "noderefs", ae.Meta["child_nodes"])
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	err := Struct(refsRequest{})

	var ae *appErr.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "required", ae.Meta["name"])
}

type envRequest struct {
	Env map[string]string `json:"env" validate:"omitempty,dive,keys,required,jobenv,endkeys"`
}

func TestStructRejectsReservedJobEnv(t *testing.T) {
	require.NoError(t, Struct(envRequest{Env: map[string]string{"CSV_DELIMITER": ";"}}))

	for _, key := range []string{"DATABASE_URL", "REDIS_ADDR", "JOB_TYPE"} {
		err := Struct(envRequest{Env: map[string]string{key: "x"}})
		require.Error(t, err, key)
		assert.True(t, appErr.IsCode(err, appErr.CodeInvalid), key)
	}
}
