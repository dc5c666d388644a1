package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalJSONIgnoresKeyOrderAndSpace(t *testing.T) {
	a, err := CanonicalJSON([]byte(`{"b": 1, "a": {"y": [1, 2], "x": "v"}}`))
	require.NoError(t, err)
	b, err := CanonicalJSON([]byte(`{"a":{"x":"v","y":[1,2]},"b":1}`))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestCanonicalJSONKeepsLargeNumbers(t *testing.T) {
	out, err := CanonicalJSON([]byte(`{"id": 12345678901234567890}`))
	require.NoError(t, err)
	assert.Equal(t, `{"id":12345678901234567890}`, string(out))
}

func TestHexSHA256SeparatesParts(t *testing.T) {
	assert.NotEqual(t, HexSHA256([]byte("ab"), []byte("c")), HexSHA256([]byte("a"), []byte("bc")))
	assert.Len(t, HexSHA256([]byte("x")), 64)
}
