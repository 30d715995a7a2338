package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	b, err := Lookup("connect4")
	require.NoError(t, err)
	assert.Equal(t, "connect4", b.Name())

	_, err = Lookup("chess")
	assert.Error(t, err)
	assert.Contains(t, Names(), "connect4")
}

func TestLookupAlias(t *testing.T) {
	b, err := Lookup("c4_backend")
	require.NoError(t, err)
	assert.Equal(t, "connect4", b.Name())
	assert.NotContains(t, Names(), "c4_backend")
}
