package id

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsParseableAndIncreasing(t *testing.T) {
	t.Parallel()

	g := NewGenerator(42)
	prev := ""
	for i := 0; i < 100; i++ {
		s := g.New()
		_, err := ulid.Parse(s)
		require.NoError(t, err)
		assert.Greater(t, s, prev)
		prev = s
	}
}

func TestPackageNewUnique(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		s := New()
		assert.False(t, seen[s], "duplicate id %s", s)
		seen[s] = true
	}
}
