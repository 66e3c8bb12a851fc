package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsSortableAndUnique(t *testing.T) {
	seen := make(map[string]struct{})
	prev := ""
	for i := 0; i < 500; i++ {
		id := New()
		require.Len(t, id, 26)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestSuffix(t *testing.T) {
	s := Suffix(6)
	assert.Len(t, s, 6)
	assert.Regexp(t, `^[0-9a-z]{6}$`, s)

	assert.Len(t, Suffix(0), 26)
	assert.Len(t, Suffix(100), 26)
}
