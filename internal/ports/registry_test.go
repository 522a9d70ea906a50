package ports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AllocateSequential(t *testing.T) {
	r := NewRegistry(5100)

	first := r.Allocate("plugin-a", 0)
	second := r.Allocate("plugin-b", 0)

	assert.Equal(t, 5100, first)
	assert.Equal(t, 5101, second)
	assert.True(t, r.InUse(5100))
	assert.True(t, r.InUse(5101))
}

func TestRegistry_AllocateExplicitHonored(t *testing.T) {
	r := NewRegistry(5100)

	granted := r.Allocate("plugin-a", 5250)
	assert.Equal(t, 5250, granted)

	owner, ok := r.Owner(5250)
	require.True(t, ok)
	assert.Equal(t, "plugin-a", owner)
}

func TestRegistry_AllocateExplicitCollision(t *testing.T) {
	r := NewRegistry(5100)

	require.NoError(t, r.Reserve(5250, "builtin"))

	// A requested port that is taken falls back to scanning from the base
	granted := r.Allocate("plugin-a", 5250)
	assert.Equal(t, 5100, granted)

	owner, _ := r.Owner(5250)
	assert.Equal(t, "builtin", owner, "the collision must not evict the holder")
}

func TestRegistry_AllocateSkipsReserved(t *testing.T) {
	r := NewRegistry(5100)

	require.NoError(t, r.Reserve(5100, "builtin"))
	granted := r.Allocate("plugin-a", 0)
	assert.Equal(t, 5101, granted)
}

func TestRegistry_Reserve(t *testing.T) {
	r := NewRegistry(5100)

	require.NoError(t, r.Reserve(5002, "terminal"))

	// Re-reserving for the same tool is idempotent
	assert.NoError(t, r.Reserve(5002, "terminal"))

	// A different tool cannot take the port
	err := r.Reserve(5002, "notes")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already reserved")
}

func TestRegistry_Release(t *testing.T) {
	r := NewRegistry(5100)

	granted := r.Allocate("plugin-a", 0)
	assert.True(t, r.InUse(granted))

	r.Release("plugin-a")
	assert.False(t, r.InUse(granted))

	_, ok := r.Owner(granted)
	assert.False(t, ok)
}

func TestRegistry_ReleasedPortReusableByRequest(t *testing.T) {
	r := NewRegistry(5100)

	granted := r.Allocate("plugin-a", 0)
	r.Release("plugin-a")

	// An explicit request for the freed port succeeds
	again := r.Allocate("plugin-b", granted)
	assert.Equal(t, granted, again)
}
