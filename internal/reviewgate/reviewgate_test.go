package reviewgate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/dossier/internal/apperr"
	"github.com/starford/dossier/internal/testutil"
)

func TestVerify(t *testing.T) {
	v := NewVerifier(" s3cret ")
	assert.True(t, v.Configured())
	assert.NoError(t, v.Verify("s3cret"))
	assert.NoError(t, v.Verify("  s3cret\n"))
	assert.ErrorIs(t, v.Verify("nope"), apperr.ErrUnauthorized)
	assert.ErrorIs(t, v.Verify(""), apperr.ErrUnauthorized)

	unset := NewVerifier("   ")
	assert.False(t, unset.Configured())
	assert.ErrorIs(t, unset.Verify("anything"), apperr.ErrNotConfigured)
}

func TestGateFlag(t *testing.T) {
	ctx := context.Background()
	store, mem := testutil.MemoryStore(t)
	g := New(NewVerifier("key"), store)

	assert.False(t, g.Unlocked(ctx))
	require.ErrorIs(t, g.Unlock(ctx, "wrong"), apperr.ErrUnauthorized)
	assert.False(t, g.Unlocked(ctx))

	require.NoError(t, g.Unlock(ctx, "key"))
	assert.True(t, g.Unlocked(ctx))
	raw, err := mem.Get(ctx, "rhs:reviewerUnlocked:v1")
	require.NoError(t, err)
	assert.Equal(t, "1", raw)

	g.Clear(ctx)
	assert.False(t, g.Unlocked(ctx))
}

func TestGateUnconfiguredNeverUnlocks(t *testing.T) {
	ctx := context.Background()
	store, _ := testutil.MemoryStore(t)
	g := New(NewVerifier(""), store)
	assert.ErrorIs(t, g.Unlock(ctx, ""), apperr.ErrNotConfigured)
	assert.False(t, g.Unlocked(ctx))
}

func TestGateFlagFollowsNamespace(t *testing.T) {
	ctx := context.Background()
	store, mem := testutil.MemoryStore(t)
	g := New(NewVerifier("key"), store, WithNamespace("clinic"))
	assert.Equal(t, "clinic:reviewerUnlocked:v1", g.FlagKey())

	require.NoError(t, g.Unlock(ctx, "key"))
	raw, err := mem.Get(ctx, "clinic:reviewerUnlocked:v1")
	require.NoError(t, err)
	assert.Equal(t, "1", raw)
	_, err = mem.Get(ctx, "rhs:reviewerUnlocked:v1")
	assert.Error(t, err)

	other := New(NewVerifier("key"), store)
	assert.False(t, other.Unlocked(ctx))
}
