package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgres_SetGetDelete(t *testing.T) {
	tp := NewTestPostgres(t)
	defer tp.Close()
	tp.Cleanup(t)

	ctx := context.Background()

	_, ok, err := tp.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tp.Set(ctx, "program_first_deployment_timestamp:abc:false", 1714099300))

	value, ok, err := tp.Get(ctx, "program_first_deployment_timestamp:abc:false")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1714099300), value)

	// Upsert overwrites in place.
	require.NoError(t, tp.Set(ctx, "program_first_deployment_timestamp:abc:false", 1714099200))
	value, ok, err = tp.Get(ctx, "program_first_deployment_timestamp:abc:false")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1714099200), value)

	require.NoError(t, tp.Delete(ctx, "program_first_deployment_timestamp:abc:false"))
	_, ok, err = tp.Get(ctx, "program_first_deployment_timestamp:abc:false")
	require.NoError(t, err)
	assert.False(t, ok)
}
