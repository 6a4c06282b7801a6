//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sylo/pkg/testutil/containers"
)

func TestRedisStoreIntegration(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	store := NewRedisStore(rc.Client)

	t.Run("enforces limit per window", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))

		for i := 0; i < 5; i++ {
			result, err := store.Allow(ctx, "u1:webhook", 5, time.Hour)
			require.NoError(t, err)
			assert.True(t, result.Allowed, "request %d should pass", i)
			assert.Equal(t, 5, result.Limit)
			assert.Equal(t, 4-i, result.Remaining)
		}

		result, err := store.Allow(ctx, "u1:webhook", 5, time.Hour)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Zero(t, result.Remaining)
	})

	t.Run("window expiry resets the counter", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))

		result, err := store.Allow(ctx, "u1:gmail", 1, 200*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, result.Allowed)

		result, err = store.Allow(ctx, "u1:gmail", 1, 200*time.Millisecond)
		require.NoError(t, err)
		assert.False(t, result.Allowed)

		time.Sleep(250 * time.Millisecond)

		result, err = store.Allow(ctx, "u1:gmail", 1, 200*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	})

	t.Run("keys are independent", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))

		result, err := store.Allow(ctx, "u1:xero", 1, time.Hour)
		require.NoError(t, err)
		assert.True(t, result.Allowed)

		result, err = store.Allow(ctx, "u2:xero", 1, time.Hour)
		require.NoError(t, err)
		assert.True(t, result.Allowed)

		result, err = store.Allow(ctx, "u1:xero", 1, time.Hour)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
	})
}
