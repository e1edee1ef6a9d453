package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deedwizard/internal/platform/config"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("empty url means not configured", func(t *testing.T) {
		c, err := New(ctx, config.RedisConfig{})
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("connects and reports health", func(t *testing.T) {
		s := miniredis.RunT(t)
		c, err := New(ctx, config.RedisConfig{URL: "redis://" + s.Addr(), PoolSize: 2})
		require.NoError(t, err)
		defer c.Close()

		assert.NoError(t, c.Health(ctx))
	})

	t.Run("bad url is rejected", func(t *testing.T) {
		_, err := New(ctx, config.RedisConfig{URL: "http://not-redis"})
		assert.Error(t, err)
	})
}
