package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kasuganosora/magicwardrobe/cache/local"
	cacheredis "github.com/kasuganosora/magicwardrobe/cache/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCacheDefaultsToLocal(t *testing.T) {
	c, err := NewCache(CacheConfig{LocalGCInterval: time.Minute})
	require.NoError(t, err)
	lc, ok := c.(*local.LocalCache)
	require.True(t, ok)
	t.Cleanup(lc.Close)

	_, err = c.Get(context.Background(), "absent")
	assert.True(t, IsNotFound(err))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(local.ErrNotFound))
	assert.True(t, IsNotFound(cacheredis.ErrNotFound))
	assert.True(t, IsNotFound(fmt.Errorf("weather: %w", local.ErrNotFound)))
	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(fmt.Errorf("dial tcp: refused")))
}
