package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/topicseg/topicseg-agent/internal/segmentation"
)

func TestNoop(t *testing.T) {
	var c Cache = Noop{}
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "vid", segmentation.NewSegmentation("vid", "t", nil)))
	got, err := c.Get(ctx, "vid")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, c.Delete(ctx, "vid"))
	assert.NoError(t, c.Close())
}

func TestKey(t *testing.T) {
	assert.Equal(t, "topicseg:segmentation:abc", Key("abc"))
}

func TestConnectRedis_InvalidURL(t *testing.T) {
	_, err := ConnectRedis(context.Background(), "http://not-redis", time.Minute)
	assert.Error(t, err)
}

func TestConnectRedis_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := ConnectRedis(ctx, "redis://127.0.0.1:1/0", time.Minute)
	assert.Error(t, err)
}
