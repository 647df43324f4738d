package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickfolio/internal/application/port"
)

func newRepo(t *testing.T, ttl time.Duration) (*Repo, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, "tf", ttl, 100), mr, rdb
}

func measurement() port.Measurement {
	return port.Measurement{
		Name:   "portfolio",
		Tags:   map[string]string{"currency": "EUR"},
		Fields: map[string]float64{"MSFT": 6750, "total": 6750},
		Time:   time.UnixMilli(1700000000000).UTC(),
	}
}

func TestRedisRepoAppend(t *testing.T) {
	repo, mr, rdb := newRepo(t, time.Minute)
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, repo.ChannelKey("portfolio"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.Append(ctx, measurement()))

	entries, err := rdb.XRange(ctx, "tf:portfolio", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "6750", entries[0].Values["total"])
	assert.Equal(t, "EUR", entries[0].Values["tag:currency"])
	assert.Equal(t, "1700000000000", entries[0].Values["ts_ms"])

	got, ok, err := repo.Latest(ctx, "portfolio")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, measurement(), got)
	assert.Equal(t, time.Minute, mr.TTL("tf:latest"))

	select {
	case msg := <-sub.Channel():
		var m port.Measurement
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &m))
		assert.Equal(t, 6750.0, m.Fields["total"])
	case <-time.After(2 * time.Second):
		t.Fatal("no pubsub message")
	}
}

func TestRedisRepoLatestMissing(t *testing.T) {
	repo, _, _ := newRepo(t, 0)
	_, ok, err := repo.Latest(context.Background(), "portfolio")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisRepoServerDown(t *testing.T) {
	repo, mr, _ := newRepo(t, 0)
	mr.Close()
	assert.Error(t, repo.Append(context.Background(), measurement()))
}

func TestRedisRepoDefaultPrefix(t *testing.T) {
	repo := New(nil, " ", 0, 0)
	assert.Equal(t, "tickfolio:portfolio", repo.StreamKey("portfolio"))
	assert.Equal(t, "tickfolio:portfolio:pub", repo.ChannelKey("portfolio"))
	assert.Equal(t, "tickfolio:latest", repo.LatestKey())
}
