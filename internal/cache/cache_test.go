package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/saxon-wu/living/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryWindow(2, time.Minute)
	s.now = func() time.Time { return now }

	for i, want := range []bool{true, true, false} {
		ok, err := s.Allow("1.2.3.4")
		require.NoError(t, err)
		assert.Equal(t, want, ok, "request %d", i+1)
	}

	ok, err := s.Allow("5.6.7.8")
	require.NoError(t, err)
	assert.True(t, ok, "identifiers have separate budgets")

	now = now.Add(time.Minute)
	ok, err = s.Allow("1.2.3.4")
	require.NoError(t, err)
	assert.True(t, ok, "a new window resets the count")
}

func TestMemoryWindowSweepsStaleEntries(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryWindow(10, time.Minute)
	s.now = func() time.Time { return now }

	_, _ = s.Allow("a")
	_, _ = s.Allow("b")
	now = now.Add(3 * time.Minute)
	_, _ = s.Allow("c")

	assert.Len(t, s.windows, 1)
}

func redisURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	return url
}

func TestRedisWindow(t *testing.T) {
	client, err := NewRedis(context.Background(), redisURL(t))
	require.NoError(t, err)
	defer client.Close()

	s := NewRedisWindow(client, 2, time.Minute)
	s.prefix = "living:test:ratelimit:" + t.Name() + ":"
	fixed := time.Now()
	s.now = func() time.Time { return fixed }

	id := time.Now().Format(time.RFC3339Nano)
	for _, want := range []bool{true, true, false} {
		ok, err := s.Allow(id)
		require.NoError(t, err)
		assert.Equal(t, want, ok)
	}
}

func TestTagTreeCache(t *testing.T) {
	client, err := NewRedis(context.Background(), redisURL(t))
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	c := NewTagTree(client, time.Minute)
	require.NoError(t, c.Invalidate(ctx))

	_, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	nodes := []*models.TagNode{{UUID: "root", Name: "go", Children: []*models.TagNode{{UUID: "child", Name: "gorm", ParentID: 1}}}}
	require.NoError(t, c.Set(ctx, nodes))

	got, ok, err := c.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, nodes, got)

	require.NoError(t, c.Invalidate(ctx))
	_, ok, err = c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRedisRejectsBadURL(t *testing.T) {
	_, err := NewRedis(context.Background(), "redis://:bad:port:x")
	assert.Error(t, err)
}
