package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/saxon-wu/living/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	TagTreeKey = "living:tags:tree"
	TagTreeTTL = 5 * time.Minute
)

// TagTree caches the serialized tag forest under a single key.
type TagTree struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTagTree(client *redis.Client, ttl time.Duration) *TagTree {
	if ttl <= 0 {
		ttl = TagTreeTTL
	}
	return &TagTree{client: client, ttl: ttl}
}

// Get reports ok=false on a cache miss.
func (c *TagTree) Get(ctx context.Context) ([]*models.TagNode, bool, error) {
	raw, err := c.client.Get(ctx, TagTreeKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var nodes []*models.TagNode
	if err := json.Unmarshal(raw, &nodes); err != nil {
		return nil, false, err
	}
	return nodes, true, nil
}

func (c *TagTree) Set(ctx context.Context, nodes []*models.TagNode) error {
	raw, err := json.Marshal(nodes)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, TagTreeKey, raw, c.ttl).Err()
}

func (c *TagTree) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, TagTreeKey).Err()
}
