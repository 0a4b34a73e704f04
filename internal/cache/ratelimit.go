package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// WindowStore counts requests per identifier in fixed windows. Both
// implementations satisfy echo's middleware.RateLimiterStore.
type WindowStore interface {
	Allow(identifier string) (bool, error)
}

// RedisWindow keeps one counter per identifier and window in redis (INCR + EXPIRE),
// so every API replica shares the same budget.
type RedisWindow struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

func NewRedisWindow(client *redis.Client, limit int, window time.Duration) *RedisWindow {
	return &RedisWindow{
		client: client,
		limit:  limit,
		window: window,
		prefix: "living:ratelimit:",
		now:    time.Now,
	}
}

func (s *RedisWindow) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := s.now().Truncate(s.window)
	key := s.prefix + identifier + ":" + strconv.FormatInt(start.Unix(), 10)

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, s.window)
		return nil
	})
	if err != nil {
		return false, err
	}

	return incr.Val() <= int64(s.limit), nil
}

type window struct {
	start time.Time
	count int
}

// MemoryWindow is the in-process fallback when redis is unavailable.
type MemoryWindow struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]*window
	swept   time.Time
	now     func() time.Time
}

func NewMemoryWindow(limit int, size time.Duration) *MemoryWindow {
	return &MemoryWindow{
		limit:   limit,
		window:  size,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

func (s *MemoryWindow) Allow(identifier string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	start := now.Truncate(s.window)

	if now.Sub(s.swept) > s.window {
		for id, w := range s.windows {
			if w.start.Before(start) {
				delete(s.windows, id)
			}
		}
		s.swept = now
	}

	w, ok := s.windows[identifier]
	if !ok || !w.start.Equal(start) {
		w = &window{start: start}
		s.windows[identifier] = w
	}
	w.count++

	return w.count <= s.limit, nil
}
