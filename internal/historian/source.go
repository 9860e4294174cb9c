// internal/historian/source.go
package historian

import (
	"context"
	"errors"
	"time"

	"github.com/jason-s-yu/zionscheck/internal/cache"
	"github.com/redis/go-redis/v9"
)

// Source yields queued action records. Pop returns (nil, nil) when nothing arrived within timeout.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (*cache.GameActionRecord, error)
}

// Sink persists action records and game status changes.
type Sink interface {
	InsertGameActions(ctx context.Context, records []cache.GameActionRecord) error
	MarkGameAbandoned(ctx context.Context, code string) error
}

// RedisSource pops records from the list the game server pushes to.
type RedisSource struct {
	client *redis.Client
	queue  string
}

func NewRedisSource(client *redis.Client, queue string) *RedisSource {
	if queue == "" {
		queue = cache.DefaultQueueName
	}
	return &RedisSource{client: client, queue: queue}
}

func (s *RedisSource) Pop(ctx context.Context, timeout time.Duration) (*cache.GameActionRecord, error) {
	res, err := s.client.BLPop(ctx, timeout, s.queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// res[0] is the queue name and res[1] the payload.
	if len(res) < 2 {
		return nil, nil
	}
	rec, err := cache.DecodeGameAction([]byte(res[1]))
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
