package action

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nerrad567/bosun-core/internal/rules"
)

// ListPusher is the part of a go-redis client the sink needs.
// *redis.Client satisfies it.
type ListPusher interface {
	LPush(ctx context.Context, key string, values ...any) *redis.IntCmd
}

// RedisSink pushes notification actions onto a Redis list. An external
// notifier pops from the other end and delivers them.
type RedisSink struct {
	client ListPusher
	key    string
	now    func() time.Time
}

// NewRedisSink creates a RedisSink pushing onto key.
func NewRedisSink(client ListPusher, key string) *RedisSink {
	return &RedisSink{client: client, key: key, now: time.Now}
}

// Notification is the JSON document pushed for each action.
type Notification struct {
	Rule      string         `json:"rule"`
	Type      string         `json:"type"`
	Target    string         `json:"target,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Dispatch implements Sink.
func (s *RedisSink) Dispatch(ctx context.Context, a rules.Action) error {
	data, err := json.Marshal(Notification{
		Rule:      a.Rule,
		Type:      a.Type,
		Target:    a.Target,
		Payload:   a.Payload,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshalling notification: %w", err)
	}
	if err := s.client.LPush(ctx, s.key, data).Err(); err != nil {
		return fmt.Errorf("%w: redis lpush %s: %w", ErrDispatchFailed, s.key, err)
	}
	return nil
}

// ConnectRedis opens a client for addr and pings it.
//
// Parameters:
//   - ctx: Context bounding the ping
//   - addr: host:port of the Redis server
//
// Returns:
//   - *redis.Client: Ready for NewRedisSink
//   - error: If the ping fails; the client is closed first
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}
