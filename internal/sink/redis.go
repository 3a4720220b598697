package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/signalsfoundry/leo-constellation-sim/model"
)

// RedisClientInterface defines the Redis operations used by the sink.
type RedisClientInterface interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Pipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
	Close() error
}

// DefaultRedisTTL bounds how long a position survives without updates.
const DefaultRedisTTL = time.Hour

// RedisSink caches the latest position of every satellite and the latest
// link set.
type RedisSink struct {
	client RedisClientInterface
	ttl    time.Duration
}

// NewRedisSink connects to addr and checks the connection.
func NewRedisSink(addr string) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisSinkWithClient(client), nil
}

// NewRedisSinkWithClient wraps an existing client (useful for testing).
func NewRedisSinkWithClient(client RedisClientInterface) *RedisSink {
	return &RedisSink{client: client, ttl: DefaultRedisTTL}
}

func (s *RedisSink) Name() string { return "redis" }

// SatelliteKey is the key holding a satellite's latest record.
func SatelliteKey(id string) string { return fmt.Sprintf("satellite:%s", id) }

// LinksKey holds the latest link set.
const LinksKey = "constellation:links"

// Publish stores each satellite under SatelliteKey and the links under
// LinksKey in a single pipelined round trip.
func (s *RedisSink) Publish(ctx context.Context, snap *model.Snapshot) error {
	keys := make([]string, 0, len(snap.Satellites)+1)
	values := make([][]byte, 0, len(snap.Satellites)+1)
	for _, sat := range snap.Satellites {
		data, err := json.Marshal(sat)
		if err != nil {
			return fmt.Errorf("failed to marshal satellite %s: %w", sat.ID, err)
		}
		keys = append(keys, SatelliteKey(sat.ID))
		values = append(values, data)
	}
	data, err := json.Marshal(snap.Links)
	if err != nil {
		return fmt.Errorf("failed to marshal links: %w", err)
	}
	keys = append(keys, LinksKey)
	values = append(values, data)

	cmds := make([]*redis.StatusCmd, len(keys))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = pipe.Set(ctx, key, values[i], s.ttl)
		}
		return nil
	})
	for i, cmd := range cmds {
		if cmd != nil && cmd.Err() != nil {
			return fmt.Errorf("failed to store %s: %w", keys[i], cmd.Err())
		}
	}
	if err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisSink) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
