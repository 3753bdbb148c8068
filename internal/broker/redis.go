package broker

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/hemanthhhhhh/API-Server/internal/domain"
)

// Redis is a Source backed by Redis pub/sub.
type Redis struct {
	client *redis.Client
}

// NewRedis parses a redis:// or rediss:// URL and creates a client. No
// connection is made until first use.
func NewRedis(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Redis{client: redis.NewClient(opts)}, nil
}

// Client exposes the underlying client for components sharing the connection pool.
func (r *Redis) Client() *redis.Client {
	return r.client
}

// Ping checks broker reachability.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

// PSubscribe subscribes to pattern and waits for the broker's confirmation.
func (r *Redis) PSubscribe(ctx context.Context, pattern string) (Stream, error) {
	ps := r.client.PSubscribe(ctx, pattern)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("psubscribe %s: %w", pattern, err)
	}
	return &redisStream{ps: ps}, nil
}

type redisStream struct {
	ps *redis.PubSub
}

func (s *redisStream) Receive(ctx context.Context) (domain.LogMessage, error) {
	msg, err := s.ps.ReceiveMessage(ctx)
	if err != nil {
		return domain.LogMessage{}, err
	}
	return domain.LogMessage{Channel: msg.Channel, Payload: []byte(msg.Payload)}, nil
}

func (s *redisStream) Close() error {
	return s.ps.Close()
}
