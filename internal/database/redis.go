package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPingTimeout = 10 * time.Second

// RedisClients separates the two Redis roles: Queue feeds the stream refresh
// workers over blocking list reads, PubSub fans asset events out to the
// websocket hub. The blocking BLPOP reads would starve pub/sub delivery on a
// shared connection, so each role gets its own client.
type RedisClients struct {
	Queue  *redis.Client
	PubSub *redis.Client
}

func NewRedisClients(redisURL string) (*RedisClients, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()

	queue, err := connect(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("redis queue client: %w", err)
	}

	pubsubOpt := *opt
	pubsub, err := connect(ctx, &pubsubOpt)
	if err != nil {
		queue.Close()
		return nil, fmt.Errorf("redis pubsub client: %w", err)
	}

	return &RedisClients{Queue: queue, PubSub: pubsub}, nil
}

func connect(ctx context.Context, opt *redis.Options) (*redis.Client, error) {
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func (r *RedisClients) Close() {
	r.Queue.Close()
	r.PubSub.Close()
}
