package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel events are published on.
const DefaultChannel = "kernelgate:sessions"

// Redis publishes events as JSON on a Redis pub/sub channel.
type Redis struct {
	client  redis.UniversalClient
	channel string
	owned   bool
}

// RedisConfig contains configuration options for the Redis publisher.
type RedisConfig struct {
	// Client is the Redis client to use. If nil, one is created for Addr.
	Client redis.UniversalClient
	// Addr is used when Client is nil. Defaults to "localhost:6379".
	Addr string
	// Channel defaults to DefaultChannel.
	Channel string
}

// NewRedis creates a Redis publisher.
func NewRedis(cfg RedisConfig) *Redis {
	client := cfg.Client
	owned := false
	if client == nil {
		addr := cfg.Addr
		if addr == "" {
			addr = "localhost:6379"
		}
		client = redis.NewClient(&redis.Options{Addr: addr})
		owned = true
	}

	channel := cfg.Channel
	if channel == "" {
		channel = DefaultChannel
	}

	return &Redis{client: client, channel: channel, owned: owned}
}

// Channel returns the channel events are published on.
func (r *Redis) Channel() string { return r.channel }

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Publish implements Publisher.
func (r *Redis) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: encode: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("events: publish to %s: %w", r.channel, err)
	}
	return nil
}

// Subscribe calls handler for every event on the channel until ctx is done
// or handler returns an error. Malformed messages are skipped.
func (r *Redis) Subscribe(ctx context.Context, handler func(Event) error) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("events: subscribe to %s: %w", r.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			if err := handler(ev); err != nil {
				return err
			}
		}
	}
}

// Close implements Publisher. A client passed in by the caller is left open.
func (r *Redis) Close() error {
	if !r.owned {
		return nil
	}
	return r.client.Close()
}
