package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// StreamRepo fans entity change payloads out over pub/sub channels. Every
// subscriber receives every message published while it is attached; there
// is no replay for late joiners.
type StreamRepo struct {
	client *goredis.Client
}

func NewStreamRepo(client *goredis.Client) *StreamRepo {
	return &StreamRepo{client: client}
}

func (r *StreamRepo) Publish(ctx context.Context, channel string, payload []byte) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if channel == "" {
		return fmt.Errorf("channel is required")
	}

	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

// Stream is a live subscription to one or more channels. Close releases the
// underlying connection and closes the Messages channel.
type Stream struct {
	sub *goredis.PubSub
}

func (s *Stream) Messages() <-chan *goredis.Message {
	return s.sub.Channel()
}

func (s *Stream) Close() error {
	return s.sub.Close()
}

func (r *StreamRepo) Subscribe(ctx context.Context, channels ...string) (*Stream, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("at least one channel is required")
	}

	sub := r.client.Subscribe(ctx, channels...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe to channels: %w", err)
	}
	return &Stream{sub: sub}, nil
}
