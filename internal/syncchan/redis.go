package syncchan

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisTopicPrefix = "moodboard:board:"

// RedisChannel relays messages through Redis pub/sub, one topic per board. It reaches
// windows in other processes and on other machines.
type RedisChannel struct {
	client *redis.Client
	prefix string
	log    *slog.Logger
}

func NewRedisChannel(redisURL string, logger *slog.Logger) (*RedisChannel, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisChannelWithClient(client, logger), nil
}

func NewRedisChannelWithClient(client *redis.Client, logger *slog.Logger) *RedisChannel {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &RedisChannel{client: client, prefix: redisTopicPrefix, log: logger}
}

func (c *RedisChannel) topic(boardID string) string {
	return c.prefix + boardID
}

func (c *RedisChannel) Publish(ctx context.Context, msg Message) error {
	raw, err := Encode(msg)
	if err != nil {
		return err
	}
	if err := c.client.Publish(ctx, c.topic(msg.BoardID), raw).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe returns once Redis has confirmed the subscription, so a Publish issued after
// it returns is delivered.
func (c *RedisChannel) Subscribe(ctx context.Context, boardID string) (<-chan Message, func(), error) {
	ps := c.client.Subscribe(ctx, c.topic(boardID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("redis subscribe: %w", err)
	}
	mb := newMailbox()
	go func() {
		defer mb.close()
		for rm := range ps.Channel() {
			msg, err := Decode([]byte(rm.Payload))
			if err != nil {
				c.log.Debug("dropping malformed sync message", "board", boardID, "err", err)
				continue
			}
			mb.put(msg)
		}
	}()
	return mb.out, func() {
		_ = ps.Close()
		mb.close()
	}, nil
}

func (c *RedisChannel) Close() error {
	return c.client.Close()
}
