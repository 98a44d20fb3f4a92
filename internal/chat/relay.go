package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/good-yellow-bee/projectdesk/internal/metrics"
	"github.com/good-yellow-bee/projectdesk/internal/models"
)

// RelayChannel is the Redis pub/sub channel shared by every server process.
const RelayChannel = "projectdesk:chat"

// RedisRelay publishes messages through Redis so that every process
// delivers them to its local rooms.
type RedisRelay struct {
	client  *redis.Client
	hub     *Hub
	channel string
	ready   chan struct{}
}

// NewRedisRelay connects to redisURL and returns a relay feeding hub.
func NewRedisRelay(redisURL string, hub *Hub) (*RedisRelay, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisRelay{client: client, hub: hub, channel: RelayChannel, ready: make(chan struct{})}, nil
}

// Publish sends msg to every process. When Redis is unreachable the message
// is still delivered locally and the error is returned for logging.
func (r *RedisRelay) Publish(ctx context.Context, msg *models.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		metrics.ChatRelayErrors.Inc()
		if hubErr := r.hub.Publish(ctx, msg); hubErr != nil {
			return fmt.Errorf("relay publish: %w (local delivery: %v)", err, hubErr)
		}
		return fmt.Errorf("relay publish: %w", err)
	}
	return nil
}

// Run forwards relayed messages to the local hub until ctx is canceled.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	log.WithField("channel", r.channel).Info("chat relay subscribed")
	close(r.ready)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg models.ChatMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				metrics.ChatRelayErrors.Inc()
				log.WithError(err).Warn("dropping malformed relay message")
				continue
			}
			if err := r.hub.Publish(ctx, &msg); err != nil {
				return nil
			}
		}
	}
}

// Ready is closed once Run has subscribed to the relay channel.
func (r *RedisRelay) Ready() <-chan struct{} {
	return r.ready
}

// Ping checks the Redis connection.
func (r *RedisRelay) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (r *RedisRelay) Close() error {
	return r.client.Close()
}
