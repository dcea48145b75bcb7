// Package pubsub relays push events between server instances over Redis so
// a user connected to any instance receives events raised on another.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/websocket"
)

// DefaultChannel carries every push event.
const DefaultChannel = "clinic:events"

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisBroker publishes events to a Redis channel and, once started,
// relays every event on that channel into the local hub. Events published
// by this instance come back through the subscription too, so local
// delivery happens exactly once.
type RedisBroker struct {
	client  redisPublisher
	sub     *redis.Client
	channel string
	local   websocket.EventPublisher
	logger  zerolog.Logger
}

func NewRedisBroker(client *redis.Client, local websocket.EventPublisher, logger zerolog.Logger) *RedisBroker {
	return &RedisBroker{
		client:  client,
		sub:     client,
		channel: DefaultChannel,
		local:   local,
		logger:  logger.With().Str("component", "pubsub").Logger(),
	}
}

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (b *RedisBroker) Publish(ctx context.Context, event websocket.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Start confirms the subscription and then relays events in the
// background until ctx is done. Events published after Start returns are
// delivered back to this instance.
func (b *RedisBroker) Start(ctx context.Context) error {
	sub, err := b.subscribe(ctx)
	if err != nil {
		return err
	}
	go b.loop(ctx, sub)
	return nil
}

func (b *RedisBroker) subscribe(ctx context.Context) (*redis.PubSub, error) {
	sub := b.sub.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}
	b.logger.Info().Str("channel", b.channel).Msg("relaying push events")
	return sub, nil
}

func (b *RedisBroker) loop(ctx context.Context, sub *redis.PubSub) {
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.relay(ctx, []byte(msg.Payload))
		}
	}
}

func (b *RedisBroker) relay(ctx context.Context, payload []byte) {
	var event websocket.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		b.logger.Warn().Err(err).Msg("discarding malformed event")
		return
	}
	if event.Topic == "" {
		return
	}
	if err := b.local.Publish(ctx, event); err != nil {
		b.logger.Warn().Err(err).Str("topic", event.Topic).Msg("relay event")
	}
}
