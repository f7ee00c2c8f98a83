package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultChannel = "bracket:events"

// RedisPublisher fans envelopes out to the other instances. Each instance
// tags its envelopes with its origin so its own Relay skips them.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	origin  string
}

// NewOrigin returns a fresh instance identifier.
func NewOrigin() string { return uuid.NewString() }

func NewRedisPublisher(rdb *redis.Client, channel, origin string) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, channel: channel, origin: origin}
}

func (p *RedisPublisher) Publish(ctx context.Context, env Envelope) error {
	env.Origin = p.origin
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, b).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}
	return nil
}

// Relay forwards envelopes published by other instances to a local sink,
// normally the HubPublisher.
type Relay struct {
	rdb     *redis.Client
	channel string
	origin  string
	sink    Publisher
	log     *zap.Logger
}

func NewRelay(rdb *redis.Client, channel, origin string, sink Publisher, log *zap.Logger) *Relay {
	return &Relay{rdb: rdb, channel: channel, origin: origin, sink: sink, log: log}
}

// Run subscribes and relays until ctx is done. ready, when non-nil, is
// closed once the subscription is confirmed.
func (r *Relay) Run(ctx context.Context, ready chan<- struct{}) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.channel, err)
	}
	if ready != nil {
		close(ready)
	}
	r.log.Info("event relay subscribed", zap.String("channel", r.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.log.Warn("dropping malformed event", zap.Error(err))
				continue
			}
			if env.Origin == r.origin {
				continue
			}
			if err := r.sink.Publish(ctx, env); err != nil {
				r.log.Warn("relay delivery failed", zap.String("type", env.Type), zap.Error(err))
			}
		}
	}
}
