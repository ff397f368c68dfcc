// Package redisbus implements [game.Bus] over Redis pub/sub. The game plugin
// publishes world events and link requests as JSON and subscribes to the
// chat and reputation channels.
package redisbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/MrWong99/crossing/internal/config"
	"github.com/MrWong99/crossing/internal/game"
	"github.com/MrWong99/crossing/pkg/world"
)

// streamBuffer is the capacity of the channels returned by Events and
// LinkRequests.
const streamBuffer = 64

var _ game.Bus = (*Bus)(nil)

// Bus is a Redis pub/sub game connection.
type Bus struct {
	rc  *redis.Client
	cfg config.RedisConfig
}

// New connects to the Redis server in cfg. The connection is lazy; use
// [Bus.Ping] to check it.
func New(cfg config.RedisConfig) *Bus {
	return NewWithClient(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), cfg)
}

// NewWithClient wraps an existing client.
func NewWithClient(rc *redis.Client, cfg config.RedisConfig) *Bus {
	return &Bus{rc: rc, cfg: cfg}
}

// Submit publishes msg on the chat channel.
func (b *Bus) Submit(ctx context.Context, msg game.ChatMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	return b.publish(ctx, b.cfg.ChatChannel, msg)
}

// GrantReputation publishes g on the reputation channel.
func (b *Bus) GrantReputation(ctx context.Context, g game.ReputationGrant) error {
	if strings.TrimSpace(g.Giver) == "" || strings.TrimSpace(g.Receiver) == "" {
		return fmt.Errorf("%w: grant without giver or receiver", game.ErrMalformed)
	}
	return b.publish(ctx, b.cfg.ReputationChannel, g)
}

func (b *Bus) publish(ctx context.Context, channel string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redisbus: encode for %s: %w", channel, err)
	}
	if err := b.rc.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("redisbus: publish %s: %w", channel, err)
	}
	return nil
}

// Events subscribes to the events channel. Undecodable payloads are logged
// and dropped. The returned channel closes when ctx is cancelled.
func (b *Bus) Events(ctx context.Context) (<-chan world.Event, error) {
	return subscribe(ctx, b.rc, b.cfg.EventsChannel, world.DecodeJSON)
}

// LinkRequests subscribes to the link channel.
func (b *Bus) LinkRequests(ctx context.Context) (<-chan game.LinkRequest, error) {
	return subscribe(ctx, b.rc, b.cfg.LinkChannel, func(data []byte) (game.LinkRequest, error) {
		var lr game.LinkRequest
		if err := json.Unmarshal(data, &lr); err != nil {
			return lr, err
		}
		if lr.PlayerID == "" || strings.TrimSpace(lr.DiscordName) == "" {
			return lr, errors.New("missing player_id or discord_name")
		}
		return lr, nil
	})
}

// Ping checks the Redis connection.
func (b *Bus) Ping(ctx context.Context) error {
	if err := b.rc.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redisbus: ping: %w", err)
	}
	return nil
}

// Close closes the client and every subscription made through it.
func (b *Bus) Close() error {
	return b.rc.Close()
}

// subscribe waits for the subscription to be confirmed, then forwards
// decoded payloads until ctx is cancelled.
func subscribe[T any](ctx context.Context, rc *redis.Client, channel string, decode func([]byte) (T, error)) (<-chan T, error) {
	sub := rc.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redisbus: subscribe %s: %w", channel, err)
	}

	out := make(chan T, streamBuffer)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					slog.Warn("redisbus: subscription closed", "channel", channel)
					return
				}
				v, err := decode([]byte(msg.Payload))
				if err != nil {
					slog.Warn("redisbus: dropping undecodable payload", "channel", channel, "err", err)
					continue
				}
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
