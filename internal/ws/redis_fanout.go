package ws

import (
	"boardsync/internal/services/board"
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisFanout publishes accepted events to "room:<id>:events" so every
// server instance delivers them to its own members. Local delivery also goes
// through the subscription, which keeps one ordered stream per room.
type RedisFanout struct {
	rdb  redis.Cmdable
	subs *subscriptionManager
}

var _ board.Fanout = (*RedisFanout)(nil)

// NewRedisFanout installs the subscription manager as the registry's room
// observer.
func NewRedisFanout(rdb *redis.Client, hub *Hub, registry *Registry) *RedisFanout {
	subs := newSubscriptionManager(rdb, hub)
	registry.SetObserver(subs)
	return &RedisFanout{rdb: rdb, subs: subs}
}

func (f *RedisFanout) Publish(ctx context.Context, ev board.Event) error {
	frame, err := encodeEnvelope(envelopeFor(ev))
	if err != nil {
		return err
	}
	return f.rdb.Publish(ctx, roomChannel(ev.RoomID), frame).Err()
}

func (f *RedisFanout) Close() { f.subs.Close() }
