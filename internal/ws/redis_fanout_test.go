package ws

import (
	"boardsync/internal/services/board"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisFanoutPublishesEnvelope(t *testing.T) {
	db, mock := redismock.NewClientMock()
	f := &RedisFanout{rdb: db}

	ev := board.Event{Type: board.EventShapeUpdate, RoomID: 7, Message: `{"type":"rect"}`, UserID: "alice"}
	frame, err := encodeEnvelope(envelopeFor(ev))
	require.NoError(t, err)

	mock.ExpectPublish("room:7:events", frame).SetVal(2)
	require.NoError(t, f.Publish(context.Background(), ev))

	mock.ExpectPublish("room:7:events", frame).SetErr(errors.New("LOADING"))
	assert.Error(t, f.Publish(context.Background(), ev))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionManagerRefCounts(t *testing.T) {
	// Nothing listens here; subscriptions fail to confirm but are still
	// tracked, which is all the ref-counting needs.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	defer rdb.Close()

	sm := newSubscriptionManager(rdb, NewHub(NewRegistry(4)))
	refs := func(roomID int64) int {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if e, ok := sm.subs[roomID]; ok {
			return e.refCnt
		}
		return 0
	}

	sm.RoomActive(5)
	sm.RoomActive(5)
	sm.RoomActive(6)
	assert.Equal(t, 2, refs(5))
	assert.Equal(t, 1, refs(6))

	sm.RoomIdle(5)
	assert.Equal(t, 1, refs(5))
	sm.RoomIdle(5)
	assert.Equal(t, 0, refs(5))
	sm.RoomIdle(5)
	assert.Equal(t, 0, refs(5))

	sm.Close()
	assert.Equal(t, 0, refs(6))
}
