package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const subscribeWait = 3 * time.Second

func roomChannel(roomID int64) string { return fmt.Sprintf("room:%d:events", roomID) }

// subscriptionManager keeps exactly one Redis subscription per
// "room:<id>:events" channel while the room has local members, no matter how
// many sockets joined it.
type subscriptionManager struct {
	rdb  *redis.Client
	hub  *Hub
	mu   sync.Mutex
	subs map[int64]*subEntry
}

type subEntry struct {
	refCnt int
	cancel context.CancelFunc
	done   chan struct{}
}

var _ RoomObserver = (*subscriptionManager)(nil)

func newSubscriptionManager(rdb *redis.Client, hub *Hub) *subscriptionManager {
	return &subscriptionManager{
		rdb:  rdb,
		hub:  hub,
		subs: make(map[int64]*subEntry),
	}
}

func (sm *subscriptionManager) RoomActive(roomID int64) { sm.Subscribe(roomID) }
func (sm *subscriptionManager) RoomIdle(roomID int64)   { sm.Unsubscribe(roomID) }

// Subscribe ensures the process is subscribed to the room's channel;
// subsequent calls only increment the ref-counter. The first call waits for
// Redis to confirm so a join ack is never sent before events can arrive.
func (sm *subscriptionManager) Subscribe(roomID int64) {
	sm.mu.Lock()
	if e, ok := sm.subs[roomID]; ok {
		e.refCnt++
		sm.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	ps := sm.rdb.Subscribe(ctx, roomChannel(roomID))
	e := &subEntry{refCnt: 1, cancel: cancel, done: make(chan struct{})}
	sm.subs[roomID] = e
	sm.mu.Unlock()

	wctx, wcancel := context.WithTimeout(ctx, subscribeWait)
	if _, err := ps.Receive(wctx); err != nil {
		zap.L().Warn("ws.redis_subscribe", zap.Int64("room", roomID), zap.Error(err))
	}
	wcancel()

	go func() {
		defer close(e.done)
		defer ps.Close()

		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok { // Redis connection closed.
					return
				}
				sm.hub.Broadcast(roomID, []byte(m.Payload))
			}
		}
	}()
}

// Unsubscribe decrements the ref-counter and tears the subscription down
// when the last local member leaves.
func (sm *subscriptionManager) Unsubscribe(roomID int64) {
	sm.mu.Lock()
	e, ok := sm.subs[roomID]
	if !ok {
		sm.mu.Unlock()
		return
	}
	e.refCnt--
	if e.refCnt > 0 {
		sm.mu.Unlock()
		return
	}
	delete(sm.subs, roomID)
	sm.mu.Unlock()

	// Outside the lock → stop the fan-out goroutine.
	e.cancel()
}

// Close drops every subscription and waits for the fan-out goroutines.
func (sm *subscriptionManager) Close() {
	sm.mu.Lock()
	entries := make([]*subEntry, 0, len(sm.subs))
	for id, e := range sm.subs {
		entries = append(entries, e)
		delete(sm.subs, id)
	}
	sm.mu.Unlock()

	for _, e := range entries {
		e.cancel()
		<-e.done
	}
}
