package board

import (
	"boardsync/internal/store/chatlog"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	EventShapeUpdate = "shape_update"
	EventChat        = "chat"
)

var (
	ErrInvalidRoom  = errors.New("invalid room id")
	ErrEmptyMessage = errors.New("empty message")
	ErrPersistence  = errors.New("persistence failed")
	ErrDelivery     = errors.New("delivery failed")
)

// Event is an accepted, persisted room update on its way to room members.
type Event struct {
	Type     string
	RoomID   int64
	Message  string
	UserID   string
	RecordID int64
}

// Fanout delivers an event to every connection currently joined to the
// event's room.
type Fanout interface {
	Publish(ctx context.Context, ev Event) error
}

// Cache keeps a bounded copy of each room's most recent shape payloads.
type Cache interface {
	Push(ctx context.Context, rec chatlog.Record) error
	Last(ctx context.Context, roomID int64, n int) ([]string, bool, error)
	Warm(ctx context.Context, roomID int64, recs []chatlog.Record) error
	// Invalidate makes the room's cached tail untrusted until the next warm-up.
	Invalidate(ctx context.Context, roomID int64) error
}

type IBoardService interface {
	HandleShapeUpdate(ctx context.Context, userID string, roomID int64, payload string) error
	HandleChat(ctx context.Context, userID string, roomID int64, text string) error
	// History returns up to limit of the room's most recent shape payloads,
	// oldest first.
	History(ctx context.Context, roomID int64, limit int) ([]string, error)
}

type Options struct {
	PersistTimeout time.Duration
	// HistoryCapacity is how many records a cache warm-up loads; History
	// requests above it skip the cache.
	HistoryCapacity int
}

type boardService struct {
	log    chatlog.ILog
	cache  Cache
	fanout Fanout
	rooms  *roomLocks
	opts   Options
}

var _ IBoardService = (*boardService)(nil)

// NewBoardService wires the engine. cache may be nil.
func NewBoardService(log chatlog.ILog, cache Cache, fanout Fanout, opts Options) IBoardService {
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 5 * time.Second
	}
	if opts.HistoryCapacity <= 0 {
		opts.HistoryCapacity = 500
	}
	return &boardService{
		log:    log,
		cache:  cache,
		fanout: fanout,
		rooms:  newRoomLocks(),
		opts:   opts,
	}
}

func (svc *boardService) HandleShapeUpdate(ctx context.Context, userID string, roomID int64, payload string) error {
	return svc.appendAndPublish(ctx, EventShapeUpdate, chatlog.KindShape, userID, roomID, payload)
}

func (svc *boardService) HandleChat(ctx context.Context, userID string, roomID int64, text string) error {
	return svc.appendAndPublish(ctx, EventChat, chatlog.KindChat, userID, roomID, text)
}

// appendAndPublish persists first and only then fans out. Both steps run
// under the room's lock so a room's broadcast order is its append order.
func (svc *boardService) appendAndPublish(ctx context.Context, evType string, kind chatlog.Kind,
	userID string, roomID int64, payload string) error {

	if roomID <= 0 {
		return ErrInvalidRoom
	}
	if payload == "" {
		return ErrEmptyMessage
	}

	unlock := svc.rooms.lock(roomID)
	defer unlock()

	pctx, cancel := context.WithTimeout(ctx, svc.opts.PersistTimeout)
	rec, err := svc.log.Append(pctx, roomID, userID, kind, payload)
	cancel()
	if err != nil {
		zap.L().Warn("board.persist_failed",
			zap.Int64("room", roomID),
			zap.String("user", userID),
			zap.String("type", evType),
			zap.Error(err))
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	// The cache must hold the record before anyone can see the broadcast: a
	// member registering after the fan-out snapshot only has history.
	if kind == chatlog.KindShape && svc.cache != nil {
		svc.pushToCache(ctx, rec)
	}

	ev := Event{
		Type:     evType,
		RoomID:   roomID,
		Message:  payload,
		UserID:   userID,
		RecordID: rec.ID,
	}
	if err := svc.fanout.Publish(ctx, ev); err != nil {
		zap.L().Warn("board.publish_failed", zap.Int64("room", roomID), zap.Int64("record", rec.ID), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	return nil
}

// pushToCache mirrors rec into the cache. On failure the room's cache is
// invalidated so the next History call rebuilds it from the log instead of
// serving a tail with a hole in it.
func (svc *boardService) pushToCache(ctx context.Context, rec chatlog.Record) {
	err := svc.cache.Push(ctx, rec)
	if err == nil {
		return
	}
	zap.L().Warn("board.cache_push", zap.Int64("room", rec.RoomID), zap.Int64("record", rec.ID), zap.Error(err))
	if err := svc.cache.Invalidate(ctx, rec.RoomID); err != nil {
		zap.L().Warn("board.cache_invalidate", zap.Int64("room", rec.RoomID), zap.Error(err))
	}
}

func (svc *boardService) History(ctx context.Context, roomID int64, limit int) ([]string, error) {
	if roomID <= 0 {
		return nil, ErrInvalidRoom
	}
	if limit <= 0 {
		return []string{}, nil
	}

	// 1. Fast path: a warm cache covers any request within its capacity
	if svc.cache != nil && limit <= svc.opts.HistoryCapacity {
		msgs, ok, err := svc.cache.Last(ctx, roomID, limit)
		if err != nil {
			zap.L().Debug("board.cache_read", zap.Int64("room", roomID), zap.Error(err))
		} else if ok {
			return msgs, nil
		}
	}

	// 2. Otherwise read the log, loading enough to warm the cache
	warm := svc.cache != nil && limit <= svc.opts.HistoryCapacity
	n := limit
	if warm && n < svc.opts.HistoryCapacity {
		n = svc.opts.HistoryCapacity
	}

	// A warm-up holds the room lock so a push that fails and invalidates
	// cannot slip between the log read and the warm marker.
	if warm {
		unlock := svc.rooms.lock(roomID)
		defer unlock()
	}
	recs, err := svc.log.ReadLast(ctx, roomID, chatlog.KindShape, n)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	if warm {
		if err := svc.cache.Warm(ctx, roomID, recs); err != nil {
			zap.L().Debug("board.cache_warm", zap.Int64("room", roomID), zap.Error(err))
		}
	}

	if len(recs) > limit {
		recs = recs[len(recs)-limit:]
	}
	return chatlog.Messages(recs), nil
}
