package chatlog

import (
	"context"
	"sync"
	"time"
)

// memoryLog keeps the room log in process memory. Used when the server runs
// without Postgres and in tests.
type memoryLog struct {
	mu     sync.Mutex
	nextID int64
	rooms  map[int64][]Record
}

var _ ILog = (*memoryLog)(nil)

func NewMemoryLog() ILog {
	return &memoryLog{rooms: make(map[int64][]Record)}
}

func (l *memoryLog) Append(ctx context.Context, roomID int64, userID string, kind Kind, payload string) (Record, error) {
	if roomID <= 0 {
		return Record{}, ErrInvalidRoom
	}
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	rec := Record{
		ID:        l.nextID,
		RoomID:    roomID,
		UserID:    userID,
		Kind:      kind,
		Message:   payload,
		CreatedAt: time.Now().UTC(),
	}
	l.rooms[roomID] = append(l.rooms[roomID], rec)
	return rec, nil
}

func (l *memoryLog) ReadLast(ctx context.Context, roomID int64, kind Kind, n int) ([]Record, error) {
	if roomID <= 0 {
		return nil, ErrInvalidRoom
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, 0)
	recs := l.rooms[roomID]
	for i := len(recs) - 1; i >= 0 && len(out) < n; i-- {
		if recs[i].Kind == kind {
			out = append(out, recs[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
