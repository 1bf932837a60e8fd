package chatlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type Kind string

const (
	KindShape Kind = "shape"
	KindChat  Kind = "chat"
)

var ErrInvalidRoom = errors.New("invalid room id")

// Record is one persisted room event. ID order is the canonical order of a
// room's history.
type Record struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"roomId"`
	UserID    string    `json:"userId"`
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// ILog is the append-only, per-room ordered event log.
type ILog interface {
	Append(ctx context.Context, roomID int64, userID string, kind Kind, payload string) (Record, error)
	// ReadLast returns up to n most recent records of kind for the room,
	// oldest first.
	ReadLast(ctx context.Context, roomID int64, kind Kind, n int) ([]Record, error)
}

type pgLog struct {
	db *sql.DB
}

var _ ILog = (*pgLog)(nil)

func NewPostgresLog(db *sql.DB) ILog {
	return &pgLog{db: db}
}

func (l *pgLog) Append(ctx context.Context, roomID int64, userID string, kind Kind, payload string) (Record, error) {
	if roomID <= 0 {
		return Record{}, ErrInvalidRoom
	}

	const ins = `
	  INSERT INTO chats (room_id, user_id, kind, message)
	       VALUES ($1, $2, $3, $4)
	    RETURNING id, created_at`

	rec := Record{RoomID: roomID, UserID: userID, Kind: kind, Message: payload}
	if err := l.db.QueryRowContext(ctx, ins, roomID, userID, string(kind), payload).
		Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return Record{}, fmt.Errorf("append room %d: %w", roomID, err)
	}
	return rec, nil
}

func (l *pgLog) ReadLast(ctx context.Context, roomID int64, kind Kind, n int) ([]Record, error) {
	if roomID <= 0 {
		return nil, ErrInvalidRoom
	}
	if n <= 0 {
		return []Record{}, nil
	}

	// newest first so LIMIT keeps the tail, reversed below
	const q = `
	  SELECT id, room_id, user_id, kind, message, created_at
	    FROM chats
	   WHERE room_id = $1 AND kind = $2
	ORDER BY id DESC
	   LIMIT $3`

	rows, err := l.db.QueryContext(ctx, q, roomID, string(kind), n)
	if err != nil {
		return nil, fmt.Errorf("read room %d: %w", roomID, err)
	}
	defer rows.Close()

	list := make([]Record, 0, n)
	for rows.Next() {
		var r Record
		var k string
		if err := rows.Scan(&r.ID, &r.RoomID, &r.UserID, &k, &r.Message, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Kind = Kind(k)
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	return list, nil
}

// Messages projects records onto their payloads.
func Messages(recs []Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Message
	}
	return out
}
