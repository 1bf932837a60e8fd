package chatlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// sqliteLog is the single-node room log. created_at is stored as unix
// milliseconds.
type sqliteLog struct {
	db *sql.DB
}

var _ ILog = (*sqliteLog)(nil)

func NewSQLiteLog(db *sql.DB) ILog {
	return &sqliteLog{db: db}
}

func (l *sqliteLog) Append(ctx context.Context, roomID int64, userID string, kind Kind, payload string) (Record, error) {
	if roomID <= 0 {
		return Record{}, ErrInvalidRoom
	}

	const ins = `
	  INSERT INTO chats (room_id, user_id, kind, message, created_at)
	       VALUES (?, ?, ?, ?, ?)
	    RETURNING id`

	now := time.Now().UTC().Truncate(time.Millisecond)
	rec := Record{RoomID: roomID, UserID: userID, Kind: kind, Message: payload, CreatedAt: now}
	if err := l.db.QueryRowContext(ctx, ins, roomID, userID, string(kind), payload, now.UnixMilli()).
		Scan(&rec.ID); err != nil {
		return Record{}, fmt.Errorf("append room %d: %w", roomID, err)
	}
	return rec, nil
}

func (l *sqliteLog) ReadLast(ctx context.Context, roomID int64, kind Kind, n int) ([]Record, error) {
	if roomID <= 0 {
		return nil, ErrInvalidRoom
	}
	if n <= 0 {
		return []Record{}, nil
	}

	// inner query keeps the tail, outer restores log order
	const q = `
	  SELECT id, room_id, user_id, kind, message, created_at FROM (
	    SELECT id, room_id, user_id, kind, message, created_at
	      FROM chats
	     WHERE room_id = ? AND kind = ?
	  ORDER BY id DESC
	     LIMIT ?
	  ) ORDER BY id ASC`

	rows, err := l.db.QueryContext(ctx, q, roomID, string(kind), n)
	if err != nil {
		return nil, fmt.Errorf("read room %d: %w", roomID, err)
	}
	defer rows.Close()

	list := make([]Record, 0, n)
	for rows.Next() {
		var r Record
		var k string
		var ms int64
		if err := rows.Scan(&r.ID, &r.RoomID, &r.UserID, &k, &r.Message, &ms); err != nil {
			return nil, err
		}
		r.Kind = Kind(k)
		r.CreatedAt = time.UnixMilli(ms).UTC()
		list = append(list, r)
	}
	return list, rows.Err()
}
