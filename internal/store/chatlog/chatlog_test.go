package chatlog

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	insertQ = regexp.QuoteMeta("INSERT INTO chats (room_id, user_id, kind, message)")
	selectQ = regexp.QuoteMeta("SELECT id, room_id, user_id, kind, message, created_at")
)

func newMock(t *testing.T) (ILog, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresLog(db), mock
}

func TestAppendReturnsRecord(t *testing.T) {
	log, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(insertQ).
		WithArgs(int64(7), "u1", "shape", `{"type":"rect"}`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(41, now))

	rec, err := log.Append(context.Background(), 7, "u1", KindShape, `{"type":"rect"}`)
	require.NoError(t, err)
	assert.Equal(t, Record{ID: 41, RoomID: 7, UserID: "u1", Kind: KindShape, Message: `{"type":"rect"}`, CreatedAt: now}, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendFailureIsWrapped(t *testing.T) {
	log, mock := newMock(t)
	boom := errors.New("connection reset")
	mock.ExpectQuery(insertQ).WillReturnError(boom)

	_, err := log.Append(context.Background(), 7, "u1", KindShape, "{}")
	assert.ErrorIs(t, err, boom)

	_, err = log.Append(context.Background(), 0, "u1", KindShape, "{}")
	assert.ErrorIs(t, err, ErrInvalidRoom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadLastReturnsOldestFirst(t *testing.T) {
	log, mock := newMock(t)
	ts := time.Unix(1700000000, 0).UTC()

	rows := sqlmock.NewRows([]string{"id", "room_id", "user_id", "kind", "message", "created_at"}).
		AddRow(12, 3, "b", "shape", "third", ts).
		AddRow(11, 3, "a", "shape", "second", ts).
		AddRow(9, 3, "a", "shape", "first", ts)
	mock.ExpectQuery(selectQ).WithArgs(int64(3), "shape", 3).WillReturnRows(rows)

	recs, err := log.ReadLast(context.Background(), 3, KindShape, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, Messages(recs))
	assert.Equal(t, int64(9), recs[0].ID)
	assert.Equal(t, KindShape, recs[2].Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadLastEdgeCases(t *testing.T) {
	log, mock := newMock(t)

	recs, err := log.ReadLast(context.Background(), 3, KindShape, 0)
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = log.ReadLast(context.Background(), -1, KindShape, 10)
	assert.ErrorIs(t, err, ErrInvalidRoom)

	mock.ExpectQuery(selectQ).WillReturnError(errors.New("timeout"))
	_, err = log.ReadLast(context.Background(), 3, KindShape, 10)
	assert.ErrorContains(t, err, "timeout")

	assert.NoError(t, mock.ExpectationsWereMet())
}
