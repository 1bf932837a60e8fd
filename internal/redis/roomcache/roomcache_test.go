package roomcache

import (
	"boardsync/internal/store/chatlog"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ttl = time.Hour

func TestPushAddsAndTrims(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db, 100, ttl)
	rec := chatlog.Record{ID: 12, RoomID: 4, Message: `{"type":"rect"}`}

	mock.ExpectTxPipeline()
	mock.ExpectZAdd("room:4:shapes", redis.Z{Score: 12, Member: `12:{"type":"rect"}`}).SetVal(1)
	mock.ExpectZRemRangeByRank("room:4:shapes", 0, -101).SetVal(0)
	mock.ExpectExpire("room:4:shapes", ttl).SetVal(true)
	mock.ExpectExpire("room:4:shapes:warm", ttl).SetVal(false)
	mock.ExpectTxPipelineExec()

	require.NoError(t, c.Push(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWarmLoadsRecordsAndMarker(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db, 3, ttl)
	recs := []chatlog.Record{{ID: 1, RoomID: 2, Message: "a"}, {ID: 5, RoomID: 2, Message: "b"}}

	mock.ExpectTxPipeline()
	mock.ExpectZAdd("room:2:shapes",
		redis.Z{Score: 1, Member: "1:a"},
		redis.Z{Score: 5, Member: "5:b"},
	).SetVal(2)
	mock.ExpectZRemRangeByRank("room:2:shapes", 0, -4).SetVal(0)
	mock.ExpectExpire("room:2:shapes", ttl).SetVal(true)
	mock.ExpectSet("room:2:shapes:warm", "1", ttl).SetVal("OK")
	mock.ExpectTxPipelineExec()

	require.NoError(t, c.Warm(context.Background(), 2, recs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWarmEmptyRoomOnlySetsMarker(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db, 3, ttl)

	mock.ExpectTxPipeline()
	mock.ExpectSet("room:2:shapes:warm", "1", ttl).SetVal("OK")
	mock.ExpectTxPipelineExec()

	require.NoError(t, c.Warm(context.Background(), 2, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLastWarmStripsRecordIDs(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db, 100, ttl)

	mock.ExpectTxPipeline()
	mock.ExpectExists("room:8:shapes:warm").SetVal(1)
	mock.ExpectZRange("room:8:shapes", -2, -1).SetVal([]string{`3:{"a":1}`, "9:x:y"})
	mock.ExpectTxPipelineExec()

	out, ok, err := c.Last(context.Background(), 8, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{`{"a":1}`, "x:y"}, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLastColdIsMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db, 100, ttl)

	mock.ExpectTxPipeline()
	mock.ExpectExists("room:8:shapes:warm").SetVal(0)
	mock.ExpectZRange("room:8:shapes", -5, -1).SetVal([]string{"1:partial"})
	mock.ExpectTxPipelineExec()

	out, ok, err := c.Last(context.Background(), 8, 5)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, out)
}

func TestLastAboveCapacityIsMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db, 10, ttl)

	_, ok, err := c.Last(context.Background(), 8, 11)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLastError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db, 10, ttl)

	mock.ExpectTxPipeline()
	mock.ExpectExists("room:8:shapes:warm").SetErr(errors.New("READONLY"))

	_, ok, err := c.Last(context.Background(), 8, 3)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestTouchExtendsEveryRoom(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db, 10, ttl)

	mock.ExpectExpire("room:1:shapes", ttl).SetVal(true)
	mock.ExpectExpire("room:1:shapes:warm", ttl).SetVal(true)
	mock.ExpectExpire("room:9:shapes", ttl).SetVal(false)
	mock.ExpectExpire("room:9:shapes:warm", ttl).SetVal(false)

	require.NoError(t, c.Touch(context.Background(), []int64{1, 9}))
	assert.NoError(t, mock.ExpectationsWereMet())

	require.NoError(t, c.Touch(context.Background(), nil))
}

func TestInvalidateDropsWarmMarkerOnly(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db, 3, ttl)

	mock.ExpectDel("room:8:shapes:warm").SetVal(1)
	require.NoError(t, c.Invalidate(context.Background(), 8))

	// the next read is a miss, so History falls back to the log
	mock.ExpectTxPipeline()
	mock.ExpectExists("room:8:shapes:warm").SetVal(0)
	mock.ExpectZRange("room:8:shapes", -2, -1).SetVal([]string{"1:a", "3:c"})
	mock.ExpectTxPipelineExec()
	got, ok, err := c.Last(context.Background(), 8, 2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)

	assert.NoError(t, mock.ExpectationsWereMet())
}
