package roomcache

import (
	"boardsync/internal/store/chatlog"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache mirrors the tail of every room's shape log into a Redis sorted set
// scored by record id:
//
//	room:<id>:shapes       ZSET  "<recordId>:<payload>" -> recordId
//	room:<id>:shapes:warm  "1"   set once the ZSET holds the full tail
//
// Pushes always land in the set, so a warm-up racing with live appends merges
// instead of losing records; reads only trust the set while the warm marker
// is present.
type Cache struct {
	rdb      redis.Cmdable
	capacity int64
	ttl      time.Duration
}

func New(rdb redis.Cmdable, capacity int, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, capacity: int64(capacity), ttl: ttl}
}

func shapesKey(roomID int64) string { return fmt.Sprintf("room:%d:shapes", roomID) }
func warmKey(roomID int64) string   { return fmt.Sprintf("room:%d:shapes:warm", roomID) }

func member(rec chatlog.Record) redis.Z {
	return redis.Z{
		Score:  float64(rec.ID),
		Member: fmt.Sprintf("%d:%s", rec.ID, rec.Message),
	}
}

// Push adds an appended record and refreshes both keys' TTL.
func (c *Cache) Push(ctx context.Context, rec chatlog.Record) error {
	key := shapesKey(rec.RoomID)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, member(rec))
		pipe.ZRemRangeByRank(ctx, key, 0, -(c.capacity + 1))
		pipe.Expire(ctx, key, c.ttl)
		pipe.Expire(ctx, warmKey(rec.RoomID), c.ttl)
		return nil
	})
	return err
}

// Warm loads the room's tail as read from the log and marks the set usable.
func (c *Cache) Warm(ctx context.Context, roomID int64, recs []chatlog.Record) error {
	key := shapesKey(roomID)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(recs) > 0 {
			members := make([]redis.Z, len(recs))
			for i, r := range recs {
				members[i] = member(r)
			}
			pipe.ZAdd(ctx, key, members...)
			pipe.ZRemRangeByRank(ctx, key, 0, -(c.capacity + 1))
			pipe.Expire(ctx, key, c.ttl)
		}
		pipe.Set(ctx, warmKey(roomID), "1", c.ttl)
		return nil
	})
	return err
}

// Invalidate drops the warm marker so reads miss until the next Warm. The
// set itself is kept; a warm-up merges into it.
func (c *Cache) Invalidate(ctx context.Context, roomID int64) error {
	return c.rdb.Del(ctx, warmKey(roomID)).Err()
}

// Touch extends the TTL of the given rooms' keys in one round-trip. Keys
// that do not exist are left alone.
func (c *Cache) Touch(ctx context.Context, roomIDs []int64) error {
	if len(roomIDs) == 0 {
		return nil
	}
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range roomIDs {
			pipe.Expire(ctx, shapesKey(id), c.ttl)
			pipe.Expire(ctx, warmKey(id), c.ttl)
		}
		return nil
	})
	return err
}

// Last returns up to n most recent payloads, oldest first. ok is false when
// the room is not warm or n exceeds the capacity.
func (c *Cache) Last(ctx context.Context, roomID int64, n int) ([]string, bool, error) {
	if int64(n) > c.capacity {
		return nil, false, nil
	}
	if n <= 0 {
		return []string{}, true, nil
	}

	var warm *redis.IntCmd
	var tail *redis.StringSliceCmd
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		warm = pipe.Exists(ctx, warmKey(roomID))
		tail = pipe.ZRange(ctx, shapesKey(roomID), -int64(n), -1)
		return nil
	})
	if err != nil && err != redis.Nil {
		return nil, false, err
	}
	if warm.Val() == 0 {
		return nil, false, nil
	}

	out := make([]string, 0, len(tail.Val()))
	for _, m := range tail.Val() {
		_, payload, ok := strings.Cut(m, ":")
		if !ok {
			continue
		}
		out = append(out, payload)
	}
	return out, true, nil
}
