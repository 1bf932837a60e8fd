package ingest

import (
	"boardsync/internal/services/board"
	"boardsync/internal/shape"
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	Stream = "board:ingest"
	Group  = "boardsync"

	fieldRoom    = "room"
	fieldUser    = "user"
	fieldKind    = "kind"
	fieldMessage = "message"

	kindChat = "chat"
)

// Consumer feeds shapes written to the ingest stream by out-of-band
// producers (scripts, the drawing generator) through the board service, so
// they are persisted and broadcast like any socket update. Instances share
// one consumer group: each entry is handled once across the fleet.
type Consumer struct {
	rdb   redis.Cmdable
	svc   board.IBoardService
	name  string
	count int64
	block time.Duration
}

func NewConsumer(rdb redis.Cmdable, svc board.IBoardService, name string) *Consumer {
	return &Consumer{rdb: rdb, svc: svc, name: name, count: 100, block: 2 * time.Second}
}

const (
	newEntries = ">"
	// pendingEntries reads back this consumer's delivered but unacked entries.
	pendingEntries = "0"

	ackTimeout = 2 * time.Second
)

func (c *Consumer) readArgs(from string) *redis.XReadGroupArgs {
	args := &redis.XReadGroupArgs{
		Group:    Group,
		Consumer: c.name,
		Streams:  []string{Stream, from},
		Count:    c.count,
		Block:    c.block,
	}
	if from != newEntries {
		args.Block = -1 // history reads never block
	}
	return args
}

func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, Stream, Group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// Run creates the group if needed, replays entries a previous run of this
// consumer left unacknowledged, then tails the stream until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.ensureGroup(ctx); err != nil {
		return err
	}
	if err := c.drainPending(ctx); err != nil && ctx.Err() == nil {
		zap.L().Warn("ingest.pending", zap.Error(err))
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := c.readOnce(ctx, newEntries); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			zap.L().Warn("ingest.xreadgroup", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

// drainPending handles this consumer's pending entries batch by batch until
// none are left.
func (c *Consumer) drainPending(ctx context.Context) error {
	total := 0
	for ctx.Err() == nil {
		n, err := c.readOnce(ctx, pendingEntries)
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		total += n
	}
	if total > 0 {
		zap.L().Info("ingest.pending_replayed", zap.Int("entries", total))
	}
	return nil
}

// readOnce handles one batch and acknowledges what it handled. Entries that
// fail are acknowledged too: a failed append is dropped, same as on the
// socket path. Once ctx is cancelled the batch stops; the entry cut short
// and the rest stay pending for the next run.
func (c *Consumer) readOnce(ctx context.Context, from string) (int, error) {
	res, err := c.rdb.XReadGroup(ctx, c.readArgs(from)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	ids := make([]string, 0, c.count)
batch:
	for _, st := range res {
		for _, m := range st.Messages {
			if ctx.Err() != nil {
				break batch
			}
			if err := c.handle(ctx, m); err != nil && ctx.Err() != nil {
				break batch
			}
			ids = append(ids, m.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ackTimeout)
	defer cancel()
	if err := c.rdb.XAck(actx, Stream, Group, ids...).Err(); err != nil {
		return len(ids), err
	}
	return len(ids), nil
}

// handle runs one entry through the board service. Malformed entries are
// logged and reported as handled.
func (c *Consumer) handle(ctx context.Context, m redis.XMessage) error {
	str := func(k string) string {
		v, _ := m.Values[k].(string)
		return v
	}

	roomID, err := strconv.ParseInt(str(fieldRoom), 10, 64)
	if err != nil || roomID <= 0 {
		zap.L().Debug("ingest.bad_room", zap.String("id", m.ID))
		return nil
	}
	userID, msg := str(fieldUser), str(fieldMessage)

	if str(fieldKind) == kindChat {
		err = c.svc.HandleChat(ctx, userID, roomID, msg)
	} else {
		if _, derr := shape.Decode(msg); derr != nil {
			zap.L().Debug("ingest.bad_shape", zap.String("id", m.ID), zap.Error(derr))
			return nil
		}
		err = c.svc.HandleShapeUpdate(ctx, userID, roomID, msg)
	}
	if err != nil {
		zap.L().Warn("ingest.handle", zap.String("id", m.ID), zap.Int64("room", roomID), zap.Error(err))
	}
	return err
}

// PublishShape appends a shape for roomID to the ingest stream.
func PublishShape(ctx context.Context, rdb redis.Cmdable, roomID int64, userID string, s shape.Shape) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	payload, err := shape.Encode(s)
	if err != nil {
		return "", err
	}
	return rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: Stream,
		Values: []interface{}{
			fieldRoom, strconv.FormatInt(roomID, 10),
			fieldUser, userID,
			fieldMessage, payload,
		},
	}).Result()
}
