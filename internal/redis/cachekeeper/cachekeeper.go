package cachekeeper

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const touchTimeout = 1500 * time.Millisecond

// Rooms reports the rooms that currently have members on this instance.
type Rooms interface {
	ActiveRooms() []int64
}

// Toucher extends the lifetime of cached room history.
type Toucher interface {
	Touch(ctx context.Context, roomIDs []int64) error
}

// Run keeps the history cache of occupied rooms from expiring: every tick it
// refreshes their TTL. Rooms nobody watches age out on their own. Blocks
// until ctx is done.
func Run(ctx context.Context, rooms Rooms, cache Toucher, every time.Duration) {
	tk := time.NewTicker(every)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			touchOnce(ctx, rooms, cache)
		}
	}
}

func touchOnce(ctx context.Context, rooms Rooms, cache Toucher) {
	ids := rooms.ActiveRooms()
	if len(ids) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, touchTimeout)
	defer cancel()
	if err := cache.Touch(ctx, ids); err != nil {
		zap.L().Warn("cachekeeper.touch", zap.Int("rooms", len(ids)), zap.Error(err))
		return
	}
	zap.L().Debug("cachekeeper.touched", zap.Int("rooms", len(ids)))
}
