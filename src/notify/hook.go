package notify

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stake-plus/multisig-relay/src/data"
	"go.uber.org/zap"
)

const publishTimeout = 3 * time.Second

// Hook publishes events with at-most-once semantics. A failed publish is
// logged and dropped.
type Hook struct {
	rdb    *redis.Client
	stream string
	lg     *zap.Logger
	wg     sync.WaitGroup
}

func NewHook(rdb *redis.Client, stream string, lg *zap.Logger) *Hook {
	return &Hook{rdb: rdb, stream: stream, lg: lg.Named("notify")}
}

// Dispatch appends ev to the stream in the background and returns at once.
// The publish does not inherit the caller's cancellation so a finished
// request still gets its notification out.
func (h *Hook) Dispatch(ctx context.Context, ev Event) {
	ctx = context.WithoutCancel(ctx)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.publish(ctx, ev)
	}()
}

// Wait blocks until every dispatched event was published or dropped.
func (h *Hook) Wait() {
	h.wg.Wait()
}

func (h *Hook) publish(ctx context.Context, ev Event) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	id, err := data.PublishEvent(ctx, h.rdb, h.stream, ev.values())
	if err != nil {
		h.lg.Warn("notification dropped",
			zap.String("trigger", ev.Trigger),
			zap.String("call_hash", ev.CallHash),
			zap.Error(err))
		return
	}
	h.lg.Debug("notification queued", zap.String("stream_id", id), zap.String("trigger", ev.Trigger))
}
