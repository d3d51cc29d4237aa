package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"unscored/internal/models"
	"unscored/internal/observability"
)

// BackingestCheckpoint names the saved position of the backingest job.
const BackingestCheckpoint = "backingest"

// ErrBackingestStarted is returned when backingest already ran in this process.
var ErrBackingestStarted = errors.New("backingest already started")

// Checkpoints persists job positions.
type Checkpoints interface {
	Checkpoint(ctx context.Context, name string) (uint64, error)
	SaveCheckpoint(ctx context.Context, name string, position uint64) error
}

// Backingester walks every post id up to the newest known one and archives
// what the platform still serves.
type Backingester struct {
	ingester    *Ingester
	checkpoints Checkpoints
	started     atomic.Bool
	sleep       func(context.Context, time.Duration) bool
}

// NewBackingester returns a Backingester resuming from checkpoints.
func NewBackingester(ingester *Ingester, checkpoints Checkpoints) *Backingester {
	return &Backingester{ingester: ingester, checkpoints: checkpoints, sleep: sleepContext}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Run archives ids from the saved checkpoint up to the global watermark,
// checkpointing after every id. It runs at most once per process and stops
// early when ctx is cancelled.
func (b *Backingester) Run(ctx context.Context) error {
	if !b.started.CompareAndSwap(false, true) {
		return ErrBackingestStarted
	}
	ctx = observability.WithCommunity(ctx, BackingestCheckpoint)

	start, err := b.checkpoints.Checkpoint(ctx, BackingestCheckpoint)
	if err != nil {
		return fmt.Errorf("load backingest checkpoint: %w", err)
	}
	global, _ := b.ingester.states.Get(models.GlobalStateKey)
	end := global.LastPostID
	observability.Logger.InfoContext(ctx, "starting backingest",
		slog.Uint64("from", start+1),
		slog.Uint64("to", end),
	)

	archived := 0
	for id := start + 1; id <= end; id++ {
		if b.ingester.IngestMissingPost(ctx, id) {
			archived++
		}
		if err := b.checkpoints.SaveCheckpoint(ctx, BackingestCheckpoint, id); err != nil {
			return fmt.Errorf("save backingest checkpoint: %w", err)
		}
		if !b.sleep(ctx, b.ingester.opts.BackingestCooldown) {
			observability.Logger.InfoContext(ctx, "backingest interrupted", slog.Uint64("at", id))
			return ctx.Err()
		}
	}
	observability.Logger.InfoContext(ctx, "backingest finished", slog.Int("archived", archived))
	return nil
}
