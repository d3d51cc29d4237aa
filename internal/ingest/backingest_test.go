package ingest

import (
	"context"
	"testing"
	"time"

	"unscored/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackingest_ResumesFromCheckpoint(t *testing.T) {
	f := newIngestFixture(t, Options{BackingestCooldown: time.Millisecond}, globalState(4))
	ctx := context.Background()
	require.NoError(t, f.stateDB.SaveCheckpoint(ctx, BackingestCheckpoint, 1))
	for _, id := range []uint64{2, 4} {
		f.platform.posts[id] = &models.Envelope{Status: true, Posts: livePosts("test", id)}
	}

	b := NewBackingester(f.ingester, f.stateDB)
	var slept int
	b.sleep = func(context.Context, time.Duration) bool {
		slept++
		return true
	}

	require.NoError(t, b.Run(ctx))

	assert.Equal(t, []uint64{2, 3, 4}, f.platform.postCalls)
	assert.Equal(t, []uint64{2, 4}, f.postIDs(t))
	assert.Equal(t, 3, slept)
	pos, err := f.stateDB.Checkpoint(ctx, BackingestCheckpoint)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), pos)

	assert.ErrorIs(t, b.Run(ctx), ErrBackingestStarted)
}

func TestBackingest_StopsOnCancel(t *testing.T) {
	f := newIngestFixture(t, Options{}, globalState(10))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewBackingester(f.ingester, f.stateDB)
	b.sleep = func(context.Context, time.Duration) bool {
		cancel()
		return false
	}

	assert.ErrorIs(t, b.Run(ctx), context.Canceled)
	pos, err := f.stateDB.Checkpoint(context.Background(), BackingestCheckpoint)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), pos)
}

func TestSleepContext(t *testing.T) {
	assert.True(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleepContext(ctx, time.Hour))
	assert.False(t, sleepContext(ctx, 0))
}
