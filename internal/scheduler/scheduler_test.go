package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryRunsImmediatelyThenOnTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	done := make(chan struct{})
	go func() {
		Every(ctx, 20*time.Millisecond, "test", func(context.Context) error {
			runs.Add(1)
			return nil
		})
		close(done)
	}()

	require.Eventually(t, func() bool { return runs.Load() >= 3 },
		time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestEveryKeepsTickingAfterError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	go Every(ctx, 10*time.Millisecond, "test", func(context.Context) error {
		if runs.Add(1) == 1 {
			return assert.AnError
		}
		return nil
	})

	require.Eventually(t, func() bool { return runs.Load() >= 3 },
		time.Second, 5*time.Millisecond)
}

func TestGatedTaskPicksUpEnableMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// a task that re-checks a hot-reloadable flag each tick starts doing
	// work as soon as the flag flips, without restarting the loop
	var enabled atomic.Bool
	var work atomic.Int32
	go Every(ctx, 10*time.Millisecond, "gated", func(context.Context) error {
		if !enabled.Load() {
			return nil
		}
		work.Add(1)
		return nil
	})

	require.Never(t, func() bool { return work.Load() > 0 },
		100*time.Millisecond, 10*time.Millisecond)

	enabled.Store(true)
	require.Eventually(t, func() bool { return work.Load() > 0 },
		time.Second, 10*time.Millisecond)
}
