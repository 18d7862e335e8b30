package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunBoundsConcurrency(t *testing.T) {
	t.Parallel()

	var running, peak atomic.Int32
	items := make([]int, 20)

	err := Run(context.Background(), items, 3, func(context.Context, int) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		running.Add(-1)
		return nil
	})

	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestRunReturnsFirstError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	var calls atomic.Int32
	err := Run(context.Background(), []int{1, 2, 3, 4}, 1, func(_ context.Context, n int) error {
		calls.Add(1)
		if n == 2 {
			return boom
		}
		return nil
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(4), calls.Load())
}

func TestRunSkipsWorkAfterCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	err := Run(ctx, []int{1, 2, 3}, 2, func(context.Context, int) error {
		calls.Add(1)
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls.Load())
}

func TestRunEmpty(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Run(context.Background(), []string(nil), 4, func(context.Context, string) error {
		t.Fatal("fn called for empty input")
		return nil
	}))
}

func TestCollectKeepsOrderAndErrors(t *testing.T) {
	t.Parallel()

	bad := errors.New("odd")
	results := Collect(context.Background(), []int{1, 2, 3, 4}, 2, func(_ context.Context, n int) (int, error) {
		if n%2 == 1 {
			return 0, bad
		}
		return n * 10, nil
	})

	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, i+1, r.Item)
	}
	assert.ErrorIs(t, results[0].Err, bad)
	assert.Equal(t, 20, results[1].Value)
	assert.NoError(t, results[3].Err)
	assert.Equal(t, 40, results[3].Value)
}
