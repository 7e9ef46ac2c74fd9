package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_AcquireRespectsLifetimeBudget(t *testing.T) {
	c := NewController(2, 5)
	ctx := context.Background()

	t1, err := c.Acquire(ctx)
	require.NoError(t, err)
	t2, err := c.Acquire(ctx)
	require.NoError(t, err)

	_, err = c.Acquire(ctx)
	assert.ErrorIs(t, err, ErrBudgetExhausted)

	t1.Release()
	t2.Release()

	// budget exhaustion persists even though both tickets were released:
	// the lifetime reservation is never returned.
	_, err = c.Acquire(ctx)
	assert.ErrorIs(t, err, ErrBudgetExhausted)
}

func TestController_ReleaseFreesConcurrencyPermitNotBudget(t *testing.T) {
	c := NewController(10, 1)
	ctx := context.Background()

	ticket, err := c.Acquire(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, c.TotalStarted())

	ticket.Release()

	ticket2, err := c.Acquire(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, c.TotalStarted())
	ticket2.Release()
}

func TestController_AcquireTimesOutWhenNoPermitFree(t *testing.T) {
	c := NewController(10, 1)
	held, err := c.Acquire(context.Background())
	require.NoError(t, err)
	defer held.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = c.Acquire(ctx)
	assert.ErrorIs(t, err, ErrConcurrencyTimeout)
}

func TestController_ReleaseIsIdempotent(t *testing.T) {
	c := NewController(10, 1)
	ticket, err := c.Acquire(context.Background())
	require.NoError(t, err)

	ticket.Release()
	ticket.Release()

	// only one permit was ever returned, so a second acquire should succeed
	// and a third (without intervening release) should time out.
	t2, err := c.Acquire(context.Background())
	require.NoError(t, err)
	defer t2.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Acquire(ctx)
	assert.ErrorIs(t, err, ErrConcurrencyTimeout)
}

func TestController_ConcurrentAcquireNeverExceedsPermits(t *testing.T) {
	c := NewController(100, 3)
	var active int32
	var maxActive int32
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticket, err := c.Acquire(context.Background())
			if err != nil {
				return
			}
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			ticket.Release()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxActive, int32(3))
	assert.EqualValues(t, 20, c.TotalStarted())
}

func TestRun_ReleasesPermitOnSuccess(t *testing.T) {
	c := NewController(10, 1)
	ctx := context.Background()

	result, err := Run(ctx, c, time.Second, func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)

	// permit must have been released: a second Run should not block.
	_, err = Run(ctx, c, time.Second, func(ctx context.Context) (string, error) {
		return "ok2", nil
	})
	require.NoError(t, err)
}

func TestRun_ReleasesPermitOnError(t *testing.T) {
	c := NewController(10, 1)
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := Run(ctx, c, time.Second, func(ctx context.Context) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = Run(ctx, c, time.Second, func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
}

func TestRun_PropagatesBudgetExhaustion(t *testing.T) {
	c := NewController(0, 1)
	ctx := context.Background()

	_, err := Run(ctx, c, time.Second, func(ctx context.Context) (string, error) {
		return "unreached", nil
	})
	assert.ErrorIs(t, err, ErrBudgetExhausted)
}
