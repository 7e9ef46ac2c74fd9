// Package task implements the Task Controller of spec §4.4: admission
// control for sub-agent delegation, bounding both the lifetime total and
// the in-flight concurrency of "task" tool calls so a misbehaving model
// cannot exhaust budget. There is no direct analog for this in sidekick
// (Temporal's workflow.Go/Channel already gives it an engine-level
// concurrency limiter), so the admission algorithm is built fresh on
// stdlib sync/atomic; the parallel-dispatch side that sits above the
// controller (agentcore) reuses sidekick's dev/handle_tool_call.go idiom of
// index-captured goroutines writing into an index-keyed result slice.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"rot/agenterr"
)

// ErrBudgetExhausted is returned by Acquire when total_started has already
// reached max_total_tasks (spec §4.4 step 1).
var ErrBudgetExhausted = fmt.Errorf("%w: task budget exhausted", agenterr.ErrToolPermissionDenied)

// ErrConcurrencyTimeout is returned by Acquire when no semaphore permit
// became available within task_timeout (spec §4.4 step 2).
var ErrConcurrencyTimeout = fmt.Errorf("%w: waiting for a free task slot", agenterr.ErrToolTimeout)

// Controller bounds the lifetime total and concurrency of recursive "task"
// tool invocations (spec §4.4); the depth cap is checked by agentcore's
// delegate before Acquire. It is safe for concurrent use.
type Controller struct {
	maxTotalTasks int64
	totalStarted  int64

	permits chan struct{}
}

// NewController builds a Controller with a lifetime cap of maxTotalTasks
// started tasks and maxConcurrentTasks permits in flight at once.
// maxConcurrentTasks must be >= 1 (spec §4.4 State).
func NewController(maxTotalTasks int, maxConcurrentTasks int) *Controller {
	if maxConcurrentTasks < 1 {
		maxConcurrentTasks = 1
	}
	permits := make(chan struct{}, maxConcurrentTasks)
	for i := 0; i < maxConcurrentTasks; i++ {
		permits <- struct{}{}
	}
	return &Controller{
		maxTotalTasks: int64(maxTotalTasks),
		permits:       permits,
	}
}

// Ticket represents one admitted task slot. Destroying it (Release)
// returns only the concurrency permit; the lifetime-budget reservation
// made in Acquire is never given back (spec §4.4 "Important invariant").
type Ticket struct {
	controller *Controller
	released   int32
}

// Release returns the concurrency permit held by t. Safe to call more than
// once; only the first call has an effect.
func (t *Ticket) Release() {
	if !atomic.CompareAndSwapInt32(&t.released, 0, 1) {
		return
	}
	t.controller.permits <- struct{}{}
}

// Acquire runs the admission algorithm of spec §4.4:
//  1. atomically reserve one unit of the lifetime total-task budget; if
//     already exhausted, fail without ever touching the semaphore.
//  2. wait for a concurrency permit, bounded by the context deadline
//     (the caller is expected to derive ctx with task_timeout).
//
// The lifetime reservation from step 1 is never released, even if step 2
// fails or the task later errors: max_total_tasks bounds the entire agent
// run, not momentary concurrency.
func (c *Controller) Acquire(ctx context.Context) (*Ticket, error) {
	for {
		current := atomic.LoadInt64(&c.totalStarted)
		if current >= c.maxTotalTasks {
			return nil, ErrBudgetExhausted
		}
		if atomic.CompareAndSwapInt64(&c.totalStarted, current, current+1) {
			break
		}
	}

	select {
	case <-c.permits:
		return &Ticket{controller: c}, nil
	case <-ctx.Done():
		return nil, ErrConcurrencyTimeout
	}
}

// TotalStarted reports how many tasks have ever been admitted, for
// diagnostics and tests.
func (c *Controller) TotalStarted() int64 {
	return atomic.LoadInt64(&c.totalStarted)
}

// Run acquires a ticket bounded by timeout, invokes fn while holding it,
// and releases the concurrency permit when fn returns — regardless of
// whether fn succeeds, errors, or times out.
func Run[T any](ctx context.Context, c *Controller, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	acquireCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticket, err := c.Acquire(acquireCtx)
	if err != nil {
		return zero, err
	}
	defer ticket.Release()

	runCtx, runCancel := context.WithTimeout(ctx, timeout)
	defer runCancel()

	result, err := fn(runCtx)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w", agenterr.ErrToolTimeout)
		}
		return zero, err
	}
	return result, nil
}
