package timeout

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Error is returned by Wait when the deadline fires before the operation returns.
type Error struct {
	Message string
	After   time.Duration
}

func (e *Error) Error() string { return e.Message }

type result[T any] struct {
	val T
	err error
}

// Call is a running operation raced against a deadline.
type Call[T any] struct {
	done    chan result[T]
	expired chan struct{}
	timer   *time.Timer
	err     *Error

	stopOnce sync.Once
}

// Wrap starts op and a timer of length d. The template receives the deadline in
// seconds through a single %s verb, e.g. "transfer timed out after %s seconds".
//
// The deadline does not cancel op; it only changes what Wait reports. Callers
// release whatever op is blocked on and must call Cancel on every path.
func Wrap[T any](ctx context.Context, d time.Duration, template string, op func(context.Context) (T, error)) *Call[T] {
	c := &Call[T]{
		done:    make(chan result[T], 1),
		expired: make(chan struct{}),
		err: &Error{
			Message: fmt.Sprintf(template, Seconds(d)),
			After:   d,
		},
	}
	c.timer = time.AfterFunc(d, func() { close(c.expired) })

	go func() {
		v, err := op(ctx)
		c.done <- result[T]{val: v, err: err}
	}()

	return c
}

// Wait blocks until op returns, the deadline fires or ctx is done.
func (c *Call[T]) Wait(ctx context.Context) (T, error) {
	var zero T
	select {
	case r := <-c.done:
		return r.val, r.err
	case <-c.expired:
		return zero, c.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Cancel stops the timer. Safe to call more than once.
func (c *Call[T]) Cancel() {
	c.stopOnce.Do(func() { c.timer.Stop() })
}

// Seconds renders d in seconds without trailing zeros ("10", "0.05").
func Seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
