package timeout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWrap_ResolvesBeforeDeadline(t *testing.T) {
	c := Wrap(context.Background(), time.Second, "timed out after %s seconds", func(ctx context.Context) (int, error) {
		return 42, nil
	})
	defer c.Cancel()

	v, err := c.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestWrap_PropagatesOpError(t *testing.T) {
	boom := errors.New("boom")
	c := Wrap(context.Background(), time.Second, "timed out after %s seconds", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, boom
	})
	defer c.Cancel()

	_, err := c.Wait(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestWrap_DeadlineFires(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	c := Wrap(context.Background(), 20*time.Millisecond, "timed out after %s seconds", func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	})
	defer c.Cancel()

	_, err := c.Wait(context.Background())

	var te *Error
	require.ErrorAs(t, err, &te)
	require.Equal(t, "timed out after 0.02 seconds", te.Error())
	require.Equal(t, 20*time.Millisecond, te.After)
}

func TestWrap_CallerContextCancelled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	c := Wrap(context.Background(), time.Minute, "timed out after %s seconds", func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	})
	defer c.Cancel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCall_CancelIsIdempotent(t *testing.T) {
	c := Wrap(context.Background(), time.Minute, "%s", func(ctx context.Context) (int, error) { return 0, nil })
	c.Cancel()
	c.Cancel()
}

func TestSeconds(t *testing.T) {
	require.Equal(t, "10", Seconds(10*time.Second))
	require.Equal(t, "15", Seconds(15*time.Second))
	require.Equal(t, "0.05", Seconds(50*time.Millisecond))
}
