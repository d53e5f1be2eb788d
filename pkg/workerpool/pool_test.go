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

func TestPoolRunsTasks(t *testing.T) {
	p := New(Config{MaxWorkers: 2, QueueSize: 10}, nil)

	var n atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Submit(Task{Name: "inc", Run: func(context.Context) error {
			n.Add(1)
			return nil
		}}))
	}
	require.NoError(t, p.Submit(Task{Name: "fail", Run: func(context.Context) error {
		return errors.New("boom")
	}}))
	require.NoError(t, p.Submit(Task{Name: "panic", Run: func(context.Context) error {
		panic("bad")
	}}))

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, int32(5), n.Load())

	s := p.Stats()
	assert.Equal(t, int64(5), s.Completed)
	assert.Equal(t, int64(2), s.Failed)
	assert.ErrorIs(t, p.Submit(Task{Run: func(context.Context) error { return nil }}), ErrPoolClosed)
}

func TestPoolFull(t *testing.T) {
	p := New(Config{MaxWorkers: 1, QueueSize: 1}, nil)
	block := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, p.Submit(Task{Run: func(context.Context) error {
		close(started)
		<-block
		return nil
	}}))
	<-started
	require.NoError(t, p.Submit(Task{Run: func(context.Context) error { return nil }}))
	assert.ErrorIs(t, p.Submit(Task{Run: func(context.Context) error { return nil }}), ErrPoolFull)

	close(block)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestPoolShutdownTimeoutCancels(t *testing.T) {
	p := New(Config{MaxWorkers: 1, QueueSize: 1}, nil)
	cancelled := make(chan struct{})
	require.NoError(t, p.Submit(Task{Run: func(ctx context.Context) error {
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Shutdown(ctx), context.DeadlineExceeded)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("running task was not cancelled")
	}
}
