package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsEveryTask(t *testing.T) {
	var n atomic.Int64
	tasks := make([]Task, 50)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) error {
			n.Add(1)
			return nil
		}
	}

	errs := RunAll(context.Background(), 4, tasks)
	require.Len(t, errs, 50)
	assert.Equal(t, int64(50), n.Load())
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestPool_ReportsErrors(t *testing.T) {
	boom := errors.New("boom")
	errs := RunAll(context.Background(), 2, []Task{
		func(context.Context) error { return nil },
		func(context.Context) error { return boom },
	})
	require.Len(t, errs, 2)

	failed := 0
	for _, err := range errs {
		if errors.Is(err, boom) {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
}

func TestPool_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPool(1, 0)
	results := p.Run(ctx)

	started := make(chan struct{})
	go p.Submit(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started
	cancel()

	select {
	case _, ok := <-results:
		for ok {
			_, ok = <-results
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop after cancel")
	}
}

func TestPool_RateLimit(t *testing.T) {
	p := NewPool(2, 3)
	p.SetRateLimit(20)
	results := p.Run(context.Background())

	start := time.Now()
	for i := 0; i < 3; i++ {
		p.Submit(func(context.Context) error { return nil })
	}
	p.Close()
	for range results {
	}

	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestPool_NilSafe(t *testing.T) {
	var p *Pool
	p.Submit(func(context.Context) error { return nil })
	p.SetRateLimit(1)
	p.Close()
	_, ok := <-p.Run(context.Background())
	assert.False(t, ok)
}
