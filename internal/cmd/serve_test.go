package cmd

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobarin/viralforge/internal/models"
	"github.com/bobarin/viralforge/internal/worker"
)

// blockingWork returns a work func that runs until its context is cancelled
// and a flag reporting whether it has returned.
func blockingWork() (func(context.Context), *atomic.Bool) {
	var exited atomic.Bool
	return func(ctx context.Context) {
		<-ctx.Done()
		exited.Store(true)
	}, &exited
}

func TestStartBackground_ScheduleErrorStopsWorker(t *testing.T) {
	work, exited := blockingWork()
	schedule := func() (*worker.Scheduler, error) {
		return worker.NewScheduler("not a schedule", models.Brief{}, nil, nil)
	}

	stopBackground, err := startBackground(context.Background(), work, schedule)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid run schedule")
	assert.Nil(t, stopBackground)
	assert.True(t, exited.Load(), "worker must have exited before the error is returned")
}

func TestStartBackground_StopWaitsForWorker(t *testing.T) {
	work, exited := blockingWork()
	schedule := func() (*worker.Scheduler, error) {
		return worker.NewScheduler("@every 1h", models.Brief{Topic: "hoodies"}, nil, nil)
	}

	stopBackground, err := startBackground(context.Background(), work, schedule)
	require.NoError(t, err)
	require.NotNil(t, stopBackground)
	assert.False(t, exited.Load())

	done := make(chan struct{})
	go func() {
		stopBackground()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not return")
	}
	assert.True(t, exited.Load())
}

func TestStartBackground_NothingConfigured(t *testing.T) {
	stopBackground, err := startBackground(context.Background(), nil, nil)
	require.NoError(t, err)
	stopBackground()
}

func TestStartBackground_ScheduleErrorWithoutWorker(t *testing.T) {
	boom := errors.New("boom")
	_, err := startBackground(context.Background(), nil, func() (*worker.Scheduler, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}
