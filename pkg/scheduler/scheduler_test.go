package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsJobs(t *testing.T) {
	var runs atomic.Int32
	s := New(nil)
	require.NoError(t, s.AddJob("@every 1s", JobFunc{JobName: "tick", Fn: func(context.Context) error {
		runs.Add(1)
		return nil
	}}))
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := New(nil)
	err := s.AddJob("not a schedule", JobFunc{JobName: "bad", Fn: func(context.Context) error { return nil }})
	assert.Error(t, err)
}

func TestSchedulerRunNow(t *testing.T) {
	s := New(nil)
	want := errors.New("sweep failed")
	err := s.RunNow(JobFunc{JobName: "sweep", Fn: func(context.Context) error { return want }})
	assert.ErrorIs(t, err, want)
}
