package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chantier/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMarker struct {
	mu      sync.Mutex
	results []markResult
	calls   atomic.Int32
}

type markResult struct {
	marked int
	err    error
}

func (f *fakeMarker) MarkOverdueInvoices(context.Context) (int, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.results) == 0 {
		return 0, nil
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r.marked, r.err
}

func testSweeperConfig() OverdueSweeperConfig {
	cfg := DefaultOverdueSweeperConfig()
	cfg.Enabled = true
	cfg.CronHour = 2
	cfg.CronMinute = 30
	cfg.RetryDelay = time.Millisecond
	return cfg
}

func TestParseCronSchedule(t *testing.T) {
	tests := []struct {
		name         string
		cronExpr     string
		expectedHour int
		expectedMin  int
	}{
		{name: "Default 2am", cronExpr: "0 2 * * *", expectedHour: 2, expectedMin: 0},
		{name: "3:30am", cronExpr: "30 3 * * *", expectedHour: 3, expectedMin: 30},
		{name: "Midnight", cronExpr: "0 0 * * *", expectedHour: 0, expectedMin: 0},
		{name: "Empty string defaults", cronExpr: "", expectedHour: 2, expectedMin: 0},
		{name: "Extra whitespace", cronExpr: "  15   4   *   *   *  ", expectedHour: 4, expectedMin: 15},
		{name: "Wildcard minute", cronExpr: "* 5 * * *", expectedHour: 5, expectedMin: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hour, minute, err := ParseCronSchedule(tt.cronExpr)
			assert.NoError(t, err)
			assert.Equal(t, tt.expectedHour, hour, "hour mismatch")
			assert.Equal(t, tt.expectedMin, minute, "minute mismatch")
		})
	}
}

func TestParseCronSchedule_Invalid(t *testing.T) {
	for _, expr := range []string{"30", "x 2 * * *", "0 24 * * *", "75 1 * * *"} {
		t.Run(expr, func(t *testing.T) {
			_, _, err := ParseCronSchedule(expr)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestNextDailyRun(t *testing.T) {
	before := time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 10, 2, 30, 0, 0, time.UTC), nextDailyRun(before, 2, 30))

	exact := time.Date(2026, 3, 10, 2, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 11, 2, 30, 0, 0, time.UTC), nextDailyRun(exact, 2, 30))
}

func TestOverdueSweeperConfigFrom(t *testing.T) {
	cfg, err := OverdueSweeperConfigFrom(config.LedgerConfig{
		OverdueSweepEnabled:  true,
		OverdueSweepSchedule: "45 6 * * *",
	})
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 6, cfg.CronHour)
	assert.Equal(t, 45, cfg.CronMinute)
	assert.Equal(t, 3, cfg.RetryAttempts)

	_, err = OverdueSweeperConfigFrom(config.LedgerConfig{OverdueSweepSchedule: "bad"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestOverdueSweeper_ShouldRunOncePerDay(t *testing.T) {
	s := NewOverdueSweeper(testSweeperConfig(), &fakeMarker{}, nil)

	match := time.Date(2026, 1, 15, 2, 30, 0, 0, time.UTC)
	assert.True(t, s.shouldRun(match))
	assert.False(t, s.shouldRun(match.Add(time.Hour)), "wrong hour")
	assert.False(t, s.shouldRun(match.Add(time.Minute)), "wrong minute")

	s.lastRunDate = match.Format(time.DateOnly)
	assert.False(t, s.shouldRun(match.Add(20*time.Second)), "already ran today")
	assert.True(t, s.shouldRun(match.AddDate(0, 0, 1)))
}

func TestOverdueSweeper_CheckAndRun(t *testing.T) {
	marker := &fakeMarker{results: []markResult{{marked: 4}}}
	s := NewOverdueSweeper(testSweeperConfig(), marker, nil)
	s.now = func() time.Time { return time.Date(2026, 1, 15, 2, 30, 10, 0, time.UTC) }

	s.checkAndRun(context.Background())
	s.checkAndRun(context.Background())

	assert.Equal(t, int32(1), marker.calls.Load())
	status := s.Status()
	assert.Equal(t, 4, status.LastMarked)
	require.NotNil(t, status.NextRunAt)
	assert.Equal(t, time.Date(2026, 1, 16, 2, 30, 0, 0, time.UTC), *status.NextRunAt)
}

func TestOverdueSweeper_RunNowRetries(t *testing.T) {
	t.Run("recovers after a transient failure", func(t *testing.T) {
		marker := &fakeMarker{results: []markResult{
			{marked: 1, err: errors.New("connection reset")},
			{marked: 2},
		}}
		s := NewOverdueSweeper(testSweeperConfig(), marker, nil)

		marked, err := s.RunNow(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, marked)
		assert.Equal(t, int32(2), marker.calls.Load())
		assert.Empty(t, s.Status().LastError)
	})

	t.Run("gives up after the configured attempts", func(t *testing.T) {
		boom := errors.New("db down")
		marker := &fakeMarker{results: []markResult{{err: boom}, {err: boom}, {err: boom}, {marked: 9}}}
		s := NewOverdueSweeper(testSweeperConfig(), marker, nil)

		_, err := s.RunNow(context.Background())
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, int32(3), marker.calls.Load())
		assert.Equal(t, "db down", s.Status().LastError)
	})
}

func TestOverdueSweeper_StartStop(t *testing.T) {
	t.Run("schedule off by default, manual runs still work", func(t *testing.T) {
		assert.False(t, DefaultOverdueSweeperConfig().Enabled)

		marker := &fakeMarker{results: []markResult{{marked: 1}}}
		s := NewOverdueSweeper(DefaultOverdueSweeperConfig(), marker, nil)
		assert.ErrorIs(t, s.TriggerManualRun(context.Background()), ErrSchedulerNotRunning)

		require.NoError(t, s.Start(context.Background()))
		status := s.Status()
		assert.False(t, status.Enabled)
		assert.True(t, status.IsRunning)
		assert.Nil(t, status.NextRunAt)

		require.NoError(t, s.TriggerManualRun(context.Background()))
		assert.Eventually(t, func() bool { return s.Status().LastRunAt != nil }, time.Second, 5*time.Millisecond)
		assert.Equal(t, 1, s.Status().LastMarked)
		assert.Nil(t, s.Status().NextRunAt)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, s.Stop(ctx))
	})

	t.Run("manual run while started", func(t *testing.T) {
		marker := &fakeMarker{results: []markResult{{marked: 2}}}
		s := NewOverdueSweeper(testSweeperConfig(), marker, nil)

		require.NoError(t, s.Start(context.Background()))
		require.NoError(t, s.Start(context.Background()))
		assert.True(t, s.Status().IsRunning)
		require.NotNil(t, s.Status().NextRunAt)

		require.NoError(t, s.TriggerManualRun(context.Background()))
		assert.Eventually(t, func() bool { return s.Status().LastRunAt != nil }, time.Second, 5*time.Millisecond)
		assert.Equal(t, 2, s.Status().LastMarked)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, s.Stop(ctx))
		assert.False(t, s.Status().IsRunning)
		require.NoError(t, s.Stop(ctx))
	})
}

// blockingMarker sweeps until its context is cancelled
type blockingMarker struct {
	started chan struct{}
}

func (b *blockingMarker) MarkOverdueInvoices(ctx context.Context) (int, error) {
	close(b.started)
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestOverdueSweeper_StopCancelsManualRun(t *testing.T) {
	cfg := testSweeperConfig()
	cfg.RetryAttempts = 1
	marker := &blockingMarker{started: make(chan struct{})}
	s := NewOverdueSweeper(cfg, marker, nil)
	require.NoError(t, s.Start(context.Background()))

	// the request context ends right away; the sweep must keep going
	reqCtx, endRequest := context.WithCancel(context.Background())
	require.NoError(t, s.TriggerManualRun(reqCtx))
	endRequest()
	select {
	case <-marker.started:
	case <-time.After(time.Second):
		t.Fatal("manual sweep never started")
	}
	assert.ErrorIs(t, s.TriggerManualRun(context.Background()), ErrRunInProgress)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.Equal(t, context.Canceled.Error(), s.Status().LastError)
}
