package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chantier/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

var (
	ErrSchedulerNotRunning = errors.New("overdue sweeper is not running")
	ErrRunInProgress       = errors.New("overdue sweep already in progress")
)

// OverdueMarker moves validated invoices past their due date to overdue
type OverdueMarker interface {
	MarkOverdueInvoices(ctx context.Context) (int, error)
}

// OverdueSweeperConfig holds configuration for the daily overdue sweep
type OverdueSweeperConfig struct {
	Enabled bool
	// CronHour and CronMinute are the local time of the daily run
	CronHour   int
	CronMinute int
	// CheckInterval is how often the loop compares the clock with the schedule
	CheckInterval time.Duration
	// RunTimeout bounds one sweep including retries
	RunTimeout    time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// DefaultOverdueSweeperConfig leaves the daily schedule off; when enabled it
// runs at 02:00
func DefaultOverdueSweeperConfig() OverdueSweeperConfig {
	return OverdueSweeperConfig{
		Enabled:       false,
		CronHour:      defaultCronHour,
		CronMinute:    defaultCronMinute,
		CheckInterval: time.Minute,
		RunTimeout:    10 * time.Minute,
		RetryAttempts: 3,
		RetryDelay:    30 * time.Second,
	}
}

// OverdueSweeperConfigFrom maps the ledger section onto the sweeper defaults
func OverdueSweeperConfigFrom(cfg config.LedgerConfig) (OverdueSweeperConfig, error) {
	out := DefaultOverdueSweeperConfig()
	out.Enabled = cfg.OverdueSweepEnabled
	hour, minute, err := ParseCronSchedule(cfg.OverdueSweepSchedule)
	if err != nil {
		return out, err
	}
	out.CronHour, out.CronMinute = hour, minute
	return out, nil
}

// SweeperStatus is a point-in-time view of the sweeper
type SweeperStatus struct {
	Enabled    bool       `json:"enabled"`
	IsRunning  bool       `json:"is_running"`
	CronHour   int        `json:"cron_hour"`
	CronMinute int        `json:"cron_minute"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
	NextRunAt  *time.Time `json:"next_run_at,omitempty"`
	LastMarked int        `json:"last_marked"`
	LastError  string     `json:"last_error,omitempty"`
}

// OverdueSweeper fires mark_overdue for every validated invoice whose due
// date has passed: on demand from the maintenance API, and once a day when
// the schedule is enabled. Reads already derive the overdue display status,
// so a missed run only delays the stored transition.
type OverdueSweeper struct {
	config OverdueSweeperConfig
	marker OverdueMarker
	logger *zap.Logger
	now    func() time.Time

	runCtx    context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	inFlight  bool

	lastRunDate string
	lastRunAt   *time.Time
	nextRunAt   *time.Time
	lastMarked  int
	lastError   string
}

// NewOverdueSweeper creates a new sweeper
func NewOverdueSweeper(config OverdueSweeperConfig, marker OverdueMarker, logger *zap.Logger) *OverdueSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Minute
	}
	if config.RetryAttempts < 1 {
		config.RetryAttempts = 1
	}
	return &OverdueSweeper{
		config: config,
		marker: marker,
		logger: logger,
		now:    time.Now,
	}
}

// Start accepts manual runs until Stop and, when the schedule is enabled,
// launches the daily loop. Runs are cancelled when ctx ends or Stop is called.
func (s *OverdueSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.runCtx, s.cancel = context.WithCancel(ctx)
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Overdue sweep schedule disabled, manual runs only")
		return nil
	}
	next := nextDailyRun(s.now(), s.config.CronHour, s.config.CronMinute)
	s.nextRunAt = &next
	s.wg.Add(1)
	s.mu.Unlock()

	go s.runLoop(s.runCtx)

	s.logger.Info("Overdue sweeper started",
		zap.Int("cron_hour", s.config.CronHour),
		zap.Int("cron_minute", s.config.CronMinute),
		zap.Time("next_run_at", next),
	)
	return nil
}

// Stop cancels the loop and waits for an in-flight sweep
func (s *OverdueSweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Overdue sweeper stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Overdue sweeper stop timed out")
		return ctx.Err()
	}
}

func (s *OverdueSweeper) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAndRun(ctx)
		}
	}
}

// checkAndRun runs the sweep once per calendar day at the configured minute
func (s *OverdueSweeper) checkAndRun(ctx context.Context) {
	now := s.now()
	if !s.shouldRun(now) {
		return
	}

	s.mu.Lock()
	s.lastRunDate = now.Format(time.DateOnly)
	s.mu.Unlock()

	if _, err := s.RunNow(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("Overdue sweep failed", zap.Error(err))
	}
}

func (s *OverdueSweeper) shouldRun(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRunDate == now.Format(time.DateOnly) {
		return false
	}
	return now.Hour() == s.config.CronHour && now.Minute() == s.config.CronMinute
}

// RunNow performs one sweep with retries and records the outcome
func (s *OverdueSweeper) RunNow(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return 0, ErrRunInProgress
	}
	s.inFlight = true
	s.mu.Unlock()

	if s.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RunTimeout)
		defer cancel()
	}

	start := s.now()
	marked, err := s.sweepWithRetry(ctx)

	s.mu.Lock()
	s.inFlight = false
	s.lastRunAt = &start
	s.lastMarked = marked
	s.lastError = ""
	if err != nil {
		s.lastError = err.Error()
	}
	if s.config.Enabled {
		next := nextDailyRun(start, s.config.CronHour, s.config.CronMinute)
		s.nextRunAt = &next
	}
	s.mu.Unlock()

	if err == nil {
		s.logger.Info("Overdue sweep completed",
			zap.Int("marked", marked),
			zap.Duration("duration", s.now().Sub(start)),
		)
	}
	return marked, err
}

func (s *OverdueSweeper) sweepWithRetry(ctx context.Context) (int, error) {
	total := 0
	var lastErr error
	for attempt := 1; attempt <= s.config.RetryAttempts; attempt++ {
		marked, err := s.marker.MarkOverdueInvoices(ctx)
		total += marked
		if err == nil {
			return total, nil
		}
		lastErr = err
		if attempt == s.config.RetryAttempts {
			break
		}
		s.logger.Warn("Overdue sweep attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("retry_delay", s.config.RetryDelay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		case <-time.After(s.config.RetryDelay):
		}
	}
	return total, lastErr
}

// TriggerManualRun starts a sweep outside the schedule. The run outlives the
// caller's request but is cancelled by Stop.
func (s *OverdueSweeper) TriggerManualRun(_ context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	if s.inFlight {
		s.mu.Unlock()
		return ErrRunInProgress
	}
	runCtx := s.runCtx
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		if _, err := s.RunNow(runCtx); err != nil && runCtx.Err() == nil {
			s.logger.Error("Manual overdue sweep failed", zap.Error(err))
		}
	}()
	return nil
}

// Status returns the current sweeper state
func (s *OverdueSweeper) Status() SweeperStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SweeperStatus{
		Enabled:    s.config.Enabled,
		IsRunning:  s.isRunning,
		CronHour:   s.config.CronHour,
		CronMinute: s.config.CronMinute,
		LastRunAt:  s.lastRunAt,
		NextRunAt:  s.nextRunAt,
		LastMarked: s.lastMarked,
		LastError:  s.lastError,
	}
}
