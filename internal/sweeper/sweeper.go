// Package sweeper runs the periodic expiry of stale PENDING bookings.
package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wolfman30/doctor-booking/internal/bookings"
	"github.com/wolfman30/doctor-booking/pkg/logging"
)

type expirer interface {
	ExpireStale(ctx context.Context, threshold time.Duration) ([]bookings.Booking, error)
}

// Sweeper fails PENDING bookings older than the threshold on a cron schedule.
type Sweeper struct {
	bookings  expirer
	threshold time.Duration
	schedule  string
	cron      *cron.Cron
	logger    *logging.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// New validates schedule (standard cron or @every descriptors) and prepares the job.
func New(b expirer, schedule string, threshold time.Duration, logger *logging.Logger) (*Sweeper, error) {
	if b == nil {
		return nil, fmt.Errorf("sweeper: bookings service required")
	}
	if threshold <= 0 {
		return nil, fmt.Errorf("sweeper: threshold must be positive")
	}
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.With("component", "sweeper")

	cl := cronLogger{logger}
	s := &Sweeper{
		bookings:  b,
		threshold: threshold,
		schedule:  schedule,
		logger:    logger,
		cron:      cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	if _, err := s.cron.AddFunc(schedule, func() { s.RunOnce(s.ctx) }); err != nil {
		return nil, fmt.Errorf("sweeper: schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins the schedule in the background.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
	s.logger.Info("expiry sweeper started", "schedule", s.schedule, "threshold", s.threshold.String())
}

// Stop halts the schedule and waits for a running sweep, or for ctx to end.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()
	if !started {
		return nil
	}

	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.cancel()
		s.logger.Info("expiry sweeper stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		return fmt.Errorf("sweeper: stop: %w", ctx.Err())
	}
}

// RunOnce performs one sweep and returns how many bookings expired.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	started := time.Now()
	expired, err := s.bookings.ExpireStale(ctx, s.threshold)
	if err != nil {
		s.logger.Error("expiry sweep failed", "error", err)
		return 0
	}
	if len(expired) > 0 {
		ids := make([]int64, len(expired))
		for i, b := range expired {
			ids[i] = b.ID
		}
		s.logger.Info("expired stale bookings", "count", len(expired), "booking_ids", ids, "duration_ms", time.Since(started).Milliseconds())
	} else {
		s.logger.Debug("expiry sweep found nothing")
	}
	return len(expired)
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct {
	l *logging.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
