// Package sweeper releases stock held by carts nobody has touched for a while.
package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/recordstore/internal/app/metrics"
	"github.com/R3E-Network/recordstore/internal/app/storage"
	"github.com/R3E-Network/recordstore/internal/app/system"
	"github.com/R3E-Network/recordstore/internal/logging"
)

var _ system.Service = (*Sweeper)(nil)

const (
	DefaultSchedule = "@every 5m"
	DefaultTTL      = 2 * time.Hour
	sweepTimeout    = time.Minute
)

// Sweeper clears carts whose lines have been idle longer than TTL, returning
// their units to inventory. Runs on a cron schedule.
type Sweeper struct {
	carts    storage.CartStore
	log      *logging.Logger
	schedule string
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
}

// New creates a sweeper. Empty schedule and non-positive ttl take defaults.
func New(carts storage.CartStore, schedule string, ttl time.Duration, log *logging.Logger) *Sweeper {
	if log == nil {
		log = logging.NewDefault("cart-sweeper")
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Sweeper{carts: carts, log: log, schedule: schedule, ttl: ttl, now: time.Now}
}

func (s *Sweeper) Name() string { return "cart-sweeper" }

func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(s.log)),
		cron.SkipIfStillRunning(cron.PrintfLogger(s.log)),
	))
	if _, err := c.AddFunc(s.schedule, func() { s.run(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("cart sweeper schedule %q: %w", s.schedule, err)
	}
	c.Start()

	s.cron = c
	s.cancel = cancel
	s.running = true
	s.log.WithField("schedule", s.schedule).WithField("ttl", s.ttl.String()).Info("cart sweeper started")
	return nil
}

func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	c, cancel := s.cron, s.cancel
	s.running = false
	s.cron = nil
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.log.Info("cart sweeper stopped")
	return nil
}

func (s *Sweeper) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()
	if _, _, err := s.Sweep(ctx); err != nil {
		s.log.WithError(err).Warn("cart sweep failed")
	}
}

// Sweep clears every stale cart once and reports how many carts were cleared
// and how many units went back to inventory. A failure on one cart does not
// stop the others.
func (s *Sweeper) Sweep(ctx context.Context) (int, int, error) {
	cutoff := s.now().UTC().Add(-s.ttl)
	stale, err := s.carts.ListStaleCarts(ctx, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("list stale carts: %w", err)
	}

	cleared, units := 0, 0
	for _, c := range stale {
		if err := ctx.Err(); err != nil {
			return cleared, units, err
		}
		// The store re-checks staleness under its lock; a cart touched since
		// it was listed comes back with nothing released.
		released, err := s.carts.ClearStaleCart(ctx, c.ID, cutoff)
		if err != nil {
			s.log.WithError(err).WithField("cart_id", c.ID).Warn("clear stale cart failed")
			continue
		}
		if len(released) == 0 {
			continue
		}
		held := 0
		for _, d := range released {
			held += d.Amount
		}
		cleared++
		units += held
		metrics.RecordSweep(held)
		s.log.WithField("cart_id", c.ID).WithField("user_id", c.UserID).WithField("units", held).Info("stale cart cleared")
	}
	return cleared, units, nil
}
