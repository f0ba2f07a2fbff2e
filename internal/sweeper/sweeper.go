// Package sweeper periodically expires overdue offers so they leave the
// pending state even when nobody reads them.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	log "github.com/sirupsen/logrus"

	"github.com/lecfantasy/league-engine/internal/metrics"
)

// Expirer marks overdue pending offers expired and reports how many changed.
type Expirer interface {
	ExpireOffers(ctx context.Context) (int, error)
}

// Sweeper runs Expirer on a fixed interval.
type Sweeper struct {
	sched    gocron.Scheduler
	expirer  Expirer
	interval time.Duration
}

// New schedules a sweep every interval. Runs never overlap; a run still in
// progress when the next one is due causes that one to be skipped.
func New(expirer Expirer, interval time.Duration) (*Sweeper, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive, got %s", interval)
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	s := &Sweeper{sched: sched, expirer: expirer, interval: interval}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { s.Sweep(context.Background()) }),
		gocron.WithName("expire-offers"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		sched.Shutdown()
		return nil, fmt.Errorf("schedule sweep: %w", err)
	}
	return s, nil
}

// Start begins running the job. It does not block.
func (s *Sweeper) Start() {
	s.sched.Start()
	log.WithField("interval", s.interval.String()).Info("offer expiry sweep started")
}

// Stop waits for a running sweep to finish and stops the scheduler.
func (s *Sweeper) Stop() error {
	if err := s.sched.Shutdown(); err != nil {
		return fmt.Errorf("stop sweeper: %w", err)
	}
	return nil
}

// Sweep runs one expiry pass. Errors are logged; the next tick retries.
func (s *Sweeper) Sweep(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	n, err := s.expirer.ExpireOffers(ctx)
	if err != nil {
		log.WithError(err).Error("offer expiry sweep failed")
		return 0
	}
	metrics.OffersSwept.Add(float64(n))
	if n > 0 {
		log.WithField("count", n).Debug("offer expiry sweep")
	}
	return n
}
