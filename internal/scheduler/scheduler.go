package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/4000degrees/airmq-wind-server/internal/metrics"
	"github.com/4000degrees/airmq-wind-server/internal/wind"
)

// Ensurer is the part of the wind service the refresh loop drives.
type Ensurer interface {
	EnsureCycle(ctx context.Context, c wind.Cycle) error
}

// Config carries the refresh loop settings.
type Config struct {
	Interval       time.Duration
	Retention      int
	PublishDelay   time.Duration
	AttemptTimeout time.Duration
}

// Scheduler keeps the store stocked with the most recent publishable cycles
// and evicts everything that fell out of the retention window.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   Ensurer
	store     wind.Store
	metrics   *metrics.Collector
	cfg       Config
}

// New creates a new Scheduler.
func New(service Ensurer, store wind.Store, m *metrics.Collector, cfg Config) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		service:   service,
		store:     store,
		metrics:   m,
		cfg:       cfg,
	}
}

// Start schedules the periodic refresh and runs the first one immediately.
func (s *Scheduler) Start() error {
	minutes := int(s.cfg.Interval.Minutes())
	if minutes <= 0 {
		minutes = 10
	}

	_, err := s.scheduler.Every(minutes).Minutes().StartImmediately().Do(s.refresh)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// refresh brings the retention window up to date. Missing cycles are ensured
// concurrently; failures are logged and left for the next tick.
func (s *Scheduler) refresh() {
	log.Println("scheduler: running refresh job")

	now := time.Now().UTC()
	keep := wind.RecentCycles(now, s.cfg.Retention, s.cfg.PublishDelay)

	timeout := s.cfg.AttemptTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	var wg sync.WaitGroup
	for _, c := range keep {
		if s.store.Exists(c) {
			continue
		}

		c := c
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if err := s.service.EnsureCycle(ctx, c); err != nil {
				log.Printf("scheduler: cycle %s not ready: %v", c.Stamp(), err)
			}
		}()
	}
	wg.Wait()

	removed, err := s.store.EvictExcept(keep)
	if err != nil {
		log.Printf("scheduler: eviction incomplete: %v", err)
	}
	if removed > 0 {
		s.metrics.RecordEvicted(removed)
		log.Printf("scheduler: evicted %d stale artifacts", removed)
	}

	if cycles, err := s.store.ListCycles(); err == nil {
		s.metrics.SetCachedCycles(len(cycles))
	}

	log.Println("scheduler: completed refresh job")
}
