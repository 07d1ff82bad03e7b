// Package jobs schedules the background maintenance runs.
package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"ewaste-backend/internal/lifecycle"

	"github.com/robfig/cron/v3"
)

const jobTimeout = 4 * time.Minute

type SweepRunner interface {
	Run(ctx context.Context, opts lifecycle.SweepOptions) (lifecycle.SweepResult, error)
}

type QuotaResetter interface {
	ResetQuotas(ctx context.Context) (int64, error)
}

type OutboxCleaner interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

type Schedules struct {
	Sweep           string
	QuotaReset      string
	OutboxCleanup   string
	OutboxRetention time.Duration
}

// Scheduler owns the cron instance. Runs of the same job never overlap.
type Scheduler struct {
	cron    *cron.Cron
	sweeper SweepRunner
	quotas  QuotaResetter
	outbox  OutboxCleaner
	sched   Schedules
}

func NewScheduler(sweeper SweepRunner, quotas QuotaResetter, outbox OutboxCleaner, sched Schedules) *Scheduler {
	if sched.OutboxCleanup == "" {
		sched.OutboxCleanup = "30 3 * * *"
	}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		sweeper: sweeper,
		quotas:  quotas,
		outbox:  outbox,
		sched:   sched,
	}
}

// Start registers every configured job and starts the cron goroutine.
func (s *Scheduler) Start() error {
	log.Println("⏰ Starting scheduled jobs")

	if _, err := s.cron.AddFunc(s.sched.Sweep, s.RunSweep); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.sched.Sweep, err)
	}
	log.Printf("   Auto-confirm sweep: %s", s.sched.Sweep)

	if s.quotas != nil && s.sched.QuotaReset != "" {
		if _, err := s.cron.AddFunc(s.sched.QuotaReset, s.RunQuotaReset); err != nil {
			return fmt.Errorf("invalid quota reset schedule %q: %w", s.sched.QuotaReset, err)
		}
		log.Printf("   Pickup quota reset: %s", s.sched.QuotaReset)
	}

	if s.outbox != nil && s.sched.OutboxRetention > 0 {
		if _, err := s.cron.AddFunc(s.sched.OutboxCleanup, s.RunOutboxCleanup); err != nil {
			return fmt.Errorf("invalid outbox cleanup schedule %q: %w", s.sched.OutboxCleanup, err)
		}
		log.Printf("   Outbox cleanup: %s (retention %s)", s.sched.OutboxCleanup, s.sched.OutboxRetention)
	}

	s.cron.Start()
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Println("⏰ Scheduled jobs stopped")
}

func (s *Scheduler) RunSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.sweeper.Run(ctx, lifecycle.SweepOptions{AsOf: start})
	if err != nil {
		log.Printf("❌ CronJob: auto-confirm sweep stopped at cursor %q: %v", result.Cursor, err)
		return
	}
	if result.Scanned > 0 {
		log.Printf("✅ CronJob: auto-confirm sweep scanned=%d settled=%d skipped=%d failed=%d (%s)",
			result.Scanned, result.Settled, result.Skipped, result.Failed, time.Since(start).Round(time.Millisecond))
	}
}

func (s *Scheduler) RunQuotaReset() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := s.quotas.ResetQuotas(ctx); err != nil {
		log.Printf("❌ CronJob: quota reset failed: %v", err)
	}
}

func (s *Scheduler) RunOutboxCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.outbox.Cleanup(ctx, s.sched.OutboxRetention)
	if err != nil {
		log.Printf("❌ CronJob: outbox cleanup failed: %v", err)
		return
	}
	log.Printf("🧹 CronJob: removed %d published outbox message(s)", n)
}
