package contentstore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// cronParser parses standard 5-field cron expressions (minute, hour, dom,
// month, dow) plus descriptors like "@hourly".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// JanitorConfig holds retention sweep settings.
type JanitorConfig struct {
	Schedule string        // cron expression; defaults to "@hourly"
	MaxAge   time.Duration // drop blobs not accessed within this; defaults to 7 days
}

// Janitor periodically runs the store's retention sweep on a cron schedule.
type Janitor struct {
	store  *Store
	logger *slog.Logger
	sched  cronlib.Schedule
	maxAge time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewJanitor creates a janitor for the given store. Returns an error when
// the cron expression does not parse.
func NewJanitor(store *Store, cfg JanitorConfig, logger *slog.Logger) (*Janitor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	expr := cfg.Schedule
	if expr == "" {
		expr = "@hourly"
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, err
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	return &Janitor{store: store, logger: logger, sched: sched, maxAge: maxAge}, nil
}

// Start begins the sweep loop in a background goroutine. It respects the
// provided context for shutdown.
func (j *Janitor) Start(ctx context.Context) {
	ctx, j.cancel = context.WithCancel(ctx)
	j.wg.Add(1)
	go j.loop(ctx)
	j.logger.Info("retention janitor started", "max_age", j.maxAge)
}

// Stop cancels the loop and waits for it to exit.
func (j *Janitor) Stop() {
	if j.cancel != nil {
		j.cancel()
	}
	j.wg.Wait()
}

func (j *Janitor) loop(ctx context.Context) {
	defer j.wg.Done()
	for {
		next := j.sched.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if _, err := j.store.DeleteExpired(ctx, j.maxAge); err != nil {
				j.logger.Warn("retention sweep failed", "error", err)
			}
		}
	}
}
