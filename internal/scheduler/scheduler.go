// Package scheduler owns the daily shop job and the periodic
// cache/session/store maintenance sweeps.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jdcomesta4/fortnite-itemshop-discord-bot-sub000/internal/model"
)

// Catalog produces shop snapshots.
type Catalog interface {
	Shop(ctx context.Context, force bool) (*model.Snapshot, error)
}

// Matcher dispatches wishlist notifications for a snapshot.
type Matcher interface {
	ProcessSnapshot(ctx context.Context, snap *model.Snapshot) (int, error)
}

// Store is the slice of persistence the scheduler needs.
type Store interface {
	HasPostedOn(ctx context.Context, date string) (bool, error)
	MarkPosted(ctx context.Context, date string) error
	PruneRequests(ctx context.Context, olderThan time.Time) (int64, error)
}

// CacheSweeper evicts expired result-cache entries.
type CacheSweeper interface {
	Sweep(maxAge time.Duration) int
}

// SessionSweeper evicts expired and over-capacity sessions.
type SessionSweeper interface {
	Sweep() int
}

// Config holds the scheduler's cadences.
type Config struct {
	PostTime string // "HH:MM", UTC

	RetryDelay           time.Duration
	CacheSweepInterval   time.Duration
	SessionSweepInterval time.Duration
	MaintenanceInterval  time.Duration
	MaxStaleAge          time.Duration
	RequestLogRetention  time.Duration
}

func (c *Config) applyDefaults() {
	if c.RetryDelay == 0 {
		c.RetryDelay = 5 * time.Minute
	}
	if c.CacheSweepInterval == 0 {
		c.CacheSweepInterval = time.Hour
	}
	if c.SessionSweepInterval == 0 {
		c.SessionSweepInterval = 5 * time.Minute
	}
	if c.MaxStaleAge == 0 {
		c.MaxStaleAge = 24 * time.Hour
	}
	if c.MaintenanceInterval == 0 {
		c.MaintenanceInterval = 24 * time.Hour
	}
	if c.RequestLogRetention == 0 {
		c.RequestLogRetention = 30 * 24 * time.Hour
	}
}

// Scheduler runs the daily post job at a fixed UTC time and the
// periodic sweeps on their own tickers. The daily job's failure policy
// is exactly one retry after a fixed delay, then idle until tomorrow;
// retry state is in-memory only and does not survive a restart.
type Scheduler struct {
	catalog  Catalog
	matcher  Matcher
	store    Store
	cache    CacheSweeper
	sessions SessionSweeper
	log      *slog.Logger
	cfg      Config
	now      func() time.Time
}

// New creates a Scheduler.
func New(catalog Catalog, matcher Matcher, store Store, cache CacheSweeper, sessions SessionSweeper, log *slog.Logger, cfg Config) *Scheduler {
	cfg.applyDefaults()
	return &Scheduler{
		catalog:  catalog,
		matcher:  matcher,
		store:    store,
		cache:    cache,
		sessions: sessions,
		log:      log,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Run blocks until ctx is cancelled. The daily job runs on its own
// goroutine so a slow fetch or the retry wait never stalls the sweeps.
func (s *Scheduler) Run(ctx context.Context) {
	var jobs sync.WaitGroup
	defer jobs.Wait()

	daily := time.NewTimer(s.untilNextDaily())
	defer daily.Stop()

	cacheTick := time.NewTicker(s.cfg.CacheSweepInterval)
	defer cacheTick.Stop()
	sessionTick := time.NewTicker(s.cfg.SessionSweepInterval)
	defer sessionTick.Stop()
	maintTick := time.NewTicker(s.cfg.MaintenanceInterval)
	defer maintTick.Stop()

	s.log.Info("scheduler started", "post_time", s.cfg.PostTime, "next_daily_in", s.untilNextDaily().Round(time.Second).String())

	for {
		select {
		case <-ctx.Done():
			return
		case <-daily.C:
			jobs.Add(1)
			go func() {
				defer jobs.Done()
				s.runDaily(ctx)
			}()
			daily.Reset(s.untilNextDaily())
		case <-cacheTick.C:
			if removed := s.cache.Sweep(s.cfg.MaxStaleAge); removed > 0 {
				s.log.Debug("cache sweep", "removed", removed)
			}
		case <-sessionTick.C:
			if removed := s.sessions.Sweep(); removed > 0 {
				s.log.Debug("session sweep", "removed", removed)
			}
		case <-maintTick.C:
			s.maintain(ctx)
		}
	}
}

// runDaily executes the daily post job: forced fetch, notification run,
// posted flag. One failure earns one delayed retry; a second failure is
// abandoned until tomorrow.
func (s *Scheduler) runDaily(ctx context.Context) {
	today := s.now().UTC().Format(model.DateLayout)

	posted, err := s.store.HasPostedOn(ctx, today)
	if err != nil {
		s.log.Error("posted-today check", "date", today, "error", err)
	} else if posted {
		s.log.Info("shop already posted today, skipping", "date", today)
		return
	}

	firstErr := s.postShop(ctx)
	if firstErr == nil {
		return
	}
	s.log.Error("daily shop job failed, retrying once", "date", today, "retry_in", s.cfg.RetryDelay.String(), "error", firstErr)

	select {
	case <-ctx.Done():
		return
	case <-time.After(s.cfg.RetryDelay):
	}

	if err := s.postShop(ctx); err != nil {
		s.log.Error("daily shop retry failed, giving up until tomorrow", "date", today, "error", err)
	}
}

func (s *Scheduler) postShop(ctx context.Context) error {
	snap, err := s.catalog.Shop(ctx, true)
	if err != nil {
		return fmt.Errorf("fetch shop: %w", err)
	}

	dispatched, err := s.matcher.ProcessSnapshot(ctx, snap)
	if err != nil {
		return fmt.Errorf("process snapshot: %w", err)
	}

	if err := s.store.MarkPosted(ctx, snap.Date); err != nil {
		s.log.Warn("mark posted", "date", snap.Date, "error", err)
	}

	s.log.Info("daily shop job complete", "date", snap.Date, "items", snap.TotalItems, "dispatched", dispatched)
	return nil
}

func (s *Scheduler) maintain(ctx context.Context) {
	cutoff := s.now().Add(-s.cfg.RequestLogRetention)
	pruned, err := s.store.PruneRequests(ctx, cutoff)
	if err != nil {
		s.log.Error("request log prune", "error", err)
		return
	}
	if pruned > 0 {
		s.log.Info("request log pruned", "rows", pruned)
	}
}

// untilNextDaily returns the wait until the next occurrence of the
// configured post time in UTC.
func (s *Scheduler) untilNextDaily() time.Duration {
	hour, minute := parsePostTime(s.cfg.PostTime)
	now := s.now().UTC()

	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

// parsePostTime assumes config validation already enforced HH:MM.
func parsePostTime(v string) (hour, minute int) {
	parts := strings.SplitN(v, ":", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	hour, _ = strconv.Atoi(parts[0])
	minute, _ = strconv.Atoi(parts[1])
	return hour, minute
}
