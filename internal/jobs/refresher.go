// Package jobs runs the periodic wishlist release-date reconciliation.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/matthewjhunter/courier/internal/logging"
	"github.com/matthewjhunter/courier/internal/storage"
)

// ErrRefreshRunning is returned by Trigger while another refresh is in
// progress.
var ErrRefreshRunning = errors.New("a wishlist refresh is already running")

// Refreshable is the store side of a bulk refresh.
type Refreshable interface {
	BulkRefresh(ctx context.Context, lookup storage.ReleaseLookup) (storage.RefreshSummary, error)
}

// Status describes the most recent refresh.
type Status struct {
	LastRun     *time.Time              `json:"last_run,omitempty"`
	LastSummary *storage.RefreshSummary `json:"last_summary,omitempty"`
	LastError   string                  `json:"last_error,omitempty"`
	Running     bool                    `json:"running"`
	LoopActive  bool                    `json:"loop_active"`
}

// Refresher re-fetches release dates for every wishlisted game, once at
// start and then on a fixed interval. Runs never overlap.
type Refresher struct {
	store    Refreshable
	lookup   storage.ReleaseLookup
	interval time.Duration
	log      *log.Logger
	now      func() time.Time

	run sync.Mutex // held for the duration of one refresh

	mu      sync.Mutex
	status  Status
	running bool
}

func NewRefresher(store Refreshable, lookup storage.ReleaseLookup, interval time.Duration, logger *log.Logger) *Refresher {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Refresher{
		store:    store,
		lookup:   lookup,
		interval: interval,
		log:      logging.OrNop(logger).WithPrefix("refresh"),
		now:      time.Now,
	}
}

// Trigger runs one refresh now. It fails fast with ErrRefreshRunning
// instead of queueing behind a refresh that is already in progress.
func (r *Refresher) Trigger(ctx context.Context) (storage.RefreshSummary, error) {
	if !r.run.TryLock() {
		return storage.RefreshSummary{}, ErrRefreshRunning
	}
	defer r.run.Unlock()
	return r.refresh(ctx)
}

func (r *Refresher) refresh(ctx context.Context) (storage.RefreshSummary, error) {
	r.mu.Lock()
	r.running = true
	r.mu.Unlock()

	start := r.now()
	sum, err := r.store.BulkRefresh(ctx, r.lookup)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = false
	r.status.LastRun = &start
	r.status.LastSummary = &sum
	r.status.LastError = ""
	if err != nil {
		r.status.LastError = err.Error()
		r.log.Error("refresh failed", "err", err, "summary", sum.String())
	} else {
		r.log.Info("refresh complete", "summary", sum.String(), "took", r.now().Sub(start).Round(time.Millisecond))
	}
	return sum, err
}

// Status returns a snapshot of the last refresh.
func (r *Refresher) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.status
	s.Running = r.running
	return s
}

// Run refreshes immediately and then every interval until ctx is
// cancelled. A tick that finds a manual refresh in progress is skipped.
func (r *Refresher) Run(ctx context.Context) error {
	r.setLoopActive(true)
	defer r.setLoopActive(false)
	r.log.Info("refresh loop started", "interval", r.interval)

	r.tick(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.log.Info("refresh loop stopped")
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Refresher) tick(ctx context.Context) {
	_, err := r.Trigger(ctx)
	if errors.Is(err, ErrRefreshRunning) {
		r.log.Warn("skipping scheduled refresh, one is already running")
	}
}

func (r *Refresher) setLoopActive(v bool) {
	r.mu.Lock()
	r.status.LoopActive = v
	r.mu.Unlock()
}
