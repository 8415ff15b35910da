package feeds

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/matthewjhunter/courier/internal/channel"
	"github.com/matthewjhunter/courier/internal/logging"
	"github.com/matthewjhunter/courier/internal/storage"
	"golang.org/x/time/rate"
)

// State is the poller's position in its fetch/process/sleep cycle.
type State int32

const (
	StateIdle State = iota
	StateFetching
	StateProcessing
	StateSleeping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateProcessing:
		return "processing"
	case StateSleeping:
		return "sleeping"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// EntryStore is the part of the news store the poller writes to.
type EntryStore interface {
	WasPosted(url string) (bool, error)
	UpsertEntry(e storage.Entry) (string, error)
	MarkPosted(entryID string, at time.Time) error
}

// Builder turns a raw item into a storable entry.
type Builder interface {
	Build(ctx context.Context, item RawItem) storage.Entry
}

type PollerConfig struct {
	BatchSize      int
	ActiveInterval time.Duration // sleep after a non-empty batch
	IdleInterval   time.Duration // sleep after an empty batch
	ErrorBackoff   time.Duration
	PostDelay      time.Duration // minimum spacing between posts
}

// DefaultPollerConfig matches the cadence the bot has always used.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		BatchSize:      5,
		ActiveInterval: 30 * time.Second,
		IdleInterval:   60 * time.Second,
		ErrorBackoff:   60 * time.Second,
		PostDelay:      2 * time.Second,
	}
}

// CycleResult summarizes one fetch/process pass.
type CycleResult struct {
	Fetched    int   `json:"fetched"`
	Posted     int   `json:"posted"`
	Duplicates int   `json:"duplicates"`
	Skipped    int   `json:"skipped"`
	Failed     int   `json:"failed"`
	MarkRead   error `json:"-"`
}

// Poller moves unread items from a Source to a channel, persisting each
// one before it is posted and acknowledging upstream only afterwards.
type Poller struct {
	source  Source
	store   EntryStore
	builder Builder
	poster  channel.Poster
	cfg     PollerConfig
	log     *log.Logger
	limiter *rate.Limiter
	state   atomic.Int32
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewPoller(source Source, store EntryStore, builder Builder, poster channel.Poster, cfg PollerConfig, logger *log.Logger) *Poller {
	def := DefaultPollerConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.ActiveInterval <= 0 {
		cfg.ActiveInterval = def.ActiveInterval
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = def.IdleInterval
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = def.ErrorBackoff
	}
	limit := rate.Inf
	if cfg.PostDelay > 0 {
		limit = rate.Every(cfg.PostDelay)
	}
	return &Poller{
		source:  source,
		store:   store,
		builder: builder,
		poster:  poster,
		cfg:     cfg,
		log:     logging.OrNop(logger).WithPrefix("poller"),
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// State returns the current cycle state.
func (p *Poller) State() State {
	return State(p.state.Load())
}

func (p *Poller) setState(s State) {
	p.state.Store(int32(s))
}

// Run polls until ctx is cancelled. Cycle errors and panics are logged
// and followed by the error backoff; they never stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	defer p.setState(StateIdle)
	p.log.Info("poller started", "batch", p.cfg.BatchSize)
	for {
		res, err := p.safeCycle(ctx)
		if ctx.Err() != nil {
			p.log.Info("poller stopped")
			return ctx.Err()
		}

		wait := p.nextWait(res, err)
		p.setState(StateSleeping)
		if err := p.sleep(ctx, wait); err != nil {
			p.log.Info("poller stopped")
			return err
		}
	}
}

// nextWait picks the sleep after a cycle: the error backoff after a
// failure, the active interval after a non-empty batch, else the idle
// interval.
func (p *Poller) nextWait(res CycleResult, err error) time.Duration {
	switch {
	case err != nil:
		p.log.Error("poll cycle failed", "err", err, "backoff", p.cfg.ErrorBackoff)
		return p.cfg.ErrorBackoff
	case res.Fetched > 0:
		p.log.Info("poll cycle done", "fetched", res.Fetched, "posted", res.Posted,
			"duplicates", res.Duplicates, "failed", res.Failed)
		return p.cfg.ActiveInterval
	}
	return p.cfg.IdleInterval
}

func (p *Poller) safeCycle(ctx context.Context) (res CycleResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("poll cycle panicked: %v", r)
		}
	}()
	return p.RunOnce(ctx)
}

// RunOnce performs a single fetch/process pass. A failure on one item
// leaves it unacknowledged for the next pass and does not affect the
// others. Items are acknowledged upstream once, after every item has been
// attempted; an acknowledgement failure is recorded in the result.
func (p *Poller) RunOnce(ctx context.Context) (CycleResult, error) {
	var res CycleResult

	p.setState(StateFetching)
	items, err := p.source.FetchUnread(ctx, p.cfg.BatchSize)
	if err != nil {
		return res, fmt.Errorf("failed to fetch unread items: %w", err)
	}
	res.Fetched = len(items)
	if len(items) == 0 {
		p.setState(StateIdle)
		return res, nil
	}

	p.setState(StateProcessing)
	var done []RawItem
	for _, item := range items {
		ok, err := p.handle(ctx, item, &res)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return res, err
			}
			res.Failed++
			p.log.Warn("item failed", "url", item.URL, "err", err)
			continue
		}
		if ok {
			done = append(done, item)
		}
	}

	if len(done) > 0 {
		if err := p.source.MarkRead(ctx, done); err != nil {
			p.log.Error("failed to mark items read", "count", len(done), "err", err)
			res.MarkRead = err
		}
	}
	p.setState(StateIdle)
	return res, nil
}

// handle processes one item and reports whether it may be acknowledged.
func (p *Poller) handle(ctx context.Context, item RawItem, res *CycleResult) (bool, error) {
	if item.URL == "" {
		p.log.Warn("skipping item without url", "title", item.Title)
		res.Skipped++
		return true, nil
	}

	posted, err := p.store.WasPosted(item.URL)
	if err != nil {
		return false, err
	}
	if posted {
		p.log.Debug("already posted", "url", item.URL)
		res.Duplicates++
		return true, nil
	}

	entry := p.builder.Build(ctx, item)
	id, err := p.store.UpsertEntry(entry)
	if err != nil {
		return false, err
	}
	entry.EntryID = id

	if err := p.limiter.Wait(ctx); err != nil {
		return false, err
	}
	if err := p.poster.Post(ctx, entry); err != nil {
		return false, fmt.Errorf("failed to post: %w", err)
	}
	res.Posted++

	if err := p.store.MarkPosted(id, p.now()); err != nil {
		// The post went out; acknowledging avoids a second one.
		p.log.Error("failed to record post", "entry", id, "err", err)
	}
	return true, nil
}
