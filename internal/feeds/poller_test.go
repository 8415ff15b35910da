package feeds

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matthewjhunter/courier/internal/storage"
)

type fakeSource struct {
	mu       sync.Mutex
	batches  [][]RawItem
	fetchErr error
	readErr  error
	marked   [][]RawItem
	limits   []int
}

func (f *fakeSource) FetchUnread(ctx context.Context, limit int) ([]RawItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limits = append(f.limits, limit)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	return b, nil
}

func (f *fakeSource) MarkRead(ctx context.Context, items []RawItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, items)
	return f.readErr
}

type fakePoster struct {
	mu     sync.Mutex
	posted []storage.Entry
	failOn map[string]bool
}

func (f *fakePoster) Post(ctx context.Context, e storage.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[e.URL] {
		return errors.New("channel unavailable")
	}
	f.posted = append(f.posted, e)
	return nil
}

type plainBuilder struct{}

func (plainBuilder) Build(ctx context.Context, item RawItem) storage.Entry {
	return storage.Entry{EntryID: item.ID(), URL: item.URL, Title: item.Title, Source: item.Source}
}

type panicBuilder struct{}

func (panicBuilder) Build(ctx context.Context, item RawItem) storage.Entry {
	panic("bad item")
}

func nid(v int64) *int64 { return &v }

func testPollerConfig() PollerConfig {
	return PollerConfig{
		BatchSize:      5,
		ActiveInterval: time.Millisecond,
		IdleInterval:   time.Millisecond,
		ErrorBackoff:   time.Millisecond,
	}
}

func urls(items []RawItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.URL
	}
	return out
}

func TestRunOncePostsAndMarksRead(t *testing.T) {
	store := newTestStore(t)
	src := &fakeSource{batches: [][]RawItem{{
		{NativeID: nid(1), Source: "miniflux", URL: "https://x.test/1", Title: "One"},
		{NativeID: nid(2), Source: "miniflux", URL: "https://x.test/2", Title: "Two"},
	}}}
	poster := &fakePoster{}
	p := NewPoller(src, store, plainBuilder{}, poster, testPollerConfig(), nil)

	res, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if res.Fetched != 2 || res.Posted != 2 || res.Failed != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
	if src.limits[0] != 5 {
		t.Errorf("fetch limit = %d, want 5", src.limits[0])
	}
	if len(src.marked) != 1 || len(src.marked[0]) != 2 {
		t.Fatalf("expected one mark-read call with 2 items, got %v", src.marked)
	}
	for _, u := range []string{"https://x.test/1", "https://x.test/2"} {
		if posted, _ := store.WasPosted(u); !posted {
			t.Errorf("%s not recorded as posted", u)
		}
	}
	if poster.posted[0].EntryID != "miniflux:1" {
		t.Errorf("posted entry id = %q", poster.posted[0].EntryID)
	}
	if p.State() != StateIdle {
		t.Errorf("state = %v, want idle", p.State())
	}
}

func TestRunOnceIsolatesFailures(t *testing.T) {
	store := newTestStore(t)
	src := &fakeSource{batches: [][]RawItem{{
		{NativeID: nid(1), URL: "https://x.test/ok"},
		{NativeID: nid(2), URL: "https://x.test/broken"},
		{NativeID: nid(3), URL: "https://x.test/ok2"},
	}}}
	poster := &fakePoster{failOn: map[string]bool{"https://x.test/broken": true}}
	p := NewPoller(src, store, plainBuilder{}, poster, testPollerConfig(), nil)

	res, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if res.Posted != 2 || res.Failed != 1 {
		t.Errorf("unexpected result: %+v", res)
	}
	got := urls(src.marked[0])
	if len(got) != 2 || got[0] != "https://x.test/ok" || got[1] != "https://x.test/ok2" {
		t.Errorf("failed item must stay unread, marked %v", got)
	}
	if posted, _ := store.WasPosted("https://x.test/broken"); posted {
		t.Error("failed post must not be recorded as posted")
	}
}

func TestRunOnceSkipsAlreadyPosted(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.UpsertEntry(storage.Entry{EntryID: "miniflux:9", URL: "https://x.test/dup", Title: "Dup"}); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkPosted("miniflux:9", time.Now()); err != nil {
		t.Fatal(err)
	}

	src := &fakeSource{batches: [][]RawItem{{{NativeID: nid(9), URL: "https://x.test/dup"}}}}
	poster := &fakePoster{}
	p := NewPoller(src, store, plainBuilder{}, poster, testPollerConfig(), nil)

	res, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if res.Duplicates != 1 || len(poster.posted) != 0 {
		t.Errorf("duplicate should not be reposted: %+v, posted %d", res, len(poster.posted))
	}
	if len(src.marked) != 1 {
		t.Error("duplicate should still be marked read")
	}
}

func TestRunOnceMarkReadFailureIsReported(t *testing.T) {
	store := newTestStore(t)
	src := &fakeSource{
		batches: [][]RawItem{{{NativeID: nid(1), URL: "https://x.test/1"}}},
		readErr: errors.New("upstream down"),
	}
	p := NewPoller(src, store, plainBuilder{}, &fakePoster{}, testPollerConfig(), nil)

	res, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("mark-read failure must not fail the cycle: %v", err)
	}
	if res.MarkRead == nil || res.Posted != 1 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestRunOnceFetchError(t *testing.T) {
	store := newTestStore(t)
	src := &fakeSource{fetchErr: ErrUnauthorized}
	p := NewPoller(src, store, plainBuilder{}, &fakePoster{}, testPollerConfig(), nil)

	_, err := p.RunOnce(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRunSurvivesPanicsAndStops(t *testing.T) {
	store := newTestStore(t)
	src := &fakeSource{batches: [][]RawItem{
		{{NativeID: nid(1), URL: "https://x.test/1"}},
		{{NativeID: nid(2), URL: "https://x.test/2"}},
	}}
	p := NewPoller(src, store, panicBuilder{}, &fakePoster{}, testPollerConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for {
		src.mu.Lock()
		n := len(src.limits)
		src.mu.Unlock()
		if n >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("poller stopped cycling after a panic")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// scriptedSource returns one scripted outcome per fetch, then nothing.
type scriptedSource struct {
	steps []scriptStep
}

type scriptStep struct {
	items []RawItem
	err   error
}

func (s *scriptedSource) FetchUnread(ctx context.Context, limit int) ([]RawItem, error) {
	if len(s.steps) == 0 {
		return nil, nil
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	return step.items, step.err
}

func (s *scriptedSource) MarkRead(ctx context.Context, items []RawItem) error { return nil }

func TestDefaultPollerCadence(t *testing.T) {
	def := DefaultPollerConfig()
	if def.BatchSize != 5 || def.ActiveInterval != 30*time.Second ||
		def.IdleInterval != 60*time.Second || def.ErrorBackoff != 60*time.Second {
		t.Errorf("unexpected defaults: %+v", def)
	}
}

func TestRunSleepsByOutcome(t *testing.T) {
	tests := []struct {
		name string
		cfg  PollerConfig
		want []time.Duration
	}{
		{
			name: "defaults",
			cfg:  DefaultPollerConfig(),
			want: []time.Duration{30 * time.Second, 60 * time.Second, 60 * time.Second, 60 * time.Second},
		},
		{
			name: "distinct intervals",
			cfg:  PollerConfig{ActiveInterval: time.Second, IdleInterval: 2 * time.Second, ErrorBackoff: 3 * time.Second},
			want: []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &scriptedSource{steps: []scriptStep{
				{items: []RawItem{{NativeID: nid(1), URL: "https://x.test/1"}}},
				{},
				{err: errors.New("upstream down")},
				{err: errors.New("still down")},
			}}
			tt.cfg.PostDelay = 0
			p := NewPoller(src, newTestStore(t), plainBuilder{}, &fakePoster{}, tt.cfg, nil)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			var waits []time.Duration
			p.sleep = func(ctx context.Context, d time.Duration) error {
				if p.State() != StateSleeping {
					t.Errorf("state while sleeping = %s", p.State())
				}
				waits = append(waits, d)
				if len(waits) == len(tt.want) {
					cancel()
					return ctx.Err()
				}
				return nil
			}

			if err := p.Run(ctx); !errors.Is(err, context.Canceled) {
				t.Fatalf("Run returned %v, want context.Canceled", err)
			}
			if len(waits) != len(tt.want) {
				t.Fatalf("got %d sleeps, want %d", len(waits), len(tt.want))
			}
			for i := range tt.want {
				if waits[i] != tt.want[i] {
					t.Errorf("sleep %d = %s, want %s", i, waits[i], tt.want[i])
				}
			}
		})
	}
}

type timedPoster struct {
	mu    sync.Mutex
	times []time.Time
}

func (p *timedPoster) Post(ctx context.Context, e storage.Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.times = append(p.times, time.Now())
	return nil
}

func TestRunOnceSpacesPosts(t *testing.T) {
	const delay = 80 * time.Millisecond
	src := &fakeSource{batches: [][]RawItem{{
		{NativeID: nid(1), URL: "https://x.test/1"},
		{NativeID: nid(2), URL: "https://x.test/2"},
		{NativeID: nid(3), URL: "https://x.test/3"},
	}}}
	poster := &timedPoster{}
	cfg := testPollerConfig()
	cfg.PostDelay = delay
	p := NewPoller(src, newTestStore(t), plainBuilder{}, poster, cfg, nil)

	res, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if res.Posted != 3 || len(poster.times) != 3 {
		t.Fatalf("expected 3 posts, got %+v", res)
	}
	// The limiter allows a little scheduling slack on each wait.
	for i := 1; i < len(poster.times); i++ {
		if gap := poster.times[i].Sub(poster.times[i-1]); gap < delay-10*time.Millisecond {
			t.Errorf("posts %d and %d were %s apart, want at least %s", i-1, i, gap, delay)
		}
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		StateIdle:       "idle",
		StateFetching:   "fetching",
		StateProcessing: "processing",
		StateSleeping:   "sleeping",
	} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}
