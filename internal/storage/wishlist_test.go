package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestWishlist(t *testing.T) *WishlistStore {
	t.Helper()
	store, err := OpenWishlist(filepath.Join(t.TempDir(), "wishlist.db"), nil)
	if err != nil {
		t.Fatalf("OpenWishlist failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestWishlistAddUniqueness(t *testing.T) {
	store := newTestWishlist(t)
	game := Game{ID: 1942, Name: "The Witcher 3", Slug: "the-witcher-3", Platforms: []string{"PC", "PS4"}}

	if !store.Add("u1", game) {
		t.Fatal("first Add should return true")
	}
	if store.Add("u1", game) {
		t.Error("second Add should return false")
	}

	items, err := store.ListForUser("u1")
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 row, got %d", len(items))
	}
	if items[0].Platforms != "PC, PS4" {
		t.Errorf("platforms = %q, want %q", items[0].Platforms, "PC, PS4")
	}
	if !store.IsInWishlist("u1", 1942) || store.IsInWishlist("u2", 1942) {
		t.Error("IsInWishlist disagrees with stored rows")
	}
}

func TestWishlistAddConcurrent(t *testing.T) {
	store := newTestWishlist(t)
	game := Game{ID: 7, Name: "Race"}

	var wg sync.WaitGroup
	results := make([]bool, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = store.Add("u1", game)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, ok := range results {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly one successful add, got %d", wins)
	}
}

func TestWishlistAddRejectsMissingID(t *testing.T) {
	store := newTestWishlist(t)
	if store.Add("u1", Game{Name: "No id"}) {
		t.Error("Add without a game id should return false")
	}
}

func TestGameReleaseDate(t *testing.T) {
	explicit := int64(500)
	tests := []struct {
		name string
		game Game
		want *int64
	}{
		{"explicit", Game{FirstReleaseDate: &explicit, ReleaseDates: []int64{100}}, &explicit},
		{"min nested", Game{ReleaseDates: []int64{300, 0, 200}}, int64p(200)},
		{"none", Game{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.game.ReleaseDate()
			switch {
			case got == nil && tt.want == nil:
			case got == nil || tt.want == nil || *got != *tt.want:
				t.Errorf("ReleaseDate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWishlistRemoveAndClear(t *testing.T) {
	store := newTestWishlist(t)
	store.Add("u1", Game{ID: 1, Name: "A"})
	store.Add("u1", Game{ID: 2, Name: "B"})
	store.Add("u2", Game{ID: 1, Name: "A"})

	if !store.Remove("u1", 1) {
		t.Error("Remove of a listed game should be true")
	}
	if !store.Remove("u1", 1) {
		t.Error("Remove of an absent game should succeed")
	}
	if store.IsInWishlist("u1", 1) {
		t.Error("game still listed after Remove")
	}
	if !store.Clear("u1") {
		t.Fatal("Clear returned false")
	}
	items, _ := store.ListForUser("u1")
	if len(items) != 0 {
		t.Errorf("expected empty wishlist, got %d", len(items))
	}
	others, _ := store.ListForUser("u2")
	if len(others) != 1 {
		t.Errorf("Clear touched another user's wishlist: %d rows", len(others))
	}
}

func TestVisibility(t *testing.T) {
	store := newTestWishlist(t)
	if store.Visibility("u1") {
		t.Error("default visibility should be private")
	}
	if !store.SetVisibility("u1", true) {
		t.Fatal("SetVisibility returned false")
	}
	if !store.Visibility("u1") {
		t.Error("visibility should be public")
	}
	store.SetVisibility("u1", false)
	if store.Visibility("u1") {
		t.Error("visibility should be private again")
	}
}

func TestBulkRefreshAccounting(t *testing.T) {
	store := newTestWishlist(t)
	store.Add("u1", Game{ID: 1, Name: "A"})
	store.Add("u1", Game{ID: 2, Name: "B"})
	store.Add("u2", Game{ID: 3, Name: "C"})
	store.Add("u2", Game{ID: 1, Name: "A"})

	calls := 0
	lookup := func(ctx context.Context, ids []int64) ([]GameRelease, error) {
		calls++
		return []GameRelease{
			{ID: 1, FirstReleaseDate: int64p(1000)},
			{ID: 3, FirstReleaseDate: int64p(3000)},
		}, nil
	}

	sum, err := store.BulkRefresh(context.Background(), lookup)
	if err != nil {
		t.Fatalf("BulkRefresh failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single batch call, got %d", calls)
	}
	want := RefreshSummary{Updated: 2, Missing: 1}
	if sum != want {
		t.Errorf("summary = %+v, want %+v", sum, want)
	}

	for _, user := range []string{"u1", "u2"} {
		items, _ := store.ListForUser(user)
		for _, it := range items {
			if it.GameID == 1 && (it.FirstReleaseDate == nil || *it.FirstReleaseDate != 1000) {
				t.Errorf("%s: game 1 not patched: %v", user, it.FirstReleaseDate)
			}
		}
	}
}

func TestBulkRefreshBatchesAndFailures(t *testing.T) {
	store := newTestWishlist(t)
	store.batchSize = 2
	for id := int64(1); id <= 5; id++ {
		store.Add("u1", Game{ID: id, Name: "G"})
	}

	batch := 0
	lookup := func(ctx context.Context, ids []int64) ([]GameRelease, error) {
		batch++
		switch batch {
		case 1:
			return []GameRelease{{ID: ids[0], FirstReleaseDate: int64p(10)}, {ID: ids[1]}}, nil
		case 2:
			return nil, errors.New("upstream down")
		default:
			return nil, nil
		}
	}

	sum, err := store.BulkRefresh(context.Background(), lookup)
	if err != nil {
		t.Fatalf("BulkRefresh failed: %v", err)
	}
	want := RefreshSummary{Updated: 1, Unchanged: 1, Failed: 2, Missing: 1}
	if sum != want {
		t.Errorf("summary = %+v, want %+v", sum, want)
	}
}

func TestBulkRefreshCancelled(t *testing.T) {
	store := newTestWishlist(t)
	store.Add("u1", Game{ID: 1, Name: "A"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.BulkRefresh(ctx, func(ctx context.Context, ids []int64) ([]GameRelease, error) {
		t.Error("lookup should not run after cancellation")
		return nil, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestReleasesInMonth(t *testing.T) {
	store := newTestWishlist(t)
	march := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC).Unix()
	april := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC).Unix()
	store.Add("u1", Game{ID: 1, Name: "March game", FirstReleaseDate: &march})
	store.Add("u1", Game{ID: 2, Name: "April game", FirstReleaseDate: &april})
	store.Add("u1", Game{ID: 3, Name: "Undated"})

	items, err := store.ReleasesInMonth("u1", 2026, time.March, time.UTC)
	if err != nil {
		t.Fatalf("ReleasesInMonth failed: %v", err)
	}
	if len(items) != 1 || items[0].GameID != 1 {
		t.Errorf("unexpected releases: %+v", items)
	}

	if !store.SetReleaseDate("u1", 2, march) {
		t.Fatal("SetReleaseDate returned false")
	}
	items, _ = store.ReleasesInMonth("u1", 2026, time.March, nil)
	if len(items) != 2 {
		t.Errorf("expected 2 March releases after manual update, got %d", len(items))
	}
	if store.SetReleaseDate("u1", 99, march) {
		t.Error("SetReleaseDate on an unlisted game should be false")
	}
}
