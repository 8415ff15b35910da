package paging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type game struct {
	name string
	date *int64
}

func ts(v int64) *int64 { return &v }

func gameDate(g game) *int64 { return g.date }

func names(gs []game) []string {
	out := make([]string, len(gs))
	for i, g := range gs {
		out[i] = g.name
	}
	return out
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func ints(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestMaxPage(t *testing.T) {
	assert.Equal(t, 2, MaxPage(23, 10))
	assert.Equal(t, 1, MaxPage(20, 10))
	assert.Equal(t, 0, MaxPage(10, 10))
	assert.Equal(t, 0, MaxPage(1, 10))
	assert.Equal(t, 0, MaxPage(0, 10))
}

func TestNavigationBounds(t *testing.T) {
	s := NewSession("u1", ints(23), Options[int]{PageSize: 10})

	require.NoError(t, s.Prev("u1"))
	assert.Equal(t, 0, s.View().Page, "prev on page 0 is a no-op")

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Next("u1"))
	}
	v := s.View()
	assert.Equal(t, 2, v.Page, "next stops at max_page")
	assert.Equal(t, []int{20, 21, 22}, v.Items)
	assert.Equal(t, 20, v.Offset)
	assert.True(t, v.CanPrev)
	assert.False(t, v.CanNext)

	require.NoError(t, s.Prev("u1"))
	assert.Equal(t, 1, s.View().Page)
}

func TestEmptySnapshot(t *testing.T) {
	s := NewSession[int]("u1", nil, Options[int]{})
	v := s.View()
	assert.Equal(t, 0, v.MaxPage)
	assert.Empty(t, v.Items)
	require.NoError(t, s.Next("u1"))
	assert.Equal(t, 0, s.View().Page)
}

func TestSnapshotIsCopied(t *testing.T) {
	items := []int{1, 2, 3}
	s := NewSession("u1", items, Options[int]{})
	items[0] = 99
	assert.Equal(t, []int{1, 2, 3}, s.View().Items)
}

func TestToggleSortMissingDates(t *testing.T) {
	snapshot := []game{
		{name: "A"},
		{name: "B", date: ts(100)},
		{name: "C", date: ts(50)},
	}
	s := NewSession("u1", snapshot, Options[game]{DateKey: gameDate})

	assert.Equal(t, []string{"A", "B", "C"}, names(s.View().Items), "default is descending")
	assert.True(t, s.View().SortDescending)

	require.NoError(t, s.ToggleSort("u1"))
	assert.Equal(t, []string{"C", "B", "A"}, names(s.View().Items))
	assert.False(t, s.View().SortDescending)

	require.NoError(t, s.ToggleSort("u1"))
	assert.Equal(t, []string{"A", "B", "C"}, names(s.View().Items))
}

func TestToggleSortKeepsPage(t *testing.T) {
	var snapshot []game
	for i := 0; i < 25; i++ {
		snapshot = append(snapshot, game{name: "g", date: ts(int64(i + 1))})
	}
	s := NewSession("u1", snapshot, Options[game]{PageSize: 10, DateKey: gameDate})
	require.NoError(t, s.Next("u1"))
	require.NoError(t, s.ToggleSort("u1"))

	v := s.View()
	assert.Equal(t, 1, v.Page)
	assert.Equal(t, int64(11), *v.Items[0].date)
}

func TestToggleSortRequiresKey(t *testing.T) {
	s := NewSession("u1", ints(3), Options[int]{})
	assert.ErrorIs(t, s.ToggleSort("u1"), ErrNotSortable)
	assert.False(t, s.View().Sortable)
}

func TestSelectIsAbsolute(t *testing.T) {
	s := NewSession("u1", ints(23), Options[int]{PageSize: 10})
	require.NoError(t, s.Next("u1"))

	got, err := s.Select("u1", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, got, "index is into the snapshot, not the page")

	_, err = s.Select("u1", 23)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = s.Select("u1", -1)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestOwnerOnly(t *testing.T) {
	s := NewSession("u1", ints(23), Options[int]{})
	assert.ErrorIs(t, s.Next("u2"), ErrNotOwner)
	assert.Equal(t, 0, s.View().Page)
}

func TestClose(t *testing.T) {
	s := NewSession("u1", ints(3), Options[int]{})
	require.NoError(t, s.Close("u1"))
	assert.ErrorIs(t, s.Next("u1"), ErrClosed)
	v := s.View()
	assert.False(t, v.Active)
	assert.False(t, v.CanNext)
	assert.False(t, v.CanPrev)
}

func TestInactivityTimeout(t *testing.T) {
	c := &clock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	s := NewSession("u1", ints(30), Options[int]{Now: c.now})

	c.t = c.t.Add(299 * time.Second)
	require.NoError(t, s.Next("u1"), "interaction inside the window is accepted")

	c.t = c.t.Add(299 * time.Second)
	require.NoError(t, s.Next("u1"), "interaction resets the window")

	c.t = c.t.Add(300 * time.Second)
	assert.ErrorIs(t, s.Prev("u1"), ErrExpired)
	_, err := s.Select("u1", 0)
	assert.ErrorIs(t, err, ErrExpired)

	v := s.View()
	assert.False(t, v.Active)
	assert.False(t, v.CanPrev)
	assert.False(t, v.CanNext)
	assert.Equal(t, 2, v.Page, "expired view still renders its last state")
	assert.True(t, s.Done())
}
