// Package paging implements interactive paginated views over a snapshot
// of list results. A view never re-queries its source: navigation, sort
// toggling and drill-down all operate on the slice captured at open time.
package paging

import (
	"cmp"
	"errors"
	"slices"
	"sync"
	"time"
)

const (
	// DefaultPageSize is used when a view is opened without a page size.
	DefaultPageSize = 10
	// DefaultTimeout is the inactivity window after which a view stops
	// accepting interaction.
	DefaultTimeout = 300 * time.Second
	// MissingDate is the sort key for items without a release date, so
	// they sort last ascending and first descending.
	MissingDate int64 = 9999999999
)

var (
	ErrClosed      = errors.New("view is closed")
	ErrExpired     = errors.New("view has expired")
	ErrNotOwner    = errors.New("view belongs to another user")
	ErrNotSortable = errors.New("view has no sort key")
	ErrOutOfRange  = errors.New("item index out of range")
	ErrNotFound    = errors.New("view not found")
)

// Options configures a Session.
type Options[T any] struct {
	PageSize int
	Timeout  time.Duration
	// DateKey enables sort toggling. It returns the item's release date
	// in epoch seconds, or nil when unknown.
	DateKey func(T) *int64
	// Ascending starts a sortable view in ascending order. Views sort
	// descending by default.
	Ascending bool
	Now       func() time.Time
}

// Session is one user's paginated view over a snapshot.
type Session[T any] struct {
	mu         sync.Mutex
	owner      string
	items      []T
	pageSize   int
	page       int
	descending bool
	dateKey    func(T) *int64
	timeout    time.Duration
	lastActive time.Time
	closed     bool
	now        func() time.Time
}

// Page is the renderable state of a session.
type Page[T any] struct {
	Items          []T  `json:"items"`
	Page           int  `json:"page"`
	MaxPage        int  `json:"max_page"`
	Total          int  `json:"total"`
	Offset         int  `json:"offset"`
	Sortable       bool `json:"sortable"`
	SortDescending bool `json:"sort_descending"`
	Active         bool `json:"active"`
	CanPrev        bool `json:"can_prev"`
	CanNext        bool `json:"can_next"`
}

// NewSession captures items for owner. The slice is copied, so later
// changes by the caller do not leak into the view.
func NewSession[T any](owner string, items []T, opts Options[T]) *Session[T] {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Session[T]{
		owner:      owner,
		items:      slices.Clone(items),
		pageSize:   opts.PageSize,
		descending: !opts.Ascending,
		dateKey:    opts.DateKey,
		timeout:    opts.Timeout,
		now:        opts.Now,
	}
	s.lastActive = s.now()
	if s.dateKey != nil {
		s.sort()
	}
	return s
}

// MaxPage returns the last valid page index for n items.
func MaxPage(n, pageSize int) int {
	if pageSize <= 0 || n <= 0 {
		return 0
	}
	return (n+pageSize-1)/pageSize - 1
}

func (s *Session[T]) Owner() string { return s.owner }

func (s *Session[T]) expired() bool {
	return s.now().Sub(s.lastActive) >= s.timeout
}

// Done reports whether the session accepts no further interaction.
func (s *Session[T]) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed || s.expired()
}

// interact validates an interaction by user and runs fn under the lock.
func (s *Session[T]) interact(user string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return ErrClosed
	case s.expired():
		return ErrExpired
	case user != s.owner:
		return ErrNotOwner
	}
	if err := fn(); err != nil {
		return err
	}
	s.lastActive = s.now()
	return nil
}

// Prev moves one page back. It is a no-op on the first page.
func (s *Session[T]) Prev(user string) error {
	return s.interact(user, func() error {
		if s.page > 0 {
			s.page--
		}
		return nil
	})
}

// Next moves one page forward. It is a no-op on the last page.
func (s *Session[T]) Next(user string) error {
	return s.interact(user, func() error {
		if s.page < MaxPage(len(s.items), s.pageSize) {
			s.page++
		}
		return nil
	})
}

// ToggleSort flips the sort direction and re-sorts the whole snapshot.
// The current page index is kept.
func (s *Session[T]) ToggleSort(user string) error {
	return s.interact(user, func() error {
		if s.dateKey == nil {
			return ErrNotSortable
		}
		s.descending = !s.descending
		s.sort()
		s.page = min(s.page, MaxPage(len(s.items), s.pageSize))
		return nil
	})
}

// Select returns the item at an absolute index into the sorted snapshot.
func (s *Session[T]) Select(user string, index int) (T, error) {
	var item T
	err := s.interact(user, func() error {
		if index < 0 || index >= len(s.items) {
			return ErrOutOfRange
		}
		item = s.items[index]
		return nil
	})
	return item, err
}

// Close ends the session.
func (s *Session[T]) Close(user string) error {
	return s.interact(user, func() error {
		s.closed = true
		return nil
	})
}

// View renders the current page. Once the session is closed or expired
// the page is reported inactive with every control disabled.
func (s *Session[T]) View() Page[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	maxPage := MaxPage(len(s.items), s.pageSize)
	start := min(s.page*s.pageSize, len(s.items))
	end := min(start+s.pageSize, len(s.items))
	active := !s.closed && !s.expired()
	return Page[T]{
		Items:          slices.Clone(s.items[start:end]),
		Page:           s.page,
		MaxPage:        maxPage,
		Total:          len(s.items),
		Offset:         start,
		Sortable:       s.dateKey != nil,
		SortDescending: s.descending,
		Active:         active,
		CanPrev:        active && s.page > 0,
		CanNext:        active && s.page < maxPage,
	}
}

func (s *Session[T]) sort() {
	key := func(v T) int64 {
		if d := s.dateKey(v); d != nil && *d > 0 {
			return *d
		}
		return MissingDate
	}
	slices.SortStableFunc(s.items, func(a, b T) int {
		if s.descending {
			return cmp.Compare(key(b), key(a))
		}
		return cmp.Compare(key(a), key(b))
	})
}
