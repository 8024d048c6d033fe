// Package views holds the screens of the application independent of how they
// are drawn. A view owns its page and filters, derives the cache key from
// them, and turns fetch outcomes into lifecycle states and notices.
package views

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/OHshajim/MedLink/pkg/medlink/api"
	"github.com/OHshajim/MedLink/pkg/medlink/auth"
	apperrors "github.com/OHshajim/MedLink/pkg/medlink/errors"
	"github.com/OHshajim/MedLink/pkg/medlink/guard"
	"github.com/OHshajim/MedLink/pkg/medlink/paging"
	"github.com/OHshajim/MedLink/pkg/medlink/query"
)

// Deps are the shared services every view reads and mutates through
type Deps struct {
	API      api.Service
	Cache    *query.Cache
	Session  *auth.Store
	Notifier Notifier
	Now      func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Cache == nil {
		d.Cache = query.New()
	}
	if d.Session == nil {
		d.Session = auth.NewStore(nil)
	}
	if d.Notifier == nil {
		d.Notifier = NotifierFunc(func(Notice) {})
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

type base struct {
	deps Deps
	path string

	mu         sync.Mutex
	generation uint64
	closed     bool
	state      State
	totalPages int
}

func newBase(deps Deps, path string) base {
	return base{deps: deps.withDefaults(), path: path, state: StateLoading}
}

// State returns the lifecycle state of the latest load
func (b *base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Close discards every load still in flight. Later loads return ErrStale.
func (b *base) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.generation++
}

// supersede makes results of loads already in flight stale
func (b *base) supersede() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.generation++
}

func (b *base) begin() (uint64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, false
	}
	b.generation++
	b.state = StateLoading
	return b.generation, true
}

func (b *base) finish(gen uint64, st State, totalPages int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || gen != b.generation {
		return false
	}
	b.state = st
	if st != StateError {
		b.totalPages = totalPages
	}
	return true
}

func (b *base) lastTotalPages() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalPages
}

// admit runs the route guard for the view's page
func (b *base) admit() (guard.Decision, bool) {
	d := guard.Navigate(b.deps.Session.Current(), b.path)
	return d, d.Outcome == guard.Allow
}

// handle reports a failed request. It returns where to go when the failure
// ended the session.
func (b *base) handle(ctx context.Context, title string, err error) *guard.Decision {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if apperrors.IsCode(err, apperrors.ErrCodeUnauthorized) {
		logr.FromContextOrDiscard(ctx).WithName("views").Info("session rejected by server", "path", b.path)
		b.deps.Session.Logout(ctx)
		b.deps.Cache.Reset()
		return &guard.Decision{Outcome: guard.RedirectLogin, RedirectTo: guard.PathLogin, From: b.path}
	}
	b.deps.Notifier.Notify(Notice{Title: title, Description: apperrors.Message(err), Variant: VariantDestructive})
	return nil
}

// mutate runs a write and invalidates the appointments on success. Writes are
// never retried.
func (b *base) mutate(ctx context.Context, title string, fn func(context.Context) error) error {
	if d, ok := b.admit(); !ok {
		return &RedirectError{Decision: d}
	}
	if err := fn(ctx); err != nil {
		if d := b.handle(ctx, title, err); d != nil {
			return &RedirectError{Decision: *d, Err: err}
		}
		return err
	}
	b.deps.Cache.Invalidate(query.ResourceAppointments)
	return nil
}

func load[T any](ctx context.Context, b *base, key query.Key, fetch func(context.Context) (*paging.Page[T], error)) Result[T] {
	log := logr.FromContextOrDiscard(ctx).WithName("views")

	if d, ok := b.admit(); !ok {
		return Result[T]{
			State:    StateError,
			Err:      apperrors.New(apperrors.ErrCodeUnauthorized, "Please sign in to continue", nil),
			Redirect: &d,
		}
	}

	gen, ok := b.begin()
	if !ok {
		return Result[T]{Err: ErrStale, Stale: true}
	}

	page, err := query.Fetch(ctx, b.deps.Cache, key, fetch)
	if err == nil && page == nil {
		page = &paging.Page[T]{Data: []T{}, Page: paging.FirstPage}
	}

	state, totalPages := StateSuccess, 0
	switch {
	case err != nil:
		state = StateError
	case page.Empty():
		state = StateEmpty
		totalPages = page.TotalPages
	default:
		totalPages = page.TotalPages
	}

	if !b.finish(gen, state, totalPages) {
		log.V(1).Info("discarding superseded result", "key", key.String())
		return Result[T]{Err: ErrStale, Stale: true}
	}
	if err != nil {
		return Result[T]{State: StateError, Err: err, Redirect: b.handle(ctx, "Failed to load", err)}
	}
	return Result[T]{State: state, Page: page}
}
