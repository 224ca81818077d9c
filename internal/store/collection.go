// Package store keeps the normalized client-side copy of each server
// collection. Lists are always replaced wholesale by a fetch; writes go to
// the server first and are followed by a refresh, so local state never
// diverges from what the API returned.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/boddenberg/bizdesk-bfa-go/internal/domain"
	"github.com/boddenberg/bizdesk-bfa-go/internal/infra/observability"
	"github.com/boddenberg/bizdesk-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/bizdesk-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("store")

// Option configures a Collection.
type Option func(*options)

type options struct {
	defaultFilter domain.Filter
}

// WithDefaultFilter sets the filter used when a write refreshes a scope the
// collection is not currently showing.
func WithDefaultFilter(f domain.Filter) Option {
	return func(o *options) { o.defaultFilter = f }
}

// Collection is the local copy of one server collection.
type Collection[T domain.Entity] struct {
	name          string
	res           port.Resource[T]
	detail        port.Cache[T]
	metrics       *observability.Metrics
	logger        *zap.Logger
	defaultFilter domain.Filter

	// gate admits one mutation at a time.
	gate  *resilience.Bulkhead
	group singleflight.Group
	// guard, when set, vetoes writes to a record (archived invoices).
	guard func(ctx context.Context, scope domain.Scope, id string) error

	mu      sync.Mutex
	state   State
	items   []T
	total   int
	err     error
	scope   domain.Scope
	filter  domain.Filter
	loaded  bool
	version uint64
	// token identifies the latest fetch or mutation; older fetch results
	// are discarded.
	token   uint64
	subs    map[int]func(Snapshot[T])
	nextSub int
}

// NewCollection creates an idle collection backed by res.
func NewCollection[T domain.Entity](
	name string,
	res port.Resource[T],
	detail port.Cache[T],
	metrics *observability.Metrics,
	logger *zap.Logger,
	opts ...Option,
) *Collection[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Collection[T]{
		name:          name,
		res:           res,
		detail:        detail,
		metrics:       metrics,
		logger:        logger.With(zap.String("collection", name)),
		defaultFilter: o.defaultFilter,
		gate:          resilience.NewBulkhead(1),
		state:         StateIdle,
		items:         []T{},
		subs:          make(map[int]func(Snapshot[T])),
	}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// Snapshot returns the current view.
func (c *Collection[T]) Snapshot() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Collection[T]) snapshotLocked() Snapshot[T] {
	items := make([]T, len(c.items))
	copy(items, c.items)
	return Snapshot[T]{
		State:   c.state,
		Items:   items,
		Total:   c.total,
		Err:     c.err,
		Scope:   c.scope,
		Filter:  c.filter,
		Version: c.version,
	}
}

// Subscribe registers fn for every state change and returns a function
// that removes it. fn runs outside the collection lock.
func (c *Collection[T]) Subscribe(fn func(Snapshot[T])) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// commit bumps the version and returns what must be broadcast. Callers
// hold c.mu and call notify after unlocking.
func (c *Collection[T]) commit() (Snapshot[T], []func(Snapshot[T])) {
	c.version++
	snap := c.snapshotLocked()
	subs := make([]func(Snapshot[T]), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	return snap, subs
}

func notify[T any](snap Snapshot[T], subs []func(Snapshot[T])) {
	for _, fn := range subs {
		fn(snap)
	}
}

// Matches reports whether the collection currently holds a successful
// fetch of scope and filter.
func (c *Collection[T]) Matches(scope domain.Scope, filter domain.Filter) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded && c.state == StateLoaded && c.scope == scope && c.filter.Key() == filter.Key()
}

// FetchAll replaces the list with the server's view of scope and filter.
// Identical concurrent fetches share one request. When a newer fetch or a
// mutation starts before the response arrives, the response is dropped
// and *domain.ErrSuperseded is returned.
func (c *Collection[T]) FetchAll(ctx context.Context, scope domain.Scope, filter domain.Filter) (Snapshot[T], error) {
	return c.fetch(ctx, scope, filter, false)
}

func (c *Collection[T]) fetch(ctx context.Context, scope domain.Scope, filter domain.Filter, fresh bool) (Snapshot[T], error) {
	ctx, span := tracer.Start(ctx, "Collection.FetchAll")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", c.name),
		attribute.String("scope", scope.Key()),
	)

	key := scope.Key() + "?" + filter.Key()
	if fresh {
		// A refresh after a write must not join a flight that began before it.
		c.group.Forget(key)
	}

	// The shared request outlives any single waiter.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return c.load(flightCtx, scope, filter)
	})

	select {
	case <-ctx.Done():
		return c.Snapshot(), ctx.Err()
	case res := <-ch:
		snap, _ := res.Val.(Snapshot[T])
		return snap, res.Err
	}
}

// load runs one list request and applies it if it is still the latest.
func (c *Collection[T]) load(ctx context.Context, scope domain.Scope, filter domain.Filter) (Snapshot[T], error) {
	c.mu.Lock()
	c.token++
	tok := c.token
	c.state = StateLoading
	snap, subs := c.commit()
	c.mu.Unlock()
	notify(snap, subs)

	start := time.Now()
	page, err := c.res.List(ctx, scope, filter)
	c.metrics.RecordRequestDuration(c.name+".fetch", time.Since(start))

	c.mu.Lock()
	if tok != c.token {
		current := c.snapshotLocked()
		c.mu.Unlock()
		c.metrics.IncrSuperseded(c.name)
		c.logger.Debug("store: discarded stale fetch", zap.String("scope", scope.Key()))
		return current, &domain.ErrSuperseded{Collection: c.name}
	}

	if err != nil {
		c.state = StateError
		c.err = err
		snap, subs = c.commit()
		c.mu.Unlock()
		notify(snap, subs)

		c.metrics.IncrFetch(c.name, "error")
		c.logger.Warn("store: fetch failed",
			zap.String("scope", scope.Key()),
			zap.Error(err),
		)
		return snap, fmt.Errorf("fetch %s: %w", c.name, err)
	}

	c.items = page.Items
	if c.items == nil {
		c.items = []T{}
	}
	c.total = page.Total
	c.scope = scope
	c.filter = filter
	c.state = StateLoaded
	c.err = nil
	c.loaded = true
	snap, subs = c.commit()
	c.mu.Unlock()
	notify(snap, subs)

	c.metrics.IncrFetch(c.name, "success")
	return snap, nil
}

// Get returns one record for a detail view, from the detail cache when
// possible.
func (c *Collection[T]) Get(ctx context.Context, scope domain.Scope, id string) (T, error) {
	ctx, span := tracer.Start(ctx, "Collection.Get")
	defer span.End()

	key := detailKey(scope, id)
	if v, ok := c.detail.Get(key); ok {
		c.metrics.IncrCacheHit(c.name)
		return v, nil
	}
	c.metrics.IncrCacheMiss(c.name)

	v, err := c.res.Get(ctx, scope, id)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("get %s %s: %w", c.name, id, err)
	}
	c.detail.Set(key, v)
	return v, nil
}

// Create sends entity to the server and then re-fetches the list.
func (c *Collection[T]) Create(ctx context.Context, scope domain.Scope, entity T) (MutationResult[T], error) {
	return c.mutate(ctx, "create", scope, "", func(ctx context.Context) (T, error) {
		return c.res.Create(ctx, scope, entity)
	})
}

// Update replaces the record id on the server and then re-fetches the list.
func (c *Collection[T]) Update(ctx context.Context, scope domain.Scope, id string, entity T) (MutationResult[T], error) {
	return c.mutate(ctx, "update", scope, id, func(ctx context.Context) (T, error) {
		return c.res.Update(ctx, scope, id, entity)
	})
}

// mutate runs write under the mutation gate, then refreshes the list.
// A refresh failure after a successful write is returned wrapped; the
// written entity is still reported.
func (c *Collection[T]) mutate(ctx context.Context, op string, scope domain.Scope, id string, write func(context.Context) (T, error)) (MutationResult[T], error) {
	ctx, span := tracer.Start(ctx, "Collection."+op)
	defer span.End()
	span.SetAttributes(attribute.String("collection", c.name))

	var result MutationResult[T]
	if err := c.gate.Acquire(ctx); err != nil {
		return result, err
	}
	defer c.gate.Release()

	if id != "" && c.guard != nil {
		if err := c.guard(ctx, scope, id); err != nil {
			c.metrics.IncrMutation(c.name, op, "rejected")
			return result, err
		}
	}

	c.begin()
	entity, err := write(ctx)
	if id != "" {
		c.detail.Delete(detailKey(scope, id))
	}
	if err != nil {
		c.fail(op, err)
		return result, fmt.Errorf("%s %s: %w", op, c.name, err)
	}
	c.metrics.IncrMutation(c.name, op, "success")

	result.Entity = entity
	result.Policy = RefreshRequery
	result.Snapshot, err = c.refresh(ctx, scope)
	if err != nil {
		return result, fmt.Errorf("refresh after %s: %w", op, err)
	}
	return result, nil
}

// Remove deletes id on the server and drops it from the local list.
// Removing an id that is already gone is a no-op.
func (c *Collection[T]) Remove(ctx context.Context, scope domain.Scope, id string) (MutationResult[T], error) {
	ctx, span := tracer.Start(ctx, "Collection.remove")
	defer span.End()
	span.SetAttributes(attribute.String("collection", c.name))

	result := MutationResult[T]{Policy: RefreshLocalRemove}
	if err := c.gate.Acquire(ctx); err != nil {
		return result, err
	}
	defer c.gate.Release()

	c.begin()
	err := c.res.Delete(ctx, scope, id)
	var nf *domain.ErrNotFound
	if err != nil && !errors.As(err, &nf) {
		c.fail("remove", err)
		return result, fmt.Errorf("remove %s: %w", c.name, err)
	}
	c.detail.Delete(detailKey(scope, id))
	c.metrics.IncrMutation(c.name, "remove", "success")

	c.mu.Lock()
	if c.scope == scope {
		kept := make([]T, 0, len(c.items))
		for _, it := range c.items {
			if it.EntityID() == id {
				result.Entity = it
				continue
			}
			kept = append(kept, it)
		}
		if removed := len(c.items) - len(kept); removed > 0 && c.total >= removed {
			c.total -= removed
		}
		c.items = kept
	}
	c.settleLocked()
	snap, subs := c.commit()
	c.mu.Unlock()
	notify(snap, subs)

	result.Snapshot = snap
	return result, nil
}

// begin marks a mutation in flight. Bumping the token drops any fetch
// response that was requested before the write.
func (c *Collection[T]) begin() {
	c.mu.Lock()
	c.token++
	c.state = StateLoading
	snap, subs := c.commit()
	c.mu.Unlock()
	notify(snap, subs)
}

func (c *Collection[T]) fail(op string, err error) {
	c.mu.Lock()
	c.state = StateError
	c.err = err
	snap, subs := c.commit()
	c.mu.Unlock()
	notify(snap, subs)

	c.metrics.IncrMutation(c.name, op, "error")
	c.logger.Warn("store: mutation failed", zap.String("op", op), zap.Error(err))
}

// settleLocked leaves the loading state without new data.
func (c *Collection[T]) settleLocked() {
	c.err = nil
	if c.loaded {
		c.state = StateLoaded
	} else {
		c.state = StateIdle
	}
}

// refresh re-fetches scope with the filter the user is looking at, or the
// default filter when the collection shows another scope.
func (c *Collection[T]) refresh(ctx context.Context, scope domain.Scope) (Snapshot[T], error) {
	c.mu.Lock()
	filter := c.defaultFilter
	if c.loaded && c.scope == scope {
		filter = c.filter
	}
	c.mu.Unlock()
	return c.fetch(ctx, scope, filter, true)
}

func detailKey(scope domain.Scope, id string) string {
	return scope.Key() + "/" + id
}
