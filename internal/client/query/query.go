// Package query serves named remote queries with a stale-while-revalidate
// policy and a persisted snapshot as the single fallback layer.
package query

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/client/diag"
	"github.com/atinyakov/GophShop/internal/clock"
	"github.com/atinyakov/GophShop/internal/logger"
)

// DefaultStaleTime is how long a successful fetch stays fresh.
const DefaultStaleTime = 5 * time.Minute

// Source tells where the current value came from.
type Source int

const (
	// Remote means the value came from a successful fetch.
	Remote Source = iota
	// Cache means a fetch failed and the persisted snapshot is served instead.
	Cache
	// Snapshot means the value was loaded from the persisted snapshot at
	// startup and has not been revalidated yet.
	Snapshot
)

func (s Source) String() string {
	switch s {
	case Cache:
		return "cache"
	case Snapshot:
		return "snapshot"
	}
	return "remote"
}

// Fetcher loads a fresh value from the remote side.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Persister keeps the last value across restarts. Load reports false when
// there is no usable snapshot.
type Persister[T any] interface {
	Load() (T, bool)
	Save(v T) error
}

// Options tunes a Query. Zero fields take defaults.
type Options struct {
	StaleTime time.Duration
	Clock     clock.Clock
	Reporter  *diag.Reporter
	Logger    *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.StaleTime <= 0 {
		o.StaleTime = DefaultStaleTime
	}
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	o.Logger = logger.OrNop(o.Logger)
	if o.Reporter == nil {
		o.Reporter = diag.New(o.Logger)
	}
	return o
}

// Result is a served value.
type Result[T any] struct {
	Value  T
	Source Source
	// FetchedAt is the time of the last successful fetch, zero if none yet.
	FetchedAt time.Time
}

// Query caches one key.
type Query[T any] struct {
	key     string
	fetch   Fetcher[T]
	persist Persister[T]
	opts    Options

	mu         sync.Mutex
	value      T
	has        bool
	source     Source
	fetchedAt  time.Time
	refetching bool
	// gen counts local mutations; a fetch that started before one is discarded.
	gen uint64
}

// New creates a Query for key. persist may be nil for memory-only queries;
// otherwise its snapshot seeds the value synchronously, marked as Snapshot
// and stale.
func New[T any](key string, fetch Fetcher[T], persist Persister[T], opts Options) *Query[T] {
	q := &Query[T]{key: key, fetch: fetch, persist: persist, opts: opts.withDefaults()}
	if persist != nil {
		if v, ok := persist.Load(); ok {
			q.value, q.has, q.source = v, true, Snapshot
		}
	}
	return q
}

// Key returns the query key.
func (q *Query[T]) Key() string { return q.key }

// Read serves the cached value. A fresh value is returned as is. A stale
// value is returned too, and one background refetch is started unless one
// is already running. Without any value Read fetches synchronously.
func (q *Query[T]) Read(ctx context.Context) (Result[T], error) {
	q.mu.Lock()
	if !q.has {
		q.mu.Unlock()
		return q.Refetch(ctx)
	}
	res := q.resultLocked()
	if q.staleLocked() && !q.refetching {
		q.refetching = true
		q.opts.Reporter.Go("query.refetch "+q.key, func(ctx context.Context) error {
			defer func() {
				q.mu.Lock()
				q.refetching = false
				q.mu.Unlock()
			}()
			_, err := q.Refetch(ctx)
			return err
		})
	}
	q.mu.Unlock()
	return res, nil
}

// Refetch calls the fetcher once. On success the value is persisted and
// stored as Remote. On failure the persisted snapshot, if any, is served as
// Cache without an error; otherwise the fetch error is returned.
//
// A successful result is dropped when SetData ran while the fetch was in
// flight: the local value is newer and is returned unchanged.
func (q *Query[T]) Refetch(ctx context.Context) (Result[T], error) {
	q.mu.Lock()
	gen := q.gen
	q.mu.Unlock()

	v, err := q.fetch(ctx)
	if err == nil {
		q.mu.Lock()
		defer q.mu.Unlock()
		if q.gen != gen {
			q.opts.Logger.Debug("discarding fetch overtaken by a local update",
				zap.String("key", q.key))
			return q.resultLocked(), nil
		}
		if q.persist != nil {
			if perr := q.persist.Save(v); perr != nil {
				q.opts.Logger.Warn("failed to persist query snapshot",
					zap.String("key", q.key), zap.Error(perr))
			}
		}
		q.value, q.has, q.source = v, true, Remote
		q.fetchedAt = q.opts.Clock.Now()
		return q.resultLocked(), nil
	}

	if q.persist != nil {
		if snap, ok := q.persist.Load(); ok {
			q.opts.Logger.Info("fetch failed, serving cached snapshot",
				zap.String("key", q.key), zap.Error(err))
			q.mu.Lock()
			defer q.mu.Unlock()
			q.value, q.has, q.source = snap, true, Cache
			return q.resultLocked(), nil
		}
	}
	var zero Result[T]
	return zero, err
}

// Peek returns the current value without fetching.
func (q *Query[T]) Peek() (Result[T], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.resultLocked(), q.has
}

// SetData replaces the value and marks it fresh. The source is unchanged.
func (q *Query[T]) SetData(v T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.value, q.has = v, true
	q.fetchedAt = q.opts.Clock.Now()
	q.gen++
}

// Source returns where the current value came from.
func (q *Query[T]) Source() Source {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.source
}

func (q *Query[T]) staleLocked() bool {
	if q.fetchedAt.IsZero() {
		return true
	}
	return q.opts.Clock.Now().Sub(q.fetchedAt) >= q.opts.StaleTime
}

func (q *Query[T]) resultLocked() Result[T] {
	return Result[T]{Value: q.value, Source: q.source, FetchedAt: q.fetchedAt}
}
