// Package cache holds the resource query cache shared by every list and form
// screen, and the Redis channel that carries invalidations between consoles.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/erp/mall-admin/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const defaultCloseTimeout = 5 * time.Second

var (
	// ErrClosed is returned by lookups on a closed cache
	ErrClosed = errors.New("query cache closed")
	// ErrCleared is returned to callers and subscribers of an entry that was
	// discarded by Clear. It wraps the fetch error when the fetch in flight
	// failed.
	ErrCleared = errors.New("query cache cleared")
)

// Status is the lifecycle state of a cache entry
type Status int

const (
	StatusPending Status = iota
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Fetcher loads the value of one key
type Fetcher func(ctx context.Context) (any, error)

// Listener receives every state transition of a subscribed key.
// Deliveries may overlap; Snapshot.Version orders them.
type Listener func(Snapshot)

// Broadcaster forwards local scope invalidations to other processes
type Broadcaster interface {
	Publish(ctx context.Context, scope []string) error
}

// Snapshot is the observable state of an entry at one transition.
// Generation identifies the fetch that produced it; Version increases on
// every transition of the entry.
type Snapshot struct {
	Key        Key
	Status     Status
	Value      any
	Err        error
	Generation uint64
	Version    uint64
	Stale      bool
	UpdatedAt  time.Time
}

// call is one in-flight fetch
type call struct {
	generation uint64
	done       chan struct{}
}

type entry struct {
	key        Key
	fetcher    Fetcher
	status     Status
	value      any
	hasValue   bool
	err        error
	generation uint64
	version    uint64
	updatedAt  time.Time
	call       *call
	subs       map[uint64]*Subscription
}

// QueryCache is a keyed store of remote query results with request
// de-duplication and prefix invalidation.
//
// At most one fetch per key is in flight. A response is applied only if its
// generation is still the entry's current one, so a response superseded by an
// invalidation never overwrites newer state.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type QueryCache struct {
	mu        sync.Mutex
	entries   map[string]*entry
	nextSubID uint64
	closed    bool

	keepPrevious bool
	staleTime    time.Duration
	broadcaster  Broadcaster
	logger       *zap.Logger
	metrics      *telemetry.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a QueryCache
type Option func(*QueryCache)

// WithKeepPreviousData keeps the last value visible, flagged stale, while
// an entry refetches
func WithKeepPreviousData(keep bool) Option {
	return func(c *QueryCache) { c.keepPrevious = keep }
}

// WithStaleTime lets ready values expire on their own. Zero means values
// stay fresh until invalidated.
func WithStaleTime(d time.Duration) Option {
	return func(c *QueryCache) { c.staleTime = d }
}

// WithBroadcaster publishes scope invalidations to other processes
func WithBroadcaster(b Broadcaster) Option {
	return func(c *QueryCache) { c.broadcaster = b }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *QueryCache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics counts lookups
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *QueryCache) { c.metrics = m }
}

// New creates an empty cache
func New(opts ...Option) *QueryCache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &QueryCache{
		entries:      make(map[string]*entry),
		keepPrevious: true,
		logger:       zap.NewNop(),
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key, fetching it when absent or expired.
// Concurrent callers for the same key share one fetch. A cached error is
// returned as is until the key is refetched or invalidated.
func (c *QueryCache) Get(ctx context.Context, key Key, fetcher Fetcher) (any, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	e := c.entryLocked(key, fetcher)

	var (
		cl      *call
		pending []delivery
	)
	switch {
	case e.call != nil:
		c.metrics.RecordCacheLookup(telemetry.LookupShared)
		cl = e.call
	case e.status == StatusReady && !c.expiredLocked(e):
		c.metrics.RecordCacheLookup(telemetry.LookupHit)
		v := e.value
		c.mu.Unlock()
		return v, nil
	case e.status == StatusError:
		c.metrics.RecordCacheLookup(telemetry.LookupError)
		err := e.err
		c.mu.Unlock()
		return nil, err
	default:
		c.metrics.RecordCacheLookup(telemetry.LookupMiss)
		cl = c.startFetchLocked(e)
		pending = append(pending, c.deliveryLocked(e))
	}
	c.mu.Unlock()

	deliverAll(pending)
	return c.wait(ctx, e, cl)
}

// wait blocks until the entry settles. When cl is superseded while waiting,
// it follows the newer fetch so the caller always gets the freshest result.
func (c *QueryCache) wait(ctx context.Context, e *entry, cl *call) (any, error) {
	for {
		select {
		case <-cl.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		c.mu.Lock()
		if c.entries[e.key.String()] != e {
			closed, err := c.closed, e.err
			c.mu.Unlock()
			if closed {
				return nil, ErrClosed
			}
			if err == nil {
				err = ErrCleared
			}
			return nil, err
		}
		if e.call != nil {
			cl = e.call
			c.mu.Unlock()
			continue
		}
		v, err, status := e.value, e.err, e.status
		c.mu.Unlock()

		if status == StatusError {
			return nil, err
		}
		return v, nil
	}
}

// Fetch is the typed form of Get
func Fetch[T any](ctx context.Context, c *QueryCache, key Key, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	v, err := c.Get(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache entry %s holds %T, want %T", key, v, zero)
	}
	return out, nil
}

// Subscribe mounts a consumer on key. The listener receives the current
// state immediately and every transition after that. A key with no value
// yet, or an expired one, is fetched.
func (c *QueryCache) Subscribe(key Key, fetcher Fetcher, listener Listener) *Subscription {
	c.mu.Lock()
	c.nextSubID++
	sub := &Subscription{id: c.nextSubID, key: key, cache: c, listener: listener}
	if c.closed {
		c.mu.Unlock()
		listener(Snapshot{Key: key, Status: StatusError, Err: ErrClosed})
		return sub
	}

	e := c.entryLocked(key, fetcher)
	e.subs[sub.id] = sub
	sub.entry = e
	if e.call == nil && (!e.hasValue && e.status == StatusPending || e.status == StatusReady && c.expiredLocked(e)) {
		c.metrics.RecordCacheLookup(telemetry.LookupMiss)
		c.startFetchLocked(e)
	} else if e.call != nil {
		c.metrics.RecordCacheLookup(telemetry.LookupShared)
	} else if e.status == StatusError {
		c.metrics.RecordCacheLookup(telemetry.LookupError)
	} else {
		c.metrics.RecordCacheLookup(telemetry.LookupHit)
	}
	snap := c.snapshotLocked(e)
	c.mu.Unlock()

	listener(snap)
	return sub
}

// Snapshot returns the current state of key without fetching
func (c *QueryCache) Snapshot(key Key) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok {
		return Snapshot{}, false
	}
	return c.snapshotLocked(e), true
}

// Invalidate marks every entry whose scope starts with scope as stale.
// Entries with subscribers or waiting callers refetch at once; idle entries
// are dropped. The invalidation is also published to other processes when a
// broadcaster is configured. It returns the number of matched entries.
func (c *QueryCache) Invalidate(scope ...string) int {
	n := c.invalidate(func(k Key) bool { return k.HasPrefix(scope) })
	c.logger.Debug("Invalidated cache scope",
		zap.Strings("scope", scope),
		zap.Int("matched", n),
	)

	if c.broadcaster != nil {
		if err := c.broadcaster.Publish(c.ctx, scope); err != nil {
			c.logger.Warn("Failed to broadcast cache invalidation",
				zap.Strings("scope", scope),
				zap.Error(err),
			)
		}
	}
	return n
}

// ApplyRemote applies an invalidation received from another process. It is
// not broadcast again.
func (c *QueryCache) ApplyRemote(scope []string) {
	n := c.invalidate(func(k Key) bool { return k.HasPrefix(scope) })
	c.logger.Debug("Applied remote cache invalidation",
		zap.Strings("scope", scope),
		zap.Int("matched", n),
	)
}

// InvalidateKey invalidates exactly one key
func (c *QueryCache) InvalidateKey(key Key) bool {
	target := key.String()
	return c.invalidate(func(k Key) bool { return k.String() == target }) > 0
}

func (c *QueryCache) invalidate(match func(Key) bool) int {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0
	}
	var (
		n       int
		pending []delivery
	)
	for s, e := range c.entries {
		if !match(e.key) {
			continue
		}
		n++
		if len(e.subs) > 0 || e.call != nil {
			c.startFetchLocked(e)
			pending = append(pending, c.deliveryLocked(e))
			continue
		}
		delete(c.entries, s)
	}
	c.mu.Unlock()

	deliverAll(pending)
	return n
}

// Refetch starts a new fetch for key, superseding any fetch in flight.
// It reports whether the key was known.
func (c *QueryCache) Refetch(key Key) bool {
	c.mu.Lock()
	e, ok := c.entries[key.String()]
	if !ok || c.closed || e.fetcher == nil {
		c.mu.Unlock()
		return false
	}
	c.startFetchLocked(e)
	d := c.deliveryLocked(e)
	c.mu.Unlock()

	d.deliver()
	return true
}

// Clear drops every entry. Subscribers of a settled entry get an error
// snapshot with ErrCleared at once. An entry with a fetch in flight settles
// as an error when the fetch returns, so its waiters and subscribers never
// stay pending; the response itself is discarded.
func (c *QueryCache) Clear() {
	c.mu.Lock()
	n := len(c.entries)
	var pending []delivery
	for _, e := range c.entries {
		if e.call == nil && len(e.subs) > 0 {
			pending = append(pending, c.failLocked(e, ErrCleared))
		}
	}
	c.entries = make(map[string]*entry)
	c.mu.Unlock()

	deliverAll(pending)
	c.logger.Debug("Cleared query cache", zap.Int("entries", n))
}

// Len returns the number of entries
func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close drops every entry, cancels fetches in flight and waits for them to
// return.
func (c *QueryCache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	var pending []delivery
	for _, e := range c.entries {
		// Fetches in flight are discarded once they return.
		e.call = nil
		if len(e.subs) > 0 {
			pending = append(pending, c.failLocked(e, ErrClosed))
		}
	}
	c.entries = make(map[string]*entry)
	c.mu.Unlock()

	deliverAll(pending)
	c.cancel()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(defaultCloseTimeout):
		c.logger.Warn("Timeout waiting for cache fetches to stop")
	}
	return nil
}

func (c *QueryCache) entryLocked(key Key, fetcher Fetcher) *entry {
	s := key.String()
	e, ok := c.entries[s]
	if !ok {
		e = &entry{key: key, subs: make(map[uint64]*Subscription)}
		c.entries[s] = e
	}
	if fetcher != nil {
		e.fetcher = fetcher
	}
	return e
}

func (c *QueryCache) expiredLocked(e *entry) bool {
	return c.staleTime > 0 && time.Since(e.updatedAt) > c.staleTime
}

// startFetchLocked begins a new generation for e. Any fetch still in flight
// is superseded and its response will be discarded.
func (c *QueryCache) startFetchLocked(e *entry) *call {
	e.generation++
	e.version++
	e.status = StatusPending
	e.err = nil
	cl := &call{generation: e.generation, done: make(chan struct{})}
	e.call = cl

	c.wg.Add(1)
	go c.run(e, cl, e.fetcher)
	return cl
}

func (c *QueryCache) run(e *entry, cl *call, fetcher Fetcher) {
	defer c.wg.Done()

	keyStr := e.key.String()
	ctx, span := telemetry.StartSpan(c.ctx, "cache.fetch",
		telemetry.WithAttribute(telemetry.SpanAttrCacheKey, keyStr),
		telemetry.WithAttribute(telemetry.SpanAttrGeneration, cl.generation),
	)
	defer span.End()

	v, err := safeFetch(ctx, fetcher)
	if err != nil {
		telemetry.RecordError(span, err)
	}

	c.mu.Lock()
	defer close(cl.done)
	if c.entries[keyStr] != e && e.call == cl {
		// Cleared while in flight.
		cause := ErrCleared
		if err != nil {
			cause = fmt.Errorf("%w: %w", ErrCleared, err)
		}
		d := c.failLocked(e, cause)
		c.mu.Unlock()
		c.logger.Debug("Settled cleared entry", zap.String("key", keyStr), zap.Error(cause))
		d.deliver()
		return
	}
	if e.call != cl {
		current := e.generation
		c.mu.Unlock()
		c.logger.Debug("Discarding superseded response",
			zap.String("key", keyStr),
			zap.Uint64("generation", cl.generation),
			zap.Uint64("current_generation", current),
		)
		return
	}

	e.call = nil
	e.version++
	if err != nil {
		e.status = StatusError
		e.err = err
	} else {
		e.status = StatusReady
		e.value = v
		e.hasValue = true
		e.updatedAt = time.Now()
	}
	d := c.deliveryLocked(e)
	c.mu.Unlock()

	d.deliver()
}

// failLocked settles e as an error outside the normal fetch path
func (c *QueryCache) failLocked(e *entry, err error) delivery {
	e.call = nil
	e.version++
	e.status = StatusError
	e.err = err
	return c.deliveryLocked(e)
}

func safeFetch(ctx context.Context, fetcher Fetcher) (v any, err error) {
	if fetcher == nil {
		return nil, errors.New("no fetcher registered for key")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetcher panicked: %v", r)
		}
	}()
	return fetcher(ctx)
}

func (c *QueryCache) snapshotLocked(e *entry) Snapshot {
	snap := Snapshot{
		Key:        e.key,
		Status:     e.status,
		Err:        e.err,
		Generation: e.generation,
		Version:    e.version,
		UpdatedAt:  e.updatedAt,
	}
	switch e.status {
	case StatusReady:
		snap.Value = e.value
		snap.Stale = c.expiredLocked(e)
	case StatusPending, StatusError:
		if c.keepPrevious && e.hasValue {
			snap.Value = e.value
			snap.Stale = true
		}
	}
	return snap
}

type delivery struct {
	snap      Snapshot
	listeners []Listener
}

func (c *QueryCache) deliveryLocked(e *entry) delivery {
	d := delivery{snap: c.snapshotLocked(e)}
	for _, sub := range e.subs {
		d.listeners = append(d.listeners, sub.listener)
	}
	return d
}

func (d delivery) deliver() {
	for _, l := range d.listeners {
		l(d.snap)
	}
}

func deliverAll(ds []delivery) {
	for _, d := range ds {
		d.deliver()
	}
}

// Subscription is a mounted consumer of one key
type Subscription struct {
	id       uint64
	key      Key
	cache    *QueryCache
	listener Listener
	entry    *entry
	once     sync.Once
}

// Key returns the subscribed key
func (s *Subscription) Key() Key {
	return s.key
}

// Refetch refetches the subscribed key
func (s *Subscription) Refetch() bool {
	return s.cache.Refetch(s.key)
}

// Close unmounts the consumer. The cached value is kept for later lookups.
func (s *Subscription) Close() {
	s.once.Do(func() {
		c := s.cache
		c.mu.Lock()
		defer c.mu.Unlock()
		if s.entry != nil {
			delete(s.entry.subs, s.id)
		}
	})
}
