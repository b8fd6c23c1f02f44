// Package listing implements the generic paginated list screen: a state
// machine over one entity's cached queries with row selection and batch
// mutations.
package listing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/erp/mall-admin/internal/domain/shared"
	"github.com/erp/mall-admin/internal/infrastructure/cache"
	"go.uber.org/zap"
)

// State is the stage of a list controller
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Success messages shown after a mutation
const (
	MsgOperationSucceeded = "Operation succeeded"
	MsgDeleteSucceeded    = "Deleted successfully"
)

// MsgPartiallyApplied is the warning format for a mutation that failed part
// way: records done, records requested.
const MsgPartiallyApplied = "%d of %d record(s) were changed before the failure"

// ErrControllerClosed is returned by operations after Close
var ErrControllerClosed = errors.New("listing: controller closed")

// ListView is a point-in-time view of a list screen
type ListView[T any] struct {
	State          State
	Rows           []T
	Total          int
	TotalPage      int
	Query          shared.PageQuery
	Selection      []int64
	BatchOperation string
	Stale          bool
	Err            error
}

// Controller drives one list screen. It holds the committed filter, the
// page query, the selection and the chosen batch operation, and follows the
// cache entry derived from them.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type Controller[T any, F shared.Filter] struct {
	res      Resource[T, F]
	cache    *cache.QueryCache
	notifier shared.Notifier
	logger   *zap.Logger

	mu        sync.Mutex
	state     State
	closed    bool
	filter    F
	staged    F
	query     shared.PageQuery
	selection SelectionSet
	op        string

	page    shared.PageResult[T]
	stale   bool
	err     error
	key     cache.Key
	sub     *cache.Subscription
	subSeq  uint64
	version uint64
	seen    bool

	changed   chan struct{}
	listeners []func(ListView[T])
}

// Option configures a Controller
type Option func(*options)

type options struct {
	logger *zap.Logger
	query  *shared.PageQuery
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPageQuery sets the initial page, e.g. one restored from the location
func WithPageQuery(q shared.PageQuery) Option {
	return func(o *options) { o.query = &q }
}

// New creates a controller in the idle state
func New[T any, F shared.Filter](res Resource[T, F], qc *cache.QueryCache, notifier shared.Notifier, opts ...Option) *Controller[T, F] {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	query := shared.PageQuery{PageNum: 1, PageSize: res.pageSize()}
	if o.query != nil {
		query = o.query.Normalize()
	}
	return &Controller[T, F]{
		res:      res,
		cache:    qc,
		notifier: notifier,
		logger:   o.logger.With(zap.String("resource", res.Name)),
		state:    StateIdle,
		filter:   res.DefaultFilter,
		staged:   res.DefaultFilter,
		query:    query,
		changed:  make(chan struct{}),
	}
}

// Start mounts the list and issues the first query
func (c *Controller[T, F]) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrControllerClosed
	}
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	c.logger.Debug("Starting list")
	c.resubscribe()
	return nil
}

// SetFilter stages a filter without querying
func (c *Controller[T, F]) SetFilter(f F) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.staged = f
}

// Filter returns the committed filter
func (c *Controller[T, F]) Filter() F {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// StagedFilter returns the filter that the next Search commits
func (c *Controller[T, F]) StagedFilter() F {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.staged
}

// Search commits the staged filter and goes back to the first page
func (c *Controller[T, F]) Search() {
	c.mu.Lock()
	c.filter = c.staged
	c.query.PageNum = 1
	c.selection.Clear()
	c.mu.Unlock()
	c.resubscribe()
}

// ApplyFilter stages f and searches
func (c *Controller[T, F]) ApplyFilter(f F) {
	c.SetFilter(f)
	c.Search()
}

// Reset restores the default filter and page size, then searches
func (c *Controller[T, F]) Reset() {
	c.mu.Lock()
	c.staged = c.res.DefaultFilter
	c.query.PageSize = c.res.pageSize()
	c.mu.Unlock()
	c.Search()
}

// ChangePage moves to another page or page size. Filters are kept and
// pageNum is used as given, even when the page size changes.
func (c *Controller[T, F]) ChangePage(pageNum, pageSize int) {
	c.mu.Lock()
	c.query = shared.PageQuery{PageNum: pageNum, PageSize: pageSize}.Normalize()
	c.selection.Clear()
	c.mu.Unlock()
	c.resubscribe()
}

// SelectRows replaces the selection with the given ids that are on the
// current page
func (c *Controller[T, F]) SelectRows(ids []int64) {
	c.mu.Lock()
	onPage := c.pageIDsLocked()
	c.selection.Replace(ids)
	c.selection.Retain(func(id int64) bool { return onPage[id] })
	c.mu.Unlock()
	c.emit()
}

// SetBatchOperation chooses the operation DispatchBatch applies. An empty
// op unsets it.
func (c *Controller[T, F]) SetBatchOperation(op string) {
	c.mu.Lock()
	c.op = op
	c.mu.Unlock()
	c.emit()
}

// Operations returns the batch operations of the resource
func (c *Controller[T, F]) Operations() []BatchAction {
	return append([]BatchAction(nil), c.res.Actions...)
}

// DispatchBatch applies the chosen operation to the selection. An empty
// selection or a missing operation is refused with a warning before any
// request is made.
func (c *Controller[T, F]) DispatchBatch(ctx context.Context) error {
	c.mu.Lock()
	ids := c.selection.IDs()
	op := c.op
	c.mu.Unlock()

	if len(ids) == 0 {
		c.notifier.Warning(shared.ErrEmptySelection.Message)
		return shared.ErrEmptySelection
	}
	action, ok := c.res.Action(op)
	if op == "" || !ok {
		c.notifier.Warning(shared.ErrNoBatchOperation.Message)
		return shared.ErrNoBatchOperation
	}

	if err := c.apply(ctx, action, ids); err != nil {
		return err
	}
	c.mu.Lock()
	c.selection.Clear()
	c.mu.Unlock()
	c.invalidate()
	return nil
}

// ApplyToRow applies op to a single row, as a per-row switch does
func (c *Controller[T, F]) ApplyToRow(ctx context.Context, op string, id int64) error {
	action, ok := c.res.Action(op)
	if !ok {
		c.notifier.Warning(shared.ErrNoBatchOperation.Message)
		return shared.ErrNoBatchOperation
	}
	if err := c.apply(ctx, action, []int64{id}); err != nil {
		return err
	}
	c.mu.Lock()
	c.selection.Remove(id)
	c.mu.Unlock()
	c.invalidate()
	return nil
}

// DeleteRows deletes one or more rows. Deleted ids leave the selection
// before the entity is refetched.
func (c *Controller[T, F]) DeleteRows(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		c.notifier.Warning(shared.ErrEmptySelection.Message)
		return shared.ErrEmptySelection
	}
	if c.res.Delete == nil {
		c.notifier.Warning(shared.ErrNoBatchOperation.Message)
		return shared.ErrNoBatchOperation
	}

	c.logger.Info("Deleting rows", zap.Int64s("ids", ids))
	if err := c.res.Delete(ctx, ids); err != nil {
		c.logger.Warn("Delete failed", zap.Int64s("ids", ids), zap.Error(err))
		c.afterFailure(len(ids), err)
		return fmt.Errorf("delete %s: %w", c.res.Name, err)
	}
	c.notifier.Success(MsgDeleteSucceeded)

	c.mu.Lock()
	c.selection.Remove(ids...)
	c.mu.Unlock()
	c.invalidate()
	return nil
}

func (c *Controller[T, F]) apply(ctx context.Context, action BatchAction, ids []int64) error {
	c.logger.Info("Applying batch operation",
		zap.String("op", action.Op),
		zap.Int64s("ids", ids))
	if err := action.Apply(ctx, ids); err != nil {
		c.logger.Warn("Batch operation failed", zap.String("op", action.Op), zap.Error(err))
		c.afterFailure(len(ids), err)
		return fmt.Errorf("%s %s: %w", action.Op, c.res.Name, err)
	}
	c.notifier.Success(MsgOperationSucceeded)
	return nil
}

// afterFailure runs once a mutation request has failed. The server may
// have applied part of it, so ids reported done leave the selection and the
// entity is refetched.
func (c *Controller[T, F]) afterFailure(requested int, err error) {
	var partial *PartialError
	if errors.As(err, &partial) && len(partial.Done) > 0 {
		c.notifier.Warning(fmt.Sprintf(MsgPartiallyApplied, len(partial.Done), requested))
		c.mu.Lock()
		c.selection.Remove(partial.Done...)
		c.mu.Unlock()
	}
	c.invalidate()
}

func (c *Controller[T, F]) invalidate() {
	n := c.cache.Invalidate(c.res.Scope)
	for _, related := range c.res.Related {
		n += c.cache.Invalidate(related)
	}
	c.logger.Debug("Invalidated entity", zap.String("scope", c.res.Scope), zap.Int("matched", n))
	c.emit()
}

// Refetch retries the current query
func (c *Controller[T, F]) Refetch() bool {
	c.mu.Lock()
	sub := c.sub
	c.mu.Unlock()
	if sub == nil {
		return false
	}
	return sub.Refetch()
}

// View returns the current state of the list
func (c *Controller[T, F]) View() ListView[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Key returns the cache key of the current query
func (c *Controller[T, F]) Key() cache.Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key
}

// OnChange registers fn to be called after every state change
func (c *Controller[T, F]) OnChange(fn func(ListView[T])) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Wait blocks until the list is no longer loading. A list in the error
// state returns its error.
func (c *Controller[T, F]) Wait(ctx context.Context) (ListView[T], error) {
	for {
		c.mu.Lock()
		if c.closed {
			v := c.viewLocked()
			c.mu.Unlock()
			return v, ErrControllerClosed
		}
		if c.state != StateLoading {
			v := c.viewLocked()
			c.mu.Unlock()
			return v, v.Err
		}
		ch := c.changed
		c.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return c.View(), ctx.Err()
		}
	}
}

// Close unmounts the list
func (c *Controller[T, F]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	sub := c.sub
	c.sub = nil
	c.listeners = nil
	c.signalLocked()
	c.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

// resubscribe follows the key derived from the committed filter and page
func (c *Controller[T, F]) resubscribe() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	filter, query := c.filter, c.query
	key := cache.NewKey(c.res.scope(filter), filter.Params(), query.Params())
	c.subSeq++
	seq := c.subSeq
	old := c.sub
	c.sub = nil
	c.key = key
	c.version = 0
	c.seen = false
	c.state = StateLoading
	c.err = nil
	c.signalLocked()
	c.mu.Unlock()
	c.emit()

	if old != nil {
		old.Close()
	}
	c.logger.Debug("Querying list", zap.String("key", key.String()))

	list := c.res.List
	fetch := func(ctx context.Context) (any, error) {
		return list(ctx, filter, query)
	}
	sub := c.cache.Subscribe(key, fetch, func(snap cache.Snapshot) {
		c.onSnapshot(seq, snap)
	})

	c.mu.Lock()
	if c.subSeq != seq || c.closed {
		c.mu.Unlock()
		sub.Close()
		return
	}
	c.sub = sub
	c.mu.Unlock()
}

// onSnapshot applies a cache transition. Snapshots of a superseded
// subscription, another key or an older version are dropped.
func (c *Controller[T, F]) onSnapshot(seq uint64, snap cache.Snapshot) {
	c.mu.Lock()
	if c.closed || seq != c.subSeq || !snap.Key.Equal(c.key) || (c.seen && snap.Version <= c.version) {
		c.mu.Unlock()
		c.logger.Debug("Ignoring stale snapshot",
			zap.String("key", snap.Key.String()),
			zap.Uint64("generation", snap.Generation),
			zap.Uint64("version", snap.Version))
		return
	}
	c.version = snap.Version
	c.seen = true

	switch snap.Status {
	case cache.StatusPending:
		c.state = StateLoading
		c.err = nil
		if page, ok := snap.Value.(shared.PageResult[T]); ok {
			c.page = page
		}
		// Rows of the previous key stay visible until the new page lands.
		c.stale = len(c.page.List) > 0
	case cache.StatusReady:
		page, ok := snap.Value.(shared.PageResult[T])
		if !ok {
			c.state = StateError
			c.err = fmt.Errorf("%s: unexpected cached value %T", c.res.Name, snap.Value)
			break
		}
		c.state = StateReady
		c.err = nil
		c.page = page
		c.stale = snap.Stale
		onPage := c.pageIDsLocked()
		c.selection.Retain(func(id int64) bool { return onPage[id] })
	case cache.StatusError:
		c.state = StateError
		c.err = snap.Err
		if page, ok := snap.Value.(shared.PageResult[T]); ok {
			c.page = page
			c.stale = true
		}
	}
	c.signalLocked()
	c.mu.Unlock()

	c.emit()
}

func (c *Controller[T, F]) pageIDsLocked() map[int64]bool {
	ids := make(map[int64]bool, len(c.page.List))
	for _, row := range c.page.List {
		ids[c.res.ID(row)] = true
	}
	return ids
}

func (c *Controller[T, F]) signalLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}

func (c *Controller[T, F]) viewLocked() ListView[T] {
	return ListView[T]{
		State:          c.state,
		Rows:           append([]T(nil), c.page.List...),
		Total:          c.page.Total,
		TotalPage:      c.page.TotalPage,
		Query:          c.query,
		Selection:      c.selection.IDs(),
		BatchOperation: c.op,
		Stale:          c.stale,
		Err:            c.err,
	}
}

func (c *Controller[T, F]) emit() {
	c.mu.Lock()
	if len(c.listeners) == 0 {
		c.mu.Unlock()
		return
	}
	v := c.viewLocked()
	listeners := append([]func(ListView[T]){}, c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(v)
	}
}
