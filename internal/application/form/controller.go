// Package form implements create and edit screens: load, local validation,
// confirmation and submission through the pipeline.
package form

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/erp/mall-admin/internal/domain/shared"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Messages shown by a form
const (
	MsgConfirmSubmit    = "Submit the data?"
	MsgSubmitSucceeded  = "Submitted successfully"
	MsgValidationFailed = "Validation failed"
)

// Mode tells whether a form creates or edits an entity
type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

func (m Mode) String() string {
	if m == ModeEdit {
		return "edit"
	}
	return "create"
}

// ErrSubmitting is returned when Submit is called while a submit is running
var ErrSubmitting = errors.New("form: submit already in progress")

// Collaborators are the UI ports and cache a form reports to
type Collaborators struct {
	Cache     Invalidator
	Notifier  shared.Notifier
	Confirmer shared.Confirmer
	Navigator shared.Navigator
}

// Controller holds the values of one form
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type Controller[T any] struct {
	binding  Binding[T]
	mode     Mode
	id       int64
	collab   Collaborators
	validate *validator.Validate
	logger   *zap.Logger

	backAfterCreate bool

	mu         sync.Mutex
	loaded     bool
	submitting bool
	original   T
	values     T
	fieldErrs  map[string]string
}

// Option configures a Controller
type Option func(*options)

type options struct {
	logger          *zap.Logger
	backAfterCreate bool
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithBackAfterCreate returns to the previous screen after a create instead
// of clearing the form
func WithBackAfterCreate() Option {
	return func(o *options) { o.backAfterCreate = true }
}

// NewCreate creates a form for a new entity
func NewCreate[T any](b Binding[T], collab Collaborators, opts ...Option) *Controller[T] {
	return newController(b, ModeCreate, 0, collab, opts)
}

// NewEdit creates a form for the entity with the given id
func NewEdit[T any](b Binding[T], id int64, collab Collaborators, opts ...Option) *Controller[T] {
	return newController(b, ModeEdit, id, collab, opts)
}

func newController[T any](b Binding[T], mode Mode, id int64, collab Collaborators, opts []Option) *Controller[T] {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Controller[T]{
		binding:         b,
		mode:            mode,
		id:              id,
		collab:          collab,
		validate:        newValidator(),
		logger:          o.logger.With(zap.String("form", b.Name), zap.Stringer("mode", mode)),
		backAfterCreate: o.backAfterCreate,
	}
}

// Mode returns whether the form creates or edits
func (c *Controller[T]) Mode() Mode { return c.mode }

// ID returns the edited entity id, 0 in create mode
func (c *Controller[T]) ID() int64 { return c.id }

// Load fills the form: the entity in edit mode, the defaults in create mode
func (c *Controller[T]) Load(ctx context.Context) error {
	var values T
	if c.mode == ModeEdit {
		v, err := c.binding.Get(ctx, c.id)
		if err != nil {
			c.logger.Warn("Failed to load entity", zap.Int64("id", c.id), zap.Error(err))
			return fmt.Errorf("load %s %d: %w", c.binding.Name, c.id, err)
		}
		values = v
	} else {
		values = c.defaults()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.original = values
	c.values = values
	c.loaded = true
	c.fieldErrs = nil
	return nil
}

func (c *Controller[T]) defaults() T {
	if c.binding.Defaults != nil {
		return c.binding.Defaults()
	}
	var zero T
	return zero
}

// Loaded reports whether Load has succeeded
func (c *Controller[T]) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Values returns the current values
func (c *Controller[T]) Values() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values
}

// SetValues replaces the current values
func (c *Controller[T]) SetValues(values T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = values
}

// Reset discards edits and restores the loaded values
func (c *Controller[T]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = c.original
	c.fieldErrs = nil
}

// FieldErrors returns the inline messages of the last failed validation
func (c *Controller[T]) FieldErrors() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.fieldErrs))
	for k, v := range c.fieldErrs {
		out[k] = v
	}
	return out
}

// Submit validates, asks for confirmation and sends the values. Invalid
// values or a declined confirmation never reach the pipeline.
func (c *Controller[T]) Submit(ctx context.Context) error {
	c.mu.Lock()
	if !c.loaded {
		c.mu.Unlock()
		return shared.ErrNotLoaded
	}
	if c.submitting {
		c.mu.Unlock()
		return ErrSubmitting
	}
	values := c.values
	c.submitting = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.submitting = false
		c.mu.Unlock()
	}()

	if err := validateValues(c.validate, values); err != nil {
		var verr *shared.ValidationError
		if errors.As(err, &verr) {
			c.mu.Lock()
			c.fieldErrs = verr.Fields
			c.mu.Unlock()
		}
		c.collab.Notifier.Error(MsgValidationFailed)
		c.logger.Debug("Form validation failed", zap.Error(err))
		return err
	}
	c.mu.Lock()
	c.fieldErrs = nil
	c.mu.Unlock()

	if !c.collab.Confirmer.Confirm(ctx, MsgConfirmSubmit) {
		c.logger.Debug("Submit cancelled")
		return shared.ErrSubmitCancelled
	}

	var err error
	if c.mode == ModeEdit {
		err = c.binding.Update(ctx, c.id, values)
	} else {
		err = c.binding.Create(ctx, values)
	}
	if err != nil {
		c.logger.Warn("Submit failed", zap.Error(err))
		return fmt.Errorf("%s %s: %w", c.mode, c.binding.Name, err)
	}

	c.logger.Info("Form submitted", zap.Int64("id", c.id))
	c.collab.Notifier.Success(MsgSubmitSucceeded)
	if c.collab.Cache != nil {
		c.collab.Cache.Invalidate(c.binding.Scope)
		for _, related := range c.binding.Related {
			c.collab.Cache.Invalidate(related)
		}
	}

	if c.mode == ModeCreate && !c.backAfterCreate {
		c.mu.Lock()
		c.original = c.defaults()
		c.values = c.original
		c.mu.Unlock()
		return nil
	}
	c.collab.Navigator.Back()
	return nil
}
