// Package testutil provides fakes shared by package tests: a gin-based
// mall-admin backend, recording UI adapters and a Redis container helper.
package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erp/mall-admin/internal/domain/shared"
)

// RecordingNotifier remembers every notification
type RecordingNotifier struct {
	mu        sync.Mutex
	successes []string
	warnings  []string
	errors    []string
}

var _ shared.Notifier = (*RecordingNotifier)(nil)

func (n *RecordingNotifier) Success(m string) { n.record(&n.successes, m) }
func (n *RecordingNotifier) Warning(m string) { n.record(&n.warnings, m) }
func (n *RecordingNotifier) Error(m string)   { n.record(&n.errors, m) }

func (n *RecordingNotifier) record(dst *[]string, m string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	*dst = append(*dst, m)
}

// Successes returns the success messages so far
func (n *RecordingNotifier) Successes() []string { return n.snapshot(&n.successes) }

// Warnings returns the warnings so far
func (n *RecordingNotifier) Warnings() []string { return n.snapshot(&n.warnings) }

// Errors returns the error messages so far
func (n *RecordingNotifier) Errors() []string { return n.snapshot(&n.errors) }

func (n *RecordingNotifier) snapshot(src *[]string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), (*src)...)
}

// ScriptedConfirmer answers every confirmation with Answer. When Gate is set,
// Confirm blocks until Gate is closed or ctx ends.
type ScriptedConfirmer struct {
	Answer bool
	Gate   chan struct{}

	calls atomic.Int32
	mu    sync.Mutex
	asked []string
}

var _ shared.Confirmer = (*ScriptedConfirmer)(nil)

// NewConfirmer returns a confirmer that always answers answer
func NewConfirmer(answer bool) *ScriptedConfirmer {
	return &ScriptedConfirmer{Answer: answer}
}

// Confirm implements shared.Confirmer
func (c *ScriptedConfirmer) Confirm(ctx context.Context, message string) bool {
	c.calls.Add(1)
	c.mu.Lock()
	c.asked = append(c.asked, message)
	c.mu.Unlock()

	if c.Gate != nil {
		select {
		case <-c.Gate:
		case <-ctx.Done():
			return false
		}
	}
	return c.Answer
}

// Calls returns how many confirmations were shown
func (c *ScriptedConfirmer) Calls() int { return int(c.calls.Load()) }

// Asked returns the confirmation messages shown
func (c *ScriptedConfirmer) Asked() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.asked...)
}

// MemoryNavigator keeps a navigation history
type MemoryNavigator struct {
	mu      sync.Mutex
	history []string
}

var _ shared.Navigator = (*MemoryNavigator)(nil)

// NewNavigator starts the history at location
func NewNavigator(location string) *MemoryNavigator {
	return &MemoryNavigator{history: []string{location}}
}

// Current implements shared.Navigator
func (n *MemoryNavigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.history) == 0 {
		return ""
	}
	return n.history[len(n.history)-1]
}

// Navigate implements shared.Navigator
func (n *MemoryNavigator) Navigate(location string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.history = append(n.history, location)
}

// Back implements shared.Navigator
func (n *MemoryNavigator) Back() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.history) > 1 {
		n.history = n.history[:len(n.history)-1]
	}
}

// History returns every location visited, oldest first
func (n *MemoryNavigator) History() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.history...)
}

// Polling bounds for assertions on asynchronous state
const (
	WaitTimeout  = 2 * time.Second
	PollInterval = 5 * time.Millisecond
)
