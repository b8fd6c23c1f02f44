// Package console adapts the UI ports of the core to a terminal: colored
// notifications, y/N confirmations, a location history and table output.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/erp/mall-admin/internal/domain/shared"
)

// ANSI color codes.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBold   = "\033[1m"
)

// Notifier prints notifications, one per line
//
// Thread Safety: Safe for concurrent use.
type Notifier struct {
	mu        sync.Mutex
	writer    io.Writer
	useColors bool
}

var _ shared.Notifier = (*Notifier)(nil)

// NewNotifier creates a notifier writing to w. A nil w writes to stderr.
func NewNotifier(w io.Writer, useColors bool) *Notifier {
	if w == nil {
		w = os.Stderr
	}
	return &Notifier{writer: w, useColors: useColors}
}

func (n *Notifier) Success(message string) { n.print(colorGreen, "✓", message) }
func (n *Notifier) Warning(message string) { n.print(colorYellow, "!", message) }
func (n *Notifier) Error(message string)   { n.print(colorRed, "✗", message) }

func (n *Notifier) print(color, mark, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.useColors {
		fmt.Fprintf(n.writer, "%s%s%s %s\n", color, mark, colorReset, message)
		return
	}
	fmt.Fprintf(n.writer, "%s %s\n", mark, message)
}

// Confirmer asks yes/no questions on a terminal. Anything but y or yes
// declines.
type Confirmer struct {
	mu        sync.Mutex
	in        *bufio.Reader
	out       io.Writer
	assumeYes bool
}

var _ shared.Confirmer = (*Confirmer)(nil)

// NewConfirmer reads answers from in and prompts on out. With assumeYes every
// question is accepted without reading.
func NewConfirmer(in io.Reader, out io.Writer, assumeYes bool) *Confirmer {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stderr
	}
	return &Confirmer{in: bufio.NewReader(in), out: out, assumeYes: assumeYes}
}

// Confirm implements shared.Confirmer
func (c *Confirmer) Confirm(ctx context.Context, message string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.assumeYes {
		fmt.Fprintf(c.out, "%s [y/N] y\n", message)
		return true
	}
	fmt.Fprintf(c.out, "%s%s%s [y/N] ", colorBold, message, colorReset)

	answer := make(chan string, 1)
	go func() {
		line, err := c.in.ReadString('\n')
		if err != nil && line == "" {
			answer <- ""
			return
		}
		answer <- line
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(c.out)
		return false
	case line := <-answer:
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		default:
			return false
		}
	}
}

// Navigator keeps the location history of a console session
type Navigator struct {
	mu         sync.Mutex
	history    []string
	onNavigate func(location string)
}

var _ shared.Navigator = (*Navigator)(nil)

// NewNavigator starts at location. onNavigate, when set, is called after
// every Navigate and Back.
func NewNavigator(location string, onNavigate func(string)) *Navigator {
	return &Navigator{history: []string{location}, onNavigate: onNavigate}
}

// Current implements shared.Navigator
func (n *Navigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.history[len(n.history)-1]
}

// Navigate implements shared.Navigator
func (n *Navigator) Navigate(location string) {
	n.mu.Lock()
	n.history = append(n.history, location)
	n.mu.Unlock()
	n.notify(location)
}

// Back implements shared.Navigator. The first location is never popped.
func (n *Navigator) Back() {
	n.mu.Lock()
	if len(n.history) > 1 {
		n.history = n.history[:len(n.history)-1]
	}
	location := n.history[len(n.history)-1]
	n.mu.Unlock()
	n.notify(location)
}

func (n *Navigator) notify(location string) {
	if n.onNavigate != nil {
		n.onNavigate(location)
	}
}
