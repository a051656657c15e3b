// Package notify delivers user-visible outcome messages.
//
// Every engine operation reports exactly one notification for its outcome;
// failures are never silent.
package notify

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Level is the severity shown to the user.
type Level string

const (
	Success Level = "success"
	Warning Level = "warning"
	Error   Level = "error"
)

// Notification is one message for the user.
type Notification struct {
	Level   Level
	Message string
}

func (n Notification) String() string {
	return fmt.Sprintf("[%s] %s", n.Level, n.Message)
}

// Notifier receives notifications. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to a Notifier.
type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

// Discard drops every notification.
var Discard Notifier = Func(func(Notification) {})

// Log writes notifications to a structured logger.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	switch n.Level {
	case Error:
		logger.Error("Notification", "message", n.Message)
	case Warning:
		logger.Warn("Notification", "message", n.Message)
	default:
		logger.Info("Notification", "message", n.Message)
	}
}

// Writer prints each notification on its own line.
type Writer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWriter returns a Notifier printing to out.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

func (w *Writer) Notify(n Notification) {
	w.mu.Lock()
	defer w.mu.Unlock()
	prefix := ""
	switch n.Level {
	case Error:
		prefix = "error: "
	case Warning:
		prefix = "warning: "
	}
	fmt.Fprintf(w.out, "%s%s\n", prefix, n.Message)
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu  sync.Mutex
	all []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, n)
}

// All returns a copy of the recorded notifications, oldest first.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.all...)
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.all) == 0 {
		return Notification{}, false
	}
	return r.all[len(r.all)-1], true
}

// Multi fans a notification out to several notifiers.
func Multi(notifiers ...Notifier) Notifier {
	return Func(func(n Notification) {
		for _, nf := range notifiers {
			nf.Notify(n)
		}
	})
}
