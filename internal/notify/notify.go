// Package notify carries the transient success/failure messages shown to
// the user after an action. The CLI prints them; the dashboard queues them
// until the page polls.
package notify

import (
	"fmt"
	"io"
	"sync"
	"time"

	appLog "eventhub/internal/log"
	"eventhub/internal/metrics"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelFailure Level = "failure"
)

type Notification struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier receives notifications. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(n Notification)
}

func Success(n Notifier, msg string) { emit(n, LevelSuccess, msg) }
func Failure(n Notifier, msg string) { emit(n, LevelFailure, msg) }

func emit(n Notifier, level Level, msg string) {
	if n == nil {
		return
	}
	n.Notify(Notification{Level: level, Message: msg, At: time.Now()})
}

// Writer prints one line per notification, e.g. to stderr.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

func (w *Writer) Notify(n Notification) {
	w.mu.Lock()
	defer w.mu.Unlock()
	mark := "ok"
	if n.Level == LevelFailure {
		mark = "error"
	}
	if _, err := fmt.Fprintf(w.w, "%s: %s\n", mark, n.Message); err != nil {
		appLog.Error("notify: write failed", err)
	}
}

// Queue keeps the most recent notifications until drained. Oldest entries
// are dropped once the queue is full.
type Queue struct {
	mu    sync.Mutex
	items []Notification
	max   int
}

const defaultQueueSize = 50

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Queue{max: size}
}

func (q *Queue) Notify(n Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, n)
	if over := len(q.items) - q.max; over > 0 {
		q.items = append([]Notification(nil), q.items[over:]...)
	}
}

// Drain returns queued notifications oldest first and empties the queue.
func (q *Queue) Drain() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	if out == nil {
		out = []Notification{}
	}
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Discard drops everything.
type Discard struct{}

func (Discard) Notify(Notification) {}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(n Notification) {
	for _, x := range m {
		if x != nil {
			x.Notify(n)
		}
	}
}

// Counting counts notifications by level before passing them on.
type Counting struct {
	Next    Notifier
	Metrics *metrics.Registry
}

func (c Counting) Notify(n Notification) {
	c.Metrics.Notified(string(n.Level))
	if c.Next != nil {
		c.Next.Notify(n)
	}
}
