package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Level distinguishes informational notices from errors
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notification is a transient, user-visible message
type Notification struct {
	Level       Level     `json:"level"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Time        time.Time `json:"time"`
}

// Notifier delivers notifications to the user
type Notifier interface {
	Notify(n Notification)
}

// Info and Error send a notification to n. A nil n is ignored.
func Info(n Notifier, title, description string) {
	if n != nil {
		n.Notify(Notification{Level: LevelInfo, Title: title, Description: description, Time: time.Now()})
	}
}

func Error(n Notifier, title, description string) {
	if n != nil {
		n.Notify(Notification{Level: LevelError, Title: title, Description: description, Time: time.Now()})
	}
}

// Log writes notifications to slog
type Log struct{}

func (Log) Notify(n Notification) {
	if n.Level == LevelError {
		slog.Error(n.Title, "description", n.Description)
		return
	}
	slog.Info(n.Title, "description", n.Description)
}

// Recorder keeps the most recent notifications in memory
type Recorder struct {
	mu    sync.Mutex
	limit int
	items []Notification
}

func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = 50
	}
	return &Recorder{limit: limit}
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
	if len(r.items) > r.limit {
		r.items = r.items[len(r.items)-r.limit:]
	}
}

// Recent returns the recorded notifications, oldest first
func (r *Recorder) Recent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

// Multi fans a notification out to several notifiers
type Multi []Notifier

func (m Multi) Notify(n Notification) {
	for _, x := range m {
		x.Notify(n)
	}
}
