// Package task holds the crawl task record and its status state machine.
package task

import (
	"errors"
	"fmt"
	"time"

	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/crawler"
)

// Status is the lifecycle state of a Task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

var (
	ErrNotFound          = errors.New("task not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrExists            = errors.New("task already exists")
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress},
	StatusInProgress: {StatusCompleted, StatusFailed, StatusCancelled},
}

// Statuses lists every status.
func Statuses() []Status {
	return []Status{StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusCancelled}
}

// CanTransition reports whether s may move to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}

	return false
}

// Terminal reports whether s has no outgoing transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses() {
		if s == known {
			return true
		}
	}

	return false
}

// Task is one crawl request and its results.
// Progress only grows while the task is in progress and equals 100 only once it completed.
// For large sites PagesScanned is the real sampled count and EstimatedTotalPages an estimate.
type Task struct {
	ID                  string    `json:"id"`
	URL                 string    `json:"url"`
	Domain              string    `json:"domain"`
	Status              Status    `json:"status"`
	Progress            int       `json:"progress"`
	PagesScanned        int       `json:"pages_scanned"`
	EstimatedTotalPages int       `json:"estimated_total_pages"`
	StartTime           time.Time `json:"start_time"`
	UpdatedAt           time.Time `json:"updated_at"`
	URLs                []string  `json:"urls"`
	Error               string    `json:"error,omitempty"`
	IsLargeSite         bool      `json:"isLargeSite"`
	EstimatedURLCount   int       `json:"estimatedUrlCount"`

	Pages []crawler.PageDetail `json:"-"`
}

// New creates a pending task.
func New(id, rawURL, domain string, now time.Time) *Task {
	return &Task{
		ID:        id,
		URL:       rawURL,
		Domain:    domain,
		Status:    StatusPending,
		StartTime: now,
		UpdatedAt: now,
		URLs:      []string{},
	}
}

// Transition moves the task to next. Completing sets progress to 100.
func (t *Task) Transition(next Status, now time.Time) error {
	if !t.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, next)
	}

	t.Status = next
	t.UpdatedAt = now
	if next == StatusCompleted {
		t.Progress = 100
	}

	return nil
}

// SetProgress raises progress to p, clamped to 0..99. Lower values and
// updates outside in_progress are ignored. It reports whether progress changed.
func (t *Task) SetProgress(p int, now time.Time) bool {
	if t.Status != StatusInProgress {
		return false
	}

	p = min(max(p, 0), 99)
	if p <= t.Progress {
		return false
	}

	t.Progress = p
	t.UpdatedAt = now

	return true
}

// Fail moves the task to failed with message.
func (t *Task) Fail(message string, now time.Time) error {
	if err := t.Transition(StatusFailed, now); err != nil {
		return err
	}
	t.Error = message

	return nil
}

// Clone returns a deep copy of t.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}

	clone := *t
	clone.URLs = append([]string(nil), t.URLs...)
	if clone.URLs == nil {
		clone.URLs = []string{}
	}
	clone.Pages = append([]crawler.PageDetail(nil), t.Pages...)

	return &clone
}
