package notify

import (
	"context"
	"fmt"
	"time"
)

// Category partitions notifications so one class can be replaced
// wholesale without touching the other.
type Category string

const (
	// CategorySchedule covers lesson triggers; the planner replaces
	// this whole set on every re-plan.
	CategorySchedule Category = "schedule"
	// CategoryNews covers new-item notifications from the news feed.
	CategoryNews Category = "news"
)

// Kind identifies which lesson boundary (or feed event) a notification
// marks.
type Kind string

const (
	KindBeforeStart Kind = "before_start"
	KindAtStart     Kind = "at_start"
	KindBeforeEnd   Kind = "before_end"
	KindAtEnd       Kind = "at_end"
	KindNews        Kind = "news"
)

// Notification is one pending local notification. ID carries enough
// identity (lesson id + kind, or a news item id) to be independently
// cancellable.
type Notification struct {
	ID        string
	Category  Category
	Kind      Kind
	Title     string
	Body      string
	TriggerAt time.Time
	LessonID  string
}

// Notifier is the host notification-delivery primitive. The daemon's
// implementation is the heap TriggerScheduler; tests use MockNotifier.
type Notifier interface {
	// Schedule enqueues a notification for delivery at n.TriggerAt.
	Schedule(n Notification) error

	// Cancel removes the pending notification with the given ID.
	// Cancelling an unknown ID is a no-op.
	Cancel(id string) error

	// CancelAll removes every pending notification in the category.
	CancelAll(category Category) error

	// RequestPermission asks the host for notification permission.
	RequestPermission(ctx context.Context) (bool, error)
}

// MockNotifier records calls for test verification and can be told to
// fail specific IDs to exercise per-item error isolation.
type MockNotifier struct {
	Scheduled      []Notification
	Cancelled      []string
	CancelAllCalls []Category
	FailIDs        map[string]bool
	Denied         bool
}

// NewMockNotifier creates an empty MockNotifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{FailIDs: make(map[string]bool)}
}

// Schedule records the notification, or fails if its ID is marked.
func (m *MockNotifier) Schedule(n Notification) error {
	if m.FailIDs[n.ID] {
		return fmt.Errorf("mock: delivery failed for %s", n.ID)
	}
	m.Scheduled = append(m.Scheduled, n)
	return nil
}

// Cancel records the cancellation.
func (m *MockNotifier) Cancel(id string) error {
	m.Cancelled = append(m.Cancelled, id)
	return nil
}

// CancelAll records the category and drops matching scheduled entries.
func (m *MockNotifier) CancelAll(category Category) error {
	m.CancelAllCalls = append(m.CancelAllCalls, category)
	kept := m.Scheduled[:0]
	for _, n := range m.Scheduled {
		if n.Category != category {
			kept = append(kept, n)
		}
	}
	m.Scheduled = kept
	return nil
}

// RequestPermission reports the configured grant state.
func (m *MockNotifier) RequestPermission(ctx context.Context) (bool, error) {
	return !m.Denied, nil
}

// Pending returns the scheduled notifications in the given category.
func (m *MockNotifier) Pending(category Category) []Notification {
	var out []Notification
	for _, n := range m.Scheduled {
		if n.Category == category {
			out = append(out, n)
		}
	}
	return out
}

var _ Notifier = (*MockNotifier)(nil)
