package notify

import (
	"container/heap"
	"context"
	"time"

	"github.com/unitime/unitime/pkg/logger"
)

const maxSleepCap = 60 * time.Second

// DeliverFunc receives a notification at its trigger time.
type DeliverFunc func(n Notification)

// TriggerScheduler is the daemon's Notifier: a min-heap of pending
// notifications drained by a single goroutine that sleeps until the
// earliest trigger. Add/cancel requests flow through channels so the
// heap has exactly one owner.
type TriggerScheduler struct {
	addChan       chan Notification
	removeChan    chan string
	removeCatChan chan Category
	ctx           context.Context
	log           logger.Logger
}

// NewTriggerScheduler creates and starts a TriggerScheduler. deliver is
// invoked (on the scheduler goroutine) when a trigger fires. The
// goroutine exits when ctx is cancelled.
func NewTriggerScheduler(ctx context.Context, log logger.Logger, deliver DeliverFunc) *TriggerScheduler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	s := &TriggerScheduler{
		addChan:       make(chan Notification, 64),
		removeChan:    make(chan string, 64),
		removeCatChan: make(chan Category, 8),
		ctx:           ctx,
		log:           log,
	}
	go s.run(deliver)
	return s
}

// Schedule enqueues a notification for delivery at its trigger time.
func (s *TriggerScheduler) Schedule(n Notification) error {
	select {
	case s.addChan <- n:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// Cancel removes a pending notification by ID.
func (s *TriggerScheduler) Cancel(id string) error {
	select {
	case s.removeChan <- id:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// CancelAll removes every pending notification in the category.
func (s *TriggerScheduler) CancelAll(category Category) error {
	select {
	case s.removeCatChan <- category:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// RequestPermission always grants: delivery is local to the daemon.
func (s *TriggerScheduler) RequestPermission(ctx context.Context) (bool, error) {
	return true, nil
}

// run is the scheduler goroutine. It sleeps until the earliest pending
// trigger with a 60s sleep cap, fires everything that has come due and
// re-arms the timer after every heap mutation.
func (s *TriggerScheduler) run(deliver DeliverFunc) {
	h := &triggerHeap{}
	heap.Init(h)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	resetTimer := func() <-chan time.Time {
		if timer != nil {
			timer.Stop()
		}
		if h.Len() == 0 {
			// No pending triggers — block on channels only.
			return nil
		}
		dur := time.Until((*h)[0].TriggerAt)
		if dur > maxSleepCap {
			dur = maxSleepCap
		}
		if dur < 0 {
			dur = 0
		}
		timer = time.NewTimer(dur)
		return timer.C
	}

	timerCh := resetTimer()

	for {
		select {
		case <-s.ctx.Done():
			return

		case n := <-s.addChan:
			heapPush(h, n)
			timerCh = resetTimer()

		case id := <-s.removeChan:
			heapRemoveByID(h, id)
			timerCh = resetTimer()

		case category := <-s.removeCatChan:
			if n := heapRemoveCategory(h, category); n > 0 {
				s.log.Info("scheduler: cancelled %d pending %s notifications", n, category)
			}
			timerCh = resetTimer()

		case <-timerCh:
			now := time.Now()
			for h.Len() > 0 && !(*h)[0].TriggerAt.After(now) {
				n := heapPop(h)
				deliver(n)
			}
			timerCh = resetTimer()
		}
	}
}

var _ Notifier = (*TriggerScheduler)(nil)
