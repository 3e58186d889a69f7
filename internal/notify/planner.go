package notify

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/unitime/unitime/pkg/logger"
	"github.com/unitime/unitime/pkg/schedlib"
)

// DefaultLead is how far ahead of a lesson boundary the "before"
// triggers fire.
const DefaultLead = 5 * time.Minute

// Planner converts a fetched week schedule into the exact set of
// pending lesson notifications. Every planning pass is a full replace:
// the previous schedule-category set is cancelled wholesale before any
// new trigger is enqueued, so re-planning never duplicates and never
// leaks triggers for lessons that no longer exist.
type Planner struct {
	notifier Notifier
	log      logger.Logger
	lead     time.Duration
	now      func() time.Time
}

// NewPlanner creates a Planner delivering through notifier.
func NewPlanner(notifier Notifier, log logger.Logger) *Planner {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Planner{
		notifier: notifier,
		log:      log,
		lead:     DefaultLead,
		now:      time.Now,
	}
}

// SetClock overrides the planner's clock. Tests only.
func (p *Planner) SetClock(now func() time.Time) {
	p.now = now
}

// PlanLessons replaces the pending schedule-notification set with the
// one implied by week, slots and settings. Returns how many triggers
// were enqueued.
//
// Rules:
//   - no-op unless settings.Enabled && settings.Schedule
//   - a lesson whose slot index is missing from the table is skipped
//     with a warning (data inconsistency, not fatal)
//   - triggers are enqueued only if strictly in the future; past-due
//     ones are dropped, never fired immediately
//   - a failure scheduling one trigger is logged and does not abort
//     the rest of the batch
func (p *Planner) PlanLessons(week *schedlib.WeekSchedule, slots schedlib.SlotTable, settings Settings) int {
	if !settings.Enabled || !settings.Schedule {
		return 0
	}

	if err := p.notifier.CancelAll(CategorySchedule); err != nil {
		p.log.Warning("planner: cancelling previous set failed: %v", err)
	}

	now := p.now()
	planned := 0
	for _, day := range week.Days {
		date, err := p.dateFor(week, day.Weekday, now)
		if err != nil {
			p.log.Warning("planner: week %d day %d: %v", week.WeekNumber, day.Weekday, err)
			continue
		}
		for _, lesson := range day.Lessons {
			slot, ok := slots[lesson.TimeSlotIndex]
			if !ok {
				p.log.Warning("planner: lesson %s references unknown time slot %d, skipping",
					lesson.ID, lesson.TimeSlotIndex)
				continue
			}
			planned += p.planLesson(lesson, slot, date, settings, now)
		}
	}
	p.log.Info("planner: enqueued %d lesson triggers for week %d", planned, week.WeekNumber)
	return planned
}

// dateFor resolves a weekday to its calendar date, preferring the
// schedule's own date range over week-number arithmetic.
func (p *Planner) dateFor(week *schedlib.WeekSchedule, weekday int, now time.Time) (time.Time, error) {
	if weekday < 1 || weekday > 7 {
		return time.Time{}, fmt.Errorf("weekday %d out of range", weekday)
	}
	if !week.DateRange.Start.IsZero() {
		return week.DateRange.Start.AddDate(0, 0, weekday-1), nil
	}
	return schedlib.DateForWeekday(now, week.WeekNumber, weekday)
}

// planLesson enqueues the enabled triggers for one lesson, dropping any
// whose time has already passed.
func (p *Planner) planLesson(lesson schedlib.Lesson, slot schedlib.TimeSlot, date time.Time, settings Settings, now time.Time) int {
	start := slot.Start.At(date)
	end := slot.End.At(date)

	triggers := []struct {
		kind    Kind
		at      time.Time
		enabled bool
	}{
		{KindBeforeStart, start.Add(-p.lead), settings.BeforeStart},
		{KindAtStart, start, settings.AtStart},
		{KindBeforeEnd, end.Add(-p.lead), settings.BeforeEnd},
		{KindAtEnd, end, settings.AtEnd},
	}

	planned := 0
	for _, tr := range triggers {
		if !tr.enabled || !tr.at.After(now) {
			continue
		}
		n := Notification{
			ID:        lesson.ID + "/" + string(tr.kind),
			Category:  CategorySchedule,
			Kind:      tr.kind,
			Title:     lesson.Subject,
			Body:      p.body(lesson, slot, tr.kind),
			TriggerAt: tr.at,
			LessonID:  lesson.ID,
		}
		if err := p.notifier.Schedule(n); err != nil {
			p.log.Warning("planner: scheduling %s failed: %v", n.ID, err)
			continue
		}
		planned++
	}
	return planned
}

// body renders the notification text for one trigger kind.
func (p *Planner) body(lesson schedlib.Lesson, slot schedlib.TimeSlot, kind Kind) string {
	where := ""
	if lesson.Room != "" {
		where = " in " + lesson.Room
	}
	switch kind {
	case KindBeforeStart:
		return fmt.Sprintf("Starts at %s%s", slot.Start, where)
	case KindAtStart:
		return fmt.Sprintf("Starting now%s", where)
	case KindBeforeEnd:
		return fmt.Sprintf("Ends at %s", slot.End)
	default:
		return "Ended"
	}
}

// FireBody renders the live text shown when a trigger actually fires,
// with a relative timestamp.
func FireBody(n Notification, now time.Time) string {
	if n.Body == "" {
		return humanize.RelTime(n.TriggerAt, now, "ago", "from now")
	}
	return n.Body
}
