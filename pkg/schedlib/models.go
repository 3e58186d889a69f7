package schedlib

import (
	"encoding/json"
	"fmt"
	"time"
)

// ClockTime is a wall-clock time of day without a date, serialized as
// "HH:MM". Time-slot boundaries use it so a slot definition is
// independent of any particular day.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses "HH:MM" (24-hour) into a ClockTime.
func ParseClockTime(s string) (ClockTime, error) {
	var ct ClockTime
	if _, err := fmt.Sscanf(s, "%d:%d", &ct.Hour, &ct.Minute); err != nil {
		return ClockTime{}, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	if ct.Hour < 0 || ct.Hour > 23 || ct.Minute < 0 || ct.Minute > 59 {
		return ClockTime{}, fmt.Errorf("clock time %q out of range", s)
	}
	return ct, nil
}

// String returns the "HH:MM" form.
func (ct ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", ct.Hour, ct.Minute)
}

// At anchors the clock time onto the given date, in the date's location.
func (ct ClockTime) At(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), ct.Hour, ct.Minute, 0, 0, date.Location())
}

// Minutes returns the time of day as minutes since midnight.
func (ct ClockTime) Minutes() int {
	return ct.Hour*60 + ct.Minute
}

// MarshalJSON serializes as "HH:MM".
func (ct ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(ct.String())
}

// UnmarshalJSON parses "HH:MM".
func (ct *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*ct = parsed
	return nil
}

// TimeSlot is a canonical class-period definition shared by every
// lesson referencing its index (e.g., period 3 runs 10:30-12:00).
// Immutable once fetched; the table refreshes on its own long TTL since
// period boundaries change rarely.
type TimeSlot struct {
	Index int       `json:"index"`
	Start ClockTime `json:"start"`
	End   ClockTime `json:"end"`
}

// SlotTable indexes time slots by their period index.
type SlotTable map[int]TimeSlot

// NewSlotTable builds a SlotTable from a slice of slots.
func NewSlotTable(slots []TimeSlot) SlotTable {
	table := make(SlotTable, len(slots))
	for _, s := range slots {
		table[s.Index] = s
	}
	return table
}

// LessonKind distinguishes lecture/seminar/lab style entries.
type LessonKind string

const (
	LessonLecture LessonKind = "lecture"
	LessonSeminar LessonKind = "seminar"
	LessonLab     LessonKind = "lab"
	LessonExam    LessonKind = "exam"
	LessonOther   LessonKind = "other"
)

// Lesson is one scheduled class occurrence within a day.
type Lesson struct {
	ID            string     `json:"id"`
	Subject       string     `json:"subject"`
	Teacher       string     `json:"teacher"`
	Room          string     `json:"room"`
	TimeSlotIndex int        `json:"timeSlotIndex"`
	Kind          LessonKind `json:"kind"`
	Groups        []string   `json:"groups"`
}

// DaySchedule holds one weekday's lessons. Weekday is 1-indexed
// Monday..Sunday, matching the origin's convention.
type DaySchedule struct {
	Weekday int      `json:"weekday"`
	Lessons []Lesson `json:"lessons"`
}

// DateRange is an inclusive calendar interval.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// WeekSchedule is the full schedule for one (group-or-teacher, week)
// query. Immutable once constructed.
type WeekSchedule struct {
	WeekNumber int           `json:"weekNumber"`
	DateRange  DateRange     `json:"dateRange"`
	Days       []DaySchedule `json:"days"`
}

// Day returns the DaySchedule for the given 1-indexed weekday, or nil.
func (w *WeekSchedule) Day(weekday int) *DaySchedule {
	for i := range w.Days {
		if w.Days[i].Weekday == weekday {
			return &w.Days[i]
		}
	}
	return nil
}

// Group is one entry in the group roster for a course year.
type Group struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Course int    `json:"course"`
}

// NewsItem is one entry in the university news feed.
type NewsItem struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Excerpt string    `json:"excerpt"`
	Link    string    `json:"link"`
	Date    time.Time `json:"date"`
}

// ScheduleTarget selects whose schedule to fetch: exactly one of Group
// or Teacher must be set.
type ScheduleTarget struct {
	Group   string `json:"group,omitempty"`
	Teacher string `json:"teacher,omitempty"`
}

// Validate checks that exactly one selector is set.
func (t ScheduleTarget) Validate() error {
	if (t.Group == "") == (t.Teacher == "") {
		return fmt.Errorf("schedule target needs exactly one of group or teacher")
	}
	return nil
}

// String returns a stable identifier used in resource keys.
func (t ScheduleTarget) String() string {
	if t.Teacher != "" {
		return "teacher:" + t.Teacher
	}
	return "group:" + t.Group
}
