package server

import (
	"context"
	"time"

	"github.com/unitime/unitime/internal/notify"
	"github.com/unitime/unitime/pkg/schedlib"
)

// VersionResult is the response for system.getVersion.
type VersionResult struct {
	Version string `json:"version"`
}

// WeekParams is the input for schedule.week. Exactly one of Group or
// Teacher must be set; Week 0 means the current academic week.
type WeekParams struct {
	Group   string `json:"group,omitempty"`
	Teacher string `json:"teacher,omitempty"`
	Week    int    `json:"week,omitempty"`
}

// WeekResult is the response for schedule.week.
type WeekResult struct {
	Schedule *schedlib.WeekSchedule `json:"schedule"`
	Source   string                 `json:"source"`
	CachedAt *time.Time             `json:"cachedAt,omitempty"`
}

// DayParams is the input for schedule.day. Date is "2006-01-02"; empty
// means today.
type DayParams struct {
	Group string `json:"group"`
	Date  string `json:"date,omitempty"`
}

// DayResult is the response for schedule.day.
type DayResult struct {
	Day    *schedlib.DaySchedule `json:"day"`
	Source string                `json:"source"`
}

// NewsParams is the input for news.list.
type NewsParams struct {
	Offset int `json:"offset,omitempty"`
	Amount int `json:"amount,omitempty"`
}

// NewsResult is the response for news.list.
type NewsResult struct {
	Items  []schedlib.NewsItem `json:"items"`
	Source string              `json:"source"`
}

// GroupsParams is the input for groups.list.
type GroupsParams struct {
	Course int `json:"course"`
}

// GroupsResult is the response for groups.list.
type GroupsResult struct {
	Groups []schedlib.Group `json:"groups"`
	Source string           `json:"source"`
}

// SlotsResult is the response for slots.list.
type SlotsResult struct {
	Slots  []schedlib.TimeSlot `json:"slots"`
	Source string              `json:"source"`
}

// SettingsPatch is the input for settings.set. Nil fields are left
// untouched; the settings invariant is applied after every change.
type SettingsPatch struct {
	Enabled     *bool `json:"enabled,omitempty"`
	News        *bool `json:"news,omitempty"`
	Schedule    *bool `json:"schedule,omitempty"`
	BeforeStart *bool `json:"beforeStart,omitempty"`
	AtStart     *bool `json:"atStart,omitempty"`
	BeforeEnd   *bool `json:"beforeEnd,omitempty"`
	AtEnd       *bool `json:"atEnd,omitempty"`
}

// RefreshResult is the response for sync.refresh.
type RefreshResult struct {
	Outcomes []RefreshOutcome `json:"outcomes"`
}

func (s *Server) systemGetVersion(_ context.Context) (*VersionResult, error) {
	return &VersionResult{Version: s.deps.Version}, nil
}

func (s *Server) scheduleWeek(ctx context.Context, p *WeekParams) (*WeekResult, error) {
	target := schedlib.ScheduleTarget{Group: p.Group, Teacher: p.Teacher}
	if err := target.Validate(); err != nil {
		return nil, invalidParams(err)
	}
	week := p.Week
	if week == 0 {
		week = schedlib.WeekNumber(time.Now())
	}
	schedule, result, err := s.deps.Client.WeekSchedule(ctx, target, week)
	if err != nil {
		return nil, fetchErr(err)
	}
	res := &WeekResult{Schedule: schedule, Source: string(result.Source)}
	if result.Meta != nil {
		res.CachedAt = &result.Meta.CachedAt
	}
	return res, nil
}

func (s *Server) scheduleDay(ctx context.Context, p *DayParams) (*DayResult, error) {
	if p.Group == "" {
		return nil, invalidParamsMsg("group is required")
	}
	date := time.Now()
	if p.Date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", p.Date, time.Local)
		if err != nil {
			return nil, invalidParams(err)
		}
		date = parsed
	}
	day, result, err := s.deps.Client.DaySchedule(ctx, p.Group, date)
	if err != nil {
		return nil, fetchErr(err)
	}
	return &DayResult{Day: day, Source: string(result.Source)}, nil
}

func (s *Server) newsList(ctx context.Context, p *NewsParams) (*NewsResult, error) {
	amount := p.Amount
	if amount <= 0 {
		amount = 20
	}
	items, result, err := s.deps.Client.News(ctx, p.Offset, amount)
	if err != nil {
		return nil, fetchErr(err)
	}
	return &NewsResult{Items: items, Source: string(result.Source)}, nil
}

func (s *Server) groupsList(ctx context.Context, p *GroupsParams) (*GroupsResult, error) {
	if p.Course < 1 {
		return nil, invalidParamsMsg("course must be positive")
	}
	groups, result, err := s.deps.Client.Groups(ctx, p.Course)
	if err != nil {
		return nil, fetchErr(err)
	}
	return &GroupsResult{Groups: groups, Source: string(result.Source)}, nil
}

func (s *Server) slotsList(ctx context.Context) (*SlotsResult, error) {
	table, result, err := s.deps.Client.TimeSlots(ctx)
	if err != nil {
		return nil, fetchErr(err)
	}
	slots := make([]schedlib.TimeSlot, 0, len(table))
	for _, slot := range table {
		slots = append(slots, slot)
	}
	return &SlotsResult{Slots: slots, Source: string(result.Source)}, nil
}

func (s *Server) settingsGet(_ context.Context) (*notify.Settings, error) {
	settings := s.deps.Settings.Load()
	return &settings, nil
}

func (s *Server) settingsSet(_ context.Context, p *SettingsPatch) (*notify.Settings, error) {
	settings := s.deps.Settings.Load()
	if p.Enabled != nil {
		settings.SetEnabled(*p.Enabled)
	}
	if p.News != nil {
		settings.SetNews(*p.News)
	}
	if p.Schedule != nil {
		settings.SetSchedule(*p.Schedule)
	}
	if p.BeforeStart != nil {
		settings.BeforeStart = *p.BeforeStart
	}
	if p.AtStart != nil {
		settings.AtStart = *p.AtStart
	}
	if p.BeforeEnd != nil {
		settings.BeforeEnd = *p.BeforeEnd
	}
	if p.AtEnd != nil {
		settings.AtEnd = *p.AtEnd
	}
	if err := s.deps.Settings.Save(settings); err != nil {
		s.log.Error("server: saving settings failed: %v", err)
		return nil, err
	}
	return &settings, nil
}

func (s *Server) syncRefresh(ctx context.Context) (*RefreshResult, error) {
	if s.deps.Refresh == nil {
		return &RefreshResult{}, nil
	}
	return &RefreshResult{Outcomes: s.deps.Refresh(ctx)}, nil
}

// EmptyResult is a placeholder for methods that return no data.
type EmptyResult struct{}

func (s *Server) cacheClear(_ context.Context) (*EmptyResult, error) {
	if s.deps.ClearCache != nil {
		s.deps.ClearCache()
	}
	return &EmptyResult{}, nil
}
