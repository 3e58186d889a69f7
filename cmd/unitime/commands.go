package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/unitime/unitime/internal/config"
	"github.com/unitime/unitime/internal/daemon"
	"github.com/unitime/unitime/internal/server"
	"github.com/unitime/unitime/pkg/logger"
	"github.com/unitime/unitime/pkg/schedlib"
	"github.com/unitime/unitime/pkg/unicli"
)

var weekdayNames = [8]string{"", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func connect(ctx *cli.Context) *unicli.Client {
	return unicli.NewClient(ctx.GlobalString("addr"))
}

// sourceNote annotates output that did not come from the network.
func sourceNote(source string, cachedAt *time.Time) string {
	switch schedlib.Source(source) {
	case schedlib.SourceCache:
		if cachedAt != nil {
			return fmt.Sprintf(" (cached %s)", humanize.Time(*cachedAt))
		}
		return " (cached)"
	case schedlib.SourceStaleCache:
		if cachedAt != nil {
			return fmt.Sprintf(" (STALE, cached %s)", humanize.Time(*cachedAt))
		}
		return " (STALE)"
	case schedlib.SourceRelay:
		return " (via relay)"
	}
	return ""
}

func schedule(ctx *cli.Context) error {
	c := connect(ctx)
	defer c.Close()

	res, err := c.WeekSchedule(context.Background(), &server.WeekParams{
		Group:   ctx.String("group"),
		Teacher: ctx.String("teacher"),
		Week:    ctx.Int("week"),
	})
	if err != nil {
		return err
	}

	fmt.Printf("Week %d (%s – %s)%s\n",
		res.Schedule.WeekNumber,
		res.Schedule.DateRange.Start.Format("Jan 2"),
		res.Schedule.DateRange.End.Format("Jan 2"),
		sourceNote(res.Source, res.CachedAt),
	)
	for _, day := range res.Schedule.Days {
		if len(day.Lessons) == 0 {
			continue
		}
		fmt.Printf("\n%s\n", weekdayName(day.Weekday))
		printLessons(day.Lessons)
	}
	return nil
}

func today(ctx *cli.Context) error {
	group := ctx.String("group")
	if group == "" {
		return fmt.Errorf("--group is required")
	}
	c := connect(ctx)
	defer c.Close()

	res, err := c.DaySchedule(context.Background(), &server.DayParams{Group: group})
	if err != nil {
		return err
	}
	fmt.Printf("%s%s\n", weekdayName(res.Day.Weekday), sourceNote(res.Source, nil))
	printLessons(res.Day.Lessons)
	return nil
}

func newsCmd(ctx *cli.Context) error {
	c := connect(ctx)
	defer c.Close()

	res, err := c.News(context.Background(), &server.NewsParams{
		Offset: ctx.Int("offset"),
		Amount: ctx.Int("amount"),
	})
	if err != nil {
		return err
	}
	for _, item := range res.Items {
		fmt.Printf("%s  %s\n", item.Date.Format("2006-01-02"), item.Title)
		if item.Excerpt != "" {
			fmt.Printf("    %s\n", item.Excerpt)
		}
	}
	if note := sourceNote(res.Source, nil); note != "" {
		fmt.Println(note)
	}
	return nil
}

func groups(ctx *cli.Context) error {
	c := connect(ctx)
	defer c.Close()

	res, err := c.Groups(context.Background(), &server.GroupsParams{Course: ctx.Int("course")})
	if err != nil {
		return err
	}
	for _, g := range res.Groups {
		fmt.Println(g.Name)
	}
	return nil
}

func slots(ctx *cli.Context) error {
	c := connect(ctx)
	defer c.Close()

	res, err := c.Slots(context.Background())
	if err != nil {
		return err
	}
	sorted := res.Slots
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	for _, slot := range sorted {
		fmt.Printf("%2d  %s – %s\n", slot.Index, slot.Start, slot.End)
	}
	return nil
}

func settingsShow(ctx *cli.Context) error {
	c := connect(ctx)
	defer c.Close()

	s, err := c.Settings(context.Background())
	if err != nil {
		return err
	}
	onOff := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}
	fmt.Printf("notifications:  %s\n", onOff(s.Enabled))
	fmt.Printf("  news:         %s\n", onOff(s.News))
	fmt.Printf("  schedule:     %s\n", onOff(s.Schedule))
	fmt.Printf("    5m before start: %s\n", onOff(s.BeforeStart))
	fmt.Printf("    at start:        %s\n", onOff(s.AtStart))
	fmt.Printf("    5m before end:   %s\n", onOff(s.BeforeEnd))
	fmt.Printf("    at end:          %s\n", onOff(s.AtEnd))
	return nil
}

func settingsEnable(ctx *cli.Context) error  { return settingsToggle(ctx, true) }
func settingsDisable(ctx *cli.Context) error { return settingsToggle(ctx, false) }

func settingsToggle(ctx *cli.Context, on bool) error {
	patch, err := settingsPatch(ctx.Args().First(), on)
	if err != nil {
		return err
	}
	c := connect(ctx)
	defer c.Close()

	if _, err := c.UpdateSettings(context.Background(), patch); err != nil {
		return err
	}
	return settingsShow(ctx)
}

func settingsPatch(name string, on bool) (*server.SettingsPatch, error) {
	v := &on
	switch name {
	case "all":
		return &server.SettingsPatch{Enabled: v}, nil
	case "news":
		return &server.SettingsPatch{News: v}, nil
	case "schedule":
		return &server.SettingsPatch{Schedule: v}, nil
	case "before-start":
		return &server.SettingsPatch{BeforeStart: v}, nil
	case "at-start":
		return &server.SettingsPatch{AtStart: v}, nil
	case "before-end":
		return &server.SettingsPatch{BeforeEnd: v}, nil
	case "at-end":
		return &server.SettingsPatch{AtEnd: v}, nil
	default:
		return nil, fmt.Errorf("unknown switch %q", name)
	}
}

// syncCmd refreshes each resource class through the daemon one by one,
// driving a progress bar as results come back.
func syncCmd(ctx *cli.Context) error {
	c := connect(ctx)
	defer c.Close()

	type step struct {
		name string
		run  func(context.Context) (string, error)
	}
	steps := []step{
		{"period table", func(ctx context.Context) (string, error) {
			res, err := c.Slots(ctx)
			if err != nil {
				return "", err
			}
			return res.Source, nil
		}},
		{"news", func(ctx context.Context) (string, error) {
			res, err := c.News(ctx, &server.NewsParams{Amount: 20})
			if err != nil {
				return "", err
			}
			return res.Source, nil
		}},
	}
	if group := ctx.String("group"); group != "" {
		steps = append(steps, step{"schedule", func(ctx context.Context) (string, error) {
			res, err := c.WeekSchedule(ctx, &server.WeekParams{Group: group})
			if err != nil {
				return "", err
			}
			return res.Source, nil
		}})
	}

	p := mpb.New(mpb.WithWidth(40))
	bar := p.AddBar(int64(len(steps)),
		mpb.PrependDecorators(
			decor.Name("Syncing", decor.WC{W: 8, C: decor.DindentRight}),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("%d / %d"),
		),
	)

	type outcome struct {
		name, source string
		err          error
	}
	var outcomes []outcome
	for _, s := range steps {
		source, err := s.run(context.Background())
		outcomes = append(outcomes, outcome{s.name, source, err})
		bar.Increment()
	}
	p.Wait()

	for _, o := range outcomes {
		if o.err != nil {
			fmt.Printf("%-14s failed: %v\n", o.name, o.err)
			continue
		}
		fmt.Printf("%-14s ok (source=%s)\n", o.name, o.source)
	}
	return nil
}

func clearCache(ctx *cli.Context) error {
	c := connect(ctx)
	defer c.Close()
	if err := c.ClearCache(context.Background()); err != nil {
		return err
	}
	fmt.Println("cache cleared")
	return nil
}

func daemonCmd(_ *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	l := logger.NewStandardLogger(log.Default())
	defer l.Close()

	d, err := daemon.New(cfg, l)
	if err != nil {
		return err
	}
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return d.Run(runCtx)
}

func weekdayName(weekday int) string {
	if weekday < 1 || weekday > 7 {
		return fmt.Sprintf("day %d", weekday)
	}
	return weekdayNames[weekday]
}

func printLessons(lessons []schedlib.Lesson) {
	for _, l := range lessons {
		fmt.Printf("  [%d] %-30s %-10s %s\n", l.TimeSlotIndex, l.Subject, l.Room, l.Teacher)
	}
}
