package schedlib

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Catalog builds Resource descriptors for every origin endpoint. The
// cache key doubles as the logical resource key, so two queries with
// different parameters never collide.
type Catalog struct {
	base string
}

// NewCatalog creates a catalog rooted at the origin base URL.
func NewCatalog(baseURL string) *Catalog {
	return &Catalog{base: strings.TrimRight(baseURL, "/")}
}

// News returns the paginated news listing resource.
func (c *Catalog) News(offset, amount int) Resource {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("amount", strconv.Itoa(amount))
	return Resource{
		Key:   fmt.Sprintf("news:%d:%d", offset, amount),
		URL:   c.base + "/news",
		Query: q,
		TTL:   TTLNews,
	}
}

// Groups returns the group roster resource for a course year.
func (c *Catalog) Groups(course int) Resource {
	q := url.Values{}
	q.Set("course", strconv.Itoa(course))
	return Resource{
		Key:   fmt.Sprintf("groups:%d", course),
		URL:   c.base + "/groups",
		Query: q,
		TTL:   TTLGroups,
	}
}

// WeekSchedule returns the weekly schedule resource for a group or
// teacher and an academic week number.
func (c *Catalog) WeekSchedule(target ScheduleTarget, week int) Resource {
	q := url.Values{}
	if target.Teacher != "" {
		q.Set("teacher", target.Teacher)
	} else {
		q.Set("group", target.Group)
	}
	q.Set("week", strconv.Itoa(week))
	return Resource{
		Key:   fmt.Sprintf("schedule:%s:week:%d", target, week),
		URL:   c.base + "/schedule/week",
		Query: q,
		TTL:   TTLSchedule,
	}
}

// DaySchedule returns the daily schedule resource for a group and date.
func (c *Catalog) DaySchedule(group string, date time.Time) Resource {
	day := date.Format("2006-01-02")
	q := url.Values{}
	q.Set("group", group)
	q.Set("date", day)
	return Resource{
		Key:   fmt.Sprintf("schedule:group:%s:day:%s", group, day),
		URL:   c.base + "/schedule/day",
		Query: q,
		TTL:   TTLSchedule,
	}
}

// TimeSlots returns the time-slot table resource.
func (c *Catalog) TimeSlots() Resource {
	return Resource{
		Key: "timeslots",
		URL: c.base + "/timeslots",
		TTL: TTLTimeSlots,
	}
}

// Client pairs a Fetcher with the endpoint catalog and decodes payloads
// into the domain model. All consumers (daemon RPC handlers, refresher)
// go through it.
type Client struct {
	fetcher *Fetcher
	catalog *Catalog
}

// NewClient creates a typed client over the fetcher.
func NewClient(fetcher *Fetcher, catalog *Catalog) *Client {
	return &Client{fetcher: fetcher, catalog: catalog}
}

// Fetcher returns the underlying fetcher.
func (c *Client) Fetcher() *Fetcher { return c.fetcher }

// fetchInto fetches res and decodes its payload into out.
// A payload that passed wire validation but does not fit the model is
// reported as ErrMalformedPayload; nothing is served in its place since
// the cache already holds it for the next (fixed) client version.
func (c *Client) fetchInto(ctx context.Context, res Resource, out interface{}) (*FetchResult, error) {
	result, err := c.fetcher.Fetch(ctx, res)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(result.Data, out); err != nil {
		return nil, newFetchError(ErrMalformedPayload, res.Key, "decode", err)
	}
	return result, nil
}

// News fetches a page of the news feed.
func (c *Client) News(ctx context.Context, offset, amount int) ([]NewsItem, *FetchResult, error) {
	var items []NewsItem
	result, err := c.fetchInto(ctx, c.catalog.News(offset, amount), &items)
	if err != nil {
		return nil, nil, err
	}
	return items, result, nil
}

// Groups fetches the group roster for a course year.
func (c *Client) Groups(ctx context.Context, course int) ([]Group, *FetchResult, error) {
	var groups []Group
	result, err := c.fetchInto(ctx, c.catalog.Groups(course), &groups)
	if err != nil {
		return nil, nil, err
	}
	return groups, result, nil
}

// WeekSchedule fetches the weekly schedule for a group or teacher.
func (c *Client) WeekSchedule(ctx context.Context, target ScheduleTarget, week int) (*WeekSchedule, *FetchResult, error) {
	if err := target.Validate(); err != nil {
		return nil, nil, err
	}
	var schedule WeekSchedule
	result, err := c.fetchInto(ctx, c.catalog.WeekSchedule(target, week), &schedule)
	if err != nil {
		return nil, nil, err
	}
	return &schedule, result, nil
}

// DaySchedule fetches one day's schedule for a group.
func (c *Client) DaySchedule(ctx context.Context, group string, date time.Time) (*DaySchedule, *FetchResult, error) {
	var day DaySchedule
	result, err := c.fetchInto(ctx, c.catalog.DaySchedule(group, date), &day)
	if err != nil {
		return nil, nil, err
	}
	return &day, result, nil
}

// TimeSlots fetches the canonical time-slot table.
func (c *Client) TimeSlots(ctx context.Context) (SlotTable, *FetchResult, error) {
	var slots []TimeSlot
	result, err := c.fetchInto(ctx, c.catalog.TimeSlots(), &slots)
	if err != nil {
		return nil, nil, err
	}
	return NewSlotTable(slots), result, nil
}
