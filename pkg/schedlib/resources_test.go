package schedlib

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/unitime/unitime/pkg/logger"
)

func TestCatalogKeys(t *testing.T) {
	c := NewCatalog("https://origin.example/api/")

	tests := []struct {
		name string
		res  Resource
		key  string
		url  string
	}{
		{"news", c.News(0, 20), "news:0:20", "https://origin.example/api/news"},
		{"groups", c.Groups(2), "groups:2", "https://origin.example/api/groups"},
		{"week by group", c.WeekSchedule(ScheduleTarget{Group: "CS-201"}, 12),
			"schedule:group:CS-201:week:12", "https://origin.example/api/schedule/week"},
		{"week by teacher", c.WeekSchedule(ScheduleTarget{Teacher: "Ivanov"}, 3),
			"schedule:teacher:Ivanov:week:3", "https://origin.example/api/schedule/week"},
		{"day", c.DaySchedule("CS-201", time.Date(2025, time.October, 6, 0, 0, 0, 0, time.UTC)),
			"schedule:group:CS-201:day:2025-10-06", "https://origin.example/api/schedule/day"},
		{"timeslots", c.TimeSlots(), "timeslots", "https://origin.example/api/timeslots"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.res.Key != tt.key {
				t.Errorf("key = %q, want %q", tt.res.Key, tt.key)
			}
			if tt.res.URL != tt.url {
				t.Errorf("url = %q, want %q", tt.res.URL, tt.url)
			}
		})
	}

	// Distinct parameters must never collide on one cache key.
	if c.News(0, 20).Key == c.News(20, 20).Key {
		t.Error("news pages share a cache key")
	}
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store, err := NewFileStore(afero.NewMemMapFs(), "/cache")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	cache := NewExpiringCache(store, logger.NewNopLogger())
	fetcher := NewFetcher(cache, nil, logger.NewNopLogger(),
		NewHTTPTransport(srv.Client(), time.Second))
	return NewClient(fetcher, NewCatalog(srv.URL)), srv
}

func TestClientNews(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/news" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`[{"id":"1","title":"Exams moved","date":"2025-10-01T00:00:00Z"}]`))
	}))

	items, result, err := client.News(context.Background(), 0, 20)
	if err != nil {
		t.Fatalf("News: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Exams moved" {
		t.Errorf("items = %+v", items)
	}
	if result.Source != SourceNetwork {
		t.Errorf("source = %q", result.Source)
	}

	// Second call within the TTL is served from cache.
	_, result, err = client.News(context.Background(), 0, 20)
	if err != nil {
		t.Fatalf("News (cached): %v", err)
	}
	if result.Source != SourceCache {
		t.Errorf("second source = %q, want cache", result.Source)
	}
}

func TestClientWeekScheduleValidatesTarget(t *testing.T) {
	client, _ := newTestClient(t, http.NotFoundHandler())

	if _, _, err := client.WeekSchedule(context.Background(), ScheduleTarget{}, 1); err == nil {
		t.Error("empty target should be rejected before any fetch")
	}
}

func TestClientDecodeMismatchIsMalformed(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Valid JSON, wrong shape for a news listing.
		w.Write([]byte(`{"totally":"unrelated"}`))
	}))

	_, _, err := client.News(context.Background(), 0, 20)
	if !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("err = %v, want ErrMalformedPayload", err)
	}
	var ferr *FetchError
	if !errors.As(err, &ferr) || ferr.Stage != "decode" {
		t.Errorf("stage = %v, want decode", err)
	}
}

func TestClientTimeSlots(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"index":1,"start":"09:00","end":"10:20"},{"index":2,"start":"10:30","end":"11:50"}]`))
	}))

	table, _, err := client.TimeSlots(context.Background())
	if err != nil {
		t.Fatalf("TimeSlots: %v", err)
	}
	if len(table) != 2 {
		t.Fatalf("table size = %d", len(table))
	}
	if table[1].End != (ClockTime{Hour: 10, Minute: 20}) {
		t.Errorf("slot 1 = %+v", table[1])
	}
}
