package schedlib

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/unitime/unitime/pkg/logger"
)

// stubTransport is a scripted Transport for exercising the fallback
// chain without a network.
type stubTransport struct {
	name  string
	body  []byte
	err   error
	calls int
}

func (t *stubTransport) Name() string { return t.name }

func (t *stubTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	t.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.err != nil {
		return nil, t.err
	}
	return &Response{Status: 200, Body: t.body}, nil
}

type stubProbe struct{ online bool }

func (p stubProbe) Online() bool { return p.online }

func newTestFetcher(t *testing.T, probe Probe, transports ...Transport) *Fetcher {
	t.Helper()
	store, err := NewFileStore(afero.NewMemMapFs(), "/cache")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	cache := NewExpiringCache(store, logger.NewNopLogger())
	return NewFetcher(cache, probe, logger.NewNopLogger(), transports...)
}

func testResource() Resource {
	return Resource{Key: "news:0:20", URL: "https://origin.example/news", TTL: time.Minute}
}

func TestFetchFreshCacheSkipsNetwork(t *testing.T) {
	primary := &stubTransport{name: "primary", body: []byte(`{"fresh":true}`)}
	f := newTestFetcher(t, stubProbe{online: true}, primary)
	res := testResource()

	f.Cache().Set(res.Key, map[string]bool{"cached": true}, time.Minute)

	result, err := f.Fetch(context.Background(), res)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.Source != SourceCache {
		t.Errorf("source = %q, want %q", result.Source, SourceCache)
	}
	if primary.calls != 0 {
		t.Errorf("primary transport was called %d times on a fresh hit", primary.calls)
	}
	if result.Meta == nil {
		t.Error("cache hit should carry metadata")
	}
}

func TestFetchOfflineFailsFast(t *testing.T) {
	primary := &stubTransport{name: "primary", body: []byte(`{}`)}
	f := newTestFetcher(t, stubProbe{online: false}, primary)

	_, err := f.Fetch(context.Background(), testResource())
	if !errors.Is(err, ErrNoConnectivity) {
		t.Fatalf("err = %v, want ErrNoConnectivity", err)
	}
	if primary.calls != 0 {
		t.Error("no transport should run while offline")
	}

	var ferr *FetchError
	if !errors.As(err, &ferr) {
		t.Fatal("error should be a *FetchError")
	}
	if ferr.Stage != "probe" {
		t.Errorf("stage = %q, want probe", ferr.Stage)
	}
	if ferr.HasStale {
		t.Error("HasStale should be false with an empty cache")
	}
}

func TestFetchOfflineReportsStaleAvailability(t *testing.T) {
	f := newTestFetcher(t, stubProbe{online: false})
	res := testResource()
	f.Cache().Set(res.Key, "old", time.Nanosecond)
	time.Sleep(time.Millisecond)

	_, err := f.Fetch(context.Background(), res)
	var ferr *FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("err = %v, want *FetchError", err)
	}
	if !ferr.HasStale {
		t.Error("HasStale should be true when an expired entry exists")
	}
}

func TestFetchPrimarySuccessWritesThrough(t *testing.T) {
	primary := &stubTransport{name: "primary", body: []byte(`{"n":1}`)}
	f := newTestFetcher(t, stubProbe{online: true}, primary)
	res := testResource()

	result, err := f.Fetch(context.Background(), res)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.Source != SourceNetwork {
		t.Errorf("source = %q, want %q", result.Source, SourceNetwork)
	}
	if raw := f.Cache().Get(res.Key); raw == nil {
		t.Error("successful fetch should write through to the cache")
	}
}

func TestFetchFallsBackToRelay(t *testing.T) {
	primary := &stubTransport{name: "primary", err: errors.New("connection refused")}
	relay := &stubTransport{name: "relay", body: []byte(`{"via":"relay"}`)}
	f := newTestFetcher(t, stubProbe{online: true}, primary, relay)

	result, err := f.Fetch(context.Background(), testResource())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.Source != SourceRelay {
		t.Errorf("source = %q, want %q", result.Source, SourceRelay)
	}
	if primary.calls != 1 || relay.calls != 1 {
		t.Errorf("calls: primary=%d relay=%d, want 1/1", primary.calls, relay.calls)
	}
	if len(result.Attempts) != 1 || result.Attempts[0].Stage != "primary" {
		t.Errorf("attempts = %+v, want one absorbed primary failure", result.Attempts)
	}
}

func TestFetchAllFailedServesStale(t *testing.T) {
	primary := &stubTransport{name: "primary", err: errors.New("down")}
	relay := &stubTransport{name: "relay", err: errors.New("also down")}
	f := newTestFetcher(t, stubProbe{online: true}, primary, relay)
	res := testResource()

	f.Cache().Set(res.Key, "stale-value", time.Nanosecond)
	time.Sleep(time.Millisecond)
	if f.Cache().Get(res.Key) != nil {
		t.Fatal("precondition: entry should be expired")
	}

	result, err := f.Fetch(context.Background(), res)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.Source != SourceStaleCache {
		t.Errorf("source = %q, want %q", result.Source, SourceStaleCache)
	}
	if !result.Stale() {
		t.Error("Stale() should report true")
	}
	var v string
	if err := json.Unmarshal(result.Data, &v); err != nil || v != "stale-value" {
		t.Errorf("stale data mismatch: %q, %v", v, err)
	}
	if len(result.Attempts) != 2 {
		t.Errorf("attempts = %d, want 2", len(result.Attempts))
	}
}

func TestFetchAllFailedNoCache(t *testing.T) {
	primary := &stubTransport{name: "primary", err: errors.New("down")}
	relay := &stubTransport{name: "relay", err: errors.New("also down")}
	f := newTestFetcher(t, stubProbe{online: true}, primary, relay)

	_, err := f.Fetch(context.Background(), testResource())
	if !errors.Is(err, ErrResourceUnavailable) {
		t.Fatalf("err = %v, want ErrResourceUnavailable", err)
	}
	var ferr *FetchError
	if !errors.As(err, &ferr) {
		t.Fatal("error should be a *FetchError")
	}
	if ferr.HasStale {
		t.Error("HasStale should be false with nothing cached")
	}
}

func TestFetchPayloadTaxonomy(t *testing.T) {
	tests := []struct {
		name string
		body []byte
		want error
	}{
		{"html page", []byte("<!DOCTYPE html><html><body>portal</body></html>"), ErrUnexpectedFormat},
		{"html tag only", []byte("<html>err</html>"), ErrUnexpectedFormat},
		{"truncated json", []byte(`{"items":[`), ErrMalformedPayload},
		{"plain garbage", []byte("not json at all"), ErrMalformedPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := &stubTransport{name: "primary", body: tt.body}
			f := newTestFetcher(t, stubProbe{online: true}, primary)

			result, err := f.Fetch(context.Background(), testResource())
			if !errors.Is(err, ErrResourceUnavailable) {
				t.Fatalf("terminal err = %v, want ErrResourceUnavailable", err)
			}
			// The payload classification is preserved on the cause.
			var ferr *FetchError
			if !errors.As(err, &ferr) {
				t.Fatal("error should be a *FetchError")
			}
			if !errors.Is(ferr.Cause, tt.want) {
				t.Errorf("cause = %v, want %v", ferr.Cause, tt.want)
			}
			if result != nil {
				t.Error("bad payload must not produce a result")
			}
		})
	}
}

func TestFetchBadPayloadNotCached(t *testing.T) {
	primary := &stubTransport{name: "primary", body: []byte("<html>oops</html>")}
	f := newTestFetcher(t, stubProbe{online: true}, primary)
	res := testResource()

	f.Fetch(context.Background(), res)
	if f.Cache().GetWithMetadata(res.Key) != nil {
		t.Error("rejected payload must never reach the cache")
	}
}

func TestFetchStripsBOM(t *testing.T) {
	primary := &stubTransport{name: "primary", body: []byte("\xef\xbb\xbf{\"ok\":true}")}
	f := newTestFetcher(t, stubProbe{online: true}, primary)

	result, err := f.Fetch(context.Background(), testResource())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	var v struct{ OK bool }
	if err := json.Unmarshal(result.Data, &v); err != nil || !v.OK {
		t.Errorf("BOM-prefixed payload mangled: %v, %v", v, err)
	}
}

func TestFetchNilProbeSkipsCheck(t *testing.T) {
	primary := &stubTransport{name: "primary", body: []byte(`{}`)}
	f := newTestFetcher(t, nil, primary)

	if _, err := f.Fetch(context.Background(), testResource()); err != nil {
		t.Fatalf("Fetch with nil probe: %v", err)
	}
	if primary.calls != 1 {
		t.Errorf("primary calls = %d, want 1", primary.calls)
	}
}

// gateTransport blocks each attempt until released or cancelled, so a
// test can hold several fetches for the same key in flight at once.
type gateTransport struct {
	entered chan string
	release chan struct{}
}

func (t *gateTransport) Name() string { return "primary" }

func (t *gateTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	t.entered <- req.URL
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.release:
		return &Response{Status: 200, Body: []byte(`{}`)}, nil
	}
}

func TestFetchSupersededKeepsSuccessorRegistered(t *testing.T) {
	gate := &gateTransport{entered: make(chan string), release: make(chan struct{})}
	f := newTestFetcher(t, stubProbe{online: true}, gate)
	res := testResource()

	waitEnter := func(label string) {
		t.Helper()
		select {
		case <-gate.entered:
		case <-time.After(2 * time.Second):
			t.Fatalf("%s never reached the transport", label)
		}
	}
	fetch := func() chan error {
		errs := make(chan error, 1)
		go func() {
			_, err := f.Fetch(context.Background(), res)
			errs <- err
		}()
		return errs
	}

	// A enters the transport, then B supersedes it; A's fetch fails on
	// the cancelled context and its cleanup runs while B is in flight.
	errA := fetch()
	waitEnter("first fetch")
	errB := fetch()
	waitEnter("second fetch")
	select {
	case err := <-errA:
		if !errors.Is(err, ErrResourceUnavailable) {
			t.Fatalf("superseded fetch err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("superseded fetch never returned")
	}

	// A third fetch must still find and cancel B's registration; if the
	// first fetch's cleanup had unregistered B, B would stay blocked.
	errC := fetch()
	waitEnter("third fetch")
	select {
	case err := <-errB:
		if !errors.Is(err, ErrResourceUnavailable) {
			t.Fatalf("second fetch err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second fetch was not cancelled by its successor")
	}

	close(gate.release)
	select {
	case err := <-errC:
		if err != nil {
			t.Fatalf("final fetch: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("final fetch never completed")
	}
}

func TestFetchTimeoutClassified(t *testing.T) {
	primary := &stubTransport{name: "primary", err: ErrTransportTimeout}
	f := newTestFetcher(t, stubProbe{online: true}, primary)

	_, err := f.Fetch(context.Background(), testResource())
	var ferr *FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("err = %v, want *FetchError", err)
	}
	if !errors.Is(ferr.Cause, ErrTransportTimeout) {
		t.Errorf("cause = %v, want ErrTransportTimeout", ferr.Cause)
	}
}
