package schedlib

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/unitime/unitime/pkg/logger"
)

// Source tags where a FetchResult's data came from.
type Source string

const (
	// SourceCache means a non-expired cache entry was served without
	// any network activity.
	SourceCache Source = "cache"
	// SourceNetwork means the primary transport succeeded.
	SourceNetwork Source = "network"
	// SourceRelay means the relay transport succeeded after the
	// primary failed.
	SourceRelay Source = "proxy"
	// SourceStaleCache means every transport failed and an expired
	// cache entry was served as the last resort.
	SourceStaleCache Source = "stale_cache"
)

// Resource describes one fetchable origin resource: its cache key, the
// request to issue on a miss and the TTL for a successful result.
type Resource struct {
	Key     string
	URL     string
	Query   url.Values
	Headers map[string]string
	TTL     time.Duration
}

// FetchResult is the transient outcome of one Fetch call.
type FetchResult struct {
	Data   json.RawMessage
	Source Source
	Meta   *CacheEntry
	// Attempts records every failure absorbed by the fallback chain
	// on the way to this result.
	Attempts []AttemptError
}

// Stale reports whether the result was served past its TTL.
func (r *FetchResult) Stale() bool {
	return r.Source == SourceStaleCache
}

// Fetcher orchestrates the transport fallback chain and the cache.
//
// Policy is cache-first: a fresh cache entry short-circuits the network
// entirely (never revalidated while fresh — an intentional bandwidth
// trade-off carried over from the origin clients). Concurrent fetches
// for the same key are not coalesced; a later call cancels the earlier
// in-flight one via the in-flight registry, and the last cache write
// wins.
type Fetcher struct {
	cache      *ExpiringCache
	probe      Probe
	transports []Transport
	log        logger.Logger
	inflight   *GuardedMap[string, *context.CancelFunc]
}

// NewFetcher creates a Fetcher. transports are attempted in order; by
// convention the primary transport comes first and the relay second.
func NewFetcher(cache *ExpiringCache, probe Probe, log logger.Logger, transports ...Transport) *Fetcher {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Fetcher{
		cache:      cache,
		probe:      probe,
		transports: transports,
		log:        log,
		inflight:   NewGuardedMap[string, *context.CancelFunc](),
	}
}

// Cache exposes the underlying cache for consumers that need direct
// access (e.g., the news snapshot).
func (f *Fetcher) Cache() *ExpiringCache {
	return f.cache
}

// Fetch resolves a resource through the fallback chain:
//
//  1. fresh cache hit → served immediately, no network
//  2. offline per the connectivity probe → ErrNoConnectivity
//  3. transports in order, each with a bounded timeout; non-2xx,
//     timeout, HTML payloads and unparseable payloads all count as
//     transport failures and are absorbed
//  4. on success the payload is written through to the cache
//  5. if everything failed, any cached entry (even expired) is served
//     as stale; otherwise ErrResourceUnavailable
//
// The returned error is always a *FetchError whose HasStale field
// tells the caller whether a "view cached data" affordance is possible.
func (f *Fetcher) Fetch(ctx context.Context, res Resource) (*FetchResult, error) {
	if raw := f.cache.Get(res.Key); raw != nil {
		return &FetchResult{
			Data:   raw,
			Source: SourceCache,
			Meta:   f.cache.GetWithMetadata(res.Key),
		}, nil
	}

	if f.probe != nil && !f.probe.Online() {
		f.log.Warning("fetch %s: offline, failing fast", res.Key)
		return nil, f.failure(ErrNoConnectivity, res.Key, "probe", nil)
	}

	// A superseding fetch for the same key invalidates the in-flight
	// one instead of racing it to the cache. The registry stores a
	// per-fetch token so a superseded fetch finishing late cannot
	// unregister its successor.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	token := &cancel
	if prev, ok := f.inflight.Swap(res.Key, token); ok {
		(*prev)()
	}
	defer f.inflight.DeleteIf(res.Key, func(v *context.CancelFunc) bool { return v == token })

	req := &Request{URL: res.URL, Query: res.Query, Headers: res.Headers}
	var attempts []AttemptError

	for _, t := range f.transports {
		data, err := f.attempt(ctx, t, req)
		if err != nil {
			f.log.Warning("fetch %s: %s transport failed: %v", res.Key, t.Name(), err)
			attempts = append(attempts, AttemptError{Stage: t.Name(), Err: err})
			if ctx.Err() != nil {
				// Superseded or caller gave up; stop the chain.
				break
			}
			continue
		}
		f.cache.Set(res.Key, json.RawMessage(data), res.TTL)
		source := SourceNetwork
		if t.Name() == "relay" {
			source = SourceRelay
		}
		f.log.Info("fetch %s: ok via %s", res.Key, t.Name())
		return &FetchResult{
			Data:     data,
			Source:   source,
			Meta:     f.cache.GetWithMetadata(res.Key),
			Attempts: attempts,
		}, nil
	}

	if entry := f.cache.GetWithMetadata(res.Key); entry != nil {
		f.log.Warning("fetch %s: all transports failed, serving stale cache", res.Key)
		return &FetchResult{
			Data:     entry.Value,
			Source:   SourceStaleCache,
			Meta:     entry,
			Attempts: attempts,
		}, nil
	}

	var cause error
	if len(attempts) > 0 {
		cause = attempts[len(attempts)-1].Err
	}
	return nil, f.failure(ErrResourceUnavailable, res.Key, "fallback", cause)
}

// attempt performs one transport round trip and validates the payload.
// Every failure mode maps onto the error taxonomy.
func (f *Fetcher) attempt(ctx context.Context, t Transport, req *Request) (json.RawMessage, error) {
	resp, err := t.Do(ctx, req)
	if err != nil {
		if errors.Is(err, ErrTransportTimeout) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrTransportError, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: status %d", ErrTransportError, resp.Status)
	}
	return validatePayload(resp.Body)
}

// validatePayload distinguishes an HTML payload (captive portal, origin
// error page) from one that fails structural parsing. Both are treated
// as transport failures for fallback purposes but reported distinctly.
func validatePayload(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(body, []byte("\xef\xbb\xbf")), " \t\r\n")
	if looksLikeHTML(trimmed) {
		return nil, fmt.Errorf("%w: got HTML where structured data was expected", ErrUnexpectedFormat)
	}
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrMalformedPayload)
	}
	return json.RawMessage(trimmed), nil
}

// looksLikeHTML reports whether the payload begins with a doctype or
// html tag.
func looksLikeHTML(body []byte) bool {
	lower := strings.ToLower(string(body[:min(len(body), 16)]))
	return strings.HasPrefix(lower, "<!doctype") || strings.HasPrefix(lower, "<html")
}

// failure wraps a terminal fetch failure, noting stale availability so
// the consumer can offer a "view cached data" affordance.
func (f *Fetcher) failure(kind error, key, stage string, cause error) error {
	ferr := newFetchError(kind, key, stage, cause)
	ferr.HasStale = f.cache.GetWithMetadata(key) != nil
	return ferr
}
