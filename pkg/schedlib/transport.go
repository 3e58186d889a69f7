package schedlib

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// DefaultTransportTimeout bounds every single transport attempt.
const DefaultTransportTimeout = 10 * time.Second

// maxPayloadSize caps response bodies. The origin's largest payload
// (a full week schedule) is a few hundred KB.
const maxPayloadSize = 4 << 20

// Request is the logical request handed to a Transport. The transport
// decides how to put it on the wire.
type Request struct {
	URL     string
	Query   url.Values
	Headers map[string]string
}

// Response is a completed transport round trip. A non-2xx status is a
// transport failure for fallback purposes but still carries the body.
type Response struct {
	Status int
	Body   []byte
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Transport performs one bounded request attempt. Implementations must
// respect ctx cancellation and never block past their timeout.
type Transport interface {
	// Name identifies the transport in logs and attempt records
	// (e.g., "primary", "relay").
	Name() string

	// Do performs the request. A completed HTTP exchange returns a
	// Response even for non-2xx statuses; network-level failures
	// return an error.
	Do(ctx context.Context, req *Request) (*Response, error)
}

// HTTPTransport is the primary transport: a direct request to the
// origin with a bounded timeout.
type HTTPTransport struct {
	client  *http.Client
	timeout time.Duration
	name    string
}

// NewHTTPTransport creates the primary transport. A nil client uses
// http.DefaultClient; a zero timeout uses DefaultTransportTimeout.
func NewHTTPTransport(client *http.Client, timeout time.Duration) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultTransportTimeout
	}
	return &HTTPTransport{client: client, timeout: timeout, name: "primary"}
}

// Name returns the transport's log identifier.
func (t *HTTPTransport) Name() string { return t.name }

// Do performs the request against req.URL with req.Query appended.
func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	return t.roundTrip(ctx, buildURL(req.URL, req.Query), req.Headers)
}

func (t *HTTPTransport) roundTrip(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid request: %w", t.name, err)
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%s: %w: %v", t.name, ErrTransportTimeout, err)
		}
		return nil, fmt.Errorf("%s: %w", t.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize))
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%s: %w: %v", t.name, ErrTransportTimeout, err)
		}
		return nil, fmt.Errorf("%s: reading body: %w", t.name, err)
	}
	return &Response{Status: resp.StatusCode, Body: body}, nil
}

// RelayTransport proxies the same logical request through a forwarding
// service: the target URL (with query) is passed as the relay's "url"
// parameter. Used when the origin is unreachable directly.
type RelayTransport struct {
	base  string
	inner *HTTPTransport
}

// NewRelayTransport creates a relay transport forwarding through base.
func NewRelayTransport(base string, client *http.Client, timeout time.Duration) *RelayTransport {
	inner := NewHTTPTransport(client, timeout)
	inner.name = "relay"
	return &RelayTransport{base: base, inner: inner}
}

// Name returns "relay".
func (t *RelayTransport) Name() string { return t.inner.name }

// Do forwards the request through the relay endpoint.
func (t *RelayTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	target := buildURL(req.URL, req.Query)
	relayed := url.Values{}
	relayed.Set("url", target)
	return t.inner.roundTrip(ctx, buildURL(t.base, relayed), req.Headers)
}

// buildURL appends query parameters to a base URL, preserving any
// parameters already present.
func buildURL(base string, query url.Values) string {
	if len(query) == 0 {
		return base
	}
	u, err := url.Parse(base)
	if err != nil {
		// Fall through with naive concatenation; the transport will
		// report the invalid URL.
		return base + "?" + query.Encode()
	}
	q := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// isTimeout reports whether err is a deadline/timeout style failure.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

var (
	_ Transport = (*HTTPTransport)(nil)
	_ Transport = (*RelayTransport)(nil)
)
