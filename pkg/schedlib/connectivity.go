package schedlib

import (
	"context"
	"net"
	"time"
)

// Probe reports whether the device currently has network connectivity.
// The fetcher samples it synchronously before any transport attempt so
// an offline device fails fast instead of waiting out a timeout.
type Probe interface {
	Online() bool
}

// OnlineFunc adapts a plain function to the Probe interface.
type OnlineFunc func() bool

// Online calls the wrapped function.
func (f OnlineFunc) Online() bool { return f() }

// DialProbe checks connectivity by opening a TCP connection to a
// well-known host. Cheap enough to sample before every fetch.
type DialProbe struct {
	// Addr is the host:port dialed, e.g. "1.1.1.1:53".
	Addr string
	// Timeout bounds the dial attempt.
	Timeout time.Duration
}

// NewDialProbe creates a probe against addr with the given timeout.
func NewDialProbe(addr string, timeout time.Duration) *DialProbe {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &DialProbe{Addr: addr, Timeout: timeout}
}

// Online dials the probe address and reports success.
func (p *DialProbe) Online() bool {
	conn, err := net.DialTimeout("tcp", p.Addr, p.Timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// WatchConnectivity polls probe at the given interval and sends a value
// on the returned channel whenever the online state changes. The first
// observation is always sent. The channel closes when ctx is cancelled.
func WatchConnectivity(ctx context.Context, probe Probe, interval time.Duration) <-chan bool {
	ch := make(chan bool, 1)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		last := probe.Online()
		select {
		case ch <- last:
		case <-ctx.Done():
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				online := probe.Online()
				if online == last {
					continue
				}
				last = online
				select {
				case ch <- online:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch
}

var (
	_ Probe = OnlineFunc(nil)
	_ Probe = (*DialProbe)(nil)
)
