// Package unicli is the thin JSON-RPC client the CLI uses to talk to a
// running unitime daemon.
package unicli

import (
	"context"
	"fmt"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"

	"github.com/unitime/unitime/internal/notify"
	"github.com/unitime/unitime/internal/server"
)

// DefaultAddr matches the daemon's default RPC listen address.
const DefaultAddr = "127.0.0.1:7437"

// Client wraps a jrpc2 client over the daemon's HTTP bridge.
type Client struct {
	rpc *jrpc2.Client
	ch  *jhttp.Channel
}

// NewClient connects to the daemon at addr (host:port). The connection
// is lazy; the first call fails if no daemon is listening.
func NewClient(addr string) *Client {
	if addr == "" {
		addr = DefaultAddr
	}
	ch := jhttp.NewChannel("http://"+addr+"/rpc", nil)
	return &Client{
		rpc: jrpc2.NewClient(ch, nil),
		ch:  ch,
	}
}

// Close releases the underlying channel.
func (c *Client) Close() error {
	return c.rpc.Close()
}

func (c *Client) call(ctx context.Context, method string, params, result interface{}) error {
	if err := c.rpc.CallResult(ctx, method, params, result); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

// Version fetches the daemon version.
func (c *Client) Version(ctx context.Context) (*server.VersionResult, error) {
	var res server.VersionResult
	if err := c.call(ctx, "system.getVersion", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// WeekSchedule fetches a weekly schedule.
func (c *Client) WeekSchedule(ctx context.Context, p *server.WeekParams) (*server.WeekResult, error) {
	var res server.WeekResult
	if err := c.call(ctx, "schedule.week", p, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DaySchedule fetches one day's schedule.
func (c *Client) DaySchedule(ctx context.Context, p *server.DayParams) (*server.DayResult, error) {
	var res server.DayResult
	if err := c.call(ctx, "schedule.day", p, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// News fetches a page of the news feed.
func (c *Client) News(ctx context.Context, p *server.NewsParams) (*server.NewsResult, error) {
	var res server.NewsResult
	if err := c.call(ctx, "news.list", p, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Groups fetches the group roster for a course year.
func (c *Client) Groups(ctx context.Context, p *server.GroupsParams) (*server.GroupsResult, error) {
	var res server.GroupsResult
	if err := c.call(ctx, "groups.list", p, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Slots fetches the time-slot table.
func (c *Client) Slots(ctx context.Context) (*server.SlotsResult, error) {
	var res server.SlotsResult
	if err := c.call(ctx, "slots.list", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Settings fetches the notification settings.
func (c *Client) Settings(ctx context.Context) (*notify.Settings, error) {
	var res notify.Settings
	if err := c.call(ctx, "settings.get", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// UpdateSettings applies a settings patch and returns the normalized
// result.
func (c *Client) UpdateSettings(ctx context.Context, p *server.SettingsPatch) (*notify.Settings, error) {
	var res notify.Settings
	if err := c.call(ctx, "settings.set", p, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Refresh forces every resource class to refresh now.
func (c *Client) Refresh(ctx context.Context) (*server.RefreshResult, error) {
	var res server.RefreshResult
	if err := c.call(ctx, "sync.refresh", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ClearCache purges cached responses on the daemon.
func (c *Client) ClearCache(ctx context.Context) error {
	var res server.EmptyResult
	return c.call(ctx, "cache.clear", nil, &res)
}
