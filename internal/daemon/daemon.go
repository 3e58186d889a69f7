// Package daemon wires the sync subsystem together: cache, fetcher,
// notification pipeline, background refresher and the RPC server.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/unitime/unitime/internal/config"
	"github.com/unitime/unitime/internal/news"
	"github.com/unitime/unitime/internal/notify"
	"github.com/unitime/unitime/internal/server"
	"github.com/unitime/unitime/pkg/logger"
	"github.com/unitime/unitime/pkg/schedlib"
)

// Version is stamped at build time.
var Version = "dev"

// Daemon owns every long-lived component of the sync subsystem.
type Daemon struct {
	cfg *config.Config
	log logger.Logger

	store    *schedlib.SQLStore
	cache    *schedlib.ExpiringCache
	client   *schedlib.Client
	settings *notify.SettingsStore
	planner  *notify.Planner
	detector *news.Detector
	srv      *server.Server
}

// New creates a Daemon from configuration. Long-lived goroutines are
// not started until Run.
func New(cfg *config.Config, log logger.Logger) (*Daemon, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("daemon: cannot create data dir: %w", err)
	}
	store, err := schedlib.NewSQLStore(cfg.DBPath())
	if err != nil {
		return nil, err
	}

	var proxyCfg *schedlib.ProxyConfig
	if cfg.ProxyURL != "" {
		proxyCfg, err = schedlib.ParseProxyURL(cfg.ProxyURL)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("daemon: %w", err)
		}
	}
	httpClient, err := schedlib.NewProxiedClient(proxyCfg, 0)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("daemon: proxy setup: %w", err)
	}

	cache := schedlib.NewExpiringCache(store, log)
	transports := []schedlib.Transport{
		schedlib.NewHTTPTransport(httpClient, cfg.TransportTimeout),
	}
	if cfg.RelayURL != "" {
		transports = append(transports,
			schedlib.NewRelayTransport(cfg.RelayURL, httpClient, cfg.TransportTimeout))
	}
	probe := schedlib.NewDialProbe(cfg.ProbeAddr, 2*time.Second)
	fetcher := schedlib.NewFetcher(cache, probe, log, transports...)

	d := &Daemon{
		cfg:      cfg,
		log:      log,
		store:    store,
		cache:    cache,
		client:   schedlib.NewClient(fetcher, schedlib.NewCatalog(cfg.BaseURL)),
		settings: notify.NewSettingsStore(store, log),
	}
	d.srv = server.New(log, server.Deps{
		Client:     d.client,
		Settings:   d.settings,
		Refresh:    d.refreshAll,
		ClearCache: d.clearCache,
		Version:    Version,
	})
	return d, nil
}

// Run starts the notification scheduler, the background refresher and
// the RPC server, then blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.store.Close()

	scheduler := notify.NewTriggerScheduler(ctx, d.log, d.deliver)
	d.planner = notify.NewPlanner(scheduler, d.log)
	d.detector = news.NewDetector(d.cache, scheduler, d.log)

	refresher := NewRefresher(d.log)
	refresher.AddJob("news", d.cfg.NewsCron, d.refreshNews)
	refresher.AddJob("schedule", d.cfg.ScheduleCron, d.refreshSchedule)
	refresher.AddJob("slots", d.cfg.SlotsCron, d.refreshSlots)
	refresher.Start(ctx)

	return d.srv.Start(ctx, d.cfg.RPCAddr)
}

// deliver receives fired notification triggers from the scheduler and
// broadcasts them to event subscribers.
func (d *Daemon) deliver(n notify.Notification) {
	d.log.Info("notify: %s — %s", n.Title, n.Body)
	d.srv.Hub().Publish(context.Background(), server.EventNotifyFired, &server.FiredEvent{
		ID:       n.ID,
		Category: string(n.Category),
		Kind:     string(n.Kind),
		Title:    n.Title,
		Body:     notify.FireBody(n, time.Now()),
		LessonID: n.LessonID,
	})
}

// clearCache purges cached responses while protecting state that must
// survive a purge: settings, the news anchor and the long-lived
// time-slot table.
func (d *Daemon) clearCache() {
	d.cache.ClearAllExcept([]string{
		news.SnapshotKey,
		"notification-settings",
		"timeslots",
	})
}

// refreshNews refetches the news feed and runs the diff detector.
func (d *Daemon) refreshNews(ctx context.Context) server.RefreshOutcome {
	items, result, err := d.client.News(ctx, 0, 20)
	if err != nil {
		return server.RefreshOutcome{Resource: "news", Error: errString(err)}
	}
	if fresh := d.detector.DetectAndNotify(items); len(fresh) > 0 {
		d.log.Info("news: %d new items", len(fresh))
	}
	return server.RefreshOutcome{Resource: "news", Source: string(result.Source)}
}

// refreshSchedule refetches the configured group's current week and
// replans lesson notifications.
func (d *Daemon) refreshSchedule(ctx context.Context) server.RefreshOutcome {
	if d.cfg.Group == "" {
		return server.RefreshOutcome{Resource: "schedule", Error: "no group configured"}
	}
	target := schedlib.ScheduleTarget{Group: d.cfg.Group}
	week := schedlib.WeekNumber(time.Now())
	schedule, result, err := d.client.WeekSchedule(ctx, target, week)
	if err != nil {
		return server.RefreshOutcome{Resource: "schedule", Error: errString(err)}
	}
	slots, _, err := d.client.TimeSlots(ctx)
	if err != nil {
		d.log.Warning("daemon: time slots unavailable, skipping planning: %v", err)
		return server.RefreshOutcome{Resource: "schedule", Source: string(result.Source)}
	}
	d.planner.PlanLessons(schedule, slots, d.settings.Load())
	return server.RefreshOutcome{Resource: "schedule", Source: string(result.Source)}
}

// refreshSlots refetches the time-slot table.
func (d *Daemon) refreshSlots(ctx context.Context) server.RefreshOutcome {
	_, result, err := d.client.TimeSlots(ctx)
	if err != nil {
		return server.RefreshOutcome{Resource: "slots", Error: errString(err)}
	}
	return server.RefreshOutcome{Resource: "slots", Source: string(result.Source)}
}

// refreshAll forces every resource class to refresh now. Used by the
// sync.refresh RPC and the CLI sync command.
func (d *Daemon) refreshAll(ctx context.Context) []server.RefreshOutcome {
	outcomes := []server.RefreshOutcome{
		d.refreshSlots(ctx),
		d.refreshNews(ctx),
		d.refreshSchedule(ctx),
	}
	d.srv.Hub().Publish(ctx, server.EventSyncDone, &server.SyncEvent{Outcomes: outcomes})
	return outcomes
}

func errString(err error) string {
	var ferr *schedlib.FetchError
	if errors.As(err, &ferr) {
		return ferr.Error()
	}
	return err.Error()
}
