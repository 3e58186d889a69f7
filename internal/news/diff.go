// Package news detects genuinely new items in the university news feed
// and turns them into notifications.
package news

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/unitime/unitime/internal/notify"
	"github.com/unitime/unitime/pkg/logger"
	"github.com/unitime/unitime/pkg/schedlib"
)

const (
	// SnapshotKey is where the "latest seen" snapshot lives in the
	// cache. Exported so cache purges can protect it.
	SnapshotKey = "news-snapshot"
	// snapshotSize is how many recent items the snapshot retains.
	snapshotSize = 5
	// maxNotifications caps how many notifications one detection pass
	// may emit, however many items are new.
	maxNotifications = 3
	// snapshotTTL is effectively forever; the snapshot is an anchor,
	// not a cached response, and is read via GetWithMetadata anyway.
	snapshotTTL = 365 * 24 * time.Hour
)

// Detector compares a fresh news listing against the previously seen
// snapshot and notifies about items published after the snapshot's
// newest date.
type Detector struct {
	cache    *schedlib.ExpiringCache
	notifier notify.Notifier
	log      logger.Logger
	now      func() time.Time
}

// NewDetector creates a Detector persisting its snapshot in cache.
func NewDetector(cache *schedlib.ExpiringCache, notifier notify.Notifier, log logger.Logger) *Detector {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Detector{
		cache:    cache,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// SetClock overrides the detector's clock. Tests only.
func (d *Detector) SetClock(now func() time.Time) {
	d.now = now
}

// DetectAndNotify returns the subset of fresh items considered new and
// emits at most three notifications for them.
//
// An item is new iff its publish date strictly exceeds the newest date
// in the previous snapshot. On the very first invocation there is no
// snapshot: the whole listing becomes the baseline and nothing is
// notified, so a fresh install never gets a notification storm. The
// snapshot is rewritten to the most recent items on every call, new or
// not, so the anchor date only moves forward.
func (d *Detector) DetectAndNotify(fresh []schedlib.NewsItem) []schedlib.NewsItem {
	if len(fresh) == 0 {
		return nil
	}

	snapshot, ok := d.loadSnapshot()
	if !ok {
		d.log.Info("news: no snapshot, baselining %d items without notifying", len(fresh))
		d.saveSnapshot(fresh)
		return nil
	}

	anchor := newestDate(snapshot)
	var newItems []schedlib.NewsItem
	for _, item := range fresh {
		if item.Date.After(anchor) {
			newItems = append(newItems, item)
		}
	}

	d.notifyAbout(newItems)
	d.saveSnapshot(fresh)
	return newItems
}

// notifyAbout emits a notification per new item, newest first, capped
// at maxNotifications. A failed delivery is logged and does not stop
// the rest.
func (d *Detector) notifyAbout(items []schedlib.NewsItem) {
	sorted := make([]schedlib.NewsItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})
	if len(sorted) > maxNotifications {
		sorted = sorted[:maxNotifications]
	}

	now := d.now()
	for _, item := range sorted {
		n := notify.Notification{
			ID:        "news/" + uuid.NewString(),
			Category:  notify.CategoryNews,
			Kind:      notify.KindNews,
			Title:     item.Title,
			Body:      "Posted " + humanize.RelTime(item.Date, now, "ago", "from now"),
			TriggerAt: now,
		}
		if err := d.notifier.Schedule(n); err != nil {
			d.log.Warning("news: notification for %q failed: %v", item.Title, err)
			continue
		}
	}
}

// loadSnapshot reads the previous snapshot, ignoring expiry (the
// snapshot is an anchor, not a cacheable response). ok is false only
// when no snapshot exists at all.
func (d *Detector) loadSnapshot() ([]schedlib.NewsItem, bool) {
	entry := d.cache.GetWithMetadata(SnapshotKey)
	if entry == nil {
		return nil, false
	}
	var items []schedlib.NewsItem
	if err := json.Unmarshal(entry.Value, &items); err != nil {
		d.log.Warning("news: corrupt snapshot treated as absent: %v", err)
		return nil, false
	}
	return items, true
}

// saveSnapshot stores the most recent snapshotSize items from fresh.
func (d *Detector) saveSnapshot(fresh []schedlib.NewsItem) {
	sorted := make([]schedlib.NewsItem, len(fresh))
	copy(sorted, fresh)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})
	if len(sorted) > snapshotSize {
		sorted = sorted[:snapshotSize]
	}
	d.cache.Set(SnapshotKey, sorted, snapshotTTL)
}

// newestDate returns the maximum publish date in items, or the zero
// time for an empty slice.
func newestDate(items []schedlib.NewsItem) time.Time {
	var max time.Time
	for _, item := range items {
		if item.Date.After(max) {
			max = item.Date
		}
	}
	return max
}
