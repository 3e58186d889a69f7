package notify

import (
	"testing"

	"github.com/spf13/afero"

	"github.com/unitime/unitime/pkg/logger"
	"github.com/unitime/unitime/pkg/schedlib"
)

func TestSettingsInvariant(t *testing.T) {
	var s Settings

	s.SetNews(true)
	if !s.Enabled {
		t.Error("enabling news should enable the master switch")
	}

	s.SetSchedule(true)
	s.SetEnabled(false)
	if s.News || s.Schedule {
		t.Error("disabling the master switch should cascade")
	}

	// Re-enabling the master switch does not resurrect sub-switches.
	s.SetEnabled(true)
	if s.News || s.Schedule {
		t.Error("sub-switches should stay off until explicitly set")
	}
}

func TestSettingsNormalize(t *testing.T) {
	s := Settings{News: true, Schedule: true} // inconsistent: Enabled false
	s.Normalize()
	if s.News || s.Schedule {
		t.Error("Normalize should clear sub-switches when disabled")
	}
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	if !s.Enabled || !s.News || !s.Schedule || !s.BeforeStart || !s.AtStart {
		t.Errorf("unexpected defaults: %+v", s)
	}
	if s.BeforeEnd || s.AtEnd {
		t.Error("end-of-lesson triggers should default off")
	}
}

func newTestSettingsStore(t *testing.T) (*SettingsStore, schedlib.Store) {
	t.Helper()
	store, err := schedlib.NewFileStore(afero.NewMemMapFs(), "/data")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return NewSettingsStore(store, logger.NewNopLogger()), store
}

func TestSettingsStoreRoundTrip(t *testing.T) {
	ss, _ := newTestSettingsStore(t)

	// Nothing stored yet: defaults.
	if got := ss.Load(); got != DefaultSettings() {
		t.Errorf("first load = %+v, want defaults", got)
	}

	want := Settings{Enabled: true, Schedule: true, AtEnd: true}
	if err := ss.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got := ss.Load(); got != want {
		t.Errorf("load = %+v, want %+v", got, want)
	}
}

func TestSettingsStoreCorruptFallsBack(t *testing.T) {
	ss, raw := newTestSettingsStore(t)
	if err := raw.Write("notification-settings", []byte("{broken")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if got := ss.Load(); got != DefaultSettings() {
		t.Errorf("corrupt load = %+v, want defaults", got)
	}
}

func TestSettingsStoreNormalizesOnSave(t *testing.T) {
	ss, _ := newTestSettingsStore(t)
	if err := ss.Save(Settings{News: true}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got := ss.Load()
	if got.News {
		t.Error("inconsistent settings should be normalized before persisting")
	}
}
