package notify

import (
	"encoding/json"
	"os"

	"github.com/unitime/unitime/pkg/logger"
	"github.com/unitime/unitime/pkg/schedlib"
)

// settingsKey is where Settings persist in the key-value store.
const settingsKey = "notification-settings"

// Settings controls which notifications are produced.
//
// Invariant, enforced on every mutation: News or Schedule implies
// Enabled, and clearing Enabled clears both. Mutate through the Set*
// methods; direct field writes should be followed by Normalize.
type Settings struct {
	Enabled     bool `json:"enabled"`
	News        bool `json:"news"`
	Schedule    bool `json:"schedule"`
	BeforeStart bool `json:"beforeStart"`
	AtStart     bool `json:"atStart"`
	BeforeEnd   bool `json:"beforeEnd"`
	AtEnd       bool `json:"atEnd"`
}

// DefaultSettings returns the first-run configuration: everything on
// except the end-of-lesson triggers.
func DefaultSettings() Settings {
	return Settings{
		Enabled:     true,
		News:        true,
		Schedule:    true,
		BeforeStart: true,
		AtStart:     true,
	}
}

// Normalize applies the derived invariant to a settings value of
// unknown provenance (e.g., loaded from the store).
func (s *Settings) Normalize() {
	if !s.Enabled {
		s.News = false
		s.Schedule = false
	}
}

// SetEnabled flips the master switch. Disabling cascades to News and
// Schedule.
func (s *Settings) SetEnabled(on bool) {
	s.Enabled = on
	s.Normalize()
}

// SetNews flips news notifications. Enabling them enables the master
// switch.
func (s *Settings) SetNews(on bool) {
	s.News = on
	if on {
		s.Enabled = true
	}
}

// SetSchedule flips lesson notifications. Enabling them enables the
// master switch.
func (s *Settings) SetSchedule(on bool) {
	s.Schedule = on
	if on {
		s.Enabled = true
	}
}

// SettingsStore persists Settings in a key-value store so they survive
// daemon restarts. Read failures fall back to defaults.
type SettingsStore struct {
	store schedlib.Store
	log   logger.Logger
}

// NewSettingsStore creates a SettingsStore over the given store.
func NewSettingsStore(store schedlib.Store, log logger.Logger) *SettingsStore {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &SettingsStore{store: store, log: log}
}

// Load returns the persisted settings, normalized, or defaults if none
// are stored or the stored value is corrupt.
func (s *SettingsStore) Load() Settings {
	buf, err := s.store.Read(settingsKey)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warning("settings: read failed, using defaults: %v", err)
		}
		return DefaultSettings()
	}
	var settings Settings
	if err := json.Unmarshal(buf, &settings); err != nil {
		s.log.Warning("settings: corrupt, using defaults: %v", err)
		return DefaultSettings()
	}
	settings.Normalize()
	return settings
}

// Save persists the settings, normalizing first.
func (s *SettingsStore) Save(settings Settings) error {
	settings.Normalize()
	buf, err := json.Marshal(&settings)
	if err != nil {
		return err
	}
	return s.store.Write(settingsKey, buf)
}
