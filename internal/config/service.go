package config

import (
	"sync"
	"time"

	"github.com/SynoSoftware/TinyTorrent-sub005/internal/eventbus"
	"github.com/SynoSoftware/TinyTorrent-sub005/internal/model"
)

// Repository is the narrow slice of the Persistence Repository (C1) the
// Configuration Service needs.
type Repository interface {
	GetSetting(key string) (string, bool, error)
	SetSetting(key, value string) error
	ListSettings() (map[string]string, error)
}

const listenCooldown = time.Second

// Service is the authoritative, mutex-guarded CoreSettings holder. Every
// mutation goes through Mutate, which marks the dirty flag and publishes a
// change event.
type Service struct {
	mu       sync.Mutex
	settings model.CoreSettings
	dirty    bool
	repo     Repository
	bus      *eventbus.Bus

	lastListenChange time.Time
}

// NewService wraps initial settings (DefaultSettings, or the result of Load)
// with persistence and event-bus wiring.
func NewService(initial model.CoreSettings, repo Repository, bus *eventbus.Bus) *Service {
	return &Service{settings: initial, repo: repo, bus: bus}
}

// LoadFromRepository overlays every persisted key/value pair onto the
// current settings, run once at startup on top of the initial settings
// passed to NewService.
func (s *Service) LoadFromRepository() error {
	rows, err := s.repo.ListSettings()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range rows {
		applyKV(&s.settings, k, v)
	}
	return nil
}

// Get returns a cheap copy of the current settings.
func (s *Service) Get() model.CoreSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Mutate applies fn to a copy of the current settings under the lock,
// storing the result, marking dirty and publishing a change event if
// anything actually differs. This is the single typed-setter choke point
// every RPC session-set handler goes through.
func (s *Service) Mutate(fn func(*model.CoreSettings)) {
	s.mu.Lock()
	before := s.settings
	next := s.settings
	fn(&next)

	listenChanged := before.ListenHost != next.ListenHost || before.ListenPort != next.ListenPort
	if listenChanged {
		now := time.Now()
		if now.Sub(s.lastListenChange) < listenCooldown {
			// Cooldown: drop the listen-endpoint portion of this mutation to
			// avoid flapping; every other field still applies.
			next.ListenHost = before.ListenHost
			next.ListenPort = before.ListenPort
			listenChanged = false
		} else {
			s.lastListenChange = now
		}
	}

	changed := next != before
	s.settings = next
	if changed {
		s.dirty = true
	}
	s.mu.Unlock()

	if changed && s.bus != nil {
		s.bus.Publish(eventbus.Event{Topic: eventbus.TopicSettingsChanged, Data: next})
	}
}

// PersistIfDirty writes every settings key, changed or not, to the
// repository with one SetSetting call per key, then clears the dirty flag.
// The writes are not grouped into one transaction: if a write fails, the
// keys written before it stay written and the dirty flag stays set. It is a
// no-op when nothing changed since the last call.
func (s *Service) PersistIfDirty() error {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	snapshot := s.settings
	s.mu.Unlock()

	for k, v := range toKV(snapshot) {
		if err := s.repo.SetSetting(k, v); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
	return nil
}
