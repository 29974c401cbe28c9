// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"errors"

	"github.com/hewel/jmsr/internal/models"
)

// PreferencesStore exposes the persisted documents in their typed
// shapes, layered over the generic JSON key/value Store.
type PreferencesStore struct {
	store *Store
}

// NewPreferencesStore wraps an open Store.
func NewPreferencesStore(store *Store) *PreferencesStore {
	return &PreferencesStore{store: store}
}

// LoadSavedSession returns the persisted session, or (nil, nil) if none
// has been saved yet.
func (p *PreferencesStore) LoadSavedSession() (*models.SavedSession, error) {
	var session models.SavedSession
	if err := p.store.Get(KeySavedSession, &session); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// SaveSession persists the authenticated connection so it survives a restart.
func (p *PreferencesStore) SaveSession(session models.SavedSession) error {
	return p.store.Put(KeySavedSession, session)
}

// ClearSession removes the persisted session, e.g. on explicit logout.
func (p *PreferencesStore) ClearSession() error {
	return p.store.Delete(KeySavedSession)
}

// LoadAppConfig returns the persisted config, or the defaults if none
// has been saved yet.
func (p *PreferencesStore) LoadAppConfig() (models.AppConfig, error) {
	var cfg models.AppConfig
	if err := p.store.Get(KeyAppConfig, &cfg); err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.DefaultAppConfig(), nil
		}
		return models.AppConfig{}, err
	}
	return cfg, nil
}

// SaveAppConfig persists the user's configuration.
func (p *PreferencesStore) SaveAppConfig(cfg models.AppConfig) error {
	return p.store.Put(KeyAppConfig, cfg)
}

// LoadTrackPreference returns the remembered track choice for a series,
// or the zero value if none has been recorded.
func (p *PreferencesStore) LoadTrackPreference(seriesID string) (models.TrackPreference, error) {
	var pref models.TrackPreference
	if err := p.store.Get(KeyTrackPreferences+seriesID, &pref); err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.TrackPreference{}, nil
		}
		return models.TrackPreference{}, err
	}
	return pref, nil
}

// SaveTrackPreference records the track choice to reuse for subsequent
// episodes of the same series.
func (p *PreferencesStore) SaveTrackPreference(seriesID string, pref models.TrackPreference) error {
	return p.store.Put(KeyTrackPreferences+seriesID, pref)
}
