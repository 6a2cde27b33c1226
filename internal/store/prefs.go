package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/wardboard/internal/model"
)

// Theme modes persisted under KeyThemeMode.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Preferences are per-user display choices.
type Preferences struct {
	DefaultView       string   `json:"defaultView,omitempty"`
	PinnedPatientIDs  []string `json:"pinnedPatientIds,omitempty"`
	ShowCompleted     bool     `json:"showCompleted"`
	MuteNotifications bool     `json:"muteNotifications"`
}

// Open returns the store selected by the storage configuration.
func Open(ctx context.Context, cfg model.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "redis":
		return NewRedisStore(ctx, cfg.RedisURL, cfg.Namespace)
	case "", "sqlite":
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Prefs wraps a Store with typed accessors for the well-known keys.
type Prefs struct {
	Store Store
}

// ThemeMode returns the saved theme, or fallback when none is saved.
func (p Prefs) ThemeMode(ctx context.Context, fallback string) (string, error) {
	var mode string
	err := p.Store.GetValue(ctx, KeyThemeMode, &mode)
	if errors.Is(err, ErrNotFound) {
		return fallback, nil
	}
	if err != nil {
		return fallback, err
	}
	return mode, nil
}

// SetThemeMode saves the theme mode.
func (p Prefs) SetThemeMode(ctx context.Context, mode string) error {
	if mode != ThemeDark && mode != ThemeLight {
		return fmt.Errorf("theme mode must be %s or %s, got %q", ThemeDark, ThemeLight, mode)
	}
	return p.Store.SetValue(ctx, KeyThemeMode, mode)
}

// Preferences returns the saved preferences, or the zero value.
func (p Prefs) Preferences(ctx context.Context) (Preferences, error) {
	var prefs Preferences
	err := p.Store.GetValue(ctx, KeyUserPreferences, &prefs)
	if errors.Is(err, ErrNotFound) {
		return Preferences{}, nil
	}
	return prefs, err
}

// SetPreferences saves the preferences.
func (p Prefs) SetPreferences(ctx context.Context, prefs Preferences) error {
	return p.Store.SetValue(ctx, KeyUserPreferences, prefs)
}

// Settings returns the generic settings blob.
func (p Prefs) Settings(ctx context.Context) (map[string]string, error) {
	settings := map[string]string{}
	err := p.Store.GetValue(ctx, KeySettings, &settings)
	if errors.Is(err, ErrNotFound) {
		return map[string]string{}, nil
	}
	return settings, err
}

// SetSetting updates one entry of the settings blob.
func (p Prefs) SetSetting(ctx context.Context, name, value string) error {
	settings, err := p.Settings(ctx)
	if err != nil {
		return err
	}
	settings[name] = value
	return p.Store.SetValue(ctx, KeySettings, settings)
}

// Snapshot returns the last persisted dashboard aggregate. ok is false
// when none was saved.
func (p Prefs) Snapshot(ctx context.Context) (state model.DashboardState, ok bool, err error) {
	err = p.Store.GetValue(ctx, KeySnapshot, &state)
	if errors.Is(err, ErrNotFound) {
		return model.DashboardState{}, false, nil
	}
	if err != nil {
		return model.DashboardState{}, false, err
	}
	return state, true, nil
}

// SaveSnapshot persists the aggregate for the next start's first paint.
// The user is left out; it comes from the session.
func (p Prefs) SaveSnapshot(ctx context.Context, state model.DashboardState) error {
	state.User = nil
	return p.Store.SetValue(ctx, KeySnapshot, state)
}

// Token returns the token saved under KeyAuthToken, or "" when absent.
func (p Prefs) Token(ctx context.Context) (string, error) {
	var token string
	err := p.Store.GetValue(ctx, KeyAuthToken, &token)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return token, err
}

// SetToken saves the session token.
func (p Prefs) SetToken(ctx context.Context, token string) error {
	return p.Store.SetValue(ctx, KeyAuthToken, token)
}

// ClearToken removes the session token.
func (p Prefs) ClearToken(ctx context.Context) error {
	return p.Store.DeleteValue(ctx, KeyAuthToken)
}
