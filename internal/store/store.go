package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has never been written or was deleted.
var ErrNotFound = errors.New("key not found")

// Well-known keys of the local persistent store. Each value is stored
// JSON-encoded under its own key.
const (
	KeyThemeMode       = "theme_mode"
	KeyUserPreferences = "user_preferences"
	KeyAuthToken       = "auth_token"
	KeySettings        = "settings"
	KeySnapshot        = "dashboard_snapshot"
)

// Store is the local persistent key-value store that survives restarts.
// Values are JSON-encoded on write and decoded into dst on read.
type Store interface {
	// GetValue decodes the value stored under key into dst. It returns
	// ErrNotFound when the key is absent.
	GetValue(ctx context.Context, key string, dst any) error

	// SetValue JSON-encodes v and stores it under key, replacing any
	// previous value.
	SetValue(ctx context.Context, key string, v any) error

	// DeleteValue removes key. Deleting an absent key is not an error.
	DeleteValue(ctx context.Context, key string) error

	// Keys lists every stored key in ascending order.
	Keys(ctx context.Context) ([]string, error)

	Close() error
}
