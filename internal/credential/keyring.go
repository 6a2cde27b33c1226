package credential

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/99designs/keyring"

	"github.com/nhle/wardboard/internal/model"
)

const (
	serviceName = "wardboard"
	tokenKey    = "session-token"
)

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(model.ConfigDir(), "credentials"),
		FilePasswordFunc:         keyring.FixedStringPrompt("wardboard-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Keyring keeps the session token in the operating system keyring. The
// ring is opened lazily so a machine without a keyring backend only
// fails when a token is actually needed.
type Keyring struct {
	open func() (keyring.Keyring, error)
}

// NewKeyring returns a token store backed by the system keyring.
func NewKeyring() *Keyring {
	return &Keyring{open: openKeyring}
}

// NewKeyringWith returns a token store over an already opened ring,
// such as keyring.NewArrayKeyring in tests.
func NewKeyringWith(ring keyring.Keyring) *Keyring {
	return &Keyring{open: func() (keyring.Keyring, error) { return ring, nil }}
}

// Token returns the saved session token, or "" when none is saved.
func (k *Keyring) Token(_ context.Context) (string, error) {
	ring, err := k.open()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(tokenKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", tokenKey, err)
	}

	return string(item.Data), nil
}

// SetToken stores the session token.
func (k *Keyring) SetToken(_ context.Context, token string) error {
	ring, err := k.open()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   tokenKey,
		Data:  []byte(token),
		Label: "wardboard session",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", tokenKey, err)
	}

	return nil
}

// ClearToken removes the session token. Clearing an absent token is not
// an error.
func (k *Keyring) ClearToken(_ context.Context) error {
	ring, err := k.open()
	if err != nil {
		return err
	}

	err = ring.Remove(tokenKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", tokenKey, err)
	}

	return nil
}
