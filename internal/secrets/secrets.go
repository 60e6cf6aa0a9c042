// Package secrets stores the gateway password in the OS keyring so it never
// has to live in the config file.
package secrets

import (
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "starlift"

// Available reports whether a system keyring backend is usable.
func Available() bool {
	const probe = "starlift-keyring-probe"
	if err := keyring.Set(keyringService, probe, "ok"); err != nil {
		return false
	}
	keyring.Delete(keyringService, probe)
	return true
}

// StorePassword saves the gateway password for a username.
func StorePassword(username, password string) error {
	if err := keyring.Set(keyringService, username, password); err != nil {
		return fmt.Errorf("failed to store password in keyring: %w", err)
	}
	return nil
}

// GetPassword retrieves the gateway password for a username. A missing entry
// returns an empty password and no error.
func GetPassword(username string) (string, error) {
	password, err := keyring.Get(keyringService, username)
	if err == keyring.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read password from keyring: %w", err)
	}
	return password, nil
}

// DeletePassword removes the stored gateway password for a username.
func DeletePassword(username string) error {
	if err := keyring.Delete(keyringService, username); err != nil && err != keyring.ErrNotFound {
		return fmt.Errorf("failed to delete password from keyring: %w", err)
	}
	return nil
}
