package config

import (
	"fmt"
	"log/slog"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name in the OS keychain
	KeyringService = "CrashScope"

	// KeyringSocorroItem is the key for the Socorro API token
	KeyringSocorroItem = "socorro-api-token"

	// KeyringBugzillaItem is the key for the Bugzilla API key
	KeyringBugzillaItem = "bugzilla-api-key"
)

// KeyringManager handles secure credential storage in the OS keychain
type KeyringManager struct {
	logger *slog.Logger
}

// NewKeyringManager creates a new keyring manager
func NewKeyringManager() *KeyringManager {
	return &KeyringManager{
		logger: slog.Default().With("component", "keyring"),
	}
}

func (km *KeyringManager) get(item string) (string, error) {
	value, err := keyring.Get(KeyringService, item)
	if err == keyring.ErrNotFound {
		// Not an error - just not set yet
		return "", nil
	}
	if err != nil {
		km.logger.Error("failed to read from keychain", "item", item, "error", err)
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}
	return value, nil
}

func (km *KeyringManager) set(item, value string) error {
	if value == "" {
		return fmt.Errorf("credential cannot be empty")
	}
	if err := keyring.Set(KeyringService, item, value); err != nil {
		km.logger.Error("failed to save to keychain", "item", item, "error", err)
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}
	km.logger.Info("credential saved to keychain", "service", KeyringService, "item", item)
	return nil
}

func (km *KeyringManager) delete(item string) error {
	err := keyring.Delete(KeyringService, item)
	if err == keyring.ErrNotFound {
		return nil
	}
	if err != nil {
		km.logger.Error("failed to delete from keychain", "item", item, "error", err)
		return fmt.Errorf("failed to delete from OS keychain: %w", err)
	}
	return nil
}

// GetSocorroToken retrieves the Socorro API token from the OS keychain
func (km *KeyringManager) GetSocorroToken() (string, error) {
	return km.get(KeyringSocorroItem)
}

// SetSocorroToken stores the Socorro API token in the OS keychain
func (km *KeyringManager) SetSocorroToken(token string) error {
	return km.set(KeyringSocorroItem, token)
}

// DeleteSocorroToken removes the Socorro API token from the OS keychain
func (km *KeyringManager) DeleteSocorroToken() error {
	return km.delete(KeyringSocorroItem)
}

// GetBugzillaKey retrieves the Bugzilla API key from the OS keychain
func (km *KeyringManager) GetBugzillaKey() (string, error) {
	return km.get(KeyringBugzillaItem)
}

// SetBugzillaKey stores the Bugzilla API key in the OS keychain
func (km *KeyringManager) SetBugzillaKey(key string) error {
	return km.set(KeyringBugzillaItem, key)
}

// DeleteBugzillaKey removes the Bugzilla API key from the OS keychain
func (km *KeyringManager) DeleteBugzillaKey() error {
	return km.delete(KeyringBugzillaItem)
}

// IsAvailable checks if the OS keychain is available.
// Returns false on headless systems (CI) where no keychain backend exists.
func (km *KeyringManager) IsAvailable() bool {
	_, err := keyring.Get(KeyringService, "test-availability")
	if err == keyring.ErrNotFound {
		return true
	}
	if err != nil {
		km.logger.Debug("keychain not available", "error", err)
		return false
	}
	return true
}

// MaskCredential masks a credential for display.
// Shows first 4 and last 4 chars: "abcd...wxyz"
func MaskCredential(value string) string {
	if value == "" {
		return "(not set)"
	}
	if len(value) < 12 {
		return "***"
	}
	return fmt.Sprintf("%s...%s", value[:4], value[len(value)-4:])
}
