package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"
)

// CredentialManager resolves credentials through a priority chain:
// environment variables, then keychain, then interactive prompt.
// Interactive prompts are disabled in CI.
type CredentialManager struct {
	keyring *KeyringManager
}

// NewCredentialManager creates a new credential manager
func NewCredentialManager() *CredentialManager {
	return &CredentialManager{keyring: NewKeyringManager()}
}

// RunningInCI reports whether we are in a CI environment, where interactive
// prompts must never block.
func RunningInCI() bool {
	for _, env := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL"} {
		if os.Getenv(env) != "" {
			return true
		}
	}
	return false
}

// resolve walks the priority chain for one credential.
func (cm *CredentialManager) resolve(envVar, keyringItem, prompt string) (string, error) {
	if value := os.Getenv(envVar); value != "" {
		return value, nil
	}

	if cm.keyring.IsAvailable() {
		if value, err := cm.keyring.get(keyringItem); err == nil && value != "" {
			return value, nil
		}
	}

	if RunningInCI() || !term.IsTerminal(int(syscall.Stdin)) {
		// Optional credentials resolve to empty rather than failing.
		return "", nil
	}

	value, err := promptSecret(prompt)
	if err != nil {
		return "", err
	}
	if value != "" && cm.keyring.IsAvailable() {
		// Best effort: remember it so the next run doesn't prompt.
		cm.keyring.set(keyringItem, value)
	}
	return value, nil
}

// SocorroToken resolves the Socorro API token.
func (cm *CredentialManager) SocorroToken() (string, error) {
	return cm.resolve("SOCORRO_API_TOKEN", KeyringSocorroItem,
		"Socorro API token (optional, Enter to skip): ")
}

// BugzillaKey resolves the Bugzilla API key.
func (cm *CredentialManager) BugzillaKey() (string, error) {
	return cm.resolve("BUGZILLA_API_KEY", KeyringBugzillaItem,
		"Bugzilla API key (optional, Enter to skip): ")
}

// promptSecret reads a credential without echoing when stdin is a terminal.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	if term.IsTerminal(int(syscall.Stdin)) {
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read credential: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read credential: %w", err)
	}
	return strings.TrimSpace(line), nil
}
