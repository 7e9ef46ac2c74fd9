package llm

import (
	"fmt"
	"os"

	"github.com/zalando/go-keyring"
)

const keyringService = "rot"

// SecretManager resolves provider API keys and OAuth blobs, generalized
// from sidekick's secret_manager.SecretManager interface (env-backed by
// default, keyring-backed for OAuth credential persistence).
type SecretManager interface {
	GetSecret(name string) (string, error)
	SetSecret(name, value string) error
}

// EnvSecretManager resolves secrets from environment variables, the
// simplest backend and the one every other backend falls back to.
type EnvSecretManager struct{}

func (EnvSecretManager) GetSecret(name string) (string, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return "", fmt.Errorf("secret %q not set", name)
	}
	return v, nil
}

func (EnvSecretManager) SetSecret(name, value string) error {
	return os.Setenv(name, value)
}

// KeyringSecretManager stores secrets in the OS keychain via go-keyring,
// falling back to the Fallback manager (when set) if a secret has never
// been stored; with an EnvSecretManager fallback, as cmd/rot configures,
// a plain ANTHROPIC_API_KEY in the environment still works without any
// keyring setup.
type KeyringSecretManager struct {
	Fallback SecretManager
}

func (k KeyringSecretManager) GetSecret(name string) (string, error) {
	v, err := keyring.Get(keyringService, name)
	if err == nil && v != "" {
		return v, nil
	}
	if k.Fallback != nil {
		return k.Fallback.GetSecret(name)
	}
	return "", fmt.Errorf("secret %q not found in keyring: %w", name, err)
}

func (k KeyringSecretManager) SetSecret(name, value string) error {
	return keyring.Set(keyringService, name, value)
}
