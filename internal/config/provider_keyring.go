package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const keyringService = "vigil"

// itemGetter is the subset of keyring.Keyring the provider needs.
type itemGetter interface {
	Get(key string) (keyring.Item, error)
}

// KeyringProvider resolves secret references from the OS keyring (Keychain,
// Secret Service, WinCred, pass, or an encrypted file as the last resort).
type KeyringProvider struct {
	ring itemGetter
}

// OpenKeyringProvider opens the platform keyring for the vigil service.
// fileDir and filePassword configure the encrypted-file fallback.
func OpenKeyringProvider(fileDir, filePassword string) (*KeyringProvider, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: keyringService,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(filePassword),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &KeyringProvider{ring: ring}, nil
}

// NewKeyringProvider wraps an already opened keyring.
func NewKeyringProvider(ring keyring.Keyring) *KeyringProvider {
	return &KeyringProvider{ring: ring}
}

// GetParametersBatch reads each key from the keyring. Missing items are
// omitted; any other keyring failure aborts the batch.
func (p *KeyringProvider) GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item, err := p.ring.Get(key)
		if errors.Is(err, keyring.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("getting credential %q: %w", key, err)
		}
		result[key] = string(item.Data)
	}
	return result, nil
}

// NewSecretProvider picks a provider by name: "env" (default) or "keyring".
func NewSecretProvider(kind, fileDir, filePassword string) (SecretProvider, error) {
	switch kind {
	case "", "env":
		return NewEnvVarProvider(), nil
	case "keyring":
		return OpenKeyringProvider(fileDir, filePassword)
	default:
		return nil, &ConfigError{
			Type:    ErrSecretResolution,
			Message: fmt.Sprintf("unknown secret provider %q", kind),
		}
	}
}
