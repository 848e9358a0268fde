package config

import "context"

// SecretProvider resolves secret references to plaintext values. The
// environment provider serves local development; the keyring provider serves
// device installs where credentials live in the OS secret store.
type SecretProvider interface {
	// GetParametersBatch resolves every key it can. Keys that do not exist
	// are omitted from the result rather than reported as errors.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
