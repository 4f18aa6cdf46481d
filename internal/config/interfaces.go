package config

import "context"

// SecretProvider resolves secret references (file paths) to their plaintext
// values. Keys missing from the returned map were not found.
type SecretProvider interface {
	GetSecrets(ctx context.Context, refs []string) (map[string]string, error)
}
