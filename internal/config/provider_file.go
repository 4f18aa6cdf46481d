package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// FileSecretProvider implements SecretProvider by reading each reference as a
// file path. Surrounding whitespace (the trailing newline editors add) is
// trimmed from the contents.
type FileSecretProvider struct {
	readFile func(string) ([]byte, error)
}

// NewFileSecretProvider creates a FileSecretProvider backed by os.ReadFile.
func NewFileSecretProvider() *FileSecretProvider {
	return &FileSecretProvider{readFile: os.ReadFile}
}

// GetSecrets reads every path in refs. Missing files are omitted from the
// result; any other read failure aborts.
func (p *FileSecretProvider) GetSecrets(ctx context.Context, refs []string) (map[string]string, error) {
	result := make(map[string]string, len(refs))
	for _, path := range refs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during secret resolution: %w", err)
		}

		data, err := p.readFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading secret file %s: %w", path, err)
		}
		result[path] = strings.TrimSpace(string(data))
	}
	return result, nil
}
