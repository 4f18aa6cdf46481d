// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Resolve *_FILE secret references and inject the values into the
//     environment, plus the default API key file under the user config dir.
//  4. Use envconfig to process struct tags and populate the Config struct.
//  5. Populate BuildInfo from linker-injected variables.
//  6. Validate the struct using go-playground/validator.
//  7. Fill path defaults that depend on the user config dir.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by LoadConfig.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// secretFileSuffix marks variables that point at a file holding the secret.
// OPENWEATHER_API_KEY_FILE=/run/secrets/owm resolves OPENWEATHER_API_KEY.
const secretFileSuffix = "_FILE"

// apiKeyEnv is the variable that falls back to a file in the user config dir.
const apiKeyEnv = "OPENWEATHER_API_KEY"

// appDirName is the directory under the user config dir holding SkyCast files.
const appDirName = "skycast"

type envLookup func(key string) (string, bool)

type envSet func(key, value string) error

type environ func() []string

// loaderDeps holds the injectable dependencies for the loader.
type loaderDeps struct {
	lookupEnv     envLookup
	setEnv        envSet
	environ       environ
	userConfigDir func() (string, error)
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv:     os.LookupEnv,
		setEnv:        os.Setenv,
		environ:       os.Environ,
		userConfigDir: os.UserConfigDir,
	}
}

// LoadConfig loads and validates the SkyCast configuration. A nil provider
// resolves secret references from the local filesystem.
func LoadConfig(provider SecretProvider) (*Config, error) {
	return loadConfigWithDeps(provider, defaultDeps())
}

func loadConfigWithDeps(provider SecretProvider, deps loaderDeps) (*Config, error) {
	time.Local = time.UTC

	// Does NOT override existing environment variables.
	_ = godotenv.Load()

	if provider == nil {
		provider = NewFileSecretProvider()
	}
	if err := resolveSecretFiles(provider, deps); err != nil {
		return nil, err
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	if cfg.Store.SQLitePath == "" {
		dir, err := deps.userConfigDir()
		if err != nil {
			dir = "."
		}
		cfg.Store.SQLitePath = filepath.Join(dir, appDirName, "skycast.db")
	}

	return &cfg, nil
}

// resolveSecretFiles scans the environment for *_FILE variables, reads the
// referenced files through provider and injects the contents under the
// variable name without the suffix. A target that is already set wins.
// When OPENWEATHER_API_KEY is neither set nor referenced, the default
// <user config dir>/skycast/openweather_api_key is tried; its absence is
// not an error.
func resolveSecretFiles(provider SecretProvider, deps loaderDeps) error {
	type binding struct {
		target   string
		path     string
		optional bool
	}

	var bindings []binding
	for _, entry := range deps.environ() {
		eq := strings.IndexByte(entry, '=')
		if eq < 0 {
			continue
		}
		key := entry[:eq]
		if !strings.HasSuffix(key, secretFileSuffix) {
			continue
		}
		target := strings.TrimSuffix(key, secretFileSuffix)
		if _, exists := deps.lookupEnv(target); exists {
			continue
		}
		path := entry[eq+1:]
		if path == "" {
			continue
		}
		bindings = append(bindings, binding{target: target, path: path})
	}

	apiKeyBound := false
	for _, b := range bindings {
		if b.target == apiKeyEnv {
			apiKeyBound = true
		}
	}
	if _, set := deps.lookupEnv(apiKeyEnv); !set && !apiKeyBound {
		if dir, err := deps.userConfigDir(); err == nil {
			bindings = append(bindings, binding{
				target:   apiKeyEnv,
				path:     filepath.Join(dir, appDirName, "openweather_api_key"),
				optional: true,
			})
		}
	}

	if len(bindings) == 0 {
		return nil
	}

	paths := make([]string, 0, len(bindings))
	for _, b := range bindings {
		paths = append(paths, b.path)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resolved, err := provider.GetSecrets(ctx, paths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSecretResolution,
			Message: fmt.Sprintf("failed to resolve %d secret files", len(paths)),
			Err:     err,
		}
	}

	var missing []string
	for _, b := range bindings {
		value, ok := resolved[b.path]
		if !ok {
			if !b.optional {
				missing = append(missing, b.target)
			}
			continue
		}
		if err := deps.setEnv(b.target, value); err != nil {
			return &ConfigError{
				Type:    ErrSecretResolution,
				Message: fmt.Sprintf("failed to set resolved value for %s", b.target),
				Err:     err,
			}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSecretResolution,
			Message: fmt.Sprintf("secret files not found for: %s", strings.Join(missing, ", ")),
		}
	}

	return nil
}
