package types

import "log/slog"

const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString holds a credential (API key, database URL) that must never
// appear in logs, JSON dumps or fmt output. Unmask returns the raw value.
type SecretString string

// String returns a redacted placeholder instead of the raw value.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// LogValue keeps slog handlers from printing the raw value.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redactedPlaceholder)
}

// Unmask returns the raw plaintext value of the secret. Only call it where the
// value leaves the process (query parameters, driver DSNs).
func (s SecretString) Unmask() string {
	return string(s)
}

// IsEmpty reports whether no secret was configured.
func (s SecretString) IsEmpty() bool {
	return s == ""
}
