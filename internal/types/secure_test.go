package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

const testSecret = "owm-api-key-0123456789abcdef"

func TestSecretString_FmtVerbs(t *testing.T) {
	s := SecretString(testSecret)

	for _, verb := range []string{"%s", "%v", "%+v"} {
		result := fmt.Sprintf("key="+verb, s)
		if strings.Contains(result, testSecret) {
			t.Errorf("fmt.Sprintf(%q) leaked the raw secret: %s", verb, result)
		}
		if result != "key="+redactedPlaceholder {
			t.Errorf("fmt.Sprintf(%q) = %q", verb, result)
		}
	}
}

func TestSecretString_MarshalJSON_InStruct(t *testing.T) {
	type weatherConfig struct {
		APIKey   SecretString `json:"api_key"`
		Endpoint string       `json:"endpoint"`
	}

	data, err := json.Marshal(weatherConfig{APIKey: SecretString(testSecret), Endpoint: "https://example.test"})
	if err != nil {
		t.Fatalf("json.Marshal returned error: %v", err)
	}

	result := string(data)
	if strings.Contains(result, testSecret) {
		t.Errorf("json.Marshal leaked the raw secret: %s", result)
	}
	if !strings.Contains(result, redactedPlaceholder) {
		t.Errorf("json.Marshal did not contain redacted placeholder: %s", result)
	}
}

func TestSecretString_SlogRedacts(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logger.Info("config loaded", "api_key", SecretString(testSecret))

	if strings.Contains(buf.String(), testSecret) {
		t.Errorf("slog output leaked the raw secret: %s", buf.String())
	}
	if !strings.Contains(buf.String(), redactedPlaceholder) {
		t.Errorf("slog output missing placeholder: %s", buf.String())
	}
}

func TestSecretString_Unmask(t *testing.T) {
	s := SecretString(testSecret)

	if s.Unmask() != testSecret {
		t.Errorf("Unmask() = %q, want %q", s.Unmask(), testSecret)
	}
	if s.IsEmpty() {
		t.Error("IsEmpty() = true for a configured secret")
	}
	if !SecretString("").IsEmpty() {
		t.Error("IsEmpty() = false for an empty secret")
	}
}
