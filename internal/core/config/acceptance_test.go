package config

import (
	"os"
	"testing"
	"time"
)

// TestAcceptanceCriteria verifies config-file handling end to end.
func TestAcceptanceCriteria(t *testing.T) {
	t.Run("AC1: Config file with auth_token rejected with clear error", func(t *testing.T) {
		tmpfile, err := os.CreateTemp("", "config-*.yaml")
		if err != nil {
			t.Fatal(err)
		}
		defer os.Remove(tmpfile.Name())

		configContent := `client:
  base_url: "http://localhost:8000"
  auth_token: "should_be_rejected"
`
		if _, err := tmpfile.Write([]byte(configContent)); err != nil {
			t.Fatal(err)
		}
		tmpfile.Close()

		_, err = LoadConfig(tmpfile.Name())
		if err == nil {
			t.Fatal("AC1 FAIL: Expected error for token in config file")
		}
		if err.Error() != "auth tokens not allowed in config files (use CPQ_AUTH_TOKEN environment variable or 'cpq login')" {
			t.Fatalf("AC1 FAIL: Wrong error message: %v", err)
		}
	})

	t.Run("AC2: Token in environment does not trip the config-file check", func(t *testing.T) {
		os.Setenv("CPQ_AUTH_TOKEN", "abc")
		defer os.Unsetenv("CPQ_AUTH_TOKEN")

		if _, err := LoadConfig(""); err != nil {
			t.Fatalf("AC2 FAIL: LoadConfig error: %v", err)
		}
	})

	t.Run("AC3: Environment overrides config file", func(t *testing.T) {
		tmpfile, err := os.CreateTemp("", "config-*.yaml")
		if err != nil {
			t.Fatal(err)
		}
		defer os.Remove(tmpfile.Name())

		configContent := `client:
  request_timeout: 12s
session:
  autosave_interval: 45s
`
		if _, err := tmpfile.Write([]byte(configContent)); err != nil {
			t.Fatal(err)
		}
		tmpfile.Close()

		cfg, err := LoadConfig(tmpfile.Name())
		if err != nil {
			t.Fatalf("AC3 FAIL: LoadConfig error: %v", err)
		}
		if cfg.RequestTimeout != 12*time.Second {
			t.Fatalf("AC3 FAIL: expected file timeout 12s, got %v", cfg.RequestTimeout)
		}

		os.Setenv("CPQ_SESSION_AUTOSAVE_INTERVAL", "10s")
		defer os.Unsetenv("CPQ_SESSION_AUTOSAVE_INTERVAL")

		cfg, err = LoadConfig(tmpfile.Name())
		if err != nil {
			t.Fatalf("AC3 FAIL: LoadConfig error: %v", err)
		}
		if cfg.AutosaveInterval != 10*time.Second {
			t.Fatalf("AC3 FAIL: Environment should override config file. Expected 10s, got %v", cfg.AutosaveInterval)
		}
	})
}
