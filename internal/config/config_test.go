package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "test-secret")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddress != "0.0.0.0:8080" {
		t.Fatalf("http address = %q", cfg.HTTPAddress)
	}
	if cfg.DatabasePath != "certmark.db" {
		t.Fatalf("database path = %q", cfg.DatabasePath)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("log level = %q", cfg.LogLevel)
	}
	if cfg.TemplateDir != "templates" {
		t.Fatalf("template dir = %q", cfg.TemplateDir)
	}
	if cfg.ChangeDebounce != 2*time.Second {
		t.Fatalf("debounce = %v", cfg.ChangeDebounce)
	}
	if cfg.TokenTTL != 30*time.Minute {
		t.Fatalf("token ttl = %v", cfg.TokenTTL)
	}
}

func TestLoadRequiresSigningSecret(t *testing.T) {
	configViper := NewViper()
	if _, err := Load(configViper); err == nil {
		t.Fatalf("expected error for missing signing secret")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{name: "empty database path", key: "database.path", value: ""},
		{name: "zero debounce", key: "changes.debounce_ms", value: 0},
		{name: "negative debounce", key: "changes.debounce_ms", value: -5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			configViper := NewViper()
			configViper.Set("auth.signing_secret", "test-secret")
			configViper.Set(tc.key, tc.value)
			if _, err := Load(configViper); err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}
}

func TestLoadOverrides(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "test-secret")
	configViper.Set("http.address", "127.0.0.1:9090")
	configViper.Set("changes.debounce_ms", 500)

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddress != "127.0.0.1:9090" {
		t.Fatalf("http address = %q", cfg.HTTPAddress)
	}
	if cfg.ChangeDebounce != 500*time.Millisecond {
		t.Fatalf("debounce = %v", cfg.ChangeDebounce)
	}
}
