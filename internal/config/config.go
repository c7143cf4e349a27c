package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix             = "CERTMARK"
	defaultHTTPAddress    = "0.0.0.0:8080"
	defaultDatabasePath   = "certmark.db"
	defaultLogLevel       = "info"
	defaultTemplateDir    = "templates"
	defaultDebounceMillis = 2000
	defaultTokenTTLMin    = 30
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress    string
	SigningSecret  string
	DatabasePath   string
	LogLevel       string
	TemplateDir    string
	ChangeDebounce time.Duration
	TokenTTL       time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("templates.dir", defaultTemplateDir)
	configViper.SetDefault("changes.debounce_ms", defaultDebounceMillis)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTLMin)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:    configViper.GetString("http.address"),
		SigningSecret:  configViper.GetString("auth.signing_secret"),
		DatabasePath:   configViper.GetString("database.path"),
		LogLevel:       configViper.GetString("log.level"),
		TemplateDir:    configViper.GetString("templates.dir"),
		ChangeDebounce: time.Duration(configViper.GetInt("changes.debounce_ms")) * time.Millisecond,
		TokenTTL:       time.Duration(configViper.GetInt("auth.token_ttl_minutes")) * time.Minute,
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.ChangeDebounce <= 0 {
		return fmt.Errorf("changes.debounce_ms must be positive")
	}
	return nil
}
