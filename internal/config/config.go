package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/schemaboard/internal/gist"
	"github.com/spf13/viper"
)

const (
	envPrefix                = "SCHEMABOARD"
	defaultHTTPAddress       = "0.0.0.0:8080"
	defaultDatabasePath      = "schemaboard-remote.db"
	defaultLocalPath         = "schemaboard.db"
	defaultRemoteURL         = "http://127.0.0.1:8080"
	defaultRemoteTimeout     = 10 * time.Second
	defaultRetryAttempts     = 3
	defaultRetryDelay        = 200 * time.Millisecond
	defaultAutosaveDebounce  = 800 * time.Millisecond
	defaultLogLevel          = "info"
	defaultAutosaveEnabled   = true
	keyHTTPAddress           = "http.address"
	keyDatabasePath          = "database.path"
	keyLocalPath             = "local.path"
	keyRemoteURL             = "remote.url"
	keyRemoteTimeout         = "remote.timeout"
	keyRemoteRetryAttempts   = "remote.retry_attempts"
	keyRemoteRetryDelay      = "remote.retry_delay"
	keyGistAPIURL            = "gist.api_url"
	keyGistToken             = "gist.token"
	keyGistFileName          = "gist.file_name"
	keySessionAutosave       = "session.autosave"
	keySessionAutosaveWindow = "session.autosave_debounce"
	keyLogLevel              = "log.level"
)

// AppConfig captures runtime configuration for the diagram service and the session CLI.
type AppConfig struct {
	HTTPAddress      string
	DatabasePath     string
	LocalPath        string
	RemoteURL        string
	RemoteTimeout    time.Duration
	RemoteRetries    int
	RemoteRetryDelay time.Duration
	GistAPIURL       string
	GistToken        string
	GistFileName     string
	AutosaveEnabled  bool
	AutosaveDebounce time.Duration
	LogLevel         string
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

	configViper.SetDefault(keyHTTPAddress, defaultHTTPAddress)
	configViper.SetDefault(keyDatabasePath, defaultDatabasePath)
	configViper.SetDefault(keyLocalPath, defaultLocalPath)
	configViper.SetDefault(keyRemoteURL, defaultRemoteURL)
	configViper.SetDefault(keyRemoteTimeout, defaultRemoteTimeout)
	configViper.SetDefault(keyRemoteRetryAttempts, defaultRetryAttempts)
	configViper.SetDefault(keyRemoteRetryDelay, defaultRetryDelay)
	configViper.SetDefault(keyGistAPIURL, gist.DefaultAPIURL)
	configViper.SetDefault(keyGistToken, "")
	configViper.SetDefault(keyGistFileName, gist.DefaultFileName)
	configViper.SetDefault(keySessionAutosave, defaultAutosaveEnabled)
	configViper.SetDefault(keySessionAutosaveWindow, defaultAutosaveDebounce)
	configViper.SetDefault(keyLogLevel, defaultLogLevel)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:      configViper.GetString(keyHTTPAddress),
		DatabasePath:     configViper.GetString(keyDatabasePath),
		LocalPath:        configViper.GetString(keyLocalPath),
		RemoteURL:        configViper.GetString(keyRemoteURL),
		RemoteTimeout:    configViper.GetDuration(keyRemoteTimeout),
		RemoteRetries:    configViper.GetInt(keyRemoteRetryAttempts),
		RemoteRetryDelay: configViper.GetDuration(keyRemoteRetryDelay),
		GistAPIURL:       configViper.GetString(keyGistAPIURL),
		GistToken:        configViper.GetString(keyGistToken),
		GistFileName:     configViper.GetString(keyGistFileName),
		AutosaveEnabled:  configViper.GetBool(keySessionAutosave),
		AutosaveDebounce: configViper.GetDuration(keySessionAutosaveWindow),
		LogLevel:         configViper.GetString(keyLogLevel),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("%s is required", keyDatabasePath)
	}
	if strings.TrimSpace(c.LocalPath) == "" {
		return fmt.Errorf("%s is required", keyLocalPath)
	}
	if err := validateURL(keyRemoteURL, c.RemoteURL); err != nil {
		return err
	}
	if err := validateURL(keyGistAPIURL, c.GistAPIURL); err != nil {
		return err
	}
	if strings.TrimSpace(c.GistFileName) == "" {
		return fmt.Errorf("%s is required", keyGistFileName)
	}
	if c.RemoteTimeout <= 0 {
		return fmt.Errorf("%s must be positive", keyRemoteTimeout)
	}
	if c.RemoteRetries < 1 {
		return fmt.Errorf("%s must be at least 1", keyRemoteRetryAttempts)
	}
	if c.RemoteRetryDelay < 0 {
		return fmt.Errorf("%s must not be negative", keyRemoteRetryDelay)
	}
	if c.AutosaveDebounce <= 0 {
		return fmt.Errorf("%s must be positive", keySessionAutosaveWindow)
	}
	return nil
}

func validateURL(key, raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Errorf("%s is required", key)
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%s must be an absolute url", key)
	}
	return nil
}
