// Package config loads patsgw's configuration: the required OAuth1
// secrets and small settings from environment variables, plus an
// optional YAML file of operational tunables (queue sizes, timeouts,
// backoff schedule) that have sane defaults and rarely need overriding.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Secrets holds the four Twitter OAuth 1.0a credentials. All four are
// required; Load returns an error if any is missing.
type Secrets struct {
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
}

// Settings holds the small, env-configured runtime settings described
// in spec.md §6.
type Settings struct {
	// Debug enables verbose logging. Env: DEBUG (default false).
	Debug bool
	// Port is the bind port for the outer HTTP/websocket server.
	// Env: PORT (default 8000).
	Port int
	// AllowedLanguages is the set of `lang` values the event filter
	// passes. Env: TWITTER_LANGUAGES, comma-separated (default "en").
	AllowedLanguages []string
}

// Config is the fully loaded, validated configuration.
type Config struct {
	Secrets  Secrets
	Settings Settings
	Tunables Tunables
}

// Load reads secrets and settings from the environment and overlays
// operational tunables from an optional YAML file. path may be empty,
// in which case DefaultTunables() is used unmodified.
func Load(path string) (*Config, error) {
	secrets, err := loadSecrets()
	if err != nil {
		return nil, err
	}

	settings := Settings{
		Debug:            envBool("DEBUG", false),
		Port:             envInt("PORT", 8000),
		AllowedLanguages: envList("TWITTER_LANGUAGES", []string{"en"}),
	}

	tunables := DefaultTunables()
	if path != "" {
		loaded, err := LoadTunables(path)
		if err != nil {
			return nil, fmt.Errorf("load tunables: %w", err)
		}
		tunables = loaded
	}

	cfg := &Config{Secrets: secrets, Settings: settings, Tunables: tunables}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// loadSecrets reads the four required OAuth1 credentials from the
// environment. All four must be non-empty.
func loadSecrets() (Secrets, error) {
	s := Secrets{
		ConsumerKey:       os.Getenv("TWITTER_CONSUMER_KEY"),
		ConsumerSecret:    os.Getenv("TWITTER_CONSUMER_SECRET"),
		AccessToken:       os.Getenv("TWITTER_ACCESS_TOKEN"),
		AccessTokenSecret: os.Getenv("TWITTER_ACCESS_TOKEN_SECRET"),
	}

	var missing []string
	for name, v := range map[string]string{
		"TWITTER_CONSUMER_KEY":        s.ConsumerKey,
		"TWITTER_CONSUMER_SECRET":     s.ConsumerSecret,
		"TWITTER_ACCESS_TOKEN":        s.AccessToken,
		"TWITTER_ACCESS_TOKEN_SECRET": s.AccessTokenSecret,
	} {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Secrets{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return s, nil
}

// Validate checks that the configuration is internally consistent.
// It assumes defaults have already been applied.
func (c *Config) Validate() error {
	if c.Settings.Port < 1 || c.Settings.Port > 65535 {
		return fmt.Errorf("port %d out of range (1-65535)", c.Settings.Port)
	}
	if len(c.Settings.AllowedLanguages) == 0 {
		return fmt.Errorf("TWITTER_LANGUAGES must not resolve to an empty list")
	}
	return c.Tunables.Validate()
}

func envBool(name string, def bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envList(name string, def []string) []string {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
