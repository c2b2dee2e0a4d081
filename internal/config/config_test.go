package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearTwitterEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DEBUG", "PORT", "TWITTER_LANGUAGES",
		"TWITTER_CONSUMER_KEY", "TWITTER_CONSUMER_SECRET",
		"TWITTER_ACCESS_TOKEN", "TWITTER_ACCESS_TOKEN_SECRET",
	} {
		os.Unsetenv(k)
	}
}

func setTwitterSecrets(t *testing.T) {
	t.Helper()
	os.Setenv("TWITTER_CONSUMER_KEY", "ck")
	os.Setenv("TWITTER_CONSUMER_SECRET", "cs")
	os.Setenv("TWITTER_ACCESS_TOKEN", "at")
	os.Setenv("TWITTER_ACCESS_TOKEN_SECRET", "ats")
}

func TestLoad_MissingSecrets(t *testing.T) {
	clearTwitterEnv(t)
	defer clearTwitterEnv(t)

	_, err := Load("")
	if err == nil {
		t.Fatal("Load() with no secrets should error")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearTwitterEnv(t)
	defer clearTwitterEnv(t)
	setTwitterSecrets(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Settings.Port != 8000 {
		t.Errorf("Port = %d, want 8000", cfg.Settings.Port)
	}
	if cfg.Settings.Debug {
		t.Errorf("Debug = true, want false")
	}
	if len(cfg.Settings.AllowedLanguages) != 1 || cfg.Settings.AllowedLanguages[0] != "en" {
		t.Errorf("AllowedLanguages = %v, want [en]", cfg.Settings.AllowedLanguages)
	}
	if cfg.Tunables.QueueCapacity != 256 {
		t.Errorf("QueueCapacity = %d, want 256", cfg.Tunables.QueueCapacity)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearTwitterEnv(t)
	defer clearTwitterEnv(t)
	setTwitterSecrets(t)
	os.Setenv("DEBUG", "true")
	os.Setenv("PORT", "9001")
	os.Setenv("TWITTER_LANGUAGES", "en, no , fr")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.Settings.Debug {
		t.Errorf("Debug = false, want true")
	}
	if cfg.Settings.Port != 9001 {
		t.Errorf("Port = %d, want 9001", cfg.Settings.Port)
	}
	want := []string{"en", "no", "fr"}
	if len(cfg.Settings.AllowedLanguages) != len(want) {
		t.Fatalf("AllowedLanguages = %v, want %v", cfg.Settings.AllowedLanguages, want)
	}
	for i, v := range want {
		if cfg.Settings.AllowedLanguages[i] != v {
			t.Errorf("AllowedLanguages[%d] = %q, want %q", i, cfg.Settings.AllowedLanguages[i], v)
		}
	}
}

func TestLoad_TunablesFile(t *testing.T) {
	clearTwitterEnv(t)
	defer clearTwitterEnv(t)
	setTwitterSecrets(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "tunables.yaml")
	os.WriteFile(path, []byte("queue_capacity: 64\nidle_timeout: 1m\n"), 0o600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Tunables.QueueCapacity != 64 {
		t.Errorf("QueueCapacity = %d, want 64", cfg.Tunables.QueueCapacity)
	}
	if cfg.Tunables.IdleTimeout != time.Minute {
		t.Errorf("IdleTimeout = %s, want 1m", cfg.Tunables.IdleTimeout)
	}
	// Unset fields fall back to defaults.
	if cfg.Tunables.WatchdogTimeout != 90*time.Second {
		t.Errorf("WatchdogTimeout = %s, want 90s", cfg.Tunables.WatchdogTimeout)
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	clearTwitterEnv(t)
	defer clearTwitterEnv(t)
	setTwitterSecrets(t)
	os.Setenv("PORT", "70000")

	if _, err := Load(""); err == nil {
		t.Fatal("Load() with out-of-range PORT should error")
	}
}

func TestBackoffFor(t *testing.T) {
	tun := DefaultTunables()
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 60 * time.Second},
		{2, 120 * time.Second},
		{3, 240 * time.Second},
		{4, 320 * time.Second},
		{5, 320 * time.Second},
		{100, 320 * time.Second},
		{0, 60 * time.Second},
	}
	for _, c := range cases {
		if got := tun.BackoffFor(c.attempt); got != c.want {
			t.Errorf("BackoffFor(%d) = %s, want %s", c.attempt, got, c.want)
		}
	}
}
