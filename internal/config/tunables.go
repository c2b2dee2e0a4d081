package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Tunables holds the operator-adjustable numeric knobs that spec.md
// leaves as "implementation parameters" with suggested defaults. They
// are distinct from Secrets (required, no defaults) and Settings
// (small, always env-configured): tunables rarely change and are only
// worth overriding via an explicit YAML file.
type Tunables struct {
	// QueueCapacity bounds each subscriber's delivery queue.
	// Suggested range 64-1024; default 256.
	QueueCapacity int `yaml:"queue_capacity"`

	// IdleTimeout is how long a controller with an empty registry
	// waits before tearing down its upstream connection.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// WatchdogTimeout is the maximum time without a frame or
	// keep-alive line before the read loop treats the connection as
	// dead and reconnects.
	WatchdogTimeout time.Duration `yaml:"watchdog_timeout"`

	// RateLimitBackoff is the sleep schedule applied on repeated HTTP
	// 420 responses. The last entry is held (capped) for any retry
	// beyond len(RateLimitBackoff).
	RateLimitBackoff []time.Duration `yaml:"rate_limit_backoff"`

	// ErrorBackoffInitial and ErrorBackoffMax bound the exponential
	// backoff applied after transport/5xx errors.
	ErrorBackoffInitial time.Duration `yaml:"error_backoff_initial"`
	ErrorBackoffMax     time.Duration `yaml:"error_backoff_max"`
}

// DefaultTunables returns the values suggested by spec.md §4.4/§8:
// a 60/120/240/320s rate-limit backoff schedule, a 5 minute idle
// timeout, a 90 second read watchdog, and a 256-event queue.
func DefaultTunables() Tunables {
	return Tunables{
		QueueCapacity:   256,
		IdleTimeout:     5 * time.Minute,
		WatchdogTimeout: 90 * time.Second,
		RateLimitBackoff: []time.Duration{
			60 * time.Second,
			120 * time.Second,
			240 * time.Second,
			320 * time.Second,
		},
		ErrorBackoffInitial: 1 * time.Second,
		ErrorBackoffMax:     60 * time.Second,
	}
}

// LoadTunables reads a YAML tunables file and fills any unset field
// with the matching DefaultTunables() value, so callers never observe
// a zero-value timeout or empty backoff schedule.
func LoadTunables(path string) (Tunables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tunables{}, err
	}

	t := Tunables{}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tunables{}, err
	}
	t.applyDefaults()

	if err := t.Validate(); err != nil {
		return Tunables{}, err
	}
	return t, nil
}

// applyDefaults fills zero-value fields from DefaultTunables.
func (t *Tunables) applyDefaults() {
	d := DefaultTunables()
	if t.QueueCapacity == 0 {
		t.QueueCapacity = d.QueueCapacity
	}
	if t.IdleTimeout == 0 {
		t.IdleTimeout = d.IdleTimeout
	}
	if t.WatchdogTimeout == 0 {
		t.WatchdogTimeout = d.WatchdogTimeout
	}
	if len(t.RateLimitBackoff) == 0 {
		t.RateLimitBackoff = d.RateLimitBackoff
	}
	if t.ErrorBackoffInitial == 0 {
		t.ErrorBackoffInitial = d.ErrorBackoffInitial
	}
	if t.ErrorBackoffMax == 0 {
		t.ErrorBackoffMax = d.ErrorBackoffMax
	}
}

// Validate checks that the tunables are internally consistent.
func (t Tunables) Validate() error {
	if t.QueueCapacity < 1 {
		return fmt.Errorf("queue_capacity must be >= 1, got %d", t.QueueCapacity)
	}
	if t.IdleTimeout <= 0 {
		return fmt.Errorf("idle_timeout must be positive, got %s", t.IdleTimeout)
	}
	if t.WatchdogTimeout <= 0 {
		return fmt.Errorf("watchdog_timeout must be positive, got %s", t.WatchdogTimeout)
	}
	for i, d := range t.RateLimitBackoff {
		if d <= 0 {
			return fmt.Errorf("rate_limit_backoff[%d] must be positive, got %s", i, d)
		}
	}
	if t.ErrorBackoffInitial <= 0 || t.ErrorBackoffMax < t.ErrorBackoffInitial {
		return fmt.Errorf("error_backoff_initial/max misconfigured: %s/%s", t.ErrorBackoffInitial, t.ErrorBackoffMax)
	}
	return nil
}

// BackoffFor returns the sleep duration for the given 1-based 420
// retry attempt, holding the schedule's final entry for any attempt
// beyond its length (spec.md §9: "repeated 420s SHOULD grow the
// delay" up to a cap).
func (t Tunables) BackoffFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(t.RateLimitBackoff) {
		attempt = len(t.RateLimitBackoff)
	}
	return t.RateLimitBackoff[attempt-1]
}
