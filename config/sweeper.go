package config

import "time"

// SweeperConfig controls the background sweep of idle sessions and stale lockout windows.
type SweeperConfig struct {
	// Enabled turns the periodic sweep on.
	Enabled bool `env:"SWEEPER_ENABLED" envDefault:"true"`

	// Interval is the sweeper tick interval.
	Interval time.Duration `env:"SWEEPER_INTERVAL" envDefault:"5m"`
}

// Sanitize applies guardrails to sweeper configuration values.
func (s *SweeperConfig) Sanitize() {
	// Enforce a minimum interval so the sweep never competes with callers for the locks.
	if s.Interval < 10*time.Second {
		s.Interval = 10 * time.Second
	}
}
