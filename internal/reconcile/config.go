package reconcile

import (
	"time"

	"github.com/smallbiznis/chatdesk/internal/config"
)

// Config controls the unread reconciliation loop.
type Config struct {
	Enabled    bool
	Interval   time.Duration
	BatchSize  int
	LockTTL    time.Duration
	JobTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		Interval:   10 * time.Minute,
		BatchSize:  200,
		LockTTL:    5 * time.Minute,
		JobTimeout: 5 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:   cfg.Reconcile.Enabled,
		Interval:  cfg.Reconcile.Interval,
		BatchSize: cfg.Reconcile.BatchSize,
		LockTTL:   cfg.Reconcile.LockTTL,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = defaults.Interval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = c.LockTTL
	}
	return c
}
