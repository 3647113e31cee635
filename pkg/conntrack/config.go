package conntrack

import (
	"os"
	"strconv"
	"time"
)

const (
	// DefaultTimeout is the idle duration after which a connection is
	// considered expired, matching the netfilter conntrack default.
	DefaultTimeout = 10 * time.Minute

	// DefaultMaxConnections bounds the table size. 0 means unbounded.
	DefaultMaxConnections = 1_000_000

	// DefaultSweepInterval is how often a Sweeper reclaims expired entries.
	DefaultSweepInterval = 30 * time.Second
)

// TrackerConfig holds the tunables of a Tracker and its sweep.
type TrackerConfig struct {
	Timeout        time.Duration
	MaxConnections int
	SweepInterval  time.Duration
}

func DefaultConfig() TrackerConfig {
	return TrackerConfig{
		Timeout:        DefaultTimeout,
		MaxConnections: DefaultMaxConnections,
		SweepInterval:  DefaultSweepInterval,
	}
}

// environment variable based, encapsulated to enable future changes
func ReadConfig() TrackerConfig {
	cfg := DefaultConfig()

	if val := os.Getenv("CONNTRACK_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil && d > 0 {
			cfg.Timeout = d
		}
	}

	if val := os.Getenv("CONNTRACK_MAX_CONNECTIONS"); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil && n >= 0 {
			cfg.MaxConnections = n
		}
	}

	if val := os.Getenv("CONNTRACK_SWEEP_INTERVAL"); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil && d > 0 {
			cfg.SweepInterval = d
		}
	}

	return cfg
}
