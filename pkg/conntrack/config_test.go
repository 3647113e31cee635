package conntrack_test

import (
	"testing"
	"time"

	"github.com/pathtrack-io/pathtrack/pkg/conntrack"

	"github.com/stretchr/testify/assert"
)

func TestReadConfigDefaults(t *testing.T) {
	t.Setenv("CONNTRACK_TIMEOUT", "")
	t.Setenv("CONNTRACK_MAX_CONNECTIONS", "")
	t.Setenv("CONNTRACK_SWEEP_INTERVAL", "")

	cfg := conntrack.ReadConfig()
	assert.Equal(t, conntrack.DefaultConfig(), cfg)
	assert.Equal(t, 10*time.Minute, cfg.Timeout)
}

func TestReadConfigOverrides(t *testing.T) {
	t.Setenv("CONNTRACK_TIMEOUT", "30s")
	t.Setenv("CONNTRACK_MAX_CONNECTIONS", "0")
	t.Setenv("CONNTRACK_SWEEP_INTERVAL", "2s")

	cfg := conntrack.ReadConfig()
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 0, cfg.MaxConnections)
	assert.Equal(t, 2*time.Second, cfg.SweepInterval)
}

func TestReadConfigIgnoresInvalidValues(t *testing.T) {
	t.Setenv("CONNTRACK_TIMEOUT", "soon")
	t.Setenv("CONNTRACK_MAX_CONNECTIONS", "-1")
	t.Setenv("CONNTRACK_SWEEP_INTERVAL", "0s")

	cfg := conntrack.ReadConfig()
	assert.Equal(t, conntrack.DefaultConfig(), cfg)
}

func TestUnboundedTracker(t *testing.T) {
	cfg := conntrack.DefaultConfig()
	cfg.MaxConnections = 0
	tracker := conntrack.NewWithConfig[uint8, uint8](cfg)

	_, err := tracker.Track(testIdentifier())
	assert.NoError(t, err)
	assert.Equal(t, 1, tracker.Len())
}

func TestNewWithTimeout(t *testing.T) {
	tracker := conntrack.NewWithTimeout[uint8, uint8](time.Second)
	assert.Equal(t, time.Second, tracker.Timeout())

	// Non-positive timeouts fall back to the default.
	tracker = conntrack.NewWithTimeout[uint8, uint8](0)
	assert.Equal(t, conntrack.DefaultTimeout, tracker.Timeout())
}
