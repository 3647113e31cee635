package metrics_test

import (
	"context"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/pathtrack-io/pathtrack/pkg/conntrack"
	"github.com/pathtrack-io/pathtrack/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServerExposesTrackerMetrics(t *testing.T) {
	tracker := conntrack.New[uint8, uint8]()
	id := conntrack.NewIdentifier(
		netip.MustParseAddr("10.0.0.1"), 1234,
		netip.MustParseAddr("10.0.0.2"), 443,
		uint8(6))
	_, err := tracker.Track(id)
	require.NoError(t, err)

	server := metrics.StartMetricsServer("/metrics", "127.0.0.1:37117")
	defer server.Shutdown(context.Background())

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:37117/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false
		}
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return false
		}
		body = string(raw)
		return true
	}, 5*time.Second, 10*time.Millisecond)

	assert.True(t, strings.Contains(body, "conntrack_tracked_connections"))
	assert.True(t, strings.Contains(body, "conntrack_connections_created"))
}
