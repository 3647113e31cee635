package metrics

import (
	"errors"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StartMetricsServer exposes the default prometheus registry, which carries
// the tracker instrumentation, for hosts that want it scraped without wiring
// their own handler. The returned server is shut down by the host.
func StartMetricsServer(endpoint string, port string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(endpoint, promhttp.Handler())
	server := &http.Server{Addr: port, Handler: mux}
	go func() {
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Error serving metrics on port %v: %v", port, err)
		}
	}()
	return server
}
