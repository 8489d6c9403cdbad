package provider

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"infolookup/internal/config"
	"infolookup/internal/logger"
)

func testConfig(url string) config.Config {
	return config.Config{
		PhoneAPIURL:          url,
		PhoneAPIAction:       "fetch_sim_data",
		PhoneAPIReferer:      "https://example.test/",
		PhoneRecordMode:      config.RecordModeAll,
		VehicleAPIURL:        url,
		UpstreamTimeout:      2 * time.Second,
		UpstreamUserAgent:    "test-agent",
		UpstreamMaxBodyBytes: 1 << 20,
	}
}

// upstream starts a server that answers every request with handler and counts hits.
func upstream(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	hits := new(atomic.Int32)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, hits
}

func jsonReply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=UTF-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func newPhoneAdapter(cfg config.Config) *PhoneAdapter {
	return NewPhoneAdapter(NewClient(cfg), cfg, logger.Discard())
}

func newVehicleAdapter(cfg config.Config) *VehicleAdapter {
	return NewVehicleAdapter(NewClient(cfg), cfg, logger.Discard())
}
