package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegister_Idempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestHandler_ServesCollectors(t *testing.T) {
	Register()
	SyncOperationsTotal.WithLabelValues(SourceBulk, "upsert", "ok").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "userindex_sync_operations_total")
}

func TestHTTPObserver(t *testing.T) {
	var o HTTPObserver
	o.ObserveRequest("GET", "", 404, 0.01)
	o.ObserveRequest("GET", "GET /api/v1/users", 200, 0.02)

	assert.Equal(t, 2, testutil.CollectAndCount(httpRequestDuration))
}

func TestResult(t *testing.T) {
	assert.Equal(t, "ok", Result(nil))
	assert.Equal(t, "error", Result(errors.New("x")))
}

func TestConfig(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	assert.Equal(t, "/metrics", cfg.Path)

	cfg = Config{Enabled: true, Path: "metrics"}
	assert.Error(t, cfg.Validate())
}
