package httpapi

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netboot-tools/pxe-supervisor/pkg/monitoring"
)

type stubSource struct {
	report monitoring.Report
	ready  bool
}

func (s *stubSource) LastReport() monitoring.Report { return s.report }
func (s *stubSource) Ready() bool                   { return s.ready }

func TestHealthzReflectsReport(t *testing.T) {
	source := &stubSource{
		report: monitoring.Report{
			Results: []monitoring.HealthCheckResult{
				{Name: "dhcp process alive", Passed: true, Message: "PID 100"},
			},
			Healthy: true,
		},
		ready: true,
	}
	handler := Handler(source, nil)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest("GET", "/healthz", nil))
	require.Equal(t, 200, recorder.Code)

	var report monitoring.Report
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &report))
	assert.True(t, report.Healthy)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "dhcp process alive", report.Results[0].Name)

	// Degrade the report; the endpoint flips to 503 with the failures in
	// the body.
	source.report = monitoring.Report{
		Results: []monitoring.HealthCheckResult{
			{Name: "PXE files present", Passed: false, Message: "missing pxelinux.0"},
		},
		Failures: 1,
	}
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, 503, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "missing pxelinux.0")
}

func TestReadyzReflectsStartupGate(t *testing.T) {
	source := &stubSource{}
	handler := Handler(source, nil)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, 503, recorder.Code)

	source.ready = true
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, 200, recorder.Code)
}
