package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authcore "github.com/jonmaxmore/Botanical-Audit-Framework-sub006"
	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/metrics/export/internaldefs"
)

type fakeSource struct {
	snapshot authcore.MetricsSnapshot
	dropped  uint64
	panics   uint64
}

func (f fakeSource) MetricsSnapshot() authcore.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }
func (f fakeSource) AuditSinkPanics() uint64                   { return f.panics }

func populated() fakeSource {
	return fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters: map[authcore.MetricID]uint64{
				authcore.MetricAuthSuccess:      7,
				authcore.MetricLockoutTriggered: 1,
			},
			Histograms: map[authcore.MetricID][]uint64{
				authcore.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
		panics:  1,
	}
}

func TestCollectorEmptyWhenMetricsDisabled(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{snapshot: authcore.MetricsSnapshot{
		Counters:   map[authcore.MetricID]uint64{},
		Histograms: map[authcore.MetricID][]uint64{},
	}})
	assert.Zero(t, testutil.CollectAndCount(c))
}

func TestCollectorCounters(t *testing.T) {
	c := NewCollectorFromSource(populated())

	assert.Equal(t, len(internaldefs.CounterDefs)+3, testutil.CollectAndCount(c))

	expected := `
# HELP authcore_auth_success_total Successful authentications.
# TYPE authcore_auth_success_total counter
authcore_auth_success_total 7
# HELP authcore_lockout_triggered_total Principals that crossed the failure threshold.
# TYPE authcore_lockout_triggered_total counter
authcore_lockout_triggered_total 1
# HELP authcore_audit_dropped_total Audit events dropped under dispatcher backpressure.
# TYPE authcore_audit_dropped_total counter
authcore_audit_dropped_total 2
# HELP authcore_audit_sink_panics_total Audit sink calls that panicked.
# TYPE authcore_audit_sink_panics_total counter
authcore_audit_sink_panics_total 1
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"authcore_auth_success_total", "authcore_lockout_triggered_total", "authcore_audit_dropped_total", "authcore_audit_sink_panics_total"))
}

func TestCollectorHistogramIsCumulative(t *testing.T) {
	c := NewCollectorFromSource(populated())

	expected := `
# HELP authcore_validate_latency_seconds ValidateToken latency.
# TYPE authcore_validate_latency_seconds histogram
authcore_validate_latency_seconds_bucket{le="0.005"} 1
authcore_validate_latency_seconds_bucket{le="0.01"} 3
authcore_validate_latency_seconds_bucket{le="0.025"} 6
authcore_validate_latency_seconds_bucket{le="0.05"} 10
authcore_validate_latency_seconds_bucket{le="0.1"} 15
authcore_validate_latency_seconds_bucket{le="0.25"} 21
authcore_validate_latency_seconds_bucket{le="0.5"} 28
authcore_validate_latency_seconds_bucket{le="+Inf"} 36
authcore_validate_latency_seconds_sum 0
authcore_validate_latency_seconds_count 36
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected), "authcore_validate_latency_seconds"))
}

func TestHandlerServesExposition(t *testing.T) {
	h, err := NewCollectorFromSource(populated()).Handler()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "authcore_auth_success_total 7")
	assert.Contains(t, string(body), `authcore_validate_latency_seconds_bucket{le="+Inf"} 36`)
}

func TestRegistryRejectsDuplicateCollector(t *testing.T) {
	reg := prom.NewRegistry()
	require.NoError(t, reg.Register(NewCollectorFromSource(populated())))
	require.Error(t, reg.Register(NewCollectorFromSource(populated())))
}
