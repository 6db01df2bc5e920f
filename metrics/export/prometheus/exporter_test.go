package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/metrics/export/internaldefs"
)

type fakeSource struct {
	snapshot goIdentity.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goIdentity.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                        { return f.dropped }

func TestCollectNothingWhenMetricsDisabled(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: goIdentity.MetricsSnapshot{
			Counters:   map[goIdentity.MetricID]uint64{},
			Histograms: map[goIdentity.MetricID][]uint64{},
		},
	})

	if n := testutil.CollectAndCount(c); n != 0 {
		t.Fatalf("expected no metrics for disabled engine, got %d", n)
	}
}

func TestCollectCountersAndDropped(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: goIdentity.MetricsSnapshot{
			Counters: map[goIdentity.MetricID]uint64{
				goIdentity.MetricLoginSuccess:         7,
				goIdentity.MetricRefreshReuseDetected: 2,
			},
			Histograms: map[goIdentity.MetricID][]uint64{},
		},
		dropped: 3,
	})

	expected := `
# HELP goidentity_login_success_total Successful logins.
# TYPE goidentity_login_success_total counter
goidentity_login_success_total 7
# HELP goidentity_refresh_reuse_detected_total Replayed refresh tokens; the slot was purged.
# TYPE goidentity_refresh_reuse_detected_total counter
goidentity_refresh_reuse_detected_total 2
# HELP goidentity_audit_dropped_total Audit events dropped by dispatcher backpressure.
# TYPE goidentity_audit_dropped_total counter
goidentity_audit_dropped_total 3
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"goidentity_login_success_total",
		"goidentity_refresh_reuse_detected_total",
		"goidentity_audit_dropped_total",
	)
	if err != nil {
		t.Fatalf("unexpected collection: %v", err)
	}

	want := len(internaldefs.CounterDefs) + 1
	if n := testutil.CollectAndCount(c); n != want {
		t.Fatalf("expected %d series, got %d", want, n)
	}
}

func TestCollectHistogramIsCumulative(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: goIdentity.MetricsSnapshot{
			Counters: map[goIdentity.MetricID]uint64{},
			Histograms: map[goIdentity.MetricID][]uint64{
				goIdentity.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
	})

	expected := `
# HELP goidentity_validate_latency_seconds Access token validation latency.
# TYPE goidentity_validate_latency_seconds histogram
goidentity_validate_latency_seconds_bucket{le="0.005"} 1
goidentity_validate_latency_seconds_bucket{le="0.01"} 3
goidentity_validate_latency_seconds_bucket{le="0.025"} 6
goidentity_validate_latency_seconds_bucket{le="0.05"} 10
goidentity_validate_latency_seconds_bucket{le="0.1"} 15
goidentity_validate_latency_seconds_bucket{le="0.25"} 21
goidentity_validate_latency_seconds_bucket{le="0.5"} 28
goidentity_validate_latency_seconds_bucket{le="+Inf"} 36
goidentity_validate_latency_seconds_sum 0
goidentity_validate_latency_seconds_count 36
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "goidentity_validate_latency_seconds"); err != nil {
		t.Fatalf("unexpected histogram: %v", err)
	}
}

func TestHandlerServesExposition(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: goIdentity.MetricsSnapshot{
			Counters:   map[goIdentity.MetricID]uint64{goIdentity.MetricLoginSuccess: 1},
			Histograms: map[goIdentity.MetricID][]uint64{},
		},
	})

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "goidentity_login_success_total 1") {
		t.Fatalf("expected login counter, got:\n%s", body)
	}
}
