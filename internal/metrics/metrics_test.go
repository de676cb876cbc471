package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIgnoreInvalidLabels(t *testing.T) {
	m := New(true)

	m.IncRecordOperation("create", "example.com", "A")
	m.IncRecordOperation("update", "example.com", "A")
	m.IncRecordOperation("create", "example.com", "CNAME")
	m.IncRecordOperation("create", "", "A")

	if got := testutil.ToFloat64(m.recordOperations.WithLabelValues("create", "example.com", "A")); got != 1 {
		t.Errorf("create A operations = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.recordOperations); got != 1 {
		t.Errorf("record operation series = %d, want 1", got)
	}
}

func TestRequestCounters(t *testing.T) {
	m := New(true)

	m.IncDNSRequest("read", true)
	m.IncDNSRequest("read", false)
	m.IncDNSRequest("read", false)
	m.IncResolverRequest("AAAA", true)
	m.IncResolverRequest("MX", true)
	m.IncBadgerRequest("create", true)

	if got := testutil.ToFloat64(m.dnsRequests.WithLabelValues("read", "failure")); got != 2 {
		t.Errorf("failed reads = %v, want 2", got)
	}
	if got := testutil.CollectAndCount(m.resolverRequests); got != 1 {
		t.Errorf("resolver series = %d, want 1", got)
	}
	if got := testutil.ToFloat64(m.badgerRequests.WithLabelValues("create", "success")); got != 1 {
		t.Errorf("badger creates = %v, want 1", got)
	}
}

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	m := New(true)
	m.IncSyncRun("manual", true)
	m.SetSyncDuration(120 * time.Millisecond)
	m.IncDomainResult("success")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`ddns_sync_sync_runs_total{status="success",trigger="manual"} 1`,
		`ddns_sync_domain_results_total{status="success"} 1`,
		"ddns_sync_sync_duration_milliseconds_count 1",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestUnregisteredMetricsNotExposed(t *testing.T) {
	m := New(false)
	m.IncSyncRun("schedule", false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if strings.Contains(rec.Body.String(), "ddns_sync_sync_runs_total") {
		t.Error("unregistered metrics should not be exposed")
	}
}
