package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry         *prometheus.Registry
	syncRuns         *prometheus.CounterVec // total syncs
	syncDuration     prometheus.Histogram   // time to sync
	domainResults    *prometheus.CounterVec // reconciled domains by outcome
	recordOperations *prometheus.CounterVec // record changes applied or skipped
	dnsRequests      *prometheus.CounterVec // dns provider requests
	resolverRequests *prometheus.CounterVec // doh lookups
	badgerRequests   *prometheus.CounterVec // badgerdb requests
	lastSync         prometheus.Gauge       // unix time of last finished sync
}

func (m *Metrics) IncSyncRun(trigger string, success bool) {
	m.syncRuns.WithLabelValues(trigger, boolToResult(success)).Inc()
}

func (m *Metrics) SetSyncDuration(duration time.Duration) {
	m.syncDuration.Observe(float64(duration.Milliseconds()))
	m.lastSync.SetToCurrentTime()
}

func (m *Metrics) IncDomainResult(status string) {
	if status == "" {
		return
	}
	m.domainResults.WithLabelValues(status).Inc()
}

func (m *Metrics) IncRecordOperation(operation, zone, recordType string) {
	if !isValidOperation(operation) || !isValidRecordType(recordType) || zone == "" {
		return
	}
	m.recordOperations.WithLabelValues(operation, zone, recordType).Inc()
}

func (m *Metrics) IncDNSRequest(operation string, success bool) {
	if !isValidOperation(operation) {
		return
	}
	m.dnsRequests.WithLabelValues(operation, boolToResult(success)).Inc()
}

func (m *Metrics) IncResolverRequest(recordType string, success bool) {
	if !isValidRecordType(recordType) {
		return
	}
	m.resolverRequests.WithLabelValues(recordType, boolToResult(success)).Inc()
}

func (m *Metrics) IncBadgerRequest(operation string, success bool) {
	if !isValidOperation(operation) {
		return
	}
	m.badgerRequests.WithLabelValues(operation, boolToResult(success)).Inc()
}

// Validation helpers
func boolToResult(b bool) string {
	if b {
		return "success"
	}
	return "failure"
}

func isValidOperation(op string) bool {
	switch op {
	case "create", "read", "delete", "skip", "lookup":
		return true
	}
	return false
}

func isValidRecordType(rt string) bool {
	switch rt {
	case "A", "AAAA":
		return true
	}
	return false
}

func New(register bool) *Metrics {
	registry := prometheus.NewRegistry()
	namespace := "ddns_sync"

	m := &Metrics{
		registry: registry,

		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Total number of synchronization runs",
		}, []string{"trigger", "status"}),

		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_milliseconds",
			Help:      "Duration of synchronization runs in milliseconds",
			Buckets:   prometheus.ExponentialBuckets(50, 2, 10),
		}),

		domainResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "domain_results_total",
			Help:      "Reconciled domains by final status",
		}, []string{"status"}),

		recordOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_operations_total",
			Help:      "Total record operations planned by the reconciler",
		}, []string{"operation", "zone", "type"}),

		dnsRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dns_requests_total",
			Help:      "Total DNS provider requests",
		}, []string{"operation", "status"}),

		resolverRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_requests_total",
			Help:      "Total DNS over HTTPS lookups",
		}, []string{"type", "status"}),

		badgerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "badgerdb_requests_total",
			Help:      "Total badgerdb requests",
		}, []string{"operation", "status"}),

		lastSync: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_sync_timestamp_seconds",
			Help:      "Unix time of the last finished synchronization run",
		}),
	}

	if register {
		registry.MustRegister(
			m.syncRuns,
			m.syncDuration,
			m.domainResults,
			m.recordOperations,
			m.dnsRequests,
			m.resolverRequests,
			m.badgerRequests,
			m.lastSync,
		)
	}
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
