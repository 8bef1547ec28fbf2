// Package metrics provides Prometheus metrics for ipweaver.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"gitlab.bluewillows.net/root/ipweaver/pkg/iplookup"
)

// Metric names use the ipweaver_ prefix.
const (
	Namespace = "ipweaver"
)

// DefaultJob is the Pushgateway job name used when none is configured.
const DefaultJob = "ipweaver"

// Registry holds every ipweaver metric. A dedicated registry keeps pushes
// free of Go runtime collectors unless they are added explicitly.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// BuildInfo exposes version information.
	BuildInfo = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "build_info",
		Help:      "Build information for ipweaver.",
	}, []string{"version", "go_version"})

	// IPLookupsTotal counts public IP lookup attempts.
	IPLookupsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "ip_lookups_total",
		Help:      "Public IP lookup attempts by provider, family and status.",
	}, []string{"provider", "family", "status"})

	// IPLookupDuration tracks how long lookup services take to answer.
	IPLookupDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "ip_lookup_duration_seconds",
		Help:      "Duration of public IP lookups.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider"})

	// ReconciliationsTotal counts per-target outcomes.
	ReconciliationsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "reconciliations_total",
		Help:      "Reconciliation outcomes by address family.",
	}, []string{"family", "outcome"})

	// RecordsUpdatedTotal counts upserts actually issued.
	RecordsUpdatedTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "records_updated_total",
		Help:      "Record sets written to the hosting API.",
	}, []string{"family"})

	// ScanPagesTotal counts listing pages fetched while searching for a record.
	ScanPagesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "scan_pages_total",
		Help:      "Record set listing pages fetched.",
	}, []string{"family"})

	// PrecheckTotal counts local DNS pre-check results.
	PrecheckTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "precheck_total",
		Help:      "Local DNS pre-check results (match, mismatch, inconclusive).",
	}, []string{"result"})

	// HostingAPIRequestsTotal counts hosting API calls.
	HostingAPIRequestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "hosting_api_requests_total",
		Help:      "Hosting API requests by backend, operation and status.",
	}, []string{"backend", "operation", "status"})

	// HostingAPIDuration tracks hosting API latency.
	HostingAPIDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "hosting_api_duration_seconds",
		Help:      "Duration of hosting API requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"backend", "operation"})

	// LastRunTimestamp is the Unix time of the last run.
	LastRunTimestamp = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time of the last run.",
	})

	// LastSuccessTimestamp is the Unix time of the last run without failures.
	LastSuccessTimestamp = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last run in which every target succeeded.",
	})
)

// SetBuildInfo records the build version.
func SetBuildInfo(version, goVersion string) {
	BuildInfo.WithLabelValues(version, goVersion).Set(1)
}

// ObserveLookup records one IP lookup attempt. Its signature matches
// iplookup.ObserverFunc.
func ObserveLookup(provider string, family iplookup.Family, elapsed time.Duration, err error) {
	IPLookupsTotal.WithLabelValues(provider, family.String(), statusLabel(err)).Inc()
	IPLookupDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// RecordRun stamps the run gauges.
func RecordRun(at time.Time, succeeded bool) {
	LastRunTimestamp.Set(float64(at.Unix()))
	if succeeded {
		LastSuccessTimestamp.Set(float64(at.Unix()))
	}
}

// Push sends every metric in Registry to a Pushgateway.
func Push(ctx context.Context, url, job string) error {
	if job == "" {
		job = DefaultJob
	}
	if err := push.New(url, job).Gatherer(Registry).PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
