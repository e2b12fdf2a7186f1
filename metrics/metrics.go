// Package metrics holds the Prometheus metrics of one collection run.
//
// The job is short-lived, so metrics are not served over HTTP. They are
// written to a node_exporter textfile and/or pushed to a Pushgateway once the
// run finishes. All methods are safe on a nil *Metrics.
package metrics

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Request endpoints.
const (
	EndpointMetainfo    = "metainfo"
	EndpointMarketBatch = "market_batch"
	EndpointMarketToken = "market_token"
)

// Request outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeHTTPError = "http_error"
	OutcomeAPIError  = "api_error"
	OutcomeDecode    = "decode_error"
	OutcomeTransport = "transport_error"
)

// Metrics holds all Prometheus metrics for a run.
type Metrics struct {
	registry *prometheus.Registry

	TokensListed      *prometheus.CounterVec
	Requests          *prometheus.CounterVec
	Retries           *prometheus.CounterVec
	RecordsWritten    *prometheus.CounterVec
	DuplicatesSkipped *prometheus.CounterVec
	MissingTokens     *prometheus.CounterVec
	FilesRemoved      prometheus.Counter
	UploadSuccess     prometheus.Gauge
	LastRunTimestamp  prometheus.Gauge
	RunDuration       prometheus.Gauge
}

// New creates a Metrics instance on its own registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "market_collector"
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		TokensListed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lister",
			Name:      "tokens_listed_total",
			Help:      "Token symbols returned by the metadata endpoint",
		}, []string{"chain"}),
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "API requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		Retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "retries_total",
			Help:      "Retries after a 502 response",
		}, []string{"endpoint"}),
		RecordsWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "records_written_total",
			Help:      "Market records appended to the CSV file",
		}, []string{"chain"}),
		DuplicatesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "duplicates_skipped_total",
			Help:      "Market records skipped because their token id was already written",
		}, []string{"chain"}),
		MissingTokens: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "missing_tokens_total",
			Help:      "Tokens without market data, by reason",
		}, []string{"chain", "reason"}),
		FilesRemoved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "files_removed_total",
			Help:      "Expired artifacts removed",
		}),
		UploadSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "success",
			Help:      "1 if the CSV artifact was uploaded",
		}),
		LastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
		RunDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run",
		}),
	}
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveTokensListed(chain string, n int) {
	if m == nil {
		return
	}
	m.TokensListed.WithLabelValues(chain).Add(float64(n))
}

func (m *Metrics) ObserveRequest(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(endpoint, outcome).Inc()
}

func (m *Metrics) ObserveRetry(endpoint string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(endpoint).Inc()
}

func (m *Metrics) ObserveWrite(chain string, added, skipped int) {
	if m == nil {
		return
	}
	m.RecordsWritten.WithLabelValues(chain).Add(float64(added))
	m.DuplicatesSkipped.WithLabelValues(chain).Add(float64(skipped))
}

func (m *Metrics) ObserveMissing(chain, reason string, n int) {
	if m == nil {
		return
	}
	m.MissingTokens.WithLabelValues(chain, reason).Add(float64(n))
}

func (m *Metrics) ObserveRemoved(n int) {
	if m == nil {
		return
	}
	m.FilesRemoved.Add(float64(n))
}

func (m *Metrics) ObserveUpload(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.UploadSuccess.Set(1)
	} else {
		m.UploadSuccess.Set(0)
	}
}

// Finish stamps the run duration and completion time.
func (m *Metrics) Finish(started, finished time.Time) {
	if m == nil {
		return
	}
	m.RunDuration.Set(finished.Sub(started).Seconds())
	m.LastRunTimestamp.Set(float64(finished.Unix()))
}

// WriteTextfile writes all metrics in the text exposition format, atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return errors.Wrapf(prometheus.WriteToTextfile(path, m.registry), "write metrics textfile %s", path)
}

// Push replaces the metrics of job on the Pushgateway at url.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if m == nil || url == "" {
		return nil
	}
	err := push.New(url, job).Gatherer(m.registry).PushContext(ctx)
	return errors.Wrapf(err, "push metrics to %s", url)
}
