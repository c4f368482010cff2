package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration    *prom.HistogramVec
	pipelineDuration prom.Histogram
	enrichments      *prom.CounterVec
	uploads          *prom.CounterVec
	publishes        *prom.CounterVec
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "ghostwriter",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual render stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		pipelineDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "ghostwriter",
			Name:      "pipeline_duration_seconds",
			Help:      "Total note render duration",
			Buckets:   prom.DefBuckets,
		}),
		enrichments: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "ghostwriter",
			Name:      "enrichments_total",
			Help:      "Embed and bookmark lookups by kind and outcome",
		}, []string{"kind", "outcome"}),
		uploads: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "ghostwriter",
			Name:      "uploads_total",
			Help:      "Asset uploads by kind and outcome",
		}, []string{"kind", "outcome"}),
		publishes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "ghostwriter",
			Name:      "publishes_total",
			Help:      "Publish attempts by resource type and outcome",
		}, []string{"resource", "outcome"}),
	}
	reg.MustRegister(pr.stageDuration, pr.pipelineDuration, pr.enrichments, pr.uploads, pr.publishes)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObservePipelineDuration(d time.Duration) {
	p.pipelineDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncEnrichment(kind, outcome string) {
	p.enrichments.WithLabelValues(kind, outcome).Inc()
}

func (p *PrometheusRecorder) IncUpload(kind, outcome string) {
	p.uploads.WithLabelValues(kind, outcome).Inc()
}

func (p *PrometheusRecorder) IncPublish(resource, outcome string) {
	p.publishes.WithLabelValues(resource, outcome).Inc()
}

// HTTPHandler serves the metrics registered on reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
