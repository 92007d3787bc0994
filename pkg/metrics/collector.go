package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-domtpl/pkg/config"
	"github.com/goliatone/go-domtpl/pkg/loader"
	"github.com/goliatone/go-domtpl/pkg/render"
)

// DefaultDurationBuckets covers sub-millisecond renders up to slow remote
// includes.
var DefaultDurationBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

// Collector owns the render metric families.
type Collector struct {
	enabled  bool
	registry *prometheus.Registry

	rendersTotal      *prometheus.CounterVec
	renderDuration    *prometheus.HistogramVec
	directiveFailures *prometheus.CounterVec
	contextsOpen      prometheus.Gauge
	contextsLeaked    *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec
}

var (
	_ render.Recorder      = (*Collector)(nil)
	_ loader.CacheRecorder = (*Collector)(nil)
)

// NewCollector registers the metric families with registry, creating a
// private registry when nil.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}

	c := &Collector{
		enabled:  cfg.Enabled,
		registry: registry,
		rendersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "renders_total",
				Help:      "Total number of completed renders",
			},
			[]string{"mode", "status"},
		),
		renderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "render_duration_seconds",
				Help:      "Render latency in seconds",
				Buckets:   DefaultDurationBuckets,
			},
			[]string{"mode"},
		),
		directiveFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "directive_failures_total",
				Help:      "Total number of contained directive failures",
			},
			[]string{"directive", "phase"},
		),
		contextsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "contexts_open",
				Help:      "Render contexts created but not yet closed",
			},
		),
		contextsLeaked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "contexts_leaked_total",
				Help:      "Render contexts reported by the leak detector",
			},
			[]string{"severity"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "template_cache_lookups_total",
				Help:      "Template cache lookups by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		c.rendersTotal,
		c.renderDuration,
		c.directiveFailures,
		c.contextsOpen,
		c.contextsLeaked,
		c.cacheLookups,
	)
	return c
}

// Registry returns the registry the families live in.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// RenderCompleted implements render.Recorder.
func (c *Collector) RenderCompleted(mode render.Mode, elapsed time.Duration, err error) {
	if !c.enabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	label := string(mode)
	if label == "" {
		label = "unknown"
	}
	c.rendersTotal.WithLabelValues(label, status).Inc()
	c.renderDuration.WithLabelValues(label).Observe(elapsed.Seconds())
}

// DirectiveFailed implements render.Recorder.
func (c *Collector) DirectiveFailed(directive string, phase render.Phase) {
	if !c.enabled {
		return
	}
	c.directiveFailures.WithLabelValues(directive, phase.String()).Inc()
}

// ContextsOpen implements render.Recorder.
func (c *Collector) ContextsOpen(count int) {
	if !c.enabled {
		return
	}
	c.contextsOpen.Set(float64(count))
}

// ContextLeaked implements render.Recorder.
func (c *Collector) ContextLeaked(severity string) {
	if !c.enabled {
		return
	}
	c.contextsLeaked.WithLabelValues(severity).Inc()
}

// CacheLookup implements loader.CacheRecorder.
func (c *Collector) CacheLookup(hit bool) {
	if !c.enabled {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
