// Package metrics exposes render telemetry to Prometheus.
//
// Metrics (namespace and subsystem come from config.MetricsConfig):
//   - renders_total{mode,status}: completed Render calls
//   - render_duration_seconds{mode}: Render latency
//   - directive_failures_total{directive,phase}: contained directive errors
//   - contexts_open: render contexts not yet closed
//   - contexts_leaked_total{severity}: leak detector reports
//   - template_cache_lookups_total{result}: loader cache hits and misses
//
// Collector implements render.Recorder and loader.CacheRecorder.
package metrics
