package config

import "time"

// Default values applied to zero fields.
const (
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultHTTPTimeout      = 10 * time.Second
	DefaultAsyncDelay       = 10 * time.Millisecond
	DefaultLeakWarnAfter    = time.Second
	DefaultLeakErrorAfter   = 10 * time.Second
	DefaultSweepSchedule    = "@every 1s"
	DefaultMetricsNamespace = "domtpl"
	DefaultMetricsSubsystem = "render"
	DefaultWatchDebounce    = 100 * time.Millisecond
	DefaultPongoExtension   = ".html"
)

// Default returns a configuration with every default applied. Boolean
// switches that default to on are only set here, since a zero bool cannot be
// told apart from an explicit false.
func Default() *Config {
	cfg := &Config{
		Loader: LoaderConfig{Cache: true, HTTP: true},
		Render: RenderConfig{Sanitize: true},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields. It is idempotent.
func ApplyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if cfg.Loader.HTTPTimeout == 0 {
		cfg.Loader.HTTPTimeout = DefaultHTTPTimeout
	}
	if cfg.Render.AsyncDelay == 0 {
		cfg.Render.AsyncDelay = DefaultAsyncDelay
	}
	if cfg.Tracker.WarnAfter == 0 {
		cfg.Tracker.WarnAfter = DefaultLeakWarnAfter
	}
	if cfg.Tracker.ErrorAfter == 0 {
		cfg.Tracker.ErrorAfter = DefaultLeakErrorAfter
	}
	if cfg.Tracker.SweepSchedule == "" {
		cfg.Tracker.SweepSchedule = DefaultSweepSchedule
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if cfg.Pongo.Extension == "" {
		cfg.Pongo.Extension = DefaultPongoExtension
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = DefaultWatchDebounce
	}
}
