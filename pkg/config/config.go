package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config is the root configuration document.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Loader  LoaderConfig  `yaml:"loader"`
	Render  RenderConfig  `yaml:"render"`
	Pongo   PongoConfig   `yaml:"pongo"`
	Tracker TrackerConfig `yaml:"tracker"`
	Metrics MetricsConfig `yaml:"metrics"`
	Theme   ThemeConfig   `yaml:"theme"`
	Watch   WatchConfig   `yaml:"watch"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`
}

// LoaderConfig controls template and data loading.
type LoaderConfig struct {
	Cache       bool          `yaml:"cache"`
	HTTP        bool          `yaml:"http"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	// BaseDir, when set, resolves relative references against a directory
	// file system instead of the working directory.
	BaseDir string `yaml:"base_dir"`
}

// RenderConfig tunes directive behaviour.
type RenderConfig struct {
	AsyncDelay time.Duration `yaml:"async_delay"`
	Sanitize   bool          `yaml:"sanitize"`
}

// PongoConfig configures the pongo2 engine behind Request.Template. Named
// templates load from the engine's file system, or from Dir when set.
type PongoConfig struct {
	Dir       string `yaml:"dir"`
	Extension string `yaml:"extension"`
}

// TrackerConfig configures the open-context leak detector.
type TrackerConfig struct {
	WarnAfter     time.Duration `yaml:"warn_after"`
	ErrorAfter    time.Duration `yaml:"error_after"`
	SweepSchedule string        `yaml:"sweep_schedule"`
}

// MetricsConfig configures the Prometheus collector.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`

	// Address serves /metrics from the CLI when non-empty.
	Address string `yaml:"address"`
}

// ThemeConfig names the theme seeded into the application scope.
type ThemeConfig struct {
	Name    string `yaml:"name"`
	Variant string `yaml:"variant"`
}

// WatchConfig configures CLI watch mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Logger builds a slog logger writing to w according to the log section.
func (c LogConfig) Logger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SlogLevel maps the configured level name, defaulting to info.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
