package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError is a validation failure on one dotted field path.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every field failure.
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("config: validation failed: %s", e.Errors[0].Error())
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "config: validation failed with %d errors:", len(e.Errors))
	for _, err := range e.Errors {
		sb.WriteString("\n  - ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Validate reports every invalid field at once.
func Validate(cfg *Config) error {
	var errs []FieldError
	add := func(field, format string, args ...any) {
		errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("log.level", "unknown level %q", cfg.Log.Level)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "text", "json":
	default:
		add("log.format", "must be text or json, got %q", cfg.Log.Format)
	}
	if cfg.Loader.HTTPTimeout < 0 {
		add("loader.http_timeout", "must not be negative")
	}
	if cfg.Render.AsyncDelay < 0 {
		add("render.async_delay", "must not be negative")
	}
	if cfg.Tracker.WarnAfter <= 0 {
		add("tracker.warn_after", "must be positive")
	}
	if cfg.Tracker.ErrorAfter < cfg.Tracker.WarnAfter {
		add("tracker.error_after", "must not be shorter than tracker.warn_after")
	}
	if _, err := cron.ParseStandard(cfg.Tracker.SweepSchedule); err != nil {
		add("tracker.sweep_schedule", "%v", err)
	}
	if cfg.Watch.Debounce < 0 {
		add("watch.debounce", "must not be negative")
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
