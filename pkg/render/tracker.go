package render

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Leak detector defaults.
const (
	DefaultLeakWarnAfter  = time.Second
	DefaultLeakErrorAfter = 10 * time.Second
	DefaultSweepSchedule  = "@every 1s"
)

// Leak severities passed to Recorder.ContextLeaked.
const (
	LeakWarn  = "warn"
	LeakError = "error"
)

type tracked struct {
	created  time.Time
	reported string
}

// Tracker is a diagnostic table of open contexts. A periodic sweep drops
// closed entries and logs contexts that stay open too long. It never closes
// a context on its own.
type Tracker struct {
	mu         sync.Mutex
	open       map[*Context]*tracked
	warnAfter  time.Duration
	errorAfter time.Duration
	schedule   string
	logger     *slog.Logger
	recorder   Recorder
	cron       *cron.Cron
	running    bool
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithLeakThresholds overrides the warn and error ages.
func WithLeakThresholds(warn, errAfter time.Duration) TrackerOption {
	return func(t *Tracker) {
		if warn > 0 {
			t.warnAfter = warn
		}
		if errAfter > 0 {
			t.errorAfter = errAfter
		}
	}
}

// WithSweepSchedule sets the cron spec used by Start.
func WithSweepSchedule(spec string) TrackerOption {
	return func(t *Tracker) {
		if spec != "" {
			t.schedule = spec
		}
	}
}

// WithTrackerLogger sets the logger.
func WithTrackerLogger(logger *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithTrackerRecorder reports open and leaked contexts to rec.
func WithTrackerRecorder(rec Recorder) TrackerOption {
	return func(t *Tracker) {
		if rec != nil {
			t.recorder = rec
		}
	}
}

// NewTracker creates an idle tracker. Call Start to run the periodic sweep.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		open:       make(map[*Context]*tracked),
		warnAfter:  DefaultLeakWarnAfter,
		errorAfter: DefaultLeakErrorAfter,
		schedule:   DefaultSweepSchedule,
		logger:     slog.Default().With("component", "render.tracker"),
		recorder:   nopRecorder{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(t)
	}
	return t
}

var (
	defaultTrackerOnce sync.Once
	defaultTracker     *Tracker
)

// DefaultTracker returns the process-wide tracker shared by renderers that
// were not given one explicitly.
func DefaultTracker() *Tracker {
	defaultTrackerOnce.Do(func() {
		defaultTracker = NewTracker()
	})
	return defaultTracker
}

// Track records c as open.
func (t *Tracker) Track(c *Context) {
	if t == nil || c == nil {
		return
	}
	t.mu.Lock()
	t.open[c] = &tracked{created: c.created}
	t.mu.Unlock()
}

// Untrack forgets c.
func (t *Tracker) Untrack(c *Context) {
	if t == nil || c == nil {
		return
	}
	t.mu.Lock()
	delete(t.open, c)
	t.mu.Unlock()
}

// Open returns the number of tracked contexts.
func (t *Tracker) Open() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.open)
}

// SweepReport summarises one sweep.
type SweepReport struct {
	Open    int
	Removed int
	Warned  int
	Errored int
}

// Sweep inspects every tracked context as of now. Each context is reported
// at most once per severity.
func (t *Tracker) Sweep(now time.Time) SweepReport {
	t.mu.Lock()
	var report SweepReport
	type leak struct {
		ctx      *Context
		age      time.Duration
		severity string
	}
	var leaks []leak
	for c, entry := range t.open {
		if c.Closed() {
			delete(t.open, c)
			report.Removed++
			continue
		}
		age := now.Sub(entry.created)
		switch {
		case age > t.errorAfter && entry.reported != LeakError:
			entry.reported = LeakError
			leaks = append(leaks, leak{ctx: c, age: age, severity: LeakError})
			report.Errored++
		case age > t.warnAfter && entry.reported == "":
			entry.reported = LeakWarn
			leaks = append(leaks, leak{ctx: c, age: age, severity: LeakWarn})
			report.Warned++
		}
	}
	report.Open = len(t.open)
	t.mu.Unlock()

	for _, l := range leaks {
		attrs := []any{
			"context", l.ctx.ID(),
			"depth", l.ctx.Depth(),
			"age", l.age.String(),
			"pending_children", l.ctx.Pending(),
		}
		if l.severity == LeakError {
			t.logger.Error("render context still open", attrs...)
		} else {
			t.logger.Warn("render context still open", attrs...)
		}
		t.recorder.ContextLeaked(l.severity)
	}
	t.recorder.ContextsOpen(report.Open)
	return report
}

// Start schedules the sweep. It stops when ctx is cancelled or Stop is called.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return nil
	}
	if _, err := cron.ParseStandard(t.schedule); err != nil {
		return fmt.Errorf("render: invalid sweep schedule %q: %w", t.schedule, err)
	}

	t.cron = cron.New()
	if _, err := t.cron.AddFunc(t.schedule, func() {
		t.Sweep(time.Now())
	}); err != nil {
		return fmt.Errorf("render: schedule sweep: %w", err)
	}
	t.cron.Start()
	t.running = true
	t.logger.Debug("leak detector started", "schedule", t.schedule)

	go func() {
		<-ctx.Done()
		t.Stop()
	}()
	return nil
}

// Stop halts the sweep and waits for a running sweep to finish.
func (t *Tracker) Stop() {
	t.mu.Lock()
	c := t.cron
	running := t.running
	t.running = false
	t.mu.Unlock()

	if c != nil && running {
		<-c.Stop().Done()
		t.logger.Debug("leak detector stopped")
	}
}

// Running reports whether the sweep is scheduled.
func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}
