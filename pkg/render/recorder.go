package render

import "time"

// Recorder receives render telemetry. pkg/metrics provides a Prometheus
// implementation; the zero configuration discards everything.
type Recorder interface {
	RenderCompleted(mode Mode, elapsed time.Duration, err error)
	DirectiveFailed(directive string, phase Phase)
	ContextsOpen(count int)
	ContextLeaked(severity string)
}

type nopRecorder struct{}

func (nopRecorder) RenderCompleted(Mode, time.Duration, error) {}
func (nopRecorder) DirectiveFailed(string, Phase) {}
func (nopRecorder) ContextsOpen(int) {}
func (nopRecorder) ContextLeaked(string) {}
