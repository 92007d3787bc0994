package render

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration reports a context built without a required collaborator.
	ErrConfiguration = errors.New("render: invalid context configuration")
	// ErrUnsupportedMode reports an unknown placement mode.
	ErrUnsupportedMode = errors.New("render: unsupported mode")
	// ErrContextClosed reports an attempt to render into a closed context.
	ErrContextClosed = errors.New("render: context already closed")
	// ErrTemplateRequired reports a render request without a template or producer.
	ErrTemplateRequired = errors.New("render: template is required")
)

// DirectiveError wraps a failure (returned error or recovered panic) raised by
// a single directive while processing one context.
type DirectiveError struct {
	Directive string
	Phase     Phase
	ContextID string
	Err       error
}

func (e *DirectiveError) Error() string {
	return fmt.Sprintf("render: directive %q (%s) in context %s: %v", e.Directive, e.Phase, e.ContextID, e.Err)
}

func (e *DirectiveError) Unwrap() error { return e.Err }
