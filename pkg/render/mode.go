package render

import (
	"fmt"
	"strings"
)

// Mode is the placement policy for produced output.
type Mode string

const (
	ModeReplace Mode = "replace"
	ModeAppend  Mode = "append"
	ModePrepend Mode = "prepend"
)

// ParseMode normalises s; an empty string yields ModeReplace.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeReplace:
		return ModeReplace, nil
	case ModeAppend:
		return ModeAppend, nil
	case ModePrepend:
		return ModePrepend, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedMode, s)
}
