package media

import (
	"fmt"
	"strings"
)

// Mode selects the frame transform applied to every carried stream of a run.
type Mode int

const (
	// ModeWatermark burns an id/clock overlay into each frame.
	ModeWatermark Mode = iota + 1
	// ModeRecognize reads the burned-in overlay back and retimes frames.
	ModeRecognize
)

func (m Mode) String() string {
	switch m {
	case ModeWatermark:
		return "watermark"
	case ModeRecognize:
		return "recognize"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses a mode name. "process" is accepted as an alias of recognize.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "watermark", "w":
		return ModeWatermark, nil
	case "recognize", "recognition", "process", "r":
		return ModeRecognize, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}
