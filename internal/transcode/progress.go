package transcode

import "time"

const (
	DefaultProgressFrames   = 100
	DefaultProgressInterval = time.Second
)

// Throttle bounds progress reporting: a report is due only once both enough
// frames and enough wall time have passed since the previous one.
type Throttle struct {
	minFrames   int
	minInterval time.Duration
	now         func() time.Time

	lastFrames int
	lastTime   time.Time
}

// NewThrottle starts the interval at construction. A nil clock uses time.Now.
func NewThrottle(minFrames int, minInterval time.Duration, now func() time.Time) *Throttle {
	if now == nil {
		now = time.Now
	}
	return &Throttle{
		minFrames:   minFrames,
		minInterval: minInterval,
		now:         now,
		lastTime:    now(),
	}
}

// Ready reports whether a report is due at the given frame count and, if so,
// records it as the last one.
func (t *Throttle) Ready(frames int) bool {
	now := t.now()
	if frames-t.lastFrames < t.minFrames || now.Sub(t.lastTime) < t.minInterval {
		return false
	}
	t.lastFrames = frames
	t.lastTime = now
	return true
}
