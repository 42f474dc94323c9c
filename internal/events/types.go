package events

// Event type constants for kelindar/event.
const (
	TypeRunStarted uint32 = iota + 1
	TypeRunCompleted
	TypeStreamProgress
	TypeFrameRejected
	TypeCaptureReady
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// RunStartedEvent is published once a run has opened its input and output.
type RunStartedEvent struct {
	RunID     string `json:"run_id" example:"3f0c7a52-8d0e-4c55-bb0e-2a4f5d3b9e11" doc:"Run identifier"`
	Mode      string `json:"mode" example:"watermark" doc:"Processing mode"`
	Input     string `json:"input" example:"/captures/clip.mp4" doc:"Input media path"`
	Output    string `json:"output" example:"/captures/clip.w.ivf" doc:"Output media path"`
	Streams   int    `json:"streams" example:"1" doc:"Number of carried video streams"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for RunStartedEvent.
func (e RunStartedEvent) Type() uint32 { return TypeRunStarted }

// RunCompletedEvent is published when a run ends, successfully or not.
type RunCompletedEvent struct {
	RunID           string  `json:"run_id" example:"3f0c7a52-8d0e-4c55-bb0e-2a4f5d3b9e11" doc:"Run identifier"`
	Mode            string  `json:"mode" example:"recognize" doc:"Processing mode"`
	Input           string  `json:"input" example:"/captures/clip.w.ivf" doc:"Input media path"`
	Output          string  `json:"output" example:"/captures/clip.42.ivf" doc:"Final output path"`
	Frames          int     `json:"frames" example:"1500" doc:"Decoded frames across carried streams"`
	Rejected        int     `json:"rejected" example:"3" doc:"Frames dropped by recognition"`
	Identified      bool    `json:"identified" example:"true" doc:"Whether a watermark id was recognized"`
	WatermarkID     int     `json:"watermark_id,omitempty" example:"42" doc:"Recognized watermark id"`
	Cancelled       bool    `json:"cancelled" example:"false" doc:"Whether the run was stopped early"`
	Started         bool    `json:"started" example:"true" doc:"Whether a RunStartedEvent was published for this run"`
	Error           string  `json:"error,omitempty" example:"write packet: broken pipe" doc:"Fatal error, if any"`
	DurationSeconds float64 `json:"duration_seconds" example:"12.5" doc:"Wall clock duration"`
	Timestamp       string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for RunCompletedEvent.
func (e RunCompletedEvent) Type() uint32 { return TypeRunCompleted }

// Failed reports whether the run ended with a fatal error.
func (e RunCompletedEvent) Failed() bool {
	return e.Error != ""
}

// StreamProgressEvent carries the periodic progress of the best video stream.
type StreamProgressEvent struct {
	RunID       string  `json:"run_id"`
	Mode        string  `json:"mode"`
	Stream      int     `json:"stream"`
	Frames      int     `json:"frames"`
	TotalFrames int64   `json:"total_frames"`
	Seconds     float64 `json:"seconds"`
	Rejected    int     `json:"rejected"`
}

// Type returns the event type identifier for StreamProgressEvent.
func (e StreamProgressEvent) Type() uint32 { return TypeStreamProgress }

// FrameRejectedEvent is published for every frame whose stamp could not be read.
type FrameRejectedEvent struct {
	RunID  string `json:"run_id"`
	Mode   string `json:"mode"`
	Stream int    `json:"stream"`
	Frame  int    `json:"frame"`
	Text   string `json:"text"`
}

// Type returns the event type identifier for FrameRejectedEvent.
func (e FrameRejectedEvent) Type() uint32 { return TypeFrameRejected }

// CaptureReadyEvent is published by the directory watcher once a new capture has settled.
type CaptureReadyEvent struct {
	Path      string `json:"path" example:"/captures/clip.mp4" doc:"Settled capture path"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureReadyEvent.
func (e CaptureReadyEvent) Type() uint32 { return TypeCaptureReady }
