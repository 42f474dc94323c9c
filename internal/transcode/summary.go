package transcode

import (
	"time"

	"github.com/smazurov/framestamp/internal/media"
)

// StreamSummary is the outcome of one carried stream.
type StreamSummary struct {
	Input        int
	Output       int
	Best         bool
	Frames       int
	Failed       int
	Identified   bool
	RecognizedID int
}

// Summary is the outcome of one run. Output is the final path, after any rename.
type Summary struct {
	RunID     string
	Mode      media.Mode
	Input     string
	Output    string
	Streams   []StreamSummary
	Cancelled bool
	Duration  time.Duration

	// started is set once RunStartedEvent has been published.
	started bool
}

// TotalFrames sums decoded frames across streams.
func (s *Summary) TotalFrames() int {
	n := 0
	for _, st := range s.Streams {
		n += st.Frames
	}
	return n
}

// TotalFailed sums rejected frames across streams.
func (s *Summary) TotalFailed() int {
	n := 0
	for _, st := range s.Streams {
		n += st.Failed
	}
	return n
}

// Identity returns the recognized id of the first stream, in output order, that has one.
func (s *Summary) Identity() (int, bool) {
	for _, st := range s.Streams {
		if st.Identified {
			return st.RecognizedID, true
		}
	}
	return 0, false
}
