package media

import "errors"

var (
	// ErrAgain reports that a codec has no output available until more input is sent.
	ErrAgain = errors.New("resource temporarily unavailable")
	// ErrEOF reports that a demuxer or a flushed codec has nothing more to return.
	ErrEOF = errors.New("end of stream")
)

// MediaType is the kind of a container stream.
type MediaType int

const (
	MediaTypeUnknown MediaType = iota
	MediaTypeVideo
	MediaTypeAudio
	MediaTypeData
	MediaTypeSubtitle
	MediaTypeAttachment
)

func (t MediaType) String() string {
	switch t {
	case MediaTypeVideo:
		return "video"
	case MediaTypeAudio:
		return "audio"
	case MediaTypeData:
		return "data"
	case MediaTypeSubtitle:
		return "subtitle"
	case MediaTypeAttachment:
		return "attachment"
	default:
		return "unknown"
	}
}

// Skip marks an input stream that is not carried to the output.
const Skip = -1

// StreamMapping maps input stream ordinals to output stream ordinals.
// Carried streams get dense output ordinals in input order; others get Skip.
type StreamMapping []int

// NewStreamMapping carries every video stream and skips everything else.
func NewStreamMapping(types []MediaType) StreamMapping {
	m := make(StreamMapping, len(types))
	next := 0
	for i, t := range types {
		if t != MediaTypeVideo {
			m[i] = Skip
			continue
		}
		m[i] = next
		next++
	}
	return m
}

// Output returns the output ordinal for an input stream.
func (m StreamMapping) Output(input int) (int, bool) {
	if input < 0 || input >= len(m) || m[input] == Skip {
		return Skip, false
	}
	return m[input], true
}

// Carried returns the number of streams that reach the output.
func (m StreamMapping) Carried() int {
	n := 0
	for _, o := range m {
		if o != Skip {
			n++
		}
	}
	return n
}
