package libav

import (
	"os"

	"github.com/asticode/go-astiav"

	"github.com/smazurov/framestamp/internal/ffmpeg"
)

// Capability is one requirement checked by Probe.
type Capability struct {
	Kind   string
	Name   string
	OK     bool
	Detail string
}

// Probe checks that the linked libav build can produce stamped captures.
func Probe(enc ffmpeg.EncoderParams, fontFile string) []Capability {
	caps := make([]Capability, 0, 6)

	encoder := Capability{Kind: "encoder", Name: enc.Codec}
	if c := astiav.FindEncoderByName(enc.Codec); c != nil {
		encoder.OK = true
		encoder.Detail = c.Name()
	} else {
		encoder.Detail = "not compiled in"
	}
	caps = append(caps, encoder)

	muxer := Capability{Kind: "muxer", Name: OutputFormat}
	if f := astiav.FindOutputFormat(OutputFormat); f != nil {
		muxer.OK = true
		muxer.Detail = f.Name()
	} else {
		muxer.Detail = "not compiled in"
	}
	caps = append(caps, muxer)

	for _, name := range []string{"buffer", "buffersink", "drawbox", "drawtext"} {
		c := Capability{Kind: "filter", Name: name, Detail: "not compiled in"}
		if astiav.FindFilterByName(name) != nil {
			c.OK = true
			c.Detail = "available"
		}
		caps = append(caps, c)
	}

	font := Capability{Kind: "font", Name: fontFile}
	if st, err := os.Stat(fontFile); err != nil {
		font.Detail = err.Error()
	} else if st.IsDir() {
		font.Detail = "is a directory"
	} else {
		font.OK = true
		font.Detail = "readable"
	}
	return append(caps, font)
}

// Ready reports whether every capability is available.
func Ready(caps []Capability) bool {
	for _, c := range caps {
		if !c.OK {
			return false
		}
	}
	return true
}
