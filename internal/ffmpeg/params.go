package ffmpeg

// OverlayParams represents everything needed to describe the watermark overlay graph.
type OverlayParams struct {
	Width       int    // decoded frame width
	Height      int    // decoded frame height
	WatermarkID string // 1-3 digit capture id rendered before the clock
	FontFile    string // /usr/share/fonts/truetype/noto/NotoMono-Regular.ttf
	FontColor   string // white
	BoxColor    string // black
}

// EncoderParams represents the encoder policy applied to every carried stream.
type EncoderParams struct {
	Codec   string // libvpx
	Bitrate int64  // target bit rate in bit/s
	GOP     int    // keyframe interval, must be 1
	Threads int    // 0 lets libav decide

	// Private and generic codec options passed when opening the encoder
	Options []EncoderOption
}
