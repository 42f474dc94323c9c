package transcode

import (
	"github.com/smazurov/framestamp/internal/ffmpeg"
	"github.com/smazurov/framestamp/internal/media"
	"github.com/smazurov/framestamp/internal/recognition"
)

// VideoParams describes a decoded video stream. Encoders and filters mirror it.
type VideoParams struct {
	Width           int
	Height          int
	PixelFormat     int
	PixelFormatName string
	SampleAspect    media.Rational
	FrameRate       media.Rational
	TimeBase        media.Rational
}

// StreamInfo describes one input stream as the demuxer sees it.
type StreamInfo struct {
	Index     int
	MediaType media.MediaType
	TimeBase  media.Rational
	// Frames is the declared frame count, 0 when the container does not know it.
	Frames int64
}

// Backend opens containers and builds per-stream processing stages.
type Backend interface {
	OpenInput(path string) (Input, error)
	OpenOutput(path string) (Output, error)
	NewOverlayFilter(params VideoParams, description string) (FrameFilter, error)
	NewRasterizer(params VideoParams) (Rasterizer, error)
}

// Input is an opened container being demuxed.
type Input interface {
	Streams() []StreamInfo
	// BestVideoStream returns -1 when the input has no video.
	BestVideoStream() int
	Metadata() map[string]string
	OpenDecoder(index int) (Decoder, error)
	// ReadPacket returns media.ErrEOF once the input is exhausted. The packet
	// is only valid until the next call.
	ReadPacket() (Packet, error)
	Close()
}

// Muxer accepts encoded packets in interleaved order.
type Muxer interface {
	WriteInterleaved(pkt Packet) error
}

// Output is a container being muxed.
type Output interface {
	Muxer
	AddVideoStream(params VideoParams, enc ffmpeg.EncoderParams) (Encoder, error)
	SetMetadata(md map[string]string)
	WriteHeader(options map[string]string) error
	// StreamTimeBase is only meaningful after WriteHeader.
	StreamTimeBase(index int) media.Rational
	WriteTrailer() error
	Close() error
}

// Decoder turns packets of one stream into frames. ReceiveFrame returns
// media.ErrAgain or media.ErrEOF when nothing more is available.
type Decoder interface {
	Params() VideoParams
	SendPacket(pkt Packet) error
	SendEOF() error
	ReceiveFrame() (Frame, error)
	Close()
}

// Encoder turns frames into packets with the same drained sentinels as Decoder.
type Encoder interface {
	SendFrame(frame Frame) error
	SendEOF() error
	ReceivePacket() (Packet, error)
	Close()
}

// Frame is a decoded picture, valid until the next receive on its producer.
type Frame interface {
	PTS() int64
	SetPTS(pts int64)
	// ForceKeyframe asks the encoder to code this frame as an intra picture.
	ForceKeyframe()
}

// Packet is a compressed unit of one stream.
type Packet interface {
	StreamIndex() int
	SetStreamIndex(index int)
	RescaleTs(from, to media.Rational)
}

// FrameFilter applies a filter graph to frames.
type FrameFilter interface {
	Apply(frame Frame) (Frame, error)
	Close()
}

// Rasterizer converts frames to packed 8-bit RGB.
type Rasterizer interface {
	RGB(frame Frame) (recognition.Raster, error)
	Close()
}
