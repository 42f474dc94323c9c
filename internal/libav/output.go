package libav

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"

	"github.com/smazurov/framestamp/internal/ffmpeg"
	"github.com/smazurov/framestamp/internal/media"
	"github.com/smazurov/framestamp/internal/transcode"
)

// OutputFormat is the muxer every output uses.
const OutputFormat = "ivf"

type output struct {
	fc  *astiav.FormatContext
	ioc *astiav.IOContext
}

func openOutput(path string) (*output, error) {
	fc, err := astiav.AllocOutputFormatContext(nil, OutputFormat, path)
	if err != nil {
		return nil, fmt.Errorf("alloc output context: %w", err)
	}
	if fc == nil {
		return nil, errors.New("alloc output context")
	}
	out := &output{fc: fc}
	if !fc.OutputFormat().Flags().Has(astiav.IOFormatFlagNofile) {
		ioc, err := astiav.OpenIOContext(path, astiav.NewIOContextFlags(astiav.IOContextFlagWrite), nil, nil)
		if err != nil {
			fc.Free()
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		out.ioc = ioc
		fc.SetPb(ioc)
	}
	return out, nil
}

func (o *output) AddVideoStream(params transcode.VideoParams, enc ffmpeg.EncoderParams) (transcode.Encoder, error) {
	codec := astiav.FindEncoderByName(enc.Codec)
	if codec == nil {
		return nil, fmt.Errorf("encoder %s not available", enc.Codec)
	}
	cc := astiav.AllocCodecContext(codec)
	if cc == nil {
		return nil, errors.New("alloc encoder context")
	}

	cc.SetWidth(params.Width)
	cc.SetHeight(params.Height)
	cc.SetPixelFormat(astiav.PixelFormat(params.PixelFormat))
	cc.SetSampleAspectRatio(toAV(params.SampleAspect))
	cc.SetTimeBase(toAV(params.TimeBase))
	if params.FrameRate.Valid() {
		cc.SetFramerate(toAV(params.FrameRate))
	}
	cc.SetBitRate(enc.Bitrate)
	cc.SetGopSize(enc.GOP)
	cc.SetThreadCount(enc.Threads)
	if o.fc.OutputFormat().Flags().Has(astiav.IOFormatFlagGlobalheader) {
		cc.SetFlags(cc.Flags().Add(astiav.CodecContextFlagGlobalHeader))
	}

	opts := make(map[string]string, len(enc.Options))
	for _, opt := range enc.Options {
		opts[string(opt.Key)] = opt.Value
	}
	dict, err := dictionary(opts)
	if err != nil {
		cc.Free()
		return nil, err
	}
	defer dict.Free()

	if err := cc.Open(codec, dict); err != nil {
		cc.Free()
		return nil, fmt.Errorf("open encoder %s: %w", codec.Name(), err)
	}

	s := o.fc.NewStream(nil)
	if s == nil {
		cc.Free()
		return nil, errors.New("new output stream")
	}
	if err := s.CodecParameters().FromCodecContext(cc); err != nil {
		cc.Free()
		return nil, fmt.Errorf("copy encoder parameters: %w", err)
	}
	s.SetTimeBase(cc.TimeBase())
	return newEncoder(cc), nil
}

// SetMetadata hands a new dictionary to the muxer, which owns it from then on.
func (o *output) SetMetadata(md map[string]string) {
	if len(md) == 0 {
		return
	}
	d, err := dictionary(md)
	if err != nil {
		return
	}
	o.fc.SetMetadata(d)
}

func (o *output) WriteHeader(options map[string]string) error {
	d, err := dictionary(options)
	if err != nil {
		return err
	}
	defer d.Free()
	return o.fc.WriteHeader(d)
}

func (o *output) StreamTimeBase(index int) media.Rational {
	streams := o.fc.Streams()
	if index < 0 || index >= len(streams) {
		return media.Rational{}
	}
	return fromAV(streams[index].TimeBase())
}

func (o *output) WriteInterleaved(p transcode.Packet) error {
	pkt, err := avPacket(p)
	if err != nil {
		return err
	}
	return o.fc.WriteInterleavedFrame(pkt)
}

func (o *output) WriteTrailer() error {
	return o.fc.WriteTrailer()
}

func (o *output) Close() error {
	var err error
	if o.ioc != nil {
		err = o.ioc.Close()
		o.ioc = nil
	}
	if o.fc != nil {
		o.fc.Free()
		o.fc = nil
	}
	return err
}
