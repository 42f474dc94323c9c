package libav

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"

	"github.com/smazurov/framestamp/internal/media"
	"github.com/smazurov/framestamp/internal/transcode"
)

type input struct {
	fc  *astiav.FormatContext
	pkt packet
}

func openInput(path string) (*input, error) {
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, errors.New("alloc format context")
	}
	if err := fc.OpenInput(path, nil, nil); err != nil {
		fc.Free()
		return nil, fmt.Errorf("open input: %w", err)
	}
	if err := fc.FindStreamInfo(nil); err != nil {
		fc.CloseInput()
		fc.Free()
		return nil, fmt.Errorf("find stream info: %w", err)
	}
	return &input{fc: fc, pkt: packet{p: astiav.AllocPacket()}}, nil
}

func (in *input) Streams() []transcode.StreamInfo {
	streams := in.fc.Streams()
	out := make([]transcode.StreamInfo, 0, len(streams))
	for _, s := range streams {
		out = append(out, transcode.StreamInfo{
			Index:     s.Index(),
			MediaType: mediaType(s.CodecParameters().MediaType()),
			TimeBase:  fromAV(s.TimeBase()),
			Frames:    s.NbFrames(),
		})
	}
	return out
}

// BestVideoStream picks the largest video stream, the lowest index on ties.
func (in *input) BestVideoStream() int {
	best, bestArea := -1, -1
	for _, s := range in.fc.Streams() {
		cp := s.CodecParameters()
		if cp.MediaType() != astiav.MediaTypeVideo {
			continue
		}
		if area := cp.Width() * cp.Height(); area > bestArea {
			best, bestArea = s.Index(), area
		}
	}
	return best
}

func (in *input) Metadata() map[string]string {
	return dictionaryMap(in.fc.Metadata())
}

func (in *input) OpenDecoder(index int) (transcode.Decoder, error) {
	streams := in.fc.Streams()
	if index < 0 || index >= len(streams) {
		return nil, fmt.Errorf("stream %d out of range", index)
	}
	s := streams[index]
	cp := s.CodecParameters()

	codec := astiav.FindDecoder(cp.CodecID())
	if codec == nil {
		return nil, fmt.Errorf("no decoder for codec %s", cp.CodecID())
	}
	cc := astiav.AllocCodecContext(codec)
	if cc == nil {
		return nil, errors.New("alloc decoder context")
	}
	if err := cp.ToCodecContext(cc); err != nil {
		cc.Free()
		return nil, fmt.Errorf("copy codec parameters: %w", err)
	}
	cc.SetFramerate(in.fc.GuessFrameRate(s, nil))
	cc.SetTimeBase(s.TimeBase())
	if err := cc.Open(codec, nil); err != nil {
		cc.Free()
		return nil, fmt.Errorf("open decoder %s: %w", codec.Name(), err)
	}
	return newDecoder(cc), nil
}

func (in *input) ReadPacket() (transcode.Packet, error) {
	in.pkt.p.Unref()
	if err := in.fc.ReadFrame(in.pkt.p); err != nil {
		if errors.Is(err, astiav.ErrEof) {
			return nil, media.ErrEOF
		}
		return nil, err
	}
	return &in.pkt, nil
}

func (in *input) Close() {
	in.pkt.p.Free()
	in.fc.CloseInput()
	in.fc.Free()
}
