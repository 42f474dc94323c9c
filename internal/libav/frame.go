package libav

import (
	"fmt"

	"github.com/asticode/go-astiav"

	"github.com/smazurov/framestamp/internal/media"
	"github.com/smazurov/framestamp/internal/transcode"
)

type frame struct {
	f *astiav.Frame
}

func (f *frame) PTS() int64 {
	return f.f.Pts()
}

func (f *frame) SetPTS(pts int64) {
	f.f.SetPts(pts)
}

func (f *frame) ForceKeyframe() {
	f.f.SetPictureType(astiav.PictureTypeI)
}

type packet struct {
	p *astiav.Packet
}

func (p *packet) StreamIndex() int {
	return p.p.StreamIndex()
}

func (p *packet) SetStreamIndex(index int) {
	p.p.SetStreamIndex(index)
}

func (p *packet) RescaleTs(from, to media.Rational) {
	p.p.RescaleTs(toAV(from), toAV(to))
}

func avFrame(f transcode.Frame) (*astiav.Frame, error) {
	fr, ok := f.(*frame)
	if !ok {
		return nil, fmt.Errorf("libav: unsupported frame type %T", f)
	}
	return fr.f, nil
}

func avPacket(p transcode.Packet) (*astiav.Packet, error) {
	pk, ok := p.(*packet)
	if !ok {
		return nil, fmt.Errorf("libav: unsupported packet type %T", p)
	}
	return pk.p, nil
}
