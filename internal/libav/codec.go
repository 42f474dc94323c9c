package libav

import (
	"github.com/asticode/go-astiav"

	"github.com/smazurov/framestamp/internal/transcode"
)

type decoder struct {
	cc    *astiav.CodecContext
	frame frame
}

func newDecoder(cc *astiav.CodecContext) *decoder {
	return &decoder{cc: cc, frame: frame{f: astiav.AllocFrame()}}
}

func (d *decoder) Params() transcode.VideoParams {
	return transcode.VideoParams{
		Width:           d.cc.Width(),
		Height:          d.cc.Height(),
		PixelFormat:     int(d.cc.PixelFormat()),
		PixelFormatName: d.cc.PixelFormat().String(),
		SampleAspect:    fromAV(d.cc.SampleAspectRatio()),
		FrameRate:       fromAV(d.cc.Framerate()),
		TimeBase:        fromAV(d.cc.TimeBase()),
	}
}

func (d *decoder) SendPacket(p transcode.Packet) error {
	pkt, err := avPacket(p)
	if err != nil {
		return err
	}
	return d.cc.SendPacket(pkt)
}

func (d *decoder) SendEOF() error {
	return d.cc.SendPacket(nil)
}

func (d *decoder) ReceiveFrame() (transcode.Frame, error) {
	d.frame.f.Unref()
	if err := d.cc.ReceiveFrame(d.frame.f); err != nil {
		return nil, codecError(err)
	}
	return &d.frame, nil
}

func (d *decoder) Close() {
	d.frame.f.Free()
	d.cc.Free()
}

type encoder struct {
	cc  *astiav.CodecContext
	pkt packet
}

func newEncoder(cc *astiav.CodecContext) *encoder {
	return &encoder{cc: cc, pkt: packet{p: astiav.AllocPacket()}}
}

func (e *encoder) SendFrame(f transcode.Frame) error {
	fr, err := avFrame(f)
	if err != nil {
		return err
	}
	return e.cc.SendFrame(fr)
}

func (e *encoder) SendEOF() error {
	return e.cc.SendFrame(nil)
}

func (e *encoder) ReceivePacket() (transcode.Packet, error) {
	e.pkt.p.Unref()
	if err := e.cc.ReceivePacket(e.pkt.p); err != nil {
		return nil, codecError(err)
	}
	return &e.pkt, nil
}

func (e *encoder) Close() {
	e.pkt.p.Free()
	e.cc.Free()
}
