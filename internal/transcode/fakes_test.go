package transcode

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"os"

	"github.com/smazurov/framestamp/internal/ffmpeg"
	"github.com/smazurov/framestamp/internal/media"
	"github.com/smazurov/framestamp/internal/recognition"
)

const (
	fakeWidth  = 64
	fakeHeight = 30
)

var (
	tb90k = media.NewRational(1, 90000)
	tbMs  = media.NewRational(1, 1000)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeFrame carries the text a real frame would show in its watermark band.
type fakeFrame struct {
	pts      int64
	stamp    string
	key      bool
	filtered bool
}

func (f *fakeFrame) PTS() int64       { return f.pts }
func (f *fakeFrame) SetPTS(pts int64) { f.pts = pts }
func (f *fakeFrame) ForceKeyframe()   { f.key = true }

type fakePacket struct {
	stream int
	pts    int64
	stamp  string
}

func (p *fakePacket) StreamIndex() int         { return p.stream }
func (p *fakePacket) SetStreamIndex(index int) { p.stream = index }
func (p *fakePacket) RescaleTs(from, to media.Rational) {
	p.pts = rescale(p.pts, from, to)
}

// rescale converts ts between time bases like av_rescale_q: nearest value,
// halves away from zero, NoPTS passed through.
func rescale(ts int64, from, to media.Rational) int64 {
	if ts == media.NoPTS || !from.Valid() || !to.Valid() {
		return ts
	}
	num := new(big.Int).Mul(big.NewInt(ts), big.NewInt(int64(from.Num)*int64(to.Den)))
	den := big.NewInt(int64(from.Den) * int64(to.Num))
	if den.Sign() < 0 {
		num.Neg(num)
		den.Neg(den)
	}

	twice := new(big.Int).Lsh(num, 1)
	if twice.Sign() >= 0 {
		twice.Add(twice, den)
	} else {
		twice.Sub(twice, den)
	}
	q := new(big.Int).Quo(twice, new(big.Int).Lsh(den, 1))
	if !q.IsInt64() {
		return media.NoPTS
	}
	return q.Int64()
}

// fakeDecoder holds back delay frames until it is flushed.
type fakeDecoder struct {
	params  VideoParams
	delay   int
	failAt  int
	sent    int
	pending []*fakeFrame
	eof     bool
	closed  bool
}

func (d *fakeDecoder) Params() VideoParams { return d.params }

func (d *fakeDecoder) SendPacket(pkt Packet) error {
	d.sent++
	if d.failAt == d.sent {
		return errors.New("invalid data found when processing input")
	}
	p := pkt.(*fakePacket)
	d.pending = append(d.pending, &fakeFrame{pts: p.pts, stamp: p.stamp})
	return nil
}

func (d *fakeDecoder) SendEOF() error {
	d.eof = true
	return nil
}

func (d *fakeDecoder) ReceiveFrame() (Frame, error) {
	if len(d.pending) == 0 {
		if d.eof {
			return nil, media.ErrEOF
		}
		return nil, media.ErrAgain
	}
	if !d.eof && len(d.pending) <= d.delay {
		return nil, media.ErrAgain
	}
	f := d.pending[0]
	d.pending = d.pending[1:]
	return f, nil
}

func (d *fakeDecoder) Close() { d.closed = true }

// fakeEncoder records every frame it was given.
type fakeEncoder struct {
	delay   int
	frames  []fakeFrame
	pending []*fakePacket
	eof     bool
	closed  bool
}

func (e *fakeEncoder) SendFrame(frame Frame) error {
	f := frame.(*fakeFrame)
	e.frames = append(e.frames, *f)
	e.pending = append(e.pending, &fakePacket{pts: f.pts, stamp: f.stamp})
	return nil
}

func (e *fakeEncoder) SendEOF() error {
	e.eof = true
	return nil
}

func (e *fakeEncoder) ReceivePacket() (Packet, error) {
	if len(e.pending) == 0 {
		if e.eof {
			return nil, media.ErrEOF
		}
		return nil, media.ErrAgain
	}
	if !e.eof && len(e.pending) <= e.delay {
		return nil, media.ErrAgain
	}
	p := e.pending[0]
	e.pending = e.pending[1:]
	return p, nil
}

func (e *fakeEncoder) Close() { e.closed = true }

type fakeInput struct {
	streams  []StreamInfo
	best     int
	metadata map[string]string
	packets  []*fakePacket
	readErr  error
	decDelay int
	decFail  int
	decErr   error
	onRead   func(n int)

	next     int
	decoders map[int]*fakeDecoder
	closed   bool
}

func (in *fakeInput) Streams() []StreamInfo       { return in.streams }
func (in *fakeInput) BestVideoStream() int        { return in.best }
func (in *fakeInput) Metadata() map[string]string { return in.metadata }

func (in *fakeInput) OpenDecoder(index int) (Decoder, error) {
	if in.decErr != nil {
		return nil, in.decErr
	}
	d := &fakeDecoder{
		params: VideoParams{Width: fakeWidth, Height: fakeHeight, PixelFormatName: "yuv420p"},
		delay:  in.decDelay,
		failAt: in.decFail,
	}
	if in.decoders == nil {
		in.decoders = make(map[int]*fakeDecoder)
	}
	in.decoders[index] = d
	return d, nil
}

func (in *fakeInput) ReadPacket() (Packet, error) {
	if in.readErr != nil {
		return nil, in.readErr
	}
	if in.next >= len(in.packets) {
		return nil, media.ErrEOF
	}
	p := in.packets[in.next]
	in.next++
	if in.onRead != nil {
		in.onRead(in.next)
	}
	return p, nil
}

func (in *fakeInput) Close() { in.closed = true }

type fakeOutput struct {
	path       string
	timeBases  []media.Rational
	encDelay   int
	addErr     error
	headerErr  error
	writeErr   error
	trailerErr error

	encoders       []*fakeEncoder
	encParams      []ffmpeg.EncoderParams
	streamParams   []VideoParams
	metadata       map[string]string
	headerOpts     map[string]string
	headerWritten  bool
	trailerWritten bool
	closed         bool
	written        []fakePacket
}

func (o *fakeOutput) AddVideoStream(params VideoParams, enc ffmpeg.EncoderParams) (Encoder, error) {
	if o.addErr != nil {
		return nil, o.addErr
	}
	e := &fakeEncoder{delay: o.encDelay}
	o.encoders = append(o.encoders, e)
	o.encParams = append(o.encParams, enc)
	o.streamParams = append(o.streamParams, params)
	return e, nil
}

func (o *fakeOutput) SetMetadata(md map[string]string) { o.metadata = md }

func (o *fakeOutput) WriteHeader(options map[string]string) error {
	if o.headerErr != nil {
		return o.headerErr
	}
	o.headerOpts = options
	o.headerWritten = true
	return nil
}

// StreamTimeBase mimics the muxer: time bases are settled by the header.
func (o *fakeOutput) StreamTimeBase(index int) media.Rational {
	if !o.headerWritten {
		return media.Rational{}
	}
	if index < len(o.timeBases) {
		return o.timeBases[index]
	}
	return tbMs
}

func (o *fakeOutput) WriteInterleaved(pkt Packet) error {
	if o.writeErr != nil {
		return o.writeErr
	}
	o.written = append(o.written, *pkt.(*fakePacket))
	return nil
}

func (o *fakeOutput) WriteTrailer() error {
	if o.trailerErr != nil {
		return o.trailerErr
	}
	o.trailerWritten = true
	return nil
}

func (o *fakeOutput) Close() error {
	o.closed = true
	return nil
}

func (o *fakeOutput) ptsOf(stream int) []int64 {
	var out []int64
	for _, p := range o.written {
		if p.stream == stream {
			out = append(out, p.pts)
		}
	}
	return out
}

type fakeFilter struct {
	description string
	applied     int
	closed      bool
}

func (f *fakeFilter) Apply(frame Frame) (Frame, error) {
	ff := frame.(*fakeFrame)
	ff.filtered = true
	f.applied++
	return ff, nil
}

func (f *fakeFilter) Close() { f.closed = true }

// fakeRasterizer writes the frame's stamp into the first pixel row, inside the band.
type fakeRasterizer struct {
	closed bool
}

func (r *fakeRasterizer) RGB(frame Frame) (recognition.Raster, error) {
	ff := frame.(*fakeFrame)
	stride := fakeWidth * 3
	pix := make([]byte, stride*fakeHeight)
	copy(pix[:stride], ff.stamp)
	return recognition.Raster{Pix: pix, Width: fakeWidth, Height: fakeHeight, Channels: 3, Stride: stride}, nil
}

func (r *fakeRasterizer) Close() { r.closed = true }

type fakeEngine struct {
	err    error
	calls  int
	closed bool
}

func (e *fakeEngine) Recognize(band recognition.Raster) (string, error) {
	e.calls++
	if e.err != nil {
		return "", e.err
	}
	row := band.Pix[:band.Width*band.Channels]
	if i := bytes.IndexByte(row, 0); i >= 0 {
		row = row[:i]
	}
	return string(row), nil
}

func (e *fakeEngine) Close() error {
	e.closed = true
	return nil
}

type fakeBackend struct {
	input         *fakeInput
	output        *fakeOutput
	openInputErr  error
	openOutputErr error
	filterErr     error

	filters     []*fakeFilter
	rasterizers []*fakeRasterizer
	engines     []*fakeEngine
	engineErr   error
}

func (b *fakeBackend) OpenInput(_ string) (Input, error) {
	if b.openInputErr != nil {
		return nil, b.openInputErr
	}
	return b.input, nil
}

func (b *fakeBackend) OpenOutput(path string) (Output, error) {
	if b.openOutputErr != nil {
		return nil, b.openOutputErr
	}
	if err := os.WriteFile(path, []byte("DKIF"), 0o600); err != nil {
		return nil, err
	}
	b.output.path = path
	return b.output, nil
}

func (b *fakeBackend) NewOverlayFilter(_ VideoParams, description string) (FrameFilter, error) {
	if b.filterErr != nil {
		return nil, b.filterErr
	}
	f := &fakeFilter{description: description}
	b.filters = append(b.filters, f)
	return f, nil
}

func (b *fakeBackend) NewRasterizer(_ VideoParams) (Rasterizer, error) {
	r := &fakeRasterizer{}
	b.rasterizers = append(b.rasterizers, r)
	return r, nil
}

func (b *fakeBackend) newEngine() (recognition.Engine, error) {
	if b.engineErr != nil {
		return nil, b.engineErr
	}
	e := &fakeEngine{}
	b.engines = append(b.engines, e)
	return e, nil
}

// videoInput builds an input with one 90kHz video stream and one audio
// stream, interleaving an audio packet after every video packet.
func videoInput(stamps ...string) *fakeInput {
	in := &fakeInput{
		streams: []StreamInfo{
			{Index: 0, MediaType: media.MediaTypeVideo, TimeBase: tb90k, Frames: int64(len(stamps))},
			{Index: 1, MediaType: media.MediaTypeAudio, TimeBase: media.NewRational(1, 48000)},
		},
		best:     0,
		metadata: map[string]string{"title": "bench capture"},
	}
	for i, s := range stamps {
		in.packets = append(in.packets,
			&fakePacket{stream: 0, pts: int64(i) * 3600, stamp: s},
			&fakePacket{stream: 1, pts: int64(i) * 1920},
		)
	}
	return in
}

func newFakeBackend(in *fakeInput) *fakeBackend {
	return &fakeBackend{input: in, output: &fakeOutput{}}
}
