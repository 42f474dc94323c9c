package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/framestamp/internal/events"
	"github.com/smazurov/framestamp/internal/ffmpeg"
	"github.com/smazurov/framestamp/internal/logging"
	"github.com/smazurov/framestamp/internal/media"
	"github.com/smazurov/framestamp/internal/recognition"
)

// EngineFactory creates a text recognition engine for one carried stream.
type EngineFactory func() (recognition.Engine, error)

// Options configures a Pipeline. The zero value of every field except Mode
// falls back to a default.
type Options struct {
	Mode        media.Mode
	WatermarkID string
	FontFile    string
	Policy      OutputPolicy
	Encoder     ffmpeg.EncoderParams

	ProgressFrames   int
	ProgressInterval time.Duration
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithEventBus publishes run events on bus.
func WithEventBus(bus *events.Bus) Option {
	return func(p *Pipeline) { p.bus = bus }
}

// WithLogger replaces the pipeline logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithEngineFactory sets how recognition engines are created. Required in recognize mode.
func WithEngineFactory(f EngineFactory) Option {
	return func(p *Pipeline) { p.newEngine = f }
}

// WithParser replaces the stamp pattern used in recognize mode.
func WithParser(parser *recognition.Parser) Option {
	return func(p *Pipeline) { p.parser = parser }
}

// WithClock replaces the wall clock used for progress throttling and durations.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// Pipeline runs captures through one mode. A Pipeline is reusable but runs
// must not overlap.
type Pipeline struct {
	backend   Backend
	opts      Options
	newEngine EngineFactory
	parser    *recognition.Parser
	bus       *events.Bus
	logger    *slog.Logger
	now       func() time.Time
}

// New validates opts and creates a pipeline.
func New(backend Backend, opts Options, options ...Option) (*Pipeline, error) {
	if backend == nil {
		return nil, errors.New("transcode: nil backend")
	}
	if opts.Mode != media.ModeWatermark && opts.Mode != media.ModeRecognize {
		return nil, fmt.Errorf("transcode: invalid mode %d", opts.Mode)
	}
	if opts.WatermarkID == "" {
		opts.WatermarkID = ffmpeg.DefaultWatermarkID
	}
	if !ValidWatermarkID(opts.WatermarkID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidWatermarkID, opts.WatermarkID)
	}
	if opts.FontFile == "" {
		opts.FontFile = ffmpeg.DefaultFontFile
	}
	if opts.Encoder.Codec == "" {
		opts.Encoder = ffmpeg.DefaultEncoderParams()
	}
	if err := opts.Encoder.Validate(); err != nil {
		return nil, fmt.Errorf("transcode: encoder: %w", err)
	}
	if opts.ProgressFrames <= 0 {
		opts.ProgressFrames = DefaultProgressFrames
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}

	p := &Pipeline{
		backend: backend,
		opts:    opts,
		logger:  logging.GetLogger("pipeline"),
		now:     time.Now,
	}
	for _, o := range options {
		o(p)
	}
	if opts.Mode == media.ModeRecognize && p.newEngine == nil {
		return nil, errors.New("transcode: recognize mode requires an engine factory")
	}
	return p, nil
}

// Mode returns the mode every run of this pipeline uses.
func (p *Pipeline) Mode() media.Mode { return p.opts.Mode }

// Run processes one capture. Cancelling ctx stops reading new packets; frames
// already read are still flushed and the trailer is still written, so the
// returned Summary describes a valid, shorter output.
//
// A *RenameError is returned together with a complete Summary. Any other error
// is fatal and the output, if it exists, is incomplete.
func (p *Pipeline) Run(ctx context.Context, input string) (summary *Summary, err error) {
	start := p.now()
	summary = &Summary{
		RunID:  uuid.NewString(),
		Mode:   p.opts.Mode,
		Input:  input,
		Output: OutputPath(input, p.opts.Mode),
	}
	logger := p.logger.With("run_id", summary.RunID, "input", input, "mode", p.opts.Mode.String())

	defer func() {
		summary.Duration = p.now().Sub(start)
		p.complete(summary, err)
	}()

	if err := checkCollision(summary.Output, p.opts.Policy); err != nil {
		return summary, err
	}
	lock, err := lockOutput(summary.Output)
	if err != nil {
		return summary, err
	}
	defer lock.release()

	in, err := p.backend.OpenInput(input)
	if err != nil {
		return summary, fmt.Errorf("%w: input %s: %w", ErrOpen, input, err)
	}
	defer in.Close()

	out, err := p.backend.OpenOutput(summary.Output)
	if err != nil {
		return summary, fmt.Errorf("%w: output %s: %w", ErrOpen, summary.Output, err)
	}
	outClosed := false
	defer func() {
		if !outClosed {
			_ = out.Close()
		}
	}()

	streams := in.Streams()
	types := make([]media.MediaType, len(streams))
	for i, st := range streams {
		types[i] = st.MediaType
	}
	mapping := media.NewStreamMapping(types)
	best := in.BestVideoStream()

	transcoders := make(map[int]*Transcoder, mapping.Carried())
	defer func() {
		for _, tc := range transcoders {
			tc.Close()
		}
	}()
	for _, st := range streams {
		ost, ok := mapping.Output(st.Index)
		if !ok {
			logger.Debug("Skipping stream", "stream", st.Index, "type", st.MediaType.String())
			continue
		}
		tc, err := p.newTranscoder(in, out, st, ost, st.Index == best, summary.RunID, logger)
		if err != nil {
			return summary, err
		}
		transcoders[st.Index] = tc
	}
	if len(transcoders) == 0 {
		return summary, fmt.Errorf("%w: %s", ErrNoVideo, input)
	}

	out.SetMetadata(in.Metadata())
	if err := out.WriteHeader(map[string]string{"movflags": "faststart"}); err != nil {
		return summary, fmt.Errorf("%w: %w", ErrHeader, err)
	}
	outTBs := make([]media.Rational, mapping.Carried())
	for i := range outTBs {
		outTBs[i] = out.StreamTimeBase(i)
	}

	p.publish(events.RunStartedEvent{
		RunID:     summary.RunID,
		Mode:      p.opts.Mode.String(),
		Input:     input,
		Output:    summary.Output,
		Streams:   len(transcoders),
		Timestamp: time.Now().Format(time.RFC3339),
	})
	summary.started = true
	logger.Info("Processing capture", "output", summary.Output, "streams", len(transcoders), "best_stream", best)

	cancelled, err := p.demux(ctx, in, out, mapping, transcoders, outTBs)
	summary.Cancelled = cancelled
	defer func() { summary.Streams = summarize(transcoders) }()
	if err != nil {
		return summary, err
	}
	if cancelled {
		logger.Info("Stop requested, finishing output")
	}

	for idx, tc := range transcoders {
		ost, _ := mapping.Output(idx)
		if err := tc.Flush(out, outTBs[ost]); err != nil {
			return summary, err
		}
	}

	if err := out.WriteTrailer(); err != nil {
		return summary, fmt.Errorf("%w: %w", ErrTrailer, err)
	}
	outClosed = true
	if err := out.Close(); err != nil {
		return summary, fmt.Errorf("%w: close %s: %w", ErrTrailer, summary.Output, err)
	}

	if p.opts.Mode != media.ModeRecognize {
		return summary, nil
	}
	summary.Streams = summarize(transcoders)
	id, ok := summary.Identity()
	if !ok {
		logger.Warn("No watermark recognized, keeping output name", "output", summary.Output)
		return summary, nil
	}
	return summary, p.rename(summary, id, logger)
}

func (p *Pipeline) demux(ctx context.Context, in Input, mux Muxer, mapping media.StreamMapping,
	transcoders map[int]*Transcoder, outTBs []media.Rational,
) (bool, error) {
	for {
		select {
		case <-ctx.Done():
			return true, nil
		default:
		}

		pkt, err := in.ReadPacket()
		if errors.Is(err, media.ErrEOF) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("%w: %w", ErrDemux, err)
		}

		ost, ok := mapping.Output(pkt.StreamIndex())
		if !ok {
			continue
		}
		tc := transcoders[pkt.StreamIndex()]
		if err := tc.Feed(pkt); err != nil {
			return false, err
		}
		if err := tc.DrainDecoded(mux, outTBs[ost]); err != nil {
			return false, err
		}
	}
}

func (p *Pipeline) newTranscoder(in Input, out Output, st StreamInfo, ost int, best bool,
	runID string, logger *slog.Logger,
) (*Transcoder, error) {
	dec, err := in.OpenDecoder(st.Index)
	if err != nil {
		return nil, fmt.Errorf("%w: decoder for stream %d: %w", ErrCodec, st.Index, err)
	}
	params := dec.Params()
	params.TimeBase = st.TimeBase

	enc, err := out.AddVideoStream(params, p.opts.Encoder)
	if err != nil {
		dec.Close()
		return nil, fmt.Errorf("%w: encoder for stream %d: %w", ErrCodec, st.Index, err)
	}

	tr, err := p.newTransform(params)
	if err != nil {
		enc.Close()
		dec.Close()
		return nil, err
	}

	tc := &Transcoder{
		input:       st.Index,
		output:      ost,
		timeBase:    st.TimeBase,
		totalFrames: st.Frames,
		decoder:     dec,
		encoder:     enc,
		transform:   tr,
		logger:      logger.With("stream", st.Index),
		bus:         p.bus,
		runID:       runID,
		mode:        p.opts.Mode.String(),
	}
	if best {
		tc.progress = NewThrottle(p.opts.ProgressFrames, p.opts.ProgressInterval, p.now)
	}
	return tc, nil
}

func (p *Pipeline) newTransform(params VideoParams) (transform, error) {
	switch p.opts.Mode {
	case media.ModeWatermark:
		desc := ffmpeg.BuildOverlayFilter(&ffmpeg.OverlayParams{
			Width:       params.Width,
			Height:      params.Height,
			WatermarkID: p.opts.WatermarkID,
			FontFile:    p.opts.FontFile,
		})
		filter, err := p.backend.NewOverlayFilter(params, desc)
		if err != nil {
			return nil, fmt.Errorf("%w: build graph: %w", ErrFilter, err)
		}
		return overlayTransform{filter: filter}, nil

	case media.ModeRecognize:
		rasterizer, err := p.backend.NewRasterizer(params)
		if err != nil {
			return nil, fmt.Errorf("%w: rasterizer: %w", ErrRecognize, err)
		}
		engine, err := p.newEngine()
		if err != nil {
			rasterizer.Close()
			return nil, fmt.Errorf("%w: engine: %w", ErrRecognize, err)
		}
		return recognizeTransform{
			rasterizer: rasterizer,
			reader:     recognition.NewReader(engine, p.parser),
		}, nil

	default:
		return nil, fmt.Errorf("transcode: invalid mode %d", p.opts.Mode)
	}
}

func (p *Pipeline) rename(summary *Summary, id int, logger *slog.Logger) error {
	target := IdentityPath(summary.Input, id)
	if samePath(target, summary.Input) {
		err := fmt.Errorf("%w: %s is the input", ErrOutputCollision, target)
		return &RenameError{From: summary.Output, To: target, Err: err}
	}
	if err := checkCollision(target, p.opts.Policy); err != nil {
		return &RenameError{From: summary.Output, To: target, Err: err}
	}
	if err := os.Rename(summary.Output, target); err != nil {
		return &RenameError{From: summary.Output, To: target, Err: err}
	}
	logger.Info("Renamed output", "from", summary.Output, "to", target, "watermark_id", id)
	summary.Output = target
	return nil
}

func (p *Pipeline) complete(summary *Summary, err error) {
	ev := events.RunCompletedEvent{
		RunID:           summary.RunID,
		Mode:            summary.Mode.String(),
		Input:           summary.Input,
		Output:          summary.Output,
		Frames:          summary.TotalFrames(),
		Rejected:        summary.TotalFailed(),
		Cancelled:       summary.Cancelled,
		Started:         summary.started,
		DurationSeconds: summary.Duration.Seconds(),
		Timestamp:       time.Now().Format(time.RFC3339),
	}
	ev.WatermarkID, ev.Identified = summary.Identity()

	var renameErr *RenameError
	switch {
	case err == nil:
	case errors.As(err, &renameErr):
		p.logger.Warn("Output produced but not renamed", "run_id", summary.RunID, "error", err)
	default:
		ev.Error = err.Error()
		p.logger.Error("Run failed", "run_id", summary.RunID, "input", summary.Input, "error", err)
	}
	p.publish(ev)
}

func (p *Pipeline) publish(ev events.Event) {
	if p.bus != nil {
		p.bus.Publish(ev)
	}
}

func summarize(transcoders map[int]*Transcoder) []StreamSummary {
	out := make([]StreamSummary, 0, len(transcoders))
	for _, tc := range transcoders {
		id, ok := tc.RecognizedID()
		out = append(out, StreamSummary{
			Input:        tc.Input(),
			Output:       tc.Output(),
			Best:         tc.progress != nil,
			Frames:       tc.Frames(),
			Failed:       tc.FailedFrames(),
			Identified:   ok,
			RecognizedID: id,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Output < out[j].Output })
	return out
}
