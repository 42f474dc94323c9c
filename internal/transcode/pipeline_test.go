package transcode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/smazurov/framestamp/internal/events"
	"github.com/smazurov/framestamp/internal/ffmpeg"
	"github.com/smazurov/framestamp/internal/media"
)

func newTestPipeline(t *testing.T, b *fakeBackend, opts Options, options ...Option) *Pipeline {
	t.Helper()
	options = append([]Option{WithLogger(discardLogger()), WithEngineFactory(b.newEngine)}, options...)
	p, err := New(b, opts, options...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestRunWatermark(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "clip.mp4")

	in := videoInput("", "", "", "", "")
	in.decDelay = 2
	b := newFakeBackend(in)
	b.output.encDelay = 1
	p := newTestPipeline(t, b, Options{Mode: media.ModeWatermark, WatermarkID: "42"})

	summary, err := p.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantOutput := filepath.Join(dir, "clip.w.ivf")
	if summary.Output != wantOutput {
		t.Errorf("Expected output %s, got %s", wantOutput, summary.Output)
	}
	if !fileExists(wantOutput) {
		t.Errorf("Expected %s to exist", wantOutput)
	}
	if fileExists(wantOutput + ".lock") {
		t.Error("Expected lock file to be removed")
	}

	if got := b.output.ptsOf(0); !slices.Equal(got, []int64{0, 40, 80, 120, 160}) {
		t.Errorf("Expected output pts [0 40 80 120 160], got %v", got)
	}
	if len(b.output.written) != 5 {
		t.Errorf("Expected only video packets to be written, got %d packets", len(b.output.written))
	}
	if _, ok := in.decoders[1]; ok {
		t.Error("Audio stream should not get a decoder")
	}

	if len(b.filters) != 1 {
		t.Fatalf("Expected 1 overlay filter, got %d", len(b.filters))
	}
	if b.filters[0].applied != 5 {
		t.Errorf("Expected filter applied to 5 frames, got %d", b.filters[0].applied)
	}
	if !strings.Contains(b.filters[0].description, "text='42-") {
		t.Errorf("Expected filter text with id 42, got %s", b.filters[0].description)
	}
	for i, f := range b.output.encoders[0].frames {
		if !f.filtered {
			t.Errorf("Frame %d reached the encoder without the overlay", i)
		}
	}

	if b.output.headerOpts["movflags"] != "faststart" {
		t.Errorf("Expected movflags=faststart header option, got %v", b.output.headerOpts)
	}
	if b.output.metadata["title"] != "bench capture" {
		t.Errorf("Expected container metadata to be copied, got %v", b.output.metadata)
	}
	if got := b.output.encParams[0]; got.GOP != 1 || got.Codec != ffmpeg.DefaultCodec {
		t.Errorf("Expected default intra-only encoder params, got %+v", got)
	}
	if !b.output.trailerWritten || !b.output.closed || !in.closed {
		t.Error("Expected trailer written and both containers closed")
	}
	if !in.decoders[0].closed || !b.output.encoders[0].closed || !b.filters[0].closed {
		t.Error("Expected codecs and filter to be released")
	}

	if summary.TotalFrames() != 5 || summary.TotalFailed() != 0 || summary.Cancelled {
		t.Errorf("Unexpected summary %+v", summary)
	}
	if len(summary.Streams) != 1 || !summary.Streams[0].Best {
		t.Errorf("Expected one best stream in summary, got %+v", summary.Streams)
	}
}

func TestRunRecognizeRenamesOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "clip.w.ivf")

	in := videoInput("42-0", "42-40", "7?4O", "42-120")
	// Original timestamps are meaningless after a re-capture.
	for _, pkt := range in.packets {
		pkt.pts = 999
	}
	in.decDelay = 1
	b := newFakeBackend(in)
	b.output.encDelay = 2
	p := newTestPipeline(t, b, Options{Mode: media.ModeRecognize})

	summary, err := p.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := b.output.ptsOf(0); !slices.Equal(got, []int64{0, 40, 120}) {
		t.Errorf("Expected recovered pts [0 40 120], got %v", got)
	}
	for i, f := range b.output.encoders[0].frames {
		if !f.key {
			t.Errorf("Recognized frame %d was not forced to a keyframe", i)
		}
	}
	if summary.TotalFrames() != 4 || summary.TotalFailed() != 1 {
		t.Errorf("Expected 4 frames with 1 failed, got %d/%d", summary.TotalFrames(), summary.TotalFailed())
	}

	want := filepath.Join(dir, "clip.42.ivf")
	if summary.Output != want {
		t.Errorf("Expected output renamed to %s, got %s", want, summary.Output)
	}
	if !fileExists(want) {
		t.Errorf("Expected %s to exist", want)
	}
	if fileExists(filepath.Join(dir, "clip.w.r.ivf")) {
		t.Error("Expected intermediate output to be renamed away")
	}
	if id, ok := summary.Identity(); !ok || id != 42 {
		t.Errorf("Expected identity 42, got %d (%v)", id, ok)
	}
	if len(b.engines) != 1 || !b.engines[0].closed || !b.rasterizers[0].closed {
		t.Error("Expected recognition engine and rasterizer to be released")
	}
}

func TestRunRecognizeFirstIdentityWins(t *testing.T) {
	dir := t.TempDir()
	b := newFakeBackend(videoInput("42-0", "7-40", "7-80"))
	p := newTestPipeline(t, b, Options{Mode: media.ModeRecognize})

	summary, err := p.Run(context.Background(), filepath.Join(dir, "cap.mp4"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if id, _ := summary.Identity(); id != 42 {
		t.Errorf("Expected first recognized id 42 to be kept, got %d", id)
	}
	if got := len(b.output.written); got != 3 {
		t.Errorf("Expected all 3 recognized frames encoded, got %d", got)
	}
	if summary.Output != filepath.Join(dir, "cap.42.ivf") {
		t.Errorf("Unexpected output %s", summary.Output)
	}
}

func TestRunRecognizeWithoutIdentityKeepsName(t *testing.T) {
	dir := t.TempDir()
	b := newFakeBackend(videoInput("", "--", "abc"))
	p := newTestPipeline(t, b, Options{Mode: media.ModeRecognize})

	summary, err := p.Run(context.Background(), filepath.Join(dir, "cap.mp4"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := filepath.Join(dir, "cap.r.ivf")
	if summary.Output != want || !fileExists(want) {
		t.Errorf("Expected output to stay at %s, got %s", want, summary.Output)
	}
	if summary.TotalFailed() != 3 {
		t.Errorf("Expected 3 failed frames, got %d", summary.TotalFailed())
	}
	if len(b.output.written) != 0 {
		t.Errorf("Unrecognized frames must not be encoded, got %d packets", len(b.output.written))
	}
	if !b.output.trailerWritten {
		t.Error("Expected trailer to be written")
	}
}

func TestRunCancellation(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := videoInput("", "", "", "", "")
	in.decDelay = 2
	// Cancel once the second video packet (third packet overall) is read.
	in.onRead = func(n int) {
		if n == 3 {
			cancel()
		}
	}
	b := newFakeBackend(in)
	b.output.encDelay = 1
	p := newTestPipeline(t, b, Options{Mode: media.ModeWatermark})

	summary, err := p.Run(ctx, filepath.Join(dir, "cap.mp4"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !summary.Cancelled {
		t.Error("Expected summary to be marked cancelled")
	}
	if got := in.decoders[0].sent; got != 2 {
		t.Errorf("Expected 2 packets decoded before stop, got %d", got)
	}
	if got := b.output.ptsOf(0); !slices.Equal(got, []int64{0, 40}) {
		t.Errorf("Expected buffered frames to be flushed, got pts %v", got)
	}
	if !b.output.trailerWritten {
		t.Error("Expected trailer to be written after cancellation")
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := videoInput("", "")
	b := newFakeBackend(in)
	p := newTestPipeline(t, b, Options{Mode: media.ModeWatermark})

	summary, err := p.Run(ctx, filepath.Join(dir, "cap.mp4"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if in.next != 0 {
		t.Errorf("Expected no packets read, got %d", in.next)
	}
	if !summary.Cancelled || summary.TotalFrames() != 0 || !b.output.trailerWritten {
		t.Errorf("Expected empty but finalized output, got %+v", summary)
	}
}

func TestRunOutputPolicy(t *testing.T) {
	tests := []struct {
		name    string
		policy  OutputPolicy
		wantErr error
	}{
		{"overwrite replaces existing output", PolicyOverwrite, nil},
		{"fail rejects existing output", PolicyFail, ErrOutputCollision},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			input := filepath.Join(dir, "cap.mp4")
			if err := os.WriteFile(filepath.Join(dir, "cap.w.ivf"), []byte("old"), 0o600); err != nil {
				t.Fatal(err)
			}

			b := newFakeBackend(videoInput("", ""))
			p := newTestPipeline(t, b, Options{Mode: media.ModeWatermark, Policy: tt.policy})

			_, err := p.Run(context.Background(), input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr != nil && b.input.next != 0 {
				t.Error("Input should not be read when the output collides")
			}
			if tt.wantErr == nil && len(b.output.written) != 2 {
				t.Errorf("Expected 2 packets written, got %d", len(b.output.written))
			}
		})
	}
}

func TestRunOutputLocked(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "cap.mp4")

	held := flock.New(filepath.Join(dir, "cap.w.ivf.lock"))
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock() = %v, %v", ok, err)
	}
	defer held.Unlock()

	b := newFakeBackend(videoInput(""))
	p := newTestPipeline(t, b, Options{Mode: media.ModeWatermark})

	if _, err := p.Run(context.Background(), input); !errors.Is(err, ErrOutputLocked) {
		t.Fatalf("Expected ErrOutputLocked, got %v", err)
	}
	if b.output.path != "" {
		t.Error("Output should not be opened while locked")
	}
}

func TestRunFatalErrors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name    string
		setup   func(b *fakeBackend)
		wantErr error
	}{
		{"open input", func(b *fakeBackend) { b.openInputErr = boom }, ErrOpen},
		{"open output", func(b *fakeBackend) { b.openOutputErr = boom }, ErrOpen},
		{"no video", func(b *fakeBackend) {
			b.input.streams = []StreamInfo{{Index: 0, MediaType: media.MediaTypeAudio}}
			b.input.packets = nil
		}, ErrNoVideo},
		{"decoder", func(b *fakeBackend) { b.input.decErr = boom }, ErrCodec},
		{"encoder", func(b *fakeBackend) { b.output.addErr = boom }, ErrCodec},
		{"filter graph", func(b *fakeBackend) { b.filterErr = boom }, ErrFilter},
		{"header", func(b *fakeBackend) { b.output.headerErr = boom }, ErrHeader},
		{"demux", func(b *fakeBackend) { b.input.readErr = boom }, ErrDemux},
		{"decode", func(b *fakeBackend) { b.input.decFail = 2 }, ErrDecode},
		{"mux", func(b *fakeBackend) { b.output.writeErr = boom }, ErrMux},
		{"trailer", func(b *fakeBackend) { b.output.trailerErr = boom }, ErrTrailer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBackend(videoInput("", "", ""))
			tt.setup(b)
			p := newTestPipeline(t, b, Options{Mode: media.ModeWatermark})

			summary, err := p.Run(context.Background(), filepath.Join(t.TempDir(), "cap.mp4"))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
			if summary == nil {
				t.Fatal("Expected a summary even on failure")
			}
			if tt.wantErr != ErrTrailer && b.output.trailerWritten {
				t.Error("Trailer must not be written after a fatal error")
			}
		})
	}
}

func TestRunEngineErrorIsFatal(t *testing.T) {
	b := newFakeBackend(videoInput("42-0"))
	b.engineErr = errors.New("tessdata not found")
	p := newTestPipeline(t, b, Options{Mode: media.ModeRecognize})

	if _, err := p.Run(context.Background(), filepath.Join(t.TempDir(), "cap.mp4")); !errors.Is(err, ErrRecognize) {
		t.Fatalf("Expected ErrRecognize, got %v", err)
	}
}

func TestRunRenameFailure(t *testing.T) {
	dir := t.TempDir()
	// A directory at the target path makes the rename fail.
	if err := os.Mkdir(filepath.Join(dir, "cap.42.ivf"), 0o755); err != nil {
		t.Fatal(err)
	}
	b := newFakeBackend(videoInput("42-0"))
	p := newTestPipeline(t, b, Options{Mode: media.ModeRecognize})

	summary, err := p.Run(context.Background(), filepath.Join(dir, "cap.mp4"))
	var renameErr *RenameError
	if !errors.As(err, &renameErr) {
		t.Fatalf("Expected *RenameError, got %v", err)
	}
	want := filepath.Join(dir, "cap.r.ivf")
	if summary.Output != want || renameErr.From != want {
		t.Errorf("Expected output to stay at %s, got %s", want, summary.Output)
	}
	if !fileExists(want) {
		t.Error("Produced output must survive a failed rename")
	}
	if summary.TotalFrames() != 1 {
		t.Errorf("Expected complete summary, got %+v", summary)
	}
}

func TestRunRenameRespectsFailPolicy(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "cap.42.ivf")
	if err := os.WriteFile(existing, []byte("keep"), 0o600); err != nil {
		t.Fatal(err)
	}
	b := newFakeBackend(videoInput("42-0"))
	p := newTestPipeline(t, b, Options{Mode: media.ModeRecognize, Policy: PolicyFail})

	_, err := p.Run(context.Background(), filepath.Join(dir, "cap.mp4"))
	var renameErr *RenameError
	if !errors.As(err, &renameErr) || !errors.Is(err, ErrOutputCollision) {
		t.Fatalf("Expected rename collision, got %v", err)
	}
	if data, _ := os.ReadFile(existing); string(data) != "keep" {
		t.Error("Existing identity file must not be replaced")
	}
}

func TestRunRenameNeverReplacesInput(t *testing.T) {
	for _, policy := range []OutputPolicy{PolicyOverwrite, PolicyFail} {
		t.Run(policy.String(), func(t *testing.T) {
			input := filepath.Join(t.TempDir(), "clip.42.ivf")
			if err := os.WriteFile(input, []byte("capture"), 0o600); err != nil {
				t.Fatal(err)
			}
			b := newFakeBackend(videoInput("42-0", "42-40"))
			p := newTestPipeline(t, b, Options{Mode: media.ModeRecognize, Policy: policy})

			summary, err := p.Run(context.Background(), input)
			var renameErr *RenameError
			if !errors.As(err, &renameErr) || !errors.Is(err, ErrOutputCollision) {
				t.Fatalf("Expected rename collision, got %v", err)
			}
			if summary.Output == input {
				t.Errorf("Expected output to keep its own name, got %s", summary.Output)
			}
			if data, _ := os.ReadFile(input); string(data) != "capture" {
				t.Errorf("Expected input to be untouched, got %q", data)
			}
		})
	}
}

func TestRunMultipleVideoStreams(t *testing.T) {
	in := &fakeInput{
		streams: []StreamInfo{
			{Index: 0, MediaType: media.MediaTypeVideo, TimeBase: tb90k},
			{Index: 1, MediaType: media.MediaTypeAudio, TimeBase: media.NewRational(1, 48000)},
			{Index: 2, MediaType: media.MediaTypeVideo, TimeBase: tbMs},
		},
		best: 2,
		packets: []*fakePacket{
			{stream: 0, pts: 0},
			{stream: 1, pts: 0},
			{stream: 2, pts: 0},
			{stream: 0, pts: 3600},
			{stream: 2, pts: 33},
		},
	}
	b := newFakeBackend(in)
	b.output.timeBases = []media.Rational{tbMs, media.NewRational(1, 90000)}
	p := newTestPipeline(t, b, Options{Mode: media.ModeWatermark})

	summary, err := p.Run(context.Background(), filepath.Join(t.TempDir(), "cap.mkv"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := b.output.ptsOf(0); !slices.Equal(got, []int64{0, 40}) {
		t.Errorf("Expected stream 0 pts [0 40], got %v", got)
	}
	if got := b.output.ptsOf(1); !slices.Equal(got, []int64{0, 2970}) {
		t.Errorf("Expected stream 2 mapped to output 1 with pts [0 2970], got %v", got)
	}
	if len(summary.Streams) != 2 || summary.Streams[1].Input != 2 || !summary.Streams[1].Best {
		t.Errorf("Unexpected stream summaries %+v", summary.Streams)
	}
	if b.output.streamParams[1].TimeBase != tbMs {
		t.Errorf("Expected encoder time base to mirror the input stream, got %v", b.output.streamParams[1].TimeBase)
	}
}

func TestRunPublishesEvents(t *testing.T) {
	bus := events.New()
	started := make(chan events.RunStartedEvent, 1)
	rejected := make(chan events.FrameRejectedEvent, 4)
	completed := make(chan events.RunCompletedEvent, 1)
	defer bus.Subscribe(func(e events.RunStartedEvent) { started <- e })()
	defer bus.Subscribe(func(e events.FrameRejectedEvent) { rejected <- e })()
	defer bus.Subscribe(func(e events.RunCompletedEvent) { completed <- e })()

	b := newFakeBackend(videoInput("42-0", "4Z-40"))
	p := newTestPipeline(t, b, Options{Mode: media.ModeRecognize}, WithEventBus(bus))

	summary, err := p.Run(context.Background(), filepath.Join(t.TempDir(), "cap.mp4"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	select {
	case e := <-started:
		if e.RunID != summary.RunID || e.Streams != 1 {
			t.Errorf("Unexpected start event %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for RunStartedEvent")
	}
	select {
	case e := <-rejected:
		if e.Text != "4Z-40" || e.Frame != 2 || e.Mode != "recognize" {
			t.Errorf("Unexpected rejection event %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for FrameRejectedEvent")
	}
	select {
	case e := <-completed:
		if e.Failed() || !e.Started || !e.Identified || e.WatermarkID != 42 || e.Rejected != 1 || e.Output != summary.Output {
			t.Errorf("Unexpected completion event %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for RunCompletedEvent")
	}
}

func TestNewValidatesOptions(t *testing.T) {
	b := newFakeBackend(videoInput())
	tests := []struct {
		name    string
		opts    Options
		options []Option
		wantErr error
	}{
		{"invalid mode", Options{}, nil, nil},
		{"id too long", Options{Mode: media.ModeWatermark, WatermarkID: "1234"}, nil, ErrInvalidWatermarkID},
		{"id not numeric", Options{Mode: media.ModeWatermark, WatermarkID: "a1"}, nil, ErrInvalidWatermarkID},
		{"recognize without engine", Options{Mode: media.ModeRecognize}, nil, nil},
		{"encoder gop", Options{Mode: media.ModeWatermark, Encoder: ffmpeg.EncoderParams{Codec: "libvpx", Bitrate: 1, GOP: 12}}, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(b, tt.opts, tt.options...)
			if err == nil {
				t.Fatal("Expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	p, err := New(b, Options{Mode: media.ModeWatermark})
	if err != nil {
		t.Fatalf("New() with defaults error = %v", err)
	}
	if p.opts.WatermarkID != ffmpeg.DefaultWatermarkID || p.opts.ProgressFrames != DefaultProgressFrames {
		t.Errorf("Expected defaults to be applied, got %+v", p.opts)
	}
	if p.Mode() != media.ModeWatermark {
		t.Errorf("Expected watermark mode, got %v", p.Mode())
	}
}
