package transcode

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/smazurov/framestamp/internal/events"
	"github.com/smazurov/framestamp/internal/media"
)

// Transcoder owns the decoder and encoder of one carried video stream and
// moves frames from one to the other through the run's transform.
type Transcoder struct {
	input       int
	output      int
	timeBase    media.Rational
	totalFrames int64

	decoder   Decoder
	encoder   Encoder
	transform transform

	// progress is nil for streams that do not report progress.
	progress *Throttle
	logger   *slog.Logger
	bus      *events.Bus
	runID    string
	mode     string

	frames     int
	failed     int
	identified bool
	identity   int

	// lastPTS is the last recovered pts sent to the encoder.
	lastPTS int64
	hasPTS  bool
}

// Input returns the input stream ordinal.
func (t *Transcoder) Input() int { return t.input }

// Output returns the output stream ordinal.
func (t *Transcoder) Output() int { return t.output }

// Frames returns the number of decoded frames so far.
func (t *Transcoder) Frames() int { return t.frames }

// FailedFrames returns the number of frames dropped because their stamp could not be read.
func (t *Transcoder) FailedFrames() int { return t.failed }

// RecognizedID returns the first watermark id read from this stream.
func (t *Transcoder) RecognizedID() (int, bool) {
	return t.identity, t.identified
}

// Feed sends one packet of this stream to the decoder.
func (t *Transcoder) Feed(pkt Packet) error {
	if err := t.decoder.SendPacket(pkt); err != nil {
		return fmt.Errorf("%w: stream %d: %w", ErrDecode, t.input, err)
	}
	return nil
}

// DrainDecoded processes every frame the decoder has ready.
func (t *Transcoder) DrainDecoded(mux Muxer, outTB media.Rational) error {
	for {
		frame, err := t.decoder.ReceiveFrame()
		if drained(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: stream %d: %w", ErrDecode, t.input, err)
		}

		t.frames++
		t.reportProgress(t.timeBase.Seconds(frame.PTS()))

		if err := t.process(frame, mux, outTB); err != nil {
			return err
		}
	}
}

// DrainEncoded writes every packet the encoder has ready.
func (t *Transcoder) DrainEncoded(mux Muxer, outTB media.Rational) error {
	for {
		pkt, err := t.encoder.ReceivePacket()
		if drained(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: stream %d: %w", ErrEncode, t.input, err)
		}

		pkt.SetStreamIndex(t.output)
		pkt.RescaleTs(t.timeBase, outTB)
		if err := mux.WriteInterleaved(pkt); err != nil {
			return fmt.Errorf("%w: stream %d: %w", ErrMux, t.output, err)
		}
	}
}

// FinishDecoder signals end of stream to the decoder.
func (t *Transcoder) FinishDecoder() error {
	if err := t.decoder.SendEOF(); err != nil {
		return fmt.Errorf("%w: flush stream %d: %w", ErrDecode, t.input, err)
	}
	return nil
}

// FinishEncoder signals end of stream to the encoder.
func (t *Transcoder) FinishEncoder() error {
	if err := t.encoder.SendEOF(); err != nil {
		return fmt.Errorf("%w: flush stream %d: %w", ErrEncode, t.input, err)
	}
	return nil
}

// Flush drains everything buffered in the decoder and then the encoder.
func (t *Transcoder) Flush(mux Muxer, outTB media.Rational) error {
	if err := t.FinishDecoder(); err != nil {
		return err
	}
	if err := t.DrainDecoded(mux, outTB); err != nil {
		return err
	}
	if err := t.FinishEncoder(); err != nil {
		return err
	}
	return t.DrainEncoded(mux, outTB)
}

// Close releases the codecs and the transform.
func (t *Transcoder) Close() {
	if t.transform != nil {
		if err := t.transform.close(); err != nil {
			t.logger.Warn("Failed to release frame transform", "error", err)
		}
	}
	t.encoder.Close()
	t.decoder.Close()
}

func (t *Transcoder) process(frame Frame, mux Muxer, outTB media.Rational) error {
	switch tr := t.transform.(type) {
	case overlayTransform:
		stamped, err := tr.filter.Apply(frame)
		if err != nil {
			return fmt.Errorf("%w: stream %d: %w", ErrFilter, t.input, err)
		}
		return t.encode(stamped, mux, outTB)

	case recognizeTransform:
		raster, err := tr.rasterizer.RGB(frame)
		if err != nil {
			return fmt.Errorf("%w: stream %d: %w", ErrRecognize, t.input, err)
		}
		res, err := tr.reader.Read(raster)
		if err != nil {
			return fmt.Errorf("%w: stream %d: %w", ErrRecognize, t.input, err)
		}
		if !res.Recognized {
			t.reject(res.Text)
			return nil
		}
		pts := t.timeBase.FromSeconds(res.Seconds)
		if t.hasPTS && pts <= t.lastPTS {
			t.failed++
			t.logger.Warn("Recovered time does not advance, dropping frame",
				"frame", t.frames, "text", res.Text, "pts", pts, "last_pts", t.lastPTS)
			t.publishRejected(res.Text)
			return nil
		}
		t.lastPTS, t.hasPTS = pts, true
		if !t.identified {
			t.identified = true
			t.identity = res.ID
			t.logger.Info("Identified capture", "watermark_id", res.ID)
		}
		frame.SetPTS(pts)
		frame.ForceKeyframe()
		return t.encode(frame, mux, outTB)

	default:
		panic(fmt.Sprintf("transcode: unknown frame transform %T", tr))
	}
}

func (t *Transcoder) encode(frame Frame, mux Muxer, outTB media.Rational) error {
	if err := t.encoder.SendFrame(frame); err != nil {
		return fmt.Errorf("%w: stream %d: %w", ErrEncode, t.input, err)
	}
	return t.DrainEncoded(mux, outTB)
}

func (t *Transcoder) reject(text string) {
	t.failed++
	t.logger.Warn("Failed to recognize text", "frame", t.frames, "text", text)
	t.publishRejected(text)
}

func (t *Transcoder) publishRejected(text string) {
	if t.bus != nil {
		t.bus.Publish(events.FrameRejectedEvent{
			RunID:  t.runID,
			Mode:   t.mode,
			Stream: t.input,
			Frame:  t.frames,
			Text:   text,
		})
	}
}

func (t *Transcoder) reportProgress(seconds float64) {
	if t.progress == nil || !t.progress.Ready(t.frames) {
		return
	}
	seconds = math.Round(seconds*100) / 100
	total := "?"
	if t.totalFrames > 0 {
		total = fmt.Sprint(t.totalFrames)
	}
	t.logger.Info("Transcoding progress",
		"frames", fmt.Sprintf("%d/%s", t.frames, total),
		"seconds", seconds,
		"failed", t.failed)
	if t.bus != nil {
		t.bus.Publish(events.StreamProgressEvent{
			RunID:       t.runID,
			Mode:        t.mode,
			Stream:      t.input,
			Frames:      t.frames,
			TotalFrames: t.totalFrames,
			Seconds:     seconds,
			Rejected:    t.failed,
		})
	}
}
