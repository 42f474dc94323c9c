package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smazurov/framestamp/internal/events"
	"github.com/smazurov/framestamp/internal/libav"
	"github.com/smazurov/framestamp/internal/logging"
	"github.com/smazurov/framestamp/internal/media"
	"github.com/smazurov/framestamp/internal/metrics"
	"github.com/smazurov/framestamp/internal/recognition"
	"github.com/smazurov/framestamp/internal/recognition/tesseract"
	"github.com/smazurov/framestamp/internal/transcode"
)

// metricsWait bounds how long a finished run waits for its completion event.
const metricsWait = 2 * time.Second

// runner owns everything shared by the runs of one process.
type runner struct {
	opts      *Options
	bus       *events.Bus
	collector *metrics.Collector
	backend   transcode.Backend
	engines   transcode.EngineFactory
	logger    *slog.Logger
	out       io.Writer
	recorded  chan string
	unsub     func()
}

func newRunner(opts *Options, backend transcode.Backend, engines transcode.EngineFactory) *runner {
	r := &runner{
		opts:      opts,
		bus:       events.New(),
		collector: metrics.NewCollector(),
		backend:   backend,
		engines:   engines,
		logger:    logging.GetLogger("main"),
		out:       os.Stdout,
		recorded:  make(chan string, 16),
	}
	r.unsub = r.collector.Subscribe(r.bus, r.exportMetrics)
	return r
}

// newLibavRunner wires the libav backend and tesseract engines.
func newLibavRunner(opts *Options) *runner {
	cfg := opts.TesseractConfig()
	ocrLogger := logging.GetLogger("ocr")
	return newRunner(opts, libav.New(), func() (recognition.Engine, error) {
		engine, err := tesseract.New(cfg)
		if err != nil {
			return nil, err
		}
		ocrLogger.Debug("Recognition engine ready", "language", cfg.Language, "tessdata", cfg.TessdataDir)
		return engine, nil
	})
}

// Close stops metric recording.
func (r *runner) Close() {
	r.unsub()
}

// pipeline builds a pipeline for mode.
func (r *runner) pipeline(mode media.Mode, watermarkID string) (*transcode.Pipeline, error) {
	popts, err := r.opts.PipelineOptions(mode, watermarkID)
	if err != nil {
		return nil, err
	}
	return transcode.New(r.backend, popts,
		transcode.WithEventBus(r.bus),
		transcode.WithEngineFactory(r.engines),
	)
}

// run processes one capture and prints its summary. A rename failure is
// reported as a warning and does not fail the run.
func (r *runner) run(ctx context.Context, p *transcode.Pipeline, input string) error {
	summary, err := p.Run(ctx, input)
	r.awaitMetrics(summary.RunID)

	var renameErr *transcode.RenameError
	if err != nil && !errors.As(err, &renameErr) {
		return err
	}

	fmt.Fprintln(r.out, renderSummary(summary, useColor(r.out)))
	if renameErr != nil {
		r.logger.Warn("Output kept under its intermediate name",
			"output", renameErr.From, "target", renameErr.To, "error", renameErr.Err)
	}
	return nil
}

func (r *runner) exportMetrics(e events.RunCompletedEvent) {
	if r.opts.MetricsTextfile != "" {
		if err := r.collector.WriteTextfile(r.opts.MetricsTextfile); err != nil {
			logging.GetLogger("metrics").Warn("Failed to write metrics textfile",
				"path", r.opts.MetricsTextfile, "error", err)
		}
	}
	select {
	case r.recorded <- e.RunID:
	default:
	}
}

// awaitMetrics waits until the completion event of runID has been recorded.
func (r *runner) awaitMetrics(runID string) {
	timeout := time.NewTimer(metricsWait)
	defer timeout.Stop()
	for {
		select {
		case id := <-r.recorded:
			if id == runID {
				return
			}
		case <-timeout.C:
			r.logger.Debug("Run metrics not recorded in time", "run_id", runID)
			return
		}
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
