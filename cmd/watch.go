package cmd

import (
	"context"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/smazurov/framestamp/internal/logging"
	"github.com/smazurov/framestamp/internal/media"
	"github.com/smazurov/framestamp/internal/systemd"
	"github.com/smazurov/framestamp/internal/transcode"
	"github.com/smazurov/framestamp/internal/watch"
)

// watchQueue is how many settled captures may wait for the worker.
const watchQueue = 64

// CreateWatchCmd creates the watch command.
func CreateWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <dir>",
		Short: "Process new captures as they appear in a directory",
		Long: `Watches <dir> and runs every new capture through the configured mode once ` +
			`it has not been written to for the settle period. Captures are processed one ` +
			`at a time. Files produced by framestamp are ignored.`,
		Args: cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(_ *cobra.Command, args []string, opts *Options) {
			if err := runWatch(opts, args[0]); err != nil {
				logging.GetLogger("main").Error("Watch failed", "dir", args[0], "error", err)
				os.Exit(1)
			}
		}),
	}
}

func runWatch(opts *Options, dir string) error {
	mode, err := media.ParseMode(opts.WatchMode)
	if err != nil {
		return err
	}
	settle, err := opts.Settle()
	if err != nil {
		return err
	}

	r := newLibavRunner(opts)
	defer r.Close()

	p, err := r.pipeline(mode, "")
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	return watchCaptures(ctx, r, p, dir, settle, opts.Extensions())
}

// watchCaptures runs settled captures through p until ctx is cancelled.
// A failed capture is logged and does not stop the watch.
func watchCaptures(ctx context.Context, r *runner, p *transcode.Pipeline, dir string,
	settle time.Duration, exts []string,
) error {
	logger := logging.GetLogger("watch")

	queue := make(chan string, watchQueue)
	w := watch.New(dir,
		watch.WithSettle(settle),
		watch.WithExtensions(exts),
		watch.WithEventBus(r.bus),
	)
	w.OnReady(func(path string) {
		select {
		case queue <- path:
		case <-ctx.Done():
		}
	})
	if err := w.Start(); err != nil {
		return err
	}
	defer func() {
		if err := w.Stop(); err != nil {
			logger.Warn("Failed to stop capture watcher", "error", err)
		}
	}()

	notifier := systemd.NewNotifier()
	notify := func(_ bool, err error) {
		if err != nil {
			logger.Debug("systemd notification failed", "error", err)
		}
	}
	notify(notifier.Ready())
	notify(notifier.Status("watching %s", dir))

	mode := p.Mode().String()
	for {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
		case path := <-queue:
			notify(notifier.Status("processing %s", path))
			if err := r.run(ctx, p, path); err != nil {
				logger.Error("Capture failed", "path", path, "error", err)
			}
			notify(notifier.Status("watching %s", dir))
		}
	}
	notify(notifier.Stopping())

	if totals := r.collector.Totals(mode); totals != nil {
		logger.Info("Capture watcher finished", "mode", mode, "runs", totals.Runs,
			"failed", totals.Failed, "frames", totals.Frames, "rejected", totals.Rejected)
	}
	return nil
}
