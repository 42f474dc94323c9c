package cmd

import (
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/smazurov/framestamp/internal/ffmpeg"
	"github.com/smazurov/framestamp/internal/logging"
	"github.com/smazurov/framestamp/internal/media"
)

// CreateWatermarkCmd creates the watermark command.
func CreateWatermarkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watermark <input> [id]",
		Short: "Burn a watermark id and clock into every frame",
		Long: `Re-encodes every video stream of <input> with a top band reading "<id>-<ms>", ` +
			`where ms is the frame time in milliseconds. The id is 1-3 digits and defaults to ` +
			ffmpeg.DefaultWatermarkID + `. Output is written next to the input as <name>.w.ivf.`,
		Args: cobra.RangeArgs(1, 2),
		Run: humacli.WithOptions(func(_ *cobra.Command, args []string, opts *Options) {
			id := ""
			if len(args) > 1 {
				id = args[1]
			}
			if err := runOnce(opts, media.ModeWatermark, args[0], id); err != nil {
				logging.GetLogger("main").Error("Watermark failed", "input", args[0], "error", err)
				os.Exit(1)
			}
		}),
	}
}

// runOnce processes a single capture until it finishes or a signal arrives.
func runOnce(opts *Options, mode media.Mode, input, watermarkID string) error {
	r := newLibavRunner(opts)
	defer r.Close()

	p, err := r.pipeline(mode, watermarkID)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	return r.run(ctx, p, input)
}
