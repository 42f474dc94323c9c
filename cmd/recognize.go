package cmd

import (
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/smazurov/framestamp/internal/logging"
	"github.com/smazurov/framestamp/internal/media"
)

// CreateRecognizeCmd creates the recognize command.
func CreateRecognizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recognize <input>",
		Short: "Recover frame times from burned watermarks",
		Long: `Reads the "<id>-<ms>" band of every frame of <input>, drops frames whose band ` +
			`cannot be read and retimes the rest from the recovered clock. The output is ` +
			`written as <name>.r.ivf and renamed to <name>.<id>.ivf once an id is recognized.`,
		Args: cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(_ *cobra.Command, args []string, opts *Options) {
			if err := runOnce(opts, media.ModeRecognize, args[0], ""); err != nil {
				logging.GetLogger("main").Error("Recognize failed", "input", args[0], "error", err)
				os.Exit(1)
			}
		}),
	}
}
