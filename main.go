package main

import (
	"log/slog"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/smazurov/framestamp/cmd"
	"github.com/smazurov/framestamp/internal/config"
	"github.com/smazurov/framestamp/internal/libav"
	"github.com/smazurov/framestamp/internal/logging"
	"github.com/smazurov/framestamp/internal/version"
)

func main() {
	var cli humacli.CLI

	// Create Huma CLI
	cli = humacli.New(func(_ humacli.Hooks, opts *cmd.Options) {
		// Load configuration automatically, keeping flags set on the command line
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		logging.Initialize(opts.LoggingConfig())

		// Route libav's own log lines through the libav module logger
		libav.BridgeLogs(logging.GetLogger("libav"), opts.LibavLogLevel())
	})

	root := cli.Root()
	root.Use = "framestamp"
	root.Version = version.Get().String()
	root.Short = "Burn and recover per-frame watermark stamps in video captures"
	root.Run = func(c *cobra.Command, _ []string) {
		_ = c.Help()
	}

	root.AddCommand(cmd.CreateWatermarkCmd())
	root.AddCommand(cmd.CreateRecognizeCmd())
	root.AddCommand(cmd.CreateWatchCmd())
	root.AddCommand(cmd.CreateCheckCmd())

	// Run the CLI
	cli.Run()
}
