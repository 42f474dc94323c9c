// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stderr (or Config.Output) when a terminal, pipe, or file is connected
//   - Logs to both when both are available
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "text",      // Output format: text or json
//		Modules: map[string]string{
//			"transcoder": "debug", // Per-module overrides
//			"libav":      "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("pipeline")
//	logger.Info("Processing capture", "input", path)
//	logger.Debug("Details", "config", cfg)
//	logger.Warn("Something unusual", "error", err)
//	logger.Error("Failed", "error", err)
//
// Add contextual attributes:
//
//	logger := logging.GetLogger("pipeline").With("run_id", id)
//	logger.Info("Run started")  // Includes run_id in all logs
//
// # Log Levels
//
//	debug - Verbose debugging information
//	info  - General operational messages
//	warn  - Warning conditions
//	error - Error conditions
//
// # Output Destinations
//
// The system automatically detects available outputs:
//
//	Journal available + output available → MultiHandler (both)
//	Journal available only              → JournalHandler
//	Output available only               → TextHandler or JSONHandler
//
// Journal availability is checked via [github.com/coreos/go-systemd/v22/journal.Enabled].
//
// # Viewing Logs
//
// When running as a systemd service or on a system with journald:
//
//	journalctl -t framestamp              # All framestamp logs
//	journalctl -t framestamp -f           # Follow live
//	journalctl -t framestamp --since "5m" # Last 5 minutes
//	journalctl -t framestamp -p err       # Errors only
//
// Filter by structured fields:
//
//	journalctl -t framestamp MODULE=pipeline
//	journalctl -t framestamp RUN_ID=3f0c7a52-8d0e-4c55-bb0e-2a4f5d3b9e11
//
// # Configuration
//
// Log levels can be set globally or per-module. Module-specific levels
// override the global level for that module only.
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//	transcoder = "debug"
//	libav = "warn"
//	ocr = "error"
package logging
