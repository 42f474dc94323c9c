package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/smazurov/framestamp/internal/ffmpeg"
	"github.com/smazurov/framestamp/internal/logging"
	"github.com/smazurov/framestamp/internal/media"
	"github.com/smazurov/framestamp/internal/recognition/tesseract"
	"github.com/smazurov/framestamp/internal/transcode"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"framestamp.toml"`

	// Recognition settings
	OCRTessdata string `help:"Tesseract language data directory" default:"/usr/share/tesseract-ocr/5/tessdata" toml:"ocr.tessdata" env:"OCR_TESSDATA"`
	OCRLanguage string `help:"Tesseract language model" default:"eng" toml:"ocr.language" env:"OCR_LANGUAGE"`

	// Overlay settings
	OverlayFontFile string `help:"Font used to burn the stamp" default:"/usr/share/fonts/truetype/noto/NotoMono-Regular.ttf" toml:"overlay.font_file" env:"OVERLAY_FONT_FILE"`

	// Output settings
	OutputPolicy string `help:"What to do when the output exists (overwrite, fail)" default:"overwrite" toml:"output.policy" env:"OUTPUT_POLICY"`

	// Encoder settings
	EncoderCodec   string `help:"Video encoder name" default:"libvpx" toml:"encoder.codec" env:"ENCODER_CODEC"`
	EncoderBitrate int    `help:"Encoder target bit rate in bit/s" default:"20000" toml:"encoder.bitrate" env:"ENCODER_BITRATE"`
	EncoderThreads int    `help:"Encoder threads (0 lets libav decide)" default:"0" toml:"encoder.threads" env:"ENCODER_THREADS"`
	EncoderOptions string `help:"Extra encoder options (key=value,...)" default:"" toml:"encoder.options" env:"ENCODER_OPTIONS"`

	// Progress settings
	ProgressFrames   int    `help:"Minimum frames between progress reports" default:"100" toml:"progress.frames" env:"PROGRESS_FRAMES"`
	ProgressInterval string `help:"Minimum time between progress reports" default:"1s" toml:"progress.interval" env:"PROGRESS_INTERVAL"`

	// Metrics settings
	MetricsTextfile string `help:"Write node-exporter textfile metrics to this path" default:"" toml:"metrics.textfile" env:"METRICS_TEXTFILE"`

	// Watch settings
	WatchMode       string `help:"Mode applied to watched captures (watermark, recognize)" default:"recognize" toml:"watch.mode" env:"WATCH_MODE"`
	WatchSettle     string `help:"Quiet period before a capture is processed" default:"2s" toml:"watch.settle" env:"WATCH_SETTLE"`
	WatchExtensions string `help:"Comma-separated capture extensions" default:".mp4,.mkv,.mov,.webm" toml:"watch.extensions" env:"WATCH_EXTENSIONS"`

	// libav settings
	LibavLevel string `help:"libav log level (quiet, error, warning, info, verbose, debug)" default:"warning" toml:"libav.level" env:"LIBAV_LEVEL"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingPipeline   string `help:"Pipeline logging level" default:"info" toml:"logging.pipeline" env:"LOGGING_PIPELINE"`
	LoggingTranscoder string `help:"Stream transcoder logging level" default:"info" toml:"logging.transcoder" env:"LOGGING_TRANSCODER"`
	LoggingLibav      string `help:"libav bridge logging level" default:"info" toml:"logging.libav" env:"LOGGING_LIBAV"`
	LoggingOCR        string `help:"Text recognition logging level" default:"info" toml:"logging.ocr" env:"LOGGING_OCR"`
	LoggingWatch      string `help:"Capture watcher logging level" default:"info" toml:"logging.watch" env:"LOGGING_WATCH"`
	LoggingMetrics    string `help:"Metrics logging level" default:"info" toml:"logging.metrics" env:"LOGGING_METRICS"`
}

// LoggingConfig returns the logging setup described by the options.
func (o *Options) LoggingConfig() logging.Config {
	return logging.Config{
		Level:  o.LoggingLevel,
		Format: o.LoggingFormat,
		Modules: map[string]string{
			"pipeline":   o.LoggingPipeline,
			"transcoder": o.LoggingTranscoder,
			"libav":      o.LoggingLibav,
			"ocr":        o.LoggingOCR,
			"watch":      o.LoggingWatch,
			"metrics":    o.LoggingMetrics,
		},
	}
}

// LibavLogLevel returns the AV log level to bridge, defaulting to warning.
func (o *Options) LibavLogLevel() int {
	if level, ok := ffmpeg.ParseLogLevel(o.LibavLevel); ok {
		return level
	}
	return ffmpeg.LogWarning
}

// EncoderParams returns the encoder policy with configured overrides applied.
func (o *Options) EncoderParams() (ffmpeg.EncoderParams, error) {
	params := ffmpeg.DefaultEncoderParams()
	if o.EncoderCodec != "" {
		params.Codec = o.EncoderCodec
	}
	if o.EncoderBitrate > 0 {
		params.Bitrate = int64(o.EncoderBitrate)
	}
	if o.EncoderThreads < 0 {
		return params, fmt.Errorf("encoder threads must not be negative, got %d", o.EncoderThreads)
	}
	params.Threads = o.EncoderThreads

	extra, err := ffmpeg.ParseOptions(o.EncoderOptions)
	if err != nil {
		return params, err
	}
	params.Options = ffmpeg.MergeOptions(params.Options, extra)
	return params, params.Validate()
}

// PipelineOptions builds the run options for mode.
func (o *Options) PipelineOptions(mode media.Mode, watermarkID string) (transcode.Options, error) {
	policy, err := transcode.ParseOutputPolicy(o.OutputPolicy)
	if err != nil {
		return transcode.Options{}, err
	}
	enc, err := o.EncoderParams()
	if err != nil {
		return transcode.Options{}, err
	}
	interval, err := parseDuration("progress interval", o.ProgressInterval)
	if err != nil {
		return transcode.Options{}, err
	}
	if o.ProgressFrames < 0 {
		return transcode.Options{}, fmt.Errorf("progress frames must not be negative, got %d", o.ProgressFrames)
	}

	return transcode.Options{
		Mode:             mode,
		WatermarkID:      watermarkID,
		FontFile:         o.OverlayFontFile,
		Policy:           policy,
		Encoder:          enc,
		ProgressFrames:   o.ProgressFrames,
		ProgressInterval: interval,
	}, nil
}

// TesseractConfig returns the recognition engine configuration.
func (o *Options) TesseractConfig() tesseract.Config {
	return tesseract.Config{
		TessdataDir: o.OCRTessdata,
		Language:    o.OCRLanguage,
	}
}

// Settle returns the watch quiet period.
func (o *Options) Settle() (time.Duration, error) {
	return parseDuration("watch settle", o.WatchSettle)
}

// Extensions returns the configured watch extensions.
func (o *Options) Extensions() []string {
	var exts []string
	for _, ext := range strings.Split(o.WatchExtensions, ",") {
		if ext = strings.TrimSpace(ext); ext != "" {
			exts = append(exts, ext)
		}
	}
	return exts
}

func parseDuration(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", name, value)
	}
	return d, nil
}
