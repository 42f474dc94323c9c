package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/smazurov/framestamp/internal/libav"
	"github.com/smazurov/framestamp/internal/logging"
	"github.com/smazurov/framestamp/internal/recognition/tesseract"
	"github.com/smazurov/framestamp/internal/version"
)

var errNotReady = errors.New("required capabilities are missing")

// CreateCheckCmd creates the check command.
func CreateCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the encoder, filters, font and recognition data",
		Long: `Checks that the linked libav build provides the configured encoder, the IVF ` +
			`muxer and the drawbox/drawtext filters, that the overlay font exists and that ` +
			`tesseract language data is installed. Exits with status 1 if anything is missing.`,
		Args: cobra.NoArgs,
		Run: humacli.WithOptions(func(_ *cobra.Command, _ []string, opts *Options) {
			if err := runCheck(opts); err != nil {
				logging.GetLogger("main").Error("Check failed", "error", err)
				os.Exit(1)
			}
		}),
	}
}

func runCheck(opts *Options) error {
	enc, err := opts.EncoderParams()
	if err != nil {
		return err
	}

	caps := []libav.Capability{{
		Kind:   "build",
		Name:   "framestamp",
		OK:     true,
		Detail: version.Get().String(),
	}}
	caps = append(caps, libav.Probe(enc, opts.OverlayFontFile)...)
	caps = append(caps, checkTraineddata(opts.OCRTessdata, opts.OCRLanguage))
	caps = append(caps, libav.Capability{
		Kind:   "ocr",
		Name:   "tesseract",
		OK:     true,
		Detail: tesseract.Version(),
	})

	fmt.Println(renderCapabilities(caps, useColor(os.Stdout)))
	if !libav.Ready(caps) {
		return errNotReady
	}
	return nil
}

func checkTraineddata(dir, language string) libav.Capability {
	path := tesseract.TraineddataPath(dir, language)
	c := libav.Capability{Kind: "ocr data", Name: path}
	st, err := os.Stat(path)
	switch {
	case err != nil:
		c.Detail = err.Error()
	case st.IsDir():
		c.Detail = "is a directory"
	default:
		c.OK = true
		c.Detail = "readable"
	}
	return c
}
