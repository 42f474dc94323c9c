// Package tesseract implements recognition.Engine on top of libtesseract.
package tesseract

import (
	"bytes"
	"fmt"
	"image/png"
	"path/filepath"

	"github.com/otiai10/gosseract/v2"
	"github.com/smazurov/framestamp/internal/recognition"
)

const (
	// DefaultTessdataDir is where distribution packages install language data.
	DefaultTessdataDir = "/usr/share/tesseract-ocr/5/tessdata"
	// DefaultLanguage is the language model used for digits.
	DefaultLanguage = "eng"
	// Whitelist restricts output to the characters the overlay renders.
	Whitelist = "0123456789-"
)

// Config selects the language data.
type Config struct {
	TessdataDir string
	Language    string
}

// Engine is a single tesseract client. It is not safe for concurrent use.
type Engine struct {
	client *gosseract.Client
	buf    bytes.Buffer
}

// New creates a client restricted to single-line digits and hyphens.
func New(cfg Config) (*Engine, error) {
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}

	client := gosseract.NewClient()
	if cfg.TessdataDir != "" {
		if err := client.SetTessdataPrefix(cfg.TessdataDir); err != nil {
			client.Close()
			return nil, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(cfg.Language); err != nil {
		client.Close()
		return nil, fmt.Errorf("set language %s: %w", cfg.Language, err)
	}
	if err := client.SetWhitelist(Whitelist); err != nil {
		client.Close()
		return nil, fmt.Errorf("set whitelist: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		client.Close()
		return nil, fmt.Errorf("set page segmentation mode: %w", err)
	}

	return &Engine{client: client}, nil
}

// Recognize returns the raw text found in band.
func (e *Engine) Recognize(band recognition.Raster) (string, error) {
	e.buf.Reset()
	if err := png.Encode(&e.buf, band.Image()); err != nil {
		return "", fmt.Errorf("encode band: %w", err)
	}
	if err := e.client.SetImageFromBytes(e.buf.Bytes()); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	return e.client.Text()
}

// Close releases the tesseract handle.
func (e *Engine) Close() error {
	return e.client.Close()
}

// Version returns the linked libtesseract version.
func Version() string {
	return gosseract.Version()
}

// TraineddataPath returns the language model file expected under dir.
func TraineddataPath(dir, language string) string {
	if language == "" {
		language = DefaultLanguage
	}
	return filepath.Join(dir, language+".traineddata")
}
