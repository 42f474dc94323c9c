package recognition

import (
	"fmt"

	"github.com/smazurov/framestamp/internal/ffmpeg"
)

// Engine is an optical text recognizer configured for a single line of
// digits and hyphens.
type Engine interface {
	Recognize(band Raster) (string, error)
	Close() error
}

// Reader reads stamps from full frames.
type Reader struct {
	engine Engine
	parser *Parser
}

// NewReader creates a reader. A nil parser uses DefaultPattern.
func NewReader(engine Engine, parser *Parser) *Reader {
	if parser == nil {
		parser = MustParser(DefaultPattern)
	}
	return &Reader{engine: engine, parser: parser}
}

// Read crops the overlay band from frame and recognizes it. Engine failures
// are returned as errors; unreadable text is an unrecognized Result.
func (r *Reader) Read(frame Raster) (Result, error) {
	if err := frame.Validate(); err != nil {
		return Result{}, err
	}
	band := frame.CropTop(ffmpeg.BandHeight(frame.Height))
	if band.Height == 0 {
		return Result{}, nil
	}

	text, err := r.engine.Recognize(band)
	if err != nil {
		return Result{}, fmt.Errorf("recognize band: %w", err)
	}
	return r.parser.Parse(text), nil
}

// Close releases the engine.
func (r *Reader) Close() error {
	return r.engine.Close()
}
