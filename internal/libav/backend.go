package libav

import (
	"github.com/smazurov/framestamp/internal/transcode"
)

// Backend is the libav implementation of transcode.Backend.
type Backend struct{}

// New returns a libav backend. Call BridgeLogs first to route libav output to slog.
func New() *Backend {
	return &Backend{}
}

func (b *Backend) OpenInput(path string) (transcode.Input, error) {
	return openInput(path)
}

func (b *Backend) OpenOutput(path string) (transcode.Output, error) {
	return openOutput(path)
}

func (b *Backend) NewOverlayFilter(params transcode.VideoParams, description string) (transcode.FrameFilter, error) {
	return newOverlayFilter(params, description)
}

func (b *Backend) NewRasterizer(params transcode.VideoParams) (transcode.Rasterizer, error) {
	return newRasterizer(params)
}

var _ transcode.Backend = (*Backend)(nil)
