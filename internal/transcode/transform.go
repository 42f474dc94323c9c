package transcode

import "github.com/smazurov/framestamp/internal/recognition"

// transform is the per-run frame transform. It is closed over exactly two
// variants and applied at a single call site in Transcoder.process.
type transform interface {
	close() error
	isTransform()
}

// overlayTransform burns the watermark band into every frame.
type overlayTransform struct {
	filter FrameFilter
}

func (overlayTransform) isTransform() {}

func (t overlayTransform) close() error {
	t.filter.Close()
	return nil
}

// recognizeTransform reads the watermark band back from every frame.
type recognizeTransform struct {
	rasterizer Rasterizer
	reader     *recognition.Reader
}

func (recognizeTransform) isTransform() {}

func (t recognizeTransform) close() error {
	t.rasterizer.Close()
	return t.reader.Close()
}
