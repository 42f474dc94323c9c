package libav

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"

	"github.com/smazurov/framestamp/internal/recognition"
	"github.com/smazurov/framestamp/internal/transcode"
)

const rgbChannels = 3

// rasterizer converts decoded frames to tightly packed RGB24.
type rasterizer struct {
	ssc *astiav.SoftwareScaleContext
	dst *astiav.Frame
	buf []byte
}

func newRasterizer(params transcode.VideoParams) (*rasterizer, error) {
	ssc, err := astiav.CreateSoftwareScaleContext(
		params.Width, params.Height, astiav.PixelFormat(params.PixelFormat),
		params.Width, params.Height, astiav.PixelFormatRgb24,
		astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear),
	)
	if err != nil {
		return nil, fmt.Errorf("create scaler %dx%d %s -> rgb24: %w",
			params.Width, params.Height, params.PixelFormatName, err)
	}
	if ssc == nil {
		return nil, errors.New("create scaler")
	}

	dst := astiav.AllocFrame()
	dst.SetWidth(params.Width)
	dst.SetHeight(params.Height)
	dst.SetPixelFormat(astiav.PixelFormatRgb24)
	if err := dst.AllocBuffer(1); err != nil {
		dst.Free()
		ssc.Free()
		return nil, fmt.Errorf("alloc rgb frame: %w", err)
	}
	return &rasterizer{ssc: ssc, dst: dst}, nil
}

// RGB returns a raster that shares a buffer with the next call.
func (r *rasterizer) RGB(f transcode.Frame) (recognition.Raster, error) {
	src, err := avFrame(f)
	if err != nil {
		return recognition.Raster{}, err
	}
	if err := r.ssc.ScaleFrame(src, r.dst); err != nil {
		return recognition.Raster{}, fmt.Errorf("scale frame: %w", err)
	}

	n, err := r.dst.ImageBufferSize(1)
	if err != nil {
		return recognition.Raster{}, fmt.Errorf("image buffer size: %w", err)
	}
	if cap(r.buf) < n {
		r.buf = make([]byte, n)
	}
	r.buf = r.buf[:n]
	if _, err := r.dst.ImageCopyToBuffer(r.buf, 1); err != nil {
		return recognition.Raster{}, fmt.Errorf("copy image: %w", err)
	}

	width, height := r.dst.Width(), r.dst.Height()
	return recognition.Raster{
		Pix:      r.buf,
		Width:    width,
		Height:   height,
		Channels: rgbChannels,
		Stride:   width * rgbChannels,
	}, nil
}

func (r *rasterizer) Close() {
	r.dst.Free()
	r.ssc.Free()
}
