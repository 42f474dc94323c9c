package recognition

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// Raster is a packed 8-bit RGB image as produced by the scaler.
type Raster struct {
	Pix      []byte
	Width    int
	Height   int
	Channels int
	Stride   int // bytes per row, at least Width*Channels
}

// Validate checks the geometry against the pixel buffer.
func (r Raster) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("raster size %dx%d", r.Width, r.Height)
	}
	if r.Channels != 3 {
		return fmt.Errorf("raster has %d channels, want 3", r.Channels)
	}
	if r.Stride < r.Width*r.Channels {
		return fmt.Errorf("raster stride %d shorter than row %d", r.Stride, r.Width*r.Channels)
	}
	if len(r.Pix) < (r.Height-1)*r.Stride+r.Width*r.Channels {
		return errors.New("raster buffer shorter than geometry")
	}
	return nil
}

// CropTop returns the first rows rows, sharing the pixel buffer.
func (r Raster) CropTop(rows int) Raster {
	if rows > r.Height {
		rows = r.Height
	}
	if rows < 0 {
		rows = 0
	}
	end := 0
	if rows > 0 {
		end = (rows-1)*r.Stride + r.Width*r.Channels
	}
	return Raster{
		Pix:      r.Pix[:end:end],
		Width:    r.Width,
		Height:   rows,
		Channels: r.Channels,
		Stride:   r.Stride,
	}
}

// Image copies the raster into an RGBA image.
func (r Raster) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	for y := 0; y < r.Height; y++ {
		row := r.Pix[y*r.Stride:]
		for x := 0; x < r.Width; x++ {
			i := x * r.Channels
			img.SetRGBA(x, y, color.RGBA{R: row[i], G: row[i+1], B: row[i+2], A: 0xff})
		}
	}
	return img
}
