package ffmpeg

import (
	"fmt"
	"math"
	"strings"
)

const (
	// DefaultFontFile is the monospace font used for the overlay text.
	DefaultFontFile = "/usr/share/fonts/truetype/noto/NotoMono-Regular.ttf"
	// DefaultWatermarkID is rendered when no id is supplied.
	DefaultWatermarkID = "1"

	bandDivisor = 15.0
	fontDivisor = 18.0
)

// BandHeight returns the height of the top band that carries the overlay text.
// Recognition crops exactly this many rows.
func BandHeight(frameHeight int) int {
	return int(math.Round(float64(frameHeight) / bandDivisor))
}

// FontSize returns the overlay font size for a frame height.
func FontSize(frameHeight int) int {
	return int(math.Round(float64(frameHeight) / fontDivisor))
}

// StampText returns the literal text the overlay renders for an id and clock.
func StampText(id string, elapsedMs int64) string {
	return fmt.Sprintf("%s-%d", id, elapsedMs)
}

// BuildOverlayFilter builds the filter graph description that paints an opaque
// band across the top of the frame and draws "<id>-<elapsed ms>" centered in it.
func BuildOverlayFilter(p *OverlayParams) string {
	id := p.WatermarkID
	if id == "" {
		id = DefaultWatermarkID
	}
	fontFile := p.FontFile
	if fontFile == "" {
		fontFile = DefaultFontFile
	}
	fontColor := p.FontColor
	if fontColor == "" {
		fontColor = "white"
	}
	boxColor := p.BoxColor
	if boxColor == "" {
		boxColor = "black"
	}

	band := BandHeight(p.Height)

	var filters []string

	// Opaque band
	filters = append(filters, fmt.Sprintf("drawbox=x=0:y=0:w=iw:h=%d:color=%s:t=fill", band, boxColor))

	// Clock text, expanded per frame by drawtext from the filter clock
	var drawtext strings.Builder
	drawtext.WriteString("drawtext=fontfile=" + escapeFilterValue(fontFile))
	drawtext.WriteString(":text='" + id + `-%{eif\:t*1000\:u}'`)
	drawtext.WriteString(":fontcolor=" + fontColor)
	drawtext.WriteString(fmt.Sprintf(":fontsize=%d", FontSize(p.Height)))
	drawtext.WriteString(fmt.Sprintf(":x=(w-text_w)/2:y=(%d-text_h)/2", band))
	filters = append(filters, drawtext.String())

	return strings.Join(filters, ",")
}

// escapeFilterValue escapes characters that end an option value in a filter description.
func escapeFilterValue(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `:`, `\:`, `'`, `\'`, `,`, `\,`)
	return r.Replace(v)
}
