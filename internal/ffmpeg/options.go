package ffmpeg

import (
	"errors"
	"fmt"
	"strings"
)

// OptionType represents a strongly typed encoder option key.
type OptionType string

// Encoder option keys understood by libvpx and the generic codec context.
const (
	OptionQuality   OptionType = "quality"
	OptionCPUUsed   OptionType = "cpu-used"
	OptionCRF       OptionType = "crf"
	OptionQMin      OptionType = "qmin"
	OptionQMax      OptionType = "qmax"
	OptionKeyIntMin OptionType = "keyint_min"
)

const (
	// DefaultCodec is the only encoder the pipeline targets.
	DefaultCodec = "libvpx"
	// DefaultBitrate is the constant low bit-rate target.
	DefaultBitrate = 20000
)

// EncoderOption is a single key=value pair handed to the encoder on open.
type EncoderOption struct {
	Key   OptionType `json:"key" toml:"key"`
	Value string     `json:"value" toml:"value"`
}

// DefaultEncoderOptions favours quality over speed: best deadline, slowest
// cpu-used, near-lossless quantizer range and every frame a keyframe.
var DefaultEncoderOptions = []EncoderOption{
	{Key: OptionQuality, Value: "best"},
	{Key: OptionCPUUsed, Value: "0"},
	{Key: OptionCRF, Value: "1"},
	{Key: OptionQMin, Value: "1"},
	{Key: OptionQMax, Value: "10"},
	{Key: OptionKeyIntMin, Value: "1"},
}

// DefaultEncoderParams returns the fixed encoder policy.
func DefaultEncoderParams() EncoderParams {
	opts := make([]EncoderOption, len(DefaultEncoderOptions))
	copy(opts, DefaultEncoderOptions)
	return EncoderParams{
		Codec:   DefaultCodec,
		Bitrate: DefaultBitrate,
		GOP:     1,
		Options: opts,
	}
}

// Validate checks the policy invariants. Frames may be dropped or retimed
// after decoding, so every output frame has to be independently decodable.
func (p EncoderParams) Validate() error {
	if p.Codec == "" {
		return errors.New("encoder codec is required")
	}
	if p.GOP != 1 {
		return fmt.Errorf("encoder gop must be 1, got %d", p.GOP)
	}
	if p.Bitrate <= 0 {
		return fmt.Errorf("encoder bitrate must be positive, got %d", p.Bitrate)
	}
	seen := make(map[OptionType]bool, len(p.Options))
	for _, o := range p.Options {
		if seen[o.Key] {
			return fmt.Errorf("duplicate encoder option %q", o.Key)
		}
		seen[o.Key] = true
	}
	return nil
}

// ParseOptions parses "key=value,key=value". An empty string yields no options.
func ParseOptions(s string) ([]EncoderOption, error) {
	var opts []EncoderOption
	for _, kv := range strings.Split(s, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" || strings.Contains(value, "=") {
			return nil, fmt.Errorf("invalid encoder option %q", kv)
		}
		opts = append(opts, EncoderOption{Key: OptionType(strings.TrimSpace(key)), Value: strings.TrimSpace(value)})
	}
	return opts, nil
}

// FormatOptions renders options back to "key=value,key=value".
func FormatOptions(opts []EncoderOption) string {
	parts := make([]string, len(opts))
	for i, o := range opts {
		parts[i] = string(o.Key) + "=" + o.Value
	}
	return strings.Join(parts, ",")
}

// MergeOptions overlays overrides on base, keeping base order and appending new keys.
func MergeOptions(base, overrides []EncoderOption) []EncoderOption {
	out := make([]EncoderOption, len(base))
	copy(out, base)
	for _, o := range overrides {
		replaced := false
		for i := range out {
			if out[i].Key == o.Key {
				out[i].Value = o.Value
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, o)
		}
	}
	return out
}
