package transcode

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/smazurov/framestamp/internal/media"
)

const (
	// OutputExt is the extension of every file this package produces.
	OutputExt       = ".ivf"
	watermarkSuffix = ".w" + OutputExt
	recognizeSuffix = ".r" + OutputExt
)

// OutputPolicy decides what happens when the derived output path already exists.
type OutputPolicy int

const (
	PolicyOverwrite OutputPolicy = iota
	PolicyFail
)

func (p OutputPolicy) String() string {
	switch p {
	case PolicyFail:
		return "fail"
	default:
		return "overwrite"
	}
}

// ParseOutputPolicy accepts "overwrite" (or empty) and "fail".
func ParseOutputPolicy(s string) (OutputPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "overwrite":
		return PolicyOverwrite, nil
	case "fail":
		return PolicyFail, nil
	default:
		return PolicyOverwrite, fmt.Errorf("unknown output policy %q", s)
	}
}

// OutputPath derives the output file for input in the given mode by replacing
// the last extension of the base name. Directories are kept as given.
func OutputPath(input string, mode media.Mode) string {
	dir, base := filepath.Split(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	suffix := watermarkSuffix
	if mode == media.ModeRecognize {
		suffix = recognizeSuffix
	}
	return dir + stem + suffix
}

// IdentityPath names a recognized capture: the base name up to its first dot
// (a leading dot does not count) followed by the recovered id.
func IdentityPath(input string, id int) string {
	dir, base := filepath.Split(input)
	if len(base) > 1 {
		if i := strings.IndexByte(base[1:], '.'); i >= 0 {
			base = base[:i+1]
		}
	}
	return dir + base + "." + strconv.Itoa(id) + OutputExt
}

// IsOutputName reports whether path looks like a file produced by this package.
func IsOutputName(path string) bool {
	return strings.EqualFold(filepath.Ext(path), OutputExt)
}

// samePath reports whether a and b name the same file, by path or by inode.
func samePath(a, b string) bool {
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

func checkCollision(path string, policy OutputPolicy) error {
	if policy != PolicyFail {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrOutputCollision, path)
	}
	return nil
}

// ValidWatermarkID reports whether id can be read back by the recognizer.
func ValidWatermarkID(id string) bool {
	if len(id) == 0 || len(id) > 3 {
		return false
	}
	for _, c := range id {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
