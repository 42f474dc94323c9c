package transcode

import (
	"errors"
	"fmt"

	"github.com/smazurov/framestamp/internal/media"
)

var (
	ErrOutputCollision    = errors.New("output already exists")
	ErrOutputLocked       = errors.New("output is locked by another run")
	ErrInvalidWatermarkID = errors.New("watermark id must be 1 to 3 decimal digits")
	ErrOpen               = errors.New("open container")
	ErrNoVideo            = errors.New("input has no video stream")
	ErrCodec              = errors.New("configure codec")
	ErrDemux              = errors.New("read packet")
	ErrDecode             = errors.New("decode")
	ErrEncode             = errors.New("encode")
	ErrFilter             = errors.New("apply overlay filter")
	ErrRecognize          = errors.New("recognize frame")
	ErrMux                = errors.New("write packet")
	ErrHeader             = errors.New("write header")
	ErrTrailer            = errors.New("write trailer")
)

// RenameError reports that the produced output could not be renamed after its
// identity was recovered. The output at From is complete and usable.
type RenameError struct {
	From string
	To   string
	Err  error
}

func (e *RenameError) Error() string {
	return fmt.Sprintf("rename %s to %s: %v", e.From, e.To, e.Err)
}

func (e *RenameError) Unwrap() error {
	return e.Err
}

// drained reports whether err is one of the codec sentinels that end a drain loop.
func drained(err error) bool {
	return errors.Is(err, media.ErrAgain) || errors.Is(err, media.ErrEOF)
}
