package transcode

import (
	"fmt"
	"os"

	"github.com/gofrs/flock"
)

// outputLock keeps two runs from producing the same output at once.
type outputLock struct {
	fl *flock.Flock
}

func lockOutput(output string) (*outputLock, error) {
	fl := flock.New(output + ".lock")
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", fl.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOutputLocked, output)
	}
	return &outputLock{fl: fl}, nil
}

func (l *outputLock) release() {
	if l == nil || l.fl == nil {
		return
	}
	_ = l.fl.Unlock()
	_ = os.Remove(l.fl.Path())
}
