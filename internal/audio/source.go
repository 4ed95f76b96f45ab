package audio

import (
	"context"
	"errors"
	"fmt"
)

// Errors
var (
	ErrClosed         = errors.New("audio source closed")
	ErrUnknownBackend = errors.New("unknown audio backend")
	ErrInvalidFrame   = errors.New("invalid frame size")
	ErrShortRecording = errors.New("recording shorter than one frame")
)

// Constraints describe the stream a Source is asked to open
type Constraints struct {
	SampleRate int    // Requested rate in Hz; file sources report their own
	FrameSize  int    // Analysis window size N
	Channels   int    // Input channels, mixed down to mono
	Device     string // Substring of the capture device name, empty for default
}

// Source opens audio input streams
type Source interface {
	// Open acquires the input. It may block on permission or device setup.
	Open(ctx context.Context, c Constraints) (Handle, error)
}

// Handle is an open audio stream
type Handle interface {
	// SampleRate returns the stream rate in Hz
	SampleRate() float64

	// ReadFrame fills frame with the newest len(frame) mono samples
	ReadFrame(frame []float32) error

	// Close releases the stream. Calling it more than once is safe.
	Close() error
}

// AcquisitionError reports that an audio source could not be opened
type AcquisitionError struct {
	Backend string
	Err     error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("open %s audio source: %v", e.Backend, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}
