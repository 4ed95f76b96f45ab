package audio

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mjibson/go-dsp/wav"
)

// WAVSource replays a recording frame by frame
type WAVSource struct {
	Path string
	Hop  int  // Samples advanced per frame, frame length when zero
	Loop bool // Restart at the beginning instead of reporting io.EOF
}

type wavHandle struct {
	samples    []float32
	sampleRate float64
	hop        int
	loop       bool
	pos        int
	closed     bool
}

// Open decodes the whole file into memory
func (s *WAVSource) Open(ctx context.Context, c Constraints) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, &AcquisitionError{Backend: "wav", Err: err}
	}

	samples, rate, err := readWAV(s.Path)
	if err != nil {
		return nil, &AcquisitionError{Backend: "wav", Err: err}
	}
	if len(samples) < c.FrameSize {
		return nil, &AcquisitionError{Backend: "wav", Err: fmt.Errorf("%s: %w", s.Path, ErrShortRecording)}
	}

	return &wavHandle{
		samples:    samples,
		sampleRate: rate,
		hop:        s.Hop,
		loop:       s.Loop,
	}, nil
}

// readWAV returns the file's samples mixed down to mono in [-1, 1]
func readWAV(path string) ([]float32, float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	w, err := wav.New(f)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}

	data, err := w.ReadSamples(w.Samples)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: read samples: %w", path, err)
	}

	var interleaved []float32
	switch d := data.(type) {
	case []uint8:
		interleaved = make([]float32, len(d))
		for i, v := range d {
			interleaved[i] = (float32(v) - 128) / 128
		}
	case []int16:
		interleaved = make([]float32, len(d))
		for i, v := range d {
			interleaved[i] = float32(v) / 32768
		}
	case []float32:
		interleaved = d
	default:
		return nil, 0, fmt.Errorf("%s: unsupported sample type %T", path, data)
	}

	r := newRing(len(interleaved), int(w.NumChannels), 1)
	r.write(interleaved)
	mono := r.samples[:r.next]
	if r.filled {
		mono = r.samples
	}

	return mono, float64(w.SampleRate), nil
}

func (h *wavHandle) SampleRate() float64 {
	return h.sampleRate
}

// ReadFrame copies the next frame of the recording and advances by the hop
func (h *wavHandle) ReadFrame(frame []float32) error {
	if h.closed {
		return ErrClosed
	}
	if len(frame) > len(h.samples) {
		return ErrShortRecording
	}

	if h.pos+len(frame) > len(h.samples) {
		if !h.loop {
			return io.EOF
		}
		h.pos = 0
	}

	copy(frame, h.samples[h.pos:h.pos+len(frame)])

	hop := h.hop
	if hop <= 0 {
		hop = len(frame)
	}
	h.pos += hop

	return nil
}

func (h *wavHandle) Close() error {
	h.closed = true
	return nil
}
