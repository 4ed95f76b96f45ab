package audio

import (
	"context"
	"math"
)

// ToneSource synthesizes a plucked-string-like tone, for demos and for
// exercising the tuner without a microphone
type ToneSource struct {
	Frequency float64
	Amplitude float64
}

type toneHandle struct {
	frequency  float64
	amplitude  float64
	sampleRate float64
	t          int
	closed     bool
}

func (s *ToneSource) Open(ctx context.Context, c Constraints) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, &AcquisitionError{Backend: "tone", Err: err}
	}

	amplitude := s.Amplitude
	if amplitude == 0 {
		amplitude = 0.3
	}

	return &toneHandle{
		frequency:  s.Frequency,
		amplitude:  amplitude,
		sampleRate: float64(c.SampleRate),
	}, nil
}

func (h *toneHandle) SampleRate() float64 {
	return h.sampleRate
}

// ReadFrame continues the waveform where the previous frame ended
func (h *toneHandle) ReadFrame(frame []float32) error {
	if h.closed {
		return ErrClosed
	}

	for i := range frame {
		phase := 2 * math.Pi * h.frequency * float64(h.t+i) / h.sampleRate
		v := math.Sin(phase) + 0.6*math.Sin(2*phase) + 0.4*math.Sin(3*phase) + 0.2*math.Sin(4*phase)
		frame[i] = float32(h.amplitude * v)
	}
	h.t += len(frame)

	return nil
}

func (h *toneHandle) Close() error {
	h.closed = true
	return nil
}
