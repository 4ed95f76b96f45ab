package audio

import "sync"

// ring keeps the newest samples of a live stream. Capture callbacks write
// into it from their own thread while the analysis cycle reads frames out.
type ring struct {
	mu            sync.Mutex
	samples       []float32
	next          int
	filled        bool
	channels      int
	amplification float32
}

func newRing(size, channels int, amplification float32) *ring {
	if channels < 1 {
		channels = 1
	}
	return &ring{
		samples:       make([]float32, size),
		channels:      channels,
		amplification: amplification,
	}
}

// write appends interleaved input, averaging channels and applying gain
func (r *ring) write(in []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(in) / r.channels
	for i := 0; i < frames; i++ {
		sum := float32(0)
		for ch := 0; ch < r.channels; ch++ {
			sum += in[i*r.channels+ch]
		}
		r.samples[r.next] = (sum / float32(r.channels)) * r.amplification

		r.next++
		if r.next == len(r.samples) {
			r.next = 0
			r.filled = true
		}
	}
}

// latest copies the newest len(dst) samples into dst, oldest first. Until
// enough input has arrived the front of dst is zero-filled.
func (r *ring) latest(dst []float32) error {
	size := len(r.samples)
	if len(dst) == 0 || len(dst) > size {
		return ErrInvalidFrame
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	count := r.next
	if r.filled {
		count = size
	}

	pad := 0
	if len(dst) > count {
		pad = len(dst) - count
		clear(dst[:pad])
	}

	take := len(dst) - pad
	start := (r.next - take + size) % size
	n := copy(dst[pad:], r.samples[start:min(start+take, size)])
	copy(dst[pad+n:], r.samples[:take-n])

	return nil
}
