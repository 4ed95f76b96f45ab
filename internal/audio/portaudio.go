package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
	"golang.org/x/exp/constraints"
)

// PortAudioSource captures microphone input through PortAudio
type PortAudioSource struct {
	Amplification float32 // Audio signal amplification factor
}

// portAudioHandle is an open PortAudio input stream
type portAudioHandle struct {
	stream     *portaudio.Stream
	ring       *ring
	sampleRate float64
	closeOnce  sync.Once
	closeErr   error
}

// Open initializes PortAudio and starts an input stream
func (s *PortAudioSource) Open(ctx context.Context, c Constraints) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, &AcquisitionError{Backend: "portaudio", Err: err}
	}

	// Initialize PortAudio
	if err := portaudio.Initialize(); err != nil {
		return nil, &AcquisitionError{Backend: "portaudio", Err: err}
	}

	h := &portAudioHandle{
		ring:       newRing(ringSize(c.FrameSize), c.Channels, gain(s.Amplification)),
		sampleRate: float64(c.SampleRate),
	}

	stream, err := openStream(c, h.processAudio)
	if err != nil {
		portaudio.Terminate()
		return nil, &AcquisitionError{Backend: "portaudio", Err: err}
	}

	// Start the stream
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, &AcquisitionError{Backend: "portaudio", Err: err}
	}
	h.stream = stream

	// The caller may have given up while the device was opening
	if err := ctx.Err(); err != nil {
		h.Close()
		return nil, &AcquisitionError{Backend: "portaudio", Err: err}
	}

	return h, nil
}

// openStream opens the default input, or the first device whose name
// contains c.Device
func openStream(c Constraints, callback func(in, out []float32)) (*portaudio.Stream, error) {
	if c.Device == "" {
		return portaudio.OpenDefaultStream(
			c.Channels, // input channels
			0,          // output channels (we don't need output)
			float64(c.SampleRate),
			c.FrameSize, // frames per buffer
			callback,
		)
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, dev := range devices {
		if dev.MaxInputChannels < c.Channels {
			continue
		}
		if !strings.Contains(strings.ToLower(dev.Name), strings.ToLower(c.Device)) {
			continue
		}

		params := portaudio.LowLatencyParameters(dev, nil)
		params.Input.Channels = c.Channels
		params.SampleRate = float64(c.SampleRate)
		params.FramesPerBuffer = c.FrameSize
		return portaudio.OpenStream(params, callback)
	}

	return nil, fmt.Errorf("no input device matching %q", c.Device)
}

// processAudio is the callback function for audio processing
func (h *portAudioHandle) processAudio(in, _ []float32) {
	h.ring.write(in)
}

func (h *portAudioHandle) SampleRate() float64 {
	return h.sampleRate
}

func (h *portAudioHandle) ReadFrame(frame []float32) error {
	if h.stream == nil {
		return ErrClosed
	}
	return h.ring.latest(frame)
}

// Close stops the stream and terminates PortAudio
func (h *portAudioHandle) Close() error {
	h.closeOnce.Do(func() {
		stream := h.stream
		h.stream = nil
		if stream == nil {
			return
		}
		h.closeErr = errors.Join(stream.Stop(), stream.Close(), portaudio.Terminate())
	})
	return h.closeErr
}

// ringSize leaves room for a few callback buffers beyond one frame
func ringSize(frameSize int) int {
	return frameSize * 4
}

// gain keeps the amplification within [0.1, 10], defaulting to unity
func gain(amplification float32) float32 {
	if amplification <= 0 {
		return 1
	}
	return clamp(amplification, 0.1, 10)
}

func clamp[T constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
