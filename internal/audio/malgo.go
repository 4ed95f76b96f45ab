package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unsafe"

	"github.com/gen2brain/malgo"
)

// MalgoSource captures input through miniaudio
type MalgoSource struct {
	Amplification float32
	Logger        *slog.Logger
	Backends      []malgo.Backend // Backends to try in order, nil for the platform default
}

type malgoHandle struct {
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
	ring       *ring
	sampleRate float64
	closeOnce  sync.Once
	closeErr   error
}

// Open initializes a miniaudio context and starts a capture device
func (s *MalgoSource) Open(ctx context.Context, c Constraints) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, &AcquisitionError{Backend: "malgo", Err: err}
	}

	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mctx, err := malgo.InitContext(s.Backends, malgo.ContextConfig{}, func(message string) {
		logger.Debug("malgo", "message", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, &AcquisitionError{Backend: "malgo", Err: fmt.Errorf("init context: %w", err)}
	}

	h := &malgoHandle{
		ctx:  mctx,
		ring: newRing(ringSize(c.FrameSize), c.Channels, gain(s.Amplification)),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(c.Channels)
	deviceConfig.SampleRate = uint32(c.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	if c.Device != "" {
		info, err := findCaptureDevice(mctx, c.Device)
		if err != nil {
			h.freeContext()
			return nil, &AcquisitionError{Backend: "malgo", Err: err}
		}
		deviceConfig.Capture.DeviceID = info.ID.Pointer()
		logger.Info("selected capture device", "device", info.Name())
	}

	channels := c.Channels
	onRecvFrames := func(_, pInputSamples []byte, framecount uint32) {
		if len(pInputSamples) == 0 {
			return
		}
		samples := unsafe.Slice((*float32)(unsafe.Pointer(&pInputSamples[0])), int(framecount)*channels)
		h.ring.write(samples)
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		h.freeContext()
		return nil, &AcquisitionError{Backend: "malgo", Err: fmt.Errorf("init device: %w", err)}
	}
	h.device = device
	h.sampleRate = float64(device.SampleRate())

	if err := device.Start(); err != nil {
		h.Close()
		return nil, &AcquisitionError{Backend: "malgo", Err: fmt.Errorf("start device: %w", err)}
	}

	if err := ctx.Err(); err != nil {
		h.Close()
		return nil, &AcquisitionError{Backend: "malgo", Err: err}
	}

	return h, nil
}

// findCaptureDevice returns the first capture device whose name contains name
func findCaptureDevice(mctx *malgo.AllocatedContext, name string) (malgo.DeviceInfo, error) {
	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceInfo{}, fmt.Errorf("list capture devices: %w", err)
	}
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Name()), strings.ToLower(name)) {
			return info, nil
		}
	}
	return malgo.DeviceInfo{}, fmt.Errorf("no input device matching %q", name)
}

func (h *malgoHandle) SampleRate() float64 {
	return h.sampleRate
}

func (h *malgoHandle) ReadFrame(frame []float32) error {
	if h.device == nil {
		return ErrClosed
	}
	return h.ring.latest(frame)
}

func (h *malgoHandle) Close() error {
	h.closeOnce.Do(func() {
		var stopErr error
		if h.device != nil {
			stopErr = h.device.Stop()
			h.device.Uninit()
			h.device = nil
		}
		h.closeErr = errors.Join(stopErr, h.freeContext())
	})
	return h.closeErr
}

func (h *malgoHandle) freeContext() error {
	if h.ctx == nil {
		return nil
	}
	err := h.ctx.Uninit()
	h.ctx.Free()
	h.ctx = nil
	if err != nil {
		return fmt.Errorf("uninit context: %w", err)
	}
	return nil
}
