package audio

import (
	"fmt"
	"log/slog"

	"github.com/0xlemi/tunepitch/internal/config"
)

// NewSource builds the Source selected by cfg.Backend
func NewSource(cfg config.Audio, logger *slog.Logger) (Source, error) {
	switch cfg.Backend {
	case config.BackendPortAudio:
		return &PortAudioSource{Amplification: float32(cfg.Amplification)}, nil
	case config.BackendMalgo:
		return &MalgoSource{Amplification: float32(cfg.Amplification), Logger: logger}, nil
	case config.BackendWAV:
		return &WAVSource{Path: cfg.File, Hop: cfg.Hop, Loop: cfg.Loop}, nil
	case config.BackendTone:
		return &ToneSource{Frequency: cfg.ToneFrequency}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// ConstraintsFrom derives stream constraints from the audio settings
func ConstraintsFrom(cfg config.Audio) Constraints {
	return Constraints{
		SampleRate: cfg.SampleRate,
		FrameSize:  cfg.FrameSize,
		Channels:   cfg.Channels,
		Device:     cfg.Device,
	}
}
