// Package config holds the tunable settings of the tuner and its hosts.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/0xlemi/tunepitch/internal/pitch"
)

// Audio backends
const (
	BackendPortAudio = "portaudio"
	BackendMalgo     = "malgo"
	BackendWAV       = "wav"
	BackendTone      = "tone"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid configuration")

// Config groups every setting of the application
type Config struct {
	Audio  Audio
	Tuner  Tuner
	Log    Log
	Server Server
}

// Audio selects and shapes the input stream
type Audio struct {
	Backend       string  // One of the Backend* constants
	Device        string  // Capture device name filter, empty for the default device
	SampleRate    int     // Requested capture rate (Hz)
	FrameSize     int     // Analysis window N in samples
	Channels      int     // Capture channels, averaged down to mono
	Amplification float64 // Input gain applied before analysis
	File          string  // WAV file for the wav backend
	Hop           int     // Samples advanced per frame when replaying a file, 0 means FrameSize
	Loop          bool    // Restart the file at its end instead of stopping
	ToneFrequency float64 // Fundamental of the synthetic tone backend (Hz)
}

// Tuner holds the analysis settings
type Tuner struct {
	Reference float64       // Initial A4 reference (Hz)
	Interval  time.Duration // Time between analysis cycles
}

// Log configures the structured logger
type Log struct {
	Level string // debug, info, warn or error
	File  string // Log destination; empty means stderr, or nowhere in the terminal UI
}

// Server configures the HTTP control surface
type Server struct {
	Addr           string
	AllowedOrigins []string
}

// DefaultConfig returns the settings used when no flags are given
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Audio.Backend = BackendPortAudio
	cfg.Audio.SampleRate = 44100
	cfg.Audio.FrameSize = 2048
	cfg.Audio.Channels = 1
	cfg.Audio.Amplification = 1.0
	cfg.Audio.ToneFrequency = 110.0

	cfg.Tuner.Reference = pitch.StandardReference
	cfg.Tuner.Interval = time.Second / 30

	cfg.Log.Level = "info"

	cfg.Server.Addr = ":8080"
	cfg.Server.AllowedOrigins = []string{"*"}

	return cfg
}

// BindFlags registers command-line flags that write into c
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Audio.Backend, "backend", c.Audio.Backend, "audio backend: portaudio, malgo, wav or tone")
	fs.StringVar(&c.Audio.Device, "device", c.Audio.Device, "capture device name filter")
	fs.IntVar(&c.Audio.SampleRate, "sample-rate", c.Audio.SampleRate, "capture sample rate in Hz")
	fs.IntVar(&c.Audio.FrameSize, "frame-size", c.Audio.FrameSize, "analysis window size in samples")
	fs.IntVar(&c.Audio.Channels, "channels", c.Audio.Channels, "capture channels, mixed down to mono")
	fs.Float64Var(&c.Audio.Amplification, "gain", c.Audio.Amplification, "input amplification factor")
	fs.StringVar(&c.Audio.File, "file", c.Audio.File, "WAV file for the wav backend")
	fs.IntVar(&c.Audio.Hop, "hop", c.Audio.Hop, "samples advanced per frame when replaying a file (0 = frame size)")
	fs.BoolVar(&c.Audio.Loop, "loop", c.Audio.Loop, "loop the WAV file")
	fs.Float64Var(&c.Audio.ToneFrequency, "tone", c.Audio.ToneFrequency, "fundamental of the tone backend in Hz")

	fs.Float64Var(&c.Tuner.Reference, "a4", c.Tuner.Reference, "reference pitch for A4 in Hz")
	fs.DurationVar(&c.Tuner.Interval, "interval", c.Tuner.Interval, "time between analysis cycles")

	fs.StringVar(&c.Log.Level, "log-level", c.Log.Level, "log level: debug, info, warn or error")
	fs.StringVar(&c.Log.File, "log-file", c.Log.File, "write logs to this file")

	fs.StringVar(&c.Server.Addr, "addr", c.Server.Addr, "HTTP listen address for serve")
	fs.StringSliceVar(&c.Server.AllowedOrigins, "allowed-origins", c.Server.AllowedOrigins, "CORS origins allowed by serve")
}

// Validate checks that the settings can be used together
func (c *Config) Validate() error {
	switch c.Audio.Backend {
	case BackendPortAudio, BackendMalgo, BackendTone:
	case BackendWAV:
		if c.Audio.File == "" {
			return fmt.Errorf("%w: the wav backend needs a file", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalid, c.Audio.Backend)
	}

	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalid, c.Audio.SampleRate)
	}
	if c.Audio.FrameSize < 64 || c.Audio.FrameSize%2 != 0 {
		return fmt.Errorf("%w: frame size %d must be even and at least 64", ErrInvalid, c.Audio.FrameSize)
	}
	if c.Audio.Channels < 1 {
		return fmt.Errorf("%w: channels %d", ErrInvalid, c.Audio.Channels)
	}
	if math.IsNaN(c.Audio.Amplification) || c.Audio.Amplification <= 0 {
		return fmt.Errorf("%w: gain %g", ErrInvalid, c.Audio.Amplification)
	}
	if c.Audio.Hop < 0 {
		return fmt.Errorf("%w: hop %d", ErrInvalid, c.Audio.Hop)
	}
	if math.IsNaN(c.Audio.ToneFrequency) || c.Audio.ToneFrequency <= 0 {
		return fmt.Errorf("%w: tone frequency %g", ErrInvalid, c.Audio.ToneFrequency)
	}

	if math.IsNaN(c.Tuner.Reference) || c.Tuner.Reference < pitch.MinReference || c.Tuner.Reference > pitch.MaxReference {
		return fmt.Errorf("%w: A4 %g outside [%g, %g]", ErrInvalid, c.Tuner.Reference, pitch.MinReference, pitch.MaxReference)
	}
	if c.Tuner.Interval <= 0 {
		return fmt.Errorf("%w: interval %s", ErrInvalid, c.Tuner.Interval)
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}

	return nil
}

// SlogLevel parses the configured level name
func (l Log) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(l.Level))); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalid, l.Level)
	}
	return level, nil
}
