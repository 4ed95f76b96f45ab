// Package tuner runs the analysis cycle of an instrument tuner on top of an
// audio source: acquire a frame, estimate its pitch, map it to a note and
// hand the result to a display.
package tuner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/0xlemi/tunepitch/internal/audio"
	"github.com/0xlemi/tunepitch/internal/pitch"
)

// State of a tuning session
type State int

const (
	Idle State = iota
	Listening
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Errors
var (
	ErrAlreadyListening = errors.New("session already listening")
	ErrNotListening     = errors.New("session not listening")
	ErrStopped          = errors.New("session stopped during audio acquisition")
	ErrReferenceRange   = errors.New("reference pitch out of range")
)

// Session owns the audio handle, the reference pitch and the last detected
// frequency. It is safe for use from multiple goroutines; analysis cycles
// are serialized.
type Session struct {
	source      audio.Source
	constraints audio.Constraints
	sink        DisplaySink
	logger      *slog.Logger

	mu        sync.Mutex
	state     State
	handle    audio.Handle
	frame     []float32
	estimator *pitch.Estimator
	reference float64
	lastFreq  float64
	hasLast   bool
	id        string

	// gen changes on every Start and Stop, and when the source ends, so an
	// acquisition or cycle that finishes afterwards can tell it lost the race.
	gen       uint64
	acquiring bool
	cancel    context.CancelFunc

	// showMu orders sink updates so a cycle that lost to Stop cannot
	// publish after the no-signal display.
	showMu sync.Mutex
}

// Option configures a Session
type Option func(*Session)

// WithSink sets where each cycle's display goes
func WithSink(sink DisplaySink) Option {
	return func(s *Session) {
		s.sink = sink
	}
}

// WithLogger sets the session logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithReference sets the initial A4 pitch, rounded and clamped into range.
// NaN keeps the standard pitch.
func WithReference(reference float64) Option {
	return func(s *Session) {
		if math.IsNaN(reference) {
			return
		}
		s.reference = pitch.ClampReference(math.Round(reference))
	}
}

// WithConstraints sets the stream requested from the source
func WithConstraints(c audio.Constraints) Option {
	return func(s *Session) {
		s.constraints = c
	}
}

// NewSession creates an idle session reading from source
func NewSession(source audio.Source, opts ...Option) *Session {
	s := &Session{
		source: source,
		constraints: audio.Constraints{
			SampleRate: 44100,
			FrameSize:  2048,
			Channels:   1,
		},
		sink:      discardSink{},
		logger:    slog.Default(),
		reference: pitch.StandardReference,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "tuner")
	return s
}

// Start acquires the audio source and begins listening. It blocks until the
// source is open. A failure leaves the session idle and returns an
// *audio.AcquisitionError; a Stop issued meanwhile makes Start return
// ErrStopped.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state == Listening || s.acquiring {
		s.mu.Unlock()
		return ErrAlreadyListening
	}
	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancel = cancel
	s.acquiring = true
	constraints := s.constraints
	s.mu.Unlock()

	handle, err := s.source.Open(ctx, constraints)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		if handle != nil {
			handle.Close()
		}
		s.logger.Info("audio acquisition abandoned after stop")
		return ErrStopped
	}
	s.acquiring = false
	s.cancel = nil

	if err != nil {
		var acqErr *audio.AcquisitionError
		if !errors.As(err, &acqErr) {
			err = &audio.AcquisitionError{Backend: "audio", Err: err}
		}
		s.logger.Warn("audio acquisition failed", "error", err)
		return err
	}

	s.handle = handle
	s.frame = make([]float32, constraints.FrameSize)
	s.estimator = pitch.NewEstimator(constraints.FrameSize)
	s.id = uuid.NewString()
	s.state = Listening

	s.logger.Info("listening",
		"session", s.id,
		"sample_rate", handle.SampleRate(),
		"frame_size", constraints.FrameSize,
		"a4", s.reference)

	return nil
}

// Stop cancels any pending acquisition and releases the audio source.
// Stopping an idle session is a no-op.
func (s *Session) Stop() error {
	s.mu.Lock()
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.acquiring = false
	wasListening := s.state == Listening
	err := s.release()
	s.mu.Unlock()

	if wasListening {
		s.show(NoSignal, 0, false)
	}
	return err
}

// release closes the handle and returns to Idle. Callers hold s.mu.
func (s *Session) release() error {
	if s.handle == nil {
		s.state = Idle
		return nil
	}

	err := s.handle.Close()
	if err != nil {
		s.logger.Warn("closing audio source", "session", s.id, "error", err)
	} else {
		s.logger.Info("stopped", "session", s.id)
	}

	s.handle = nil
	s.frame = nil
	s.estimator = nil
	s.id = ""
	s.state = Idle
	return err
}

// Cycle runs one analysis pass over the newest frame and shows the result.
// Frames without a pitch produce the NoSignal display and no error. A frame
// read failure stops the session.
func (s *Session) Cycle() (Display, error) {
	s.mu.Lock()
	if s.state != Listening {
		s.mu.Unlock()
		return NoSignal, ErrNotListening
	}

	if err := s.handle.ReadFrame(s.frame); err != nil {
		s.logger.Info("audio source ended", "session", s.id, "error", err)
		s.gen++
		s.release()
		s.mu.Unlock()
		s.show(NoSignal, 0, false)
		return NoSignal, fmt.Errorf("read frame: %w", err)
	}

	d := NoSignal
	freq, err := s.estimator.Estimate(s.frame, s.handle.SampleRate())
	if err == nil {
		s.lastFreq = freq
		s.hasLast = true
		d = NewDisplay(pitch.MapNote(freq, s.reference))
	}
	gen := s.gen
	s.mu.Unlock()

	s.show(d, gen, true)
	return d, nil
}

// show hands d to the sink. With checkGen set it is dropped when a Start or
// Stop happened since generation gen was read.
func (s *Session) show(d Display, gen uint64, checkGen bool) {
	s.showMu.Lock()
	defer s.showMu.Unlock()

	if checkGen {
		s.mu.Lock()
		stale := s.gen != gen
		s.mu.Unlock()
		if stale {
			return
		}
	}
	s.sink.Show(d)
}

// Calibrate treats the last detected frequency as the low E string and
// derives a new A4 from it. It reports false and changes nothing when the
// session is idle or nothing has been detected yet.
func (s *Session) Calibrate() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Listening || !s.hasLast {
		return s.reference, false
	}

	s.reference = pitch.Calibrate(s.lastFreq)
	s.logger.Info("calibrated", "session", s.id, "observed_hz", s.lastFreq, "a4", s.reference)
	return s.reference, true
}

// Reference returns the current A4 pitch in Hz
func (s *Session) Reference() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reference
}

// SetReference sets the A4 pitch, rounded to a whole Hz
func (s *Session) SetReference(reference float64) error {
	r := math.Round(reference)
	if math.IsNaN(r) || r < pitch.MinReference || r > pitch.MaxReference {
		return fmt.Errorf("%w: %g not in [%g, %g]", ErrReferenceRange, reference, pitch.MinReference, pitch.MaxReference)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reference = r
	return nil
}

// State returns whether the session is listening
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Acquiring reports whether a Start is still waiting for the audio source
func (s *Session) Acquiring() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquiring
}

// ID identifies the current listening period, empty while idle
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// SampleRate returns the rate of the open audio source, 0 while idle
func (s *Session) SampleRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return 0
	}
	return s.handle.SampleRate()
}

// LastFrequency returns the most recent detected frequency, if any
func (s *Session) LastFrequency() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFreq, s.hasLast
}
