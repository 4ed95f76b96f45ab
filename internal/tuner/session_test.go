package tuner

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xlemi/tunepitch/internal/audio"
)

// fakeHandle plays back whatever fill writes into each frame
type fakeHandle struct {
	mu      sync.Mutex
	rate    float64
	fill    func(frame []float32)
	readErr error
	closed  int
}

func (h *fakeHandle) SampleRate() float64 { return h.rate }

func (h *fakeHandle) ReadFrame(frame []float32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.readErr != nil {
		return h.readErr
	}
	if h.fill != nil {
		h.fill(frame)
	} else {
		clear(frame)
	}
	return nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed++
	return nil
}

func (h *fakeHandle) closeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// fakeSource hands out handle, or fails with openErr. When gate is set, Open
// reports on opening and waits for gate to close before returning.
type fakeSource struct {
	handle  *fakeHandle
	openErr error
	opening chan struct{}
	gate    chan struct{}
}

func (s *fakeSource) Open(ctx context.Context, _ audio.Constraints) (audio.Handle, error) {
	if s.gate != nil {
		close(s.opening)
		<-s.gate
	}
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.handle, nil
}

type recordingSink struct {
	mu    sync.Mutex
	shown []Display
}

func (r *recordingSink) Show(d Display) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = append(r.shown, d)
}

func (r *recordingSink) all() []Display {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Display(nil), r.shown...)
}

func toneSession(t *testing.T, freq float64, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithConstraints(audio.Constraints{SampleRate: 44100, FrameSize: 2048, Channels: 1})}, opts...)
	return NewSession(&audio.ToneSource{Frequency: freq}, opts...)
}

func TestSession_StartCycleStop(t *testing.T) {
	sink := &recordingSink{}
	s := toneSession(t, 220, WithSink(sink))
	assert.Equal(t, Idle, s.State())

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, Listening, s.State())
	assert.NotEmpty(t, s.ID())

	d, err := s.Cycle()
	require.NoError(t, err)
	require.True(t, d.Signal)
	assert.Equal(t, "A3", d.Note.String())
	assert.Equal(t, 57, d.Note.MIDI)
	assert.InEpsilon(t, 220.0, d.Note.Frequency, 0.01)

	last, ok := s.LastFrequency()
	assert.True(t, ok)
	assert.Equal(t, d.Note.Frequency, last)

	require.NoError(t, s.Stop())
	assert.Equal(t, Idle, s.State())
	assert.Empty(t, s.ID())

	shown := sink.all()
	require.Len(t, shown, 2)
	assert.Equal(t, d, shown[0])
	assert.Equal(t, NoSignal, shown[1])
}

func TestSession_StopIsIdempotent(t *testing.T) {
	h := &fakeHandle{rate: 44100}
	s := NewSession(&fakeSource{handle: h})

	require.NoError(t, s.Stop())
	assert.Equal(t, Idle, s.State())

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	assert.Equal(t, Idle, s.State())
	assert.Equal(t, 1, h.closeCount())
}

func TestSession_StartTwice(t *testing.T) {
	s := NewSession(&fakeSource{handle: &fakeHandle{rate: 44100}})
	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyListening)
	assert.Equal(t, Listening, s.State())
}

func TestSession_AcquisitionFailure(t *testing.T) {
	denied := errors.New("permission denied")
	s := NewSession(&fakeSource{openErr: denied})

	err := s.Start(context.Background())

	var acqErr *audio.AcquisitionError
	require.ErrorAs(t, err, &acqErr)
	assert.ErrorIs(t, err, denied)
	assert.Equal(t, Idle, s.State())

	// Not retried, but a later Start may succeed
	_, err = s.Cycle()
	assert.ErrorIs(t, err, ErrNotListening)
}

func TestSession_StopDuringAcquisition(t *testing.T) {
	h := &fakeHandle{rate: 44100}
	src := &fakeSource{handle: h, opening: make(chan struct{}), gate: make(chan struct{})}
	s := NewSession(src)

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	<-src.opening
	require.NoError(t, s.Stop())
	close(src.gate)

	assert.ErrorIs(t, <-done, ErrStopped)
	assert.Equal(t, Idle, s.State())
	assert.Equal(t, 1, h.closeCount(), "late handle must be released")

	_, err := s.Cycle()
	assert.ErrorIs(t, err, ErrNotListening)
}

func TestSession_StopCancelsAcquisitionContext(t *testing.T) {
	opening := make(chan struct{})
	src := audioSourceFunc(func(ctx context.Context, _ audio.Constraints) (audio.Handle, error) {
		close(opening)
		<-ctx.Done()
		return nil, &audio.AcquisitionError{Backend: "test", Err: ctx.Err()}
	})
	s := NewSession(src)

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	<-opening
	require.NoError(t, s.Stop())
	assert.ErrorIs(t, <-done, ErrStopped)
	assert.Equal(t, Idle, s.State())
}

type audioSourceFunc func(ctx context.Context, c audio.Constraints) (audio.Handle, error)

func (f audioSourceFunc) Open(ctx context.Context, c audio.Constraints) (audio.Handle, error) {
	return f(ctx, c)
}

func TestSession_SilenceShowsNoSignal(t *testing.T) {
	sink := &recordingSink{}
	s := NewSession(&fakeSource{handle: &fakeHandle{rate: 44100}}, WithSink(sink))
	require.NoError(t, s.Start(context.Background()))

	d, err := s.Cycle()
	require.NoError(t, err)
	assert.Equal(t, NoSignal, d)
	assert.Equal(t, []Display{NoSignal}, sink.all())

	_, ok := s.LastFrequency()
	assert.False(t, ok)
}

func TestSession_ReadFailureStops(t *testing.T) {
	h := &fakeHandle{rate: 44100, readErr: io.EOF}
	s := NewSession(&fakeSource{handle: h})
	require.NoError(t, s.Start(context.Background()))

	_, err := s.Cycle()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, Idle, s.State())
	assert.Equal(t, 1, h.closeCount())
}

func TestSession_Calibrate(t *testing.T) {
	s := toneSession(t, 82.4069)

	// Idle: no-op
	ref, ok := s.Calibrate()
	assert.False(t, ok)
	assert.Equal(t, 440.0, ref)

	require.NoError(t, s.SetReference(447))
	require.NoError(t, s.Start(context.Background()))

	// Listening but nothing detected yet: no-op
	ref, ok = s.Calibrate()
	assert.False(t, ok)
	assert.Equal(t, 447.0, ref)

	d, err := s.Cycle()
	require.NoError(t, err)
	require.True(t, d.Signal)

	ref, ok = s.Calibrate()
	assert.True(t, ok)
	assert.InDelta(t, 440.0, ref, 1)
	assert.Equal(t, ref, s.Reference())
}

func TestSession_ReferenceAffectsMapping(t *testing.T) {
	s := toneSession(t, 220, WithReference(450))
	require.NoError(t, s.Start(context.Background()))

	d, err := s.Cycle()
	require.NoError(t, err)
	require.True(t, d.Signal)
	assert.Equal(t, "A3", d.Note.String())
	// 220 Hz against A4=450 is about 39 cents flat
	assert.Less(t, d.Note.Cents, -30)
	assert.Less(t, d.Needle, -20.0)
}

func TestSession_SetReference(t *testing.T) {
	s := NewSession(&fakeSource{})

	require.NoError(t, s.SetReference(442.4))
	assert.Equal(t, 442.0, s.Reference())

	require.NoError(t, s.SetReference(429.6))
	assert.Equal(t, 430.0, s.Reference())

	assert.ErrorIs(t, s.SetReference(429.4), ErrReferenceRange)
	assert.ErrorIs(t, s.SetReference(451), ErrReferenceRange)
	assert.ErrorIs(t, s.SetReference(math.NaN()), ErrReferenceRange)
	assert.Equal(t, 430.0, s.Reference())
}

func TestWithReferenceClamps(t *testing.T) {
	assert.Equal(t, 450.0, NewSession(&fakeSource{}, WithReference(500)).Reference())
	assert.Equal(t, 441.0, NewSession(&fakeSource{}, WithReference(440.6)).Reference())
	assert.Equal(t, 440.0, NewSession(&fakeSource{}, WithReference(math.NaN())).Reference())
}

func TestSession_SampleRate(t *testing.T) {
	s := NewSession(&fakeSource{handle: &fakeHandle{rate: 48000}})
	assert.Zero(t, s.SampleRate())

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 48000.0, s.SampleRate())

	require.NoError(t, s.Stop())
	assert.Zero(t, s.SampleRate())
}

func TestSession_Acquiring(t *testing.T) {
	src := &fakeSource{handle: &fakeHandle{rate: 44100}, opening: make(chan struct{}), gate: make(chan struct{})}
	s := NewSession(src)
	assert.False(t, s.Acquiring())

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	<-src.opening
	assert.True(t, s.Acquiring())

	close(src.gate)
	require.NoError(t, <-done)
	assert.False(t, s.Acquiring())
	assert.Equal(t, Listening, s.State())
}

// blockingSink holds the first reading inside Show until release closes
type blockingSink struct {
	recordingSink
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingSink) Show(d Display) {
	if d.Signal {
		b.once.Do(func() {
			close(b.entered)
			<-b.release
		})
	}
	b.recordingSink.Show(d)
}

func TestSession_StopWinsOverInFlightReading(t *testing.T) {
	sink := &blockingSink{entered: make(chan struct{}), release: make(chan struct{})}
	s := toneSession(t, 220, WithSink(sink))
	require.NoError(t, s.Start(context.Background()))

	cycled := make(chan error, 1)
	go func() {
		_, err := s.Cycle()
		cycled <- err
	}()
	<-sink.entered

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop() }()
	require.Eventually(t, func() bool { return s.State() == Idle }, time.Second, time.Millisecond)

	close(sink.release)
	require.NoError(t, <-cycled)
	require.NoError(t, <-stopped)

	shown := sink.all()
	require.NotEmpty(t, shown)
	assert.Equal(t, NoSignal, shown[len(shown)-1], "no reading may follow stop")
}
