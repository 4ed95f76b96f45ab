package pitch

import (
	"errors"
	"math"
)

// Errors reported when a frame carries no usable fundamental
var (
	ErrEmptyFrame = errors.New("empty audio frame")
	ErrSilence    = errors.New("volume below threshold")
	ErrNoPeak     = errors.New("no positive correlation peak")
	ErrOutOfRange = errors.New("frequency outside detectable range")
)

const (
	// SilenceRMS is the RMS level below which a frame counts as silence
	SilenceRMS = 0.008

	// MinFrequency and MaxFrequency bound the accepted fundamental (Hz)
	MinFrequency = 40.0
	MaxFrequency = 1400.0

	// peakThreshold is the fraction of the strongest correlation an earlier
	// peak needs to be preferred over it.
	peakThreshold = 0.9
)

// IsNoPitch reports whether err means the frame simply had no detectable pitch.
func IsNoPitch(err error) bool {
	return errors.Is(err, ErrEmptyFrame) ||
		errors.Is(err, ErrSilence) ||
		errors.Is(err, ErrNoPeak) ||
		errors.Is(err, ErrOutOfRange)
}

// Estimator finds the fundamental frequency of a frame by time-domain
// autocorrelation. It keeps a correlogram scratch buffer between calls, so a
// single Estimator must not be shared by concurrent callers.
type Estimator struct {
	corr []float64
}

// NewEstimator creates an estimator sized for frames of frameSize samples.
func NewEstimator(frameSize int) *Estimator {
	return &Estimator{corr: make([]float64, frameSize/2)}
}

// Estimate returns the fundamental frequency of frame in Hz.
//
// The frame is conditioned in place, so callers must hand in a fresh frame on
// every call. A frame without a reliable pitch yields one of the errors
// matched by IsNoPitch.
func (e *Estimator) Estimate(frame []float32, sampleRate float64) (float64, error) {
	if len(frame) < 2 {
		return 0, ErrEmptyFrame
	}

	if rms(frame) < SilenceRMS {
		return 0, ErrSilence
	}

	Condition(frame)

	corr := e.correlogram(frame)

	best := bestLag(corr)
	if best <= 0 {
		return 0, ErrNoPeak
	}

	period := float64(best) + parabolicShift(corr, best)
	frequency := sampleRate / period

	if frequency < MinFrequency || frequency > MaxFrequency {
		return 0, ErrOutOfRange
	}

	return frequency, nil
}

// correlogram computes the unnormalized autocorrelation of frame for every
// lag in [0, len(frame)/2).
func (e *Estimator) correlogram(frame []float32) []float64 {
	m := len(frame) / 2
	if cap(e.corr) < m {
		e.corr = make([]float64, m)
	}
	corr := e.corr[:m]

	for offset := 0; offset < m; offset++ {
		sum := 0.0
		for i := 0; i < m; i++ {
			sum += float64(frame[i]) * float64(frame[i+offset])
		}
		corr[offset] = sum
	}

	return corr
}

// bestLag picks the lag of the fundamental period, or -1 if the correlogram
// has no positive peak outside the zero-lag lobe or its maximum sits on the
// last lag.
func bestLag(corr []float64) int {
	// corr[0] is the frame energy and always dominates, so skip the lobe
	// around it before looking for a period.
	start := 1
	for start < len(corr) && corr[start] > 0 {
		start++
	}

	best := -1
	bestCorr := 0.0
	for offset := start; offset < len(corr); offset++ {
		if corr[offset] > bestCorr {
			bestCorr = corr[offset]
			best = offset
		}
	}
	if best <= 0 {
		return -1
	}

	// Prefer the first strong peak over a slightly stronger multiple of it.
	for offset := start + 1; offset < best; offset++ {
		c := corr[offset]
		if c >= bestCorr*peakThreshold && c >= corr[offset-1] && c >= corr[offset+1] {
			return offset
		}
	}

	// Still rising at the last lag: the period is longer than the window
	if best == len(corr)-1 {
		return -1
	}

	return best
}

// parabolicShift refines the peak at lag best to sub-sample precision.
// The result lies in [-0.5, 0.5] because corr[best] is a local maximum.
func parabolicShift(corr []float64, best int) float64 {
	y0 := 0.0
	if best > 0 {
		y0 = corr[best-1]
	}
	y1 := corr[best]
	y2 := 0.0
	if best+1 < len(corr) {
		y2 = corr[best+1]
	}

	// A flat top has no vertex to move toward
	denominator := 2 * (2*y1 - y0 - y2)
	if denominator <= 0 {
		return 0
	}

	return (y2 - y0) / denominator
}

// rms returns the root-mean-square level of samples
func rms(samples []float32) float64 {
	sumSquares := 0.0
	for _, sample := range samples {
		v := float64(sample)
		sumSquares += v * v
	}
	return math.Sqrt(sumSquares / float64(len(samples)))
}
