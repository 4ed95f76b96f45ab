package pitch

import "math"

const (
	// MinReference and MaxReference bound the A4 reference pitch (Hz)
	MinReference = 430.0
	MaxReference = 450.0

	// CalibrationMIDI is the note assumed to be played during calibration,
	// the lowest open string of a guitar (E2).
	CalibrationMIDI = 40
)

// Calibrate derives a new A4 reference from an observed frequency that is
// assumed to be E2. The result is rounded to a whole Hz and clamped to
// [MinReference, MaxReference].
func Calibrate(observed float64) float64 {
	a4 := observed * math.Pow(2, float64(midiA4-CalibrationMIDI)/12)
	return ClampReference(math.Round(a4))
}

// ClampReference limits a reference pitch to [MinReference, MaxReference].
func ClampReference(reference float64) float64 {
	return math.Max(MinReference, math.Min(MaxReference, reference))
}
