package pitch

import (
	"fmt"
	"math"
)

// StandardReference is the default A4 frequency in Hz
const StandardReference = 440.0

// midiA4 is the MIDI number of A4
const midiA4 = 69

// Note represents a musical note
type Note struct {
	Name      string  // e.g., "A", "A#", "B"
	Octave    int     // e.g., 4 for middle C (C4)
	MIDI      int     // MIDI note number, 69 = A4
	Cents     int     // Deviation from the equal-tempered pitch, floored
	Frequency float64 // Frequency in Hz
}

// String renders the note as name and octave, e.g. "A#4"
func (n Note) String() string {
	return fmt.Sprintf("%s%d", n.Name, n.Octave)
}

// All note names in chromatic order
var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// MapNote converts a frequency to the nearest equal-tempered note relative to
// the given A4 reference. Both arguments must be positive.
//
// Cents are floored rather than rounded, so a pitch a hair flat of a note
// reads -1 instead of 0.
func MapNote(frequency, reference float64) Note {
	raw := midiA4 + 12*math.Log2(frequency/reference)

	// Halves round up, toward sharp
	midi := int(math.Floor(raw + 0.5))
	cents := int(math.Floor((raw - float64(midi)) * 100))

	return Note{
		Name:      noteNames[((midi%12)+12)%12],
		Octave:    floorDiv(midi, 12) - 1,
		MIDI:      midi,
		Cents:     cents,
		Frequency: frequency,
	}
}

// NoteFrequency returns the equal-tempered frequency of a MIDI note number
// for the given A4 reference.
func NoteFrequency(midi int, reference float64) float64 {
	return reference * math.Pow(2, float64(midi-midiA4)/12)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
