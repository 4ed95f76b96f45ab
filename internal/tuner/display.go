package tuner

import (
	"math"

	"github.com/0xlemi/tunepitch/internal/pitch"
)

// MaxNeedleDegrees is the needle deflection at ±50 cents
const MaxNeedleDegrees = 40.0

// Display is what one analysis cycle shows to the user
type Display struct {
	Signal bool       // False when no pitch was found
	Note   pitch.Note // Valid only when Signal is set
	Needle float64    // Needle deflection in degrees, 0 without signal
}

// NoSignal is the neutral display
var NoSignal = Display{}

// NewDisplay builds the display for a detected note
func NewDisplay(note pitch.Note) Display {
	return Display{
		Signal: true,
		Note:   note,
		Needle: NeedleDegrees(note.Cents),
	}
}

// NeedleDegrees maps a cents deviation onto the dial
func NeedleDegrees(cents int) float64 {
	clamped := math.Max(-50, math.Min(50, float64(cents)))
	return clamped / 50 * MaxNeedleDegrees
}

// DisplaySink receives the result of every analysis cycle
type DisplaySink interface {
	Show(d Display)
}

// SinkFunc adapts a function to DisplaySink
type SinkFunc func(d Display)

func (f SinkFunc) Show(d Display) {
	f(d)
}

type discardSink struct{}

func (discardSink) Show(Display) {}
