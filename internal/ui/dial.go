package ui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/0xlemi/tunepitch/internal/tuner"
)

// dialWidth is the number of cells across the tuning dial; odd so the
// in-tune mark sits in the middle
const dialWidth = 41

var (
	inTuneColor  = colorful.Color{R: 0, G: 0.85, B: 0.35}
	outTuneColor = colorful.Color{R: 1, G: 0.2, B: 0.2}

	scaleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#555555"))
)

// needleColor fades from green at the center to red at full deflection
func needleColor(needle float64) lipgloss.Color {
	t := math.Min(1, math.Abs(needle)/tuner.MaxNeedleDegrees)
	return lipgloss.Color(inTuneColor.BlendLab(outTuneColor, t).Clamped().Hex())
}

// needleCell maps a deflection in degrees onto a cell of a dial width cells wide
func needleCell(needle float64, width int) int {
	center := width / 2
	offset := needle / tuner.MaxNeedleDegrees * float64(center)
	cell := center + int(math.Round(offset))
	return max(0, min(width-1, cell))
}

// renderDial draws the scale with the needle; without a signal the needle
// rests in the middle and is not drawn
func renderDial(d tuner.Display, width int) string {
	center := width / 2
	cells := make([]string, width)
	for i := range cells {
		switch {
		case i == center:
			cells[i] = "|"
		case (i-center)%(center/2) == 0:
			cells[i] = "'"
		default:
			cells[i] = "-"
		}
	}

	scale := scaleStyle.Render(strings.Join(cells, ""))
	if !d.Signal {
		return scale + "\n" + strings.Repeat(" ", width)
	}

	pos := needleCell(d.Needle, width)
	needle := lipgloss.NewStyle().Bold(true).Foreground(needleColor(d.Needle)).Render("^")
	return scale + "\n" + strings.Repeat(" ", pos) + needle + strings.Repeat(" ", width-pos-1)
}
