package tuner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/0xlemi/tunepitch/internal/pitch"
)

func TestNeedleDegrees(t *testing.T) {
	tests := []struct {
		cents int
		want  float64
	}{
		{0, 0},
		{25, 20},
		{-25, -20},
		{50, 40},
		{-50, -40},
		{80, 40},
		{-120, -40},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NeedleDegrees(tt.cents), "%d cents", tt.cents)
	}
}

func TestNewDisplay(t *testing.T) {
	d := NewDisplay(pitch.MapNote(445, 440))

	assert.True(t, d.Signal)
	assert.Equal(t, "A4", d.Note.String())
	assert.InDelta(t, 19.0/50*40, d.Needle, 1e-12)

	assert.False(t, NoSignal.Signal)
	assert.Zero(t, NoSignal.Needle)
}
