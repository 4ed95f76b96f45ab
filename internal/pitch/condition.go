package pitch

// conditionCoeff is the pole of the DC-removal filter
const conditionCoeff = 0.97

// Condition strips DC offset and low-frequency drift from frame in place.
//
// It applies y[i] = x[i] - 0.97*x[i-1], where x[i-1] is the unfiltered
// previous sample and the sample before the frame is taken as zero.
func Condition(frame []float32) {
	last := 0.0
	for i, sample := range frame {
		x := float64(sample)
		frame[i] = float32(x - conditionCoeff*last)
		last = x
	}
}
