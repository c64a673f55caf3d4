package audio

import "math"

// Level smoothing weights. Chosen to keep UI meters steady without lagging
// behind speech onsets.
const (
	levelWeightNew = 0.7
	levelWeightOld = 0.3
)

// LevelMeter tracks a smoothed amplitude level for display purposes.
type LevelMeter struct {
	smoothed float64
}

// Update folds a block of normalized samples into the smoothed level and
// returns the new value on a 0-100 scale.
func (m *LevelMeter) Update(block []float32) float64 {
	rms := RMSFloat32(block)
	level := rms * 100
	m.smoothed = level*levelWeightNew + m.smoothed*levelWeightOld
	return m.smoothed
}

// Level returns the current smoothed value.
func (m *LevelMeter) Level() float64 {
	return m.smoothed
}

// Reset clears the smoothed level.
func (m *LevelMeter) Reset() {
	m.smoothed = 0
}

// RMSFloat32 computes the root-mean-square amplitude of a sample block.
func RMSFloat32(block []float32) float64 {
	if len(block) == 0 {
		return 0
	}
	sum := 0.0
	for _, sample := range block {
		value := float64(sample)
		sum += value * value
	}
	return math.Sqrt(sum / float64(len(block)))
}
