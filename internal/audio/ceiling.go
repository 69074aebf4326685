// SPDX-License-Identifier: MIT
package audio

import "math"

// SetCeiling adjusts the output clip ceiling.
// The value is in the range of (0.0, 1.0] where 1 clips at full scale.
// Values at or below zero select full scale.
func (e *Engine) SetCeiling(ceiling float64) {
	if ceiling <= 0 || ceiling > 1 {
		ceiling = 1
	}
	e.ceiling.Store(math.Float32bits(float32(ceiling)))
}

// Ceiling returns the current output clip ceiling.
func (e *Engine) Ceiling() float64 {
	return float64(math.Float32frombits(e.ceiling.Load()))
}

// clip limits every sample of buf to [-ceiling, ceiling] in place.
func clip(buf []float32, ceiling float32) {
	for i, s := range buf {
		buf[i] = clipSample(s, ceiling)
	}
}

func clipSample(s, ceiling float32) float32 {
	return min(max(s, -ceiling), ceiling)
}
