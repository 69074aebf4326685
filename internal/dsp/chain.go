// SPDX-License-Identifier: MIT
package dsp

import (
	"fmt"
	"strings"
)

// Band selects one stage of the three-band EQ.
type Band int

const (
	Low Band = iota
	Mid
	High

	NumBands = 3
)

func (b Band) String() string {
	switch b {
	case Low:
		return "low"
	case Mid:
		return "mid"
	case High:
		return "high"
	default:
		return fmt.Sprintf("Band(%d)", int(b))
	}
}

// Valid reports whether b names one of the three bands.
func (b Band) Valid() bool { return b >= Low && b <= High }

// ParseBand converts a band name (case-insensitive) to a Band.
func ParseBand(name string) (Band, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "low", "bass":
		return Low, nil
	case "mid":
		return Mid, nil
	case "high", "treble":
		return High, nil
	default:
		return Low, fmt.Errorf("unknown EQ band: '%s'", name)
	}
}

// EQ voicing.
const (
	LowShelfHz  = 320.0
	PeakingHz   = 1000.0
	PeakingQ    = 1.0
	HighShelfHz = 3200.0

	MinGainDB  = -40.0
	MaxGainDB  = 12.0
	KillGainDB = -40.0

	// valueRangeDB is the span a control value of 0..1 covers, centred on 0 dB.
	valueRangeDB = 24.0
)

// GainForValue maps a control value in [0,1] to (v-0.5)*24 dB. The value is
// clamped first.
func GainForValue(v float64) float64 {
	v = min(max(v, 0), 1)
	return (v - 0.5) * valueRangeDB
}

// ClampGain limits a gain to the EQ range.
func ClampGain(db float64) float64 {
	return min(max(db, MinGainDB), MaxGainDB)
}

// Gains holds the gain in dB of each band.
type Gains [NumBands]float64

// ChainCoefficients are the designed coefficients of the three stages.
type ChainCoefficients [NumBands]Coefficients

// DesignChain designs the low-shelf, peaking and high-shelf stages for g.
func DesignChain(g Gains, sampleRate float64) ChainCoefficients {
	return ChainCoefficients{
		Low:  LowShelf(LowShelfHz, ClampGain(g[Low]), sampleRate),
		Mid:  Peaking(PeakingHz, PeakingQ, ClampGain(g[Mid]), sampleRate),
		High: HighShelf(HighShelfHz, ClampGain(g[High]), sampleRate),
	}
}

// MagnitudeAt evaluates the cascade response at freq.
func (cc ChainCoefficients) MagnitudeAt(freq, sampleRate float64) float64 {
	m := 1.0
	for _, c := range cc {
		m *= c.MagnitudeAt(freq, sampleRate)
	}
	return m
}

// Chain runs the three stages in cascade on interleaved stereo. The zero
// value has no coefficients and outputs silence; use NewChain.
type Chain struct {
	stages [NumBands]Biquad
}

// NewChain returns a chain designed for flat gains at sampleRate.
func NewChain(sampleRate float64) *Chain {
	c := &Chain{}
	c.SetCoefficients(DesignChain(Gains{}, sampleRate))
	return c
}

// SetCoefficients installs new coefficients and keeps the filter memory.
func (c *Chain) SetCoefficients(cc ChainCoefficients) {
	for i := range c.stages {
		c.stages[i].SetCoefficients(cc[i])
	}
}

// Process filters interleaved stereo frames in place.
func (c *Chain) Process(buf []float32) {
	for i := range c.stages {
		c.stages[i].ProcessStereo(buf)
	}
}

// Reset clears the memory of every stage.
func (c *Chain) Reset() {
	for i := range c.stages {
		c.stages[i].Reset()
	}
}
