// SPDX-License-Identifier: MIT
package analysis

import "math"

// bandScale maps the RMS magnitude of a band onto roughly [0,1].
const bandScale = 50.0

// FrequencyBand defines the name and frequency range for an energy band.
type FrequencyBand struct {
	Name   string
	LowHz  float64
	HighHz float64
}

// DefaultBands returns the six level bands, the top one running to Nyquist.
func DefaultBands(sampleRate float64) []FrequencyBand {
	return []FrequencyBand{
		{Name: "sub", LowHz: 20, HighHz: 60},
		{Name: "bass", LowHz: 60, HighHz: 250},
		{Name: "lowMid", LowHz: 250, HighHz: 500},
		{Name: "mid", LowHz: 500, HighHz: 2000},
		{Name: "highMid", LowHz: 2000, HighHz: 4000},
		{Name: "treble", LowHz: 4000, HighHz: sampleRate / 2},
	}
}

// BandLevel is the normalised energy of one band.
type BandLevel struct {
	Name  string  `json:"name"`
	Level float64 `json:"level"`
}

// Levels summarises the most recent analyzer frame.
type Levels struct {
	RMS   float64     `json:"rms"`
	Peak  float64     `json:"peak"`
	Bands []BandLevel `json:"bands"`
}

// Levels returns the RMS and peak of the most recent frame together with the
// energy of each band, clamped to [0,1].
func (a *Analyzer) Levels() Levels {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.updateSpectrum()

	frame := a.frames[a.front]
	out := Levels{RMS: calculateRMS(frame), Peak: calculatePeak(frame)}

	bands := DefaultBands(a.sampleRate)
	out.Bands = make([]BandLevel, len(bands))
	binHz := a.sampleRate / float64(a.fftSize)
	for i, band := range bands {
		var energy float64
		bins := 0
		for k, mag := range a.magnitude {
			freq := float64(k) * binHz
			if freq >= band.LowHz && freq < band.HighHz {
				energy += mag * mag
				bins++
			}
		}
		level := 0.0
		if bins > 0 {
			level = math.Min(1, math.Sqrt(energy/float64(bins))*bandScale)
		}
		out.Bands[i] = BandLevel{Name: band.Name, Level: level}
	}
	return out
}

// calculateRMS returns the root mean square of the samples.
func calculateRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func calculatePeak(samples []float32) float64 {
	var peak float64
	for _, s := range samples {
		peak = math.Max(peak, math.Abs(float64(s)))
	}
	return peak
}
