// SPDX-License-Identifier: MIT
package analysis

import "math"

const (
	// TempoWindowFrames is the analysis window of the tempo estimator.
	TempoWindowFrames = 1024

	// TempoPeakThreshold is the mean absolute amplitude above which a window
	// counts as an energy peak.
	TempoPeakThreshold = 0.1

	// beatsPerPeak scales the peak rate to beats per minute: 60 seconds times
	// four beats, one energy peak per bar.
	beatsPerPeak = 60 * 4
)

// EstimateBPM estimates the tempo of an interleaved PCM buffer from its first
// channel using an energy-onset heuristic: the signal is cut into windows of
// TempoWindowFrames, each window whose mean absolute amplitude exceeds
// TempoPeakThreshold is a peak, and the peak rate per second times 240 is
// rounded to the estimate.
//
// Windows are stepped while the window start is below frameCount minus the
// window size, so the final full window is never inspected. A silent buffer
// or one shorter than a window yields 0, meaning the tempo is unknown.
//
// The result is deterministic; it is not a beat tracker.
func EstimateBPM(samples []float32, channels int, sampleRate float64) float64 {
	if channels < 1 || sampleRate <= 0 {
		return 0
	}
	frames := len(samples) / channels
	if frames == 0 {
		return 0
	}

	peaks := 0
	for start := 0; start < frames-TempoWindowFrames; start += TempoWindowFrames {
		var sum float64
		for j := 0; j < TempoWindowFrames; j++ {
			sum += math.Abs(float64(samples[(start+j)*channels]))
		}
		if sum/TempoWindowFrames > TempoPeakThreshold {
			peaks++
		}
	}

	peakRate := float64(peaks) / (float64(frames) / sampleRate)
	return math.Round(peakRate * beatsPerPeak)
}

// SecondsPerBeat returns the beat interval for bpm, or 0 when the tempo is
// unknown.
func SecondsPerBeat(bpm float64) float64 {
	if bpm <= 0 {
		return 0
	}
	return 60 / bpm
}
