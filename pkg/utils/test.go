// SPDX-License-Identifier: MIT
//
// Package utils holds signal generators and doubles shared by the tests of
// the engine packages. Generated signals are float32 PCM on a [-1, 1] scale.
package utils

import (
	"math"
	"sync"
)

// MockTransport implements transport.Transport for tests by recording what
// it is sent instead of transmitting it.
type MockTransport struct {
	mu       sync.Mutex
	LastData any
	Count    int
	Closed   bool
}

// Send stores the data for later inspection. Byte and float slices are
// copied so the caller may reuse its buffers.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := data.(type) {
	case []byte:
		m.LastData = append([]byte(nil), v...)
	case []float64:
		m.LastData = append([]float64(nil), v...)
	default:
		m.LastData = data
	}
	m.Count++
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.Closed = true
	m.mu.Unlock()
	return nil
}

// Sent returns the number of Send calls so far.
func (m *MockTransport) Sent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Count
}

// GenerateSineWave returns a mono sine of the given amplitude.
func GenerateSineWave(frames int, sampleRate, frequency float64, amplitude float32) []float32 {
	buffer := make([]float32, frames)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = amplitude * float32(math.Sin(2*math.Pi*frequency*t))
	}
	return buffer
}

// GenerateComplexWave returns a 440 Hz fundamental with two harmonics.
func GenerateComplexWave(frames int, sampleRate float64) []float32 {
	buffer := make([]float32, frames)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

// GeneratePulseTrain returns a mono buffer that is silent except for
// rectangular pulses of width frames starting every period frames.
func GeneratePulseTrain(frames, period, width int, amplitude float32) []float32 {
	buffer := make([]float32, frames)
	if period <= 0 {
		return buffer
	}
	for start := 0; start < frames; start += period {
		for j := start; j < start+width && j < frames; j++ {
			buffer[j] = amplitude
		}
	}
	return buffer
}

// GenerateRamp returns a mono buffer whose sample i equals i*step. It makes
// playback position visible in rendered output.
func GenerateRamp(frames int, step float32) []float32 {
	buffer := make([]float32, frames)
	for i := range buffer {
		buffer[i] = float32(i) * step
	}
	return buffer
}

// Interleave merges equal-length mono channels into one interleaved buffer.
func Interleave(channels ...[]float32) []float32 {
	if len(channels) == 0 {
		return nil
	}
	frames := len(channels[0])
	out := make([]float32, frames*len(channels))
	for ch, data := range channels {
		for i := 0; i < frames && i < len(data); i++ {
			out[i*len(channels)+ch] = data[i]
		}
	}
	return out
}

// Number is the element type FindPeakBin accepts.
type Number interface {
	~uint8 | ~float32 | ~float64
}

// FindPeakBin returns the index of the largest value in magnitudes within
// [startBin, endBin]. Bounds are clamped to the slice.
func FindPeakBin[T Number](magnitudes []T, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}
	if startBin < 0 {
		startBin = 0
	}
	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}
	if startBin > endBin {
		return startBin
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]
	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}
	return peakBin
}
