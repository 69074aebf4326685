// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"
	"sync"
	"sync/atomic"

	"mixdeck/internal/log"
	"mixdeck/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc defines the type for selecting an FFT window function.
type WindowFunc int

// Enum for available window functions.
const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

func (w WindowFunc) String() string {
	switch w {
	case BartlettHann:
		return "bartletthann"
	case Blackman:
		return "blackman"
	case BlackmanNuttall:
		return "blackmannuttall"
	case Hann:
		return "hann"
	case Hamming:
		return "hamming"
	case Lanczos:
		return "lanczos"
	case Nuttall:
		return "nuttall"
	default:
		return fmt.Sprintf("WindowFunc(%d)", int(w))
	}
}

// Defaults follow the Web Audio AnalyserNode.
const (
	DefaultFFTSize     = 2048
	DefaultSmoothing   = 0.8
	DefaultMinDecibels = -100.0
	DefaultMaxDecibels = -30.0
)

// dirty marks the middle buffer as holding a frame the reader has not taken.
const dirty = 1 << 31

var logger = log.Named("analysis")

// AnalyzerOptions configures an Analyzer.
type AnalyzerOptions struct {
	FFTSize     int
	SampleRate  float64
	Window      WindowFunc
	Smoothing   float64 // time constant in [0,1)
	MinDecibels float64
	MaxDecibels float64
}

// DefaultAnalyzerOptions returns the Web Audio defaults for sampleRate.
func DefaultAnalyzerOptions(sampleRate float64) AnalyzerOptions {
	return AnalyzerOptions{
		FFTSize:     DefaultFFTSize,
		SampleRate:  sampleRate,
		Window:      Blackman,
		Smoothing:   DefaultSmoothing,
		MinDecibels: DefaultMinDecibels,
		MaxDecibels: DefaultMaxDecibels,
	}
}

// Analyzer taps the mixed signal and serves frequency and time-domain
// snapshots for visualization.
//
// Process runs on the audio callback. It writes into a history ring, copies
// the most recent FFTSize samples into the back buffer of a triple buffer and
// publishes it with a single atomic swap. Readers take the newest published
// frame under their own mutex and do the transform on their side, so polling
// at any rate never stalls the callback and never waits for a fresh frame.
type Analyzer struct {
	fftSize    int
	binCount   int
	sampleRate float64
	smoothing  float64
	minDB      float64
	maxDB      float64

	// Writer side, owned by the audio callback.
	history  []float32
	mask     int
	writePos int
	back     int

	// frames holds the three buffers; middle is the published index plus dirty.
	frames [3][]float32
	middle atomic.Uint32

	// Reader side, guarded by mu.
	mu        sync.Mutex
	front     int
	stale     bool
	fft       *fourier.FFT
	window    []float64
	input     []float64
	coeffs    []complex128
	magnitude []float64
	smoothed  []float64
	freqBytes []byte
}

// NewAnalyzer validates opts and preallocates every buffer.
func NewAnalyzer(opts AnalyzerOptions) (*Analyzer, error) {
	if !bitint.IsPowerOfTwo(opts.FFTSize) || opts.FFTSize < 32 {
		return nil, fmt.Errorf("fft size must be a power of 2 >= 32, got %d", opts.FFTSize)
	}
	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", opts.SampleRate)
	}
	if opts.Smoothing < 0 || opts.Smoothing >= 1 {
		return nil, fmt.Errorf("smoothing must be in [0,1), got %f", opts.Smoothing)
	}
	if opts.MinDecibels >= opts.MaxDecibels {
		return nil, fmt.Errorf("min decibels %.1f must be below max decibels %.1f", opts.MinDecibels, opts.MaxDecibels)
	}

	n := opts.FFTSize
	a := &Analyzer{
		fftSize:    n,
		binCount:   n / 2,
		sampleRate: opts.SampleRate,
		smoothing:  opts.Smoothing,
		minDB:      opts.MinDecibels,
		maxDB:      opts.MaxDecibels,
		history:    make([]float32, n),
		mask:       n - 1,
		back:       0,
		front:      1,
		fft:        fourier.NewFFT(n),
		window:     make([]float64, n),
		input:      make([]float64, n),
		coeffs:     make([]complex128, n/2+1),
		magnitude:  make([]float64, n/2),
		smoothed:   make([]float64, n/2),
		freqBytes:  make([]byte, n/2),
	}
	for i := range a.frames {
		a.frames[i] = make([]float32, n)
	}
	a.middle.Store(2)
	applyWindow(a.window, opts.Window)

	logger.Debugf("analyzer ready (size %d, %.0f Hz, %v window)", n, opts.SampleRate, opts.Window)
	return a, nil
}

// Process appends a mono block to the history and publishes the latest
// frame. It does not allocate or lock.
func (a *Analyzer) Process(block []float32) {
	if len(block) == 0 {
		return
	}
	if len(block) > a.fftSize {
		block = block[len(block)-a.fftSize:]
	}
	for _, s := range block {
		a.history[a.writePos&a.mask] = s
		a.writePos++
	}

	// The ring is exactly one frame long, so the oldest sample sits at writePos.
	frame := a.frames[a.back]
	start := a.writePos & a.mask
	n := copy(frame, a.history[start:])
	copy(frame[n:], a.history[:start])

	a.back = int(a.middle.Swap(uint32(a.back)|dirty) &^ dirty)
}

// latest takes the newest published frame, if any. Callers hold mu.
func (a *Analyzer) latest() []float32 {
	if a.middle.Load()&dirty != 0 {
		a.front = int(a.middle.Swap(uint32(a.front)) &^ dirty)
		a.stale = true
	}
	return a.frames[a.front]
}

// updateSpectrum recomputes the smoothed spectrum once per new frame. Callers
// hold mu.
func (a *Analyzer) updateSpectrum() {
	frame := a.latest()
	if !a.stale {
		return
	}
	a.stale = false

	for i, s := range frame {
		a.input[i] = float64(s) * a.window[i]
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, a.input)

	scale := 1 / float64(a.fftSize)
	for k := 0; k < a.binCount; k++ {
		mag := cmplx.Abs(a.coeffs[k]) * scale
		a.magnitude[k] = mag
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag
		a.freqBytes[k] = decibelsToByte(20*math.Log10(a.smoothed[k]), a.minDB, a.maxDB)
	}
}

// FrequencyData copies the byte spectrum of the most recent frame into dst
// and returns the number of bins written.
func (a *Analyzer) FrequencyData(dst []byte) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.updateSpectrum()
	return copy(dst, a.freqBytes)
}

// TimeDomainData copies the most recent BinCount samples, centred on 128,
// into dst and returns the number of bytes written.
func (a *Analyzer) TimeDomainData(dst []byte) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	frame := a.latest()
	tail := frame[a.fftSize-a.binCount:]
	n := min(len(dst), len(tail))
	for i := 0; i < n; i++ {
		dst[i] = sampleToByte(tail[i])
	}
	return n
}

// Frequency returns a fresh copy of the byte spectrum.
// NOTE: allocates; use FrequencyData on hot polling loops.
func (a *Analyzer) Frequency() []byte {
	out := make([]byte, a.binCount)
	a.FrequencyData(out)
	return out
}

// TimeDomain returns a fresh copy of the time-domain bytes.
func (a *Analyzer) TimeDomain() []byte {
	out := make([]byte, a.binCount)
	a.TimeDomainData(out)
	return out
}

// Magnitudes returns a copy of the unsmoothed linear magnitudes of the most
// recent frame.
func (a *Analyzer) Magnitudes() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.updateSpectrum()
	out := make([]float64, len(a.magnitude))
	copy(out, a.magnitude)
	return out
}

// BinCount returns the number of frequency bins, FFTSize / 2.
func (a *Analyzer) BinCount() int { return a.binCount }

// FFTSize returns the transform size.
func (a *Analyzer) FFTSize() int { return a.fftSize }

// SampleRate returns the analyzed sample rate (Hz).
func (a *Analyzer) SampleRate() float64 { return a.sampleRate }

// FrequencyForBin returns the centre frequency (Hz) of bin, or 0 when it is
// out of range.
func (a *Analyzer) FrequencyForBin(bin int) float64 {
	if bin < 0 || bin >= a.binCount {
		return 0
	}
	return float64(bin) * a.sampleRate / float64(a.fftSize)
}

func decibelsToByte(db, minDB, maxDB float64) byte {
	if math.IsNaN(db) || db <= minDB {
		return 0
	}
	v := 255 * (db - minDB) / (maxDB - minDB)
	if v >= 255 {
		return 255
	}
	return byte(v)
}

func sampleToByte(s float32) byte {
	v := 128 * (1 + float64(s))
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return byte(v)
}

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc
// enum, returns a known default (Blackman) and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman", "":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Blackman, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// applyWindow fills coeffs with the selected window. Unknown types fall back
// to Blackman.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	// The gonum window funcs scale in place, so start from ones.
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		logger.Warnf("unknown window function type %d, defaulting to Blackman", windowType)
		window.Blackman(coeffs)
	}
}
