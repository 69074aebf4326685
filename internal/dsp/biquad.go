// SPDX-License-Identifier: MIT
//
// Package dsp holds the per-deck filter chain: RBJ cookbook biquads designed
// on the control side and run sample by sample on the audio callback.
package dsp

import (
	"math"
	"math/cmplx"
)

// Coefficients are normalised biquad coefficients (a0 == 1).
type Coefficients struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// Identity passes the signal through unchanged.
var Identity = Coefficients{B0: 1}

func normalise(b0, b1, b2, a0, a1, a2 float64) Coefficients {
	return Coefficients{B0: b0 / a0, B1: b1 / a0, B2: b2 / a0, A1: a1 / a0, A2: a2 / a0}
}

// shelfTerms returns A, cos(w0) and 2*sqrt(A)*alpha for a shelf of slope 1.
func shelfTerms(freq, gainDB, sampleRate float64) (a, cosw, beta float64) {
	a = math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / sampleRate
	cosw = math.Cos(w0)
	alpha := math.Sin(w0) / 2 * math.Sqrt2 // S = 1
	beta = 2 * math.Sqrt(a) * alpha
	return a, cosw, beta
}

// LowShelf designs a low-shelf of slope 1. Gain at DC is gainDB.
func LowShelf(freq, gainDB, sampleRate float64) Coefficients {
	a, c, beta := shelfTerms(freq, gainDB, sampleRate)
	return normalise(
		a*((a+1)-(a-1)*c+beta),
		2*a*((a-1)-(a+1)*c),
		a*((a+1)-(a-1)*c-beta),
		(a+1)+(a-1)*c+beta,
		-2*((a-1)+(a+1)*c),
		(a+1)+(a-1)*c-beta,
	)
}

// HighShelf designs a high-shelf of slope 1. Gain at Nyquist is gainDB.
func HighShelf(freq, gainDB, sampleRate float64) Coefficients {
	a, c, beta := shelfTerms(freq, gainDB, sampleRate)
	return normalise(
		a*((a+1)+(a-1)*c+beta),
		-2*a*((a-1)+(a+1)*c),
		a*((a+1)+(a-1)*c-beta),
		(a+1)-(a-1)*c+beta,
		2*((a-1)-(a+1)*c),
		(a+1)-(a-1)*c-beta,
	)
}

// Peaking designs a peaking filter with gainDB at freq.
func Peaking(freq, q, gainDB, sampleRate float64) Coefficients {
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / sampleRate
	c := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)
	return normalise(
		1+alpha*a,
		-2*c,
		1-alpha*a,
		1+alpha/a,
		-2*c,
		1-alpha/a,
	)
}

// MagnitudeAt evaluates |H| at freq.
func (c Coefficients) MagnitudeAt(freq, sampleRate float64) float64 {
	z1 := cmplx.Exp(complex(0, -2*math.Pi*freq/sampleRate))
	z2 := z1 * z1
	num := complex(c.B0, 0) + complex(c.B1, 0)*z1 + complex(c.B2, 0)*z2
	den := 1 + complex(c.A1, 0)*z1 + complex(c.A2, 0)*z2
	return cmplx.Abs(num / den)
}

// state is the transposed direct form II memory of one channel.
type state struct {
	z1, z2 float64
}

func (s *state) process(c *Coefficients, x float64) float64 {
	y := c.B0*x + s.z1
	s.z1 = c.B1*x - c.A1*y + s.z2
	s.z2 = c.B2*x - c.A2*y
	return y
}

// Biquad is a stereo second-order section. Its state survives coefficient
// changes so a gain sweep does not click.
type Biquad struct {
	coeffs Coefficients
	ch     [2]state
}

// NewBiquad returns a biquad running c.
func NewBiquad(c Coefficients) *Biquad {
	return &Biquad{coeffs: c}
}

// SetCoefficients replaces the coefficients and keeps the filter memory.
func (b *Biquad) SetCoefficients(c Coefficients) { b.coeffs = c }

// Reset clears the filter memory.
func (b *Biquad) Reset() { b.ch = [2]state{} }

// ProcessStereo filters interleaved stereo frames in place.
func (b *Biquad) ProcessStereo(buf []float32) {
	for i := 0; i+1 < len(buf); i += 2 {
		buf[i] = float32(b.ch[0].process(&b.coeffs, float64(buf[i])))
		buf[i+1] = float32(b.ch[1].process(&b.coeffs, float64(buf[i+1])))
	}
}
