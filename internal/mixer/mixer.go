// SPDX-License-Identifier: MIT
//
// Package mixer combines the two deck buses through an equal-power
// crossfader and master gain, and sums the cue buses for headphones.
package mixer

import (
	"math"
	"sync"
	"sync/atomic"
)

// Params is an immutable snapshot of the mixer controls.
type Params struct {
	Crossfader float64 `json:"crossfader"`
	Master     float64 `json:"master"`
	Cue        float64 `json:"cue"`
	LeftGain   float64 `json:"leftGain"`
	RightGain  float64 `json:"rightGain"`
}

// CrossfaderGains returns the equal-power gains for a position in [-1,1]:
// cos((x+1)π/4) for the left deck and sin((x+1)π/4) for the right. The
// position is clamped.
func CrossfaderGains(x float64) (left, right float64) {
	x = min(max(x, -1), 1)
	theta := (x + 1) * math.Pi / 4
	return math.Cos(theta), math.Sin(theta)
}

// Mixer holds the bus controls. Setters run on the control side and publish
// a new Params; Mix loads the current one once per block.
type Mixer struct {
	mu     sync.Mutex
	params atomic.Pointer[Params]
}

// New returns a mixer with the crossfader centred and both buses at unity.
func New() *Mixer {
	m := &Mixer{}
	l, r := CrossfaderGains(0)
	m.params.Store(&Params{Master: 1, Cue: 1, LeftGain: l, RightGain: r})
	return m
}

func clamp01(v float64) float64 { return min(max(v, 0), 1) }

func (m *Mixer) update(fn func(p *Params)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := *m.params.Load()
	fn(&next)
	m.params.Store(&next)
}

// SetCrossfader moves the crossfader, clamped to [-1,1].
func (m *Mixer) SetCrossfader(x float64) {
	x = min(max(x, -1), 1)
	l, r := CrossfaderGains(x)
	m.update(func(p *Params) {
		p.Crossfader, p.LeftGain, p.RightGain = x, l, r
	})
}

// SetMasterVolume sets the linear master gain, clamped to [0,1].
func (m *Mixer) SetMasterVolume(v float64) {
	v = clamp01(v)
	m.update(func(p *Params) { p.Master = v })
}

// SetCueVolume sets the linear cue gain, clamped to [0,1].
func (m *Mixer) SetCueVolume(v float64) {
	v = clamp01(v)
	m.update(func(p *Params) { p.Cue = v })
}

// Params returns the current snapshot.
func (m *Mixer) Params() Params { return *m.params.Load() }

// Crossfader returns the crossfader position.
func (m *Mixer) Crossfader() float64 { return m.params.Load().Crossfader }

// MasterVolume returns the master gain.
func (m *Mixer) MasterVolume() float64 { return m.params.Load().Master }

// CueVolume returns the cue gain.
func (m *Mixer) CueVolume() float64 { return m.params.Load().Cue }

// Mix writes left*lg*master + right*rg*master into main and
// (leftCue + rightCue)*cue into cue. All buffers are interleaved stereo of
// the same length; cue may be nil. Mix does not allocate.
func (m *Mixer) Mix(main, cue, leftMain, rightMain, leftCue, rightCue []float32) {
	p := m.params.Load()
	lg := float32(p.LeftGain * p.Master)
	rg := float32(p.RightGain * p.Master)
	for i := range main {
		main[i] = leftMain[i]*lg + rightMain[i]*rg
	}
	if cue == nil {
		return
	}
	cg := float32(p.Cue)
	for i := range cue {
		cue[i] = (leftCue[i] + rightCue[i]) * cg
	}
}
