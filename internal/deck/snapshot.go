// SPDX-License-Identifier: MIT
package deck

import (
	"mixdeck/internal/dsp"
	"mixdeck/internal/track"
)

// LoopInfo describes the loop region in seconds of the track.
type LoopInfo struct {
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	IsActive  bool    `json:"isActive"`
	IsRolling bool    `json:"isRolling"`
}

// Snapshot is a consistent copy of the deck state for UI binding.
type Snapshot struct {
	Name           string      `json:"name"`
	Track          *track.Info `json:"track,omitempty"`
	State          State       `json:"state"`
	IsPlaying      bool        `json:"isPlaying"`
	CurrentTime    float64     `json:"currentTime"`
	Duration       float64     `json:"duration"`
	BPM            float64     `json:"bpm"`
	OriginalBPM    float64     `json:"originalBpm"`
	Rate           float64     `json:"rate"`
	Volume         float64     `json:"volume"`
	Trim           float64     `json:"trim"`
	Gain           float64     `json:"gain"`
	EQLow          float64     `json:"eqLow"`
	EQMid          float64     `json:"eqMid"`
	EQHigh         float64     `json:"eqHigh"`
	EQKilled       [3]bool     `json:"eqKilled"`
	Loop           LoopInfo    `json:"loop"`
	CueActive      bool        `json:"cueActive"`
	SyncActive     bool        `json:"syncActive"`
	CrossfaderGain float64     `json:"crossfaderGain"`
}

// Snapshot returns the deck state. CrossfaderGain is left for the owner of
// the mixer to fill in.
func (d *Deck) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reconcileLocked()

	s := Snapshot{
		Name:      d.name,
		State:     d.stateLocked(),
		IsPlaying: d.playing || d.rolling,
		BPM:       d.bpm,
		Rate:      d.rate,
		Volume:    d.volume,
		Trim:      d.trim,
		Gain:      d.volume * d.trim,
		EQLow:     d.eqDB[dsp.Low],
		EQMid:     d.eqDB[dsp.Mid],
		EQHigh:    d.eqDB[dsp.High],
		EQKilled:  d.eqKilled,
		CueActive: d.cueActive,
		Loop:      LoopInfo{IsActive: d.looping, IsRolling: d.rolling},
	}
	if d.track == nil {
		return s
	}
	info := d.track.Info()
	sr := float64(d.track.SampleRate())
	s.Track = &info
	s.Duration = info.DurationSeconds
	s.OriginalBPM = d.track.BPM()
	s.SyncActive = d.rate != 1
	s.CurrentTime = d.livePositionLocked() / sr
	s.Loop.Start = d.loopStart / sr
	s.Loop.End = d.loopEnd / sr
	return s
}
