// SPDX-License-Identifier: MIT
package audio

import (
	"mixdeck/internal/analysis"
	"mixdeck/internal/deck"
	"mixdeck/internal/mixer"
)

// Snapshot is the engine state for UI binding and the feed.
type Snapshot struct {
	Decks     [2]deck.Snapshot `json:"decks"`
	Mixer     mixer.Params     `json:"mixer"`
	Clock     uint64           `json:"clock"`
	Recording *RecordingStatus `json:"recording,omitempty"`
}

// Snapshot returns both deck snapshots with their crossfader gains filled
// in, the mixer controls and the clock.
func (e *Engine) Snapshot() Snapshot {
	p := e.mixer.Params()
	s := Snapshot{
		Mixer:     p,
		Clock:     e.clock.Load(),
		Recording: e.Recording(),
	}
	for i, d := range e.decks {
		s.Decks[i] = d.Snapshot()
	}
	s.Decks[Left].CrossfaderGain = p.LeftGain
	s.Decks[Right].CrossfaderGain = p.RightGain
	return s
}

// DeckSnapshots returns the deck half of Snapshot.
func (e *Engine) DeckSnapshots() []deck.Snapshot {
	s := e.Snapshot()
	return s.Decks[:]
}

// The engine serves analyzer snapshots directly so it can be handed to the
// feed transports.

// BinCount returns the analyzer bin count.
func (e *Engine) BinCount() int { return e.analyzer.BinCount() }

// FrequencyData copies the byte spectrum of the master bus into dst.
func (e *Engine) FrequencyData(dst []byte) int { return e.analyzer.FrequencyData(dst) }

// TimeDomainData copies the byte waveform of the master bus into dst.
func (e *Engine) TimeDomainData(dst []byte) int { return e.analyzer.TimeDomainData(dst) }

// Levels returns the master bus levels.
func (e *Engine) Levels() analysis.Levels { return e.analyzer.Levels() }

var (
	_ analysis.SnapshotProvider = (*Engine)(nil)
	_ analysis.LevelProvider    = (*Engine)(nil)
)
