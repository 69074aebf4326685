// SPDX-License-Identifier: MIT
package deck

import (
	"errors"
	"fmt"
)

// State is the transport state of a deck.
type State int

const (
	Stopped State = iota
	Playing
	PlayingLooped
	Rolling
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case PlayingLooped:
		return "playing_looped"
	case Rolling:
		return "rolling"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Errors returned by Result.Err for callers that prefer errors over results.
var (
	ErrNoTrackLoaded     = errors.New("no track loaded")
	ErrInvalidLoopRegion = errors.New("invalid loop region")
	ErrTempoUnknown      = errors.New("tempo unknown")
	ErrBusy              = errors.New("deck is loop rolling")
)

// Result is the outcome of a deck operation. Everything except Applied is a
// no-op: deck state is unchanged.
type Result int

const (
	Applied Result = iota
	NoTrack
	InvalidLoop
	TempoUnknown
	Unchanged
	Busy
)

func (r Result) String() string {
	switch r {
	case Applied:
		return "applied"
	case NoTrack:
		return "no track loaded"
	case InvalidLoop:
		return "invalid loop region"
	case TempoUnknown:
		return "tempo unknown"
	case Unchanged:
		return "unchanged"
	case Busy:
		return "busy"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// OK reports whether the operation changed the deck.
func (r Result) OK() bool { return r == Applied }

// Err maps a no-op reason to its error. Applied and Unchanged map to nil.
func (r Result) Err() error {
	switch r {
	case NoTrack:
		return ErrNoTrackLoaded
	case InvalidLoop:
		return ErrInvalidLoopRegion
	case TempoUnknown:
		return ErrTempoUnknown
	case Busy:
		return ErrBusy
	default:
		return nil
	}
}
