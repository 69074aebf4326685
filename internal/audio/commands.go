// SPDX-License-Identifier: MIT
package audio

import (
	"encoding/json"
	"errors"
	"fmt"

	"mixdeck/internal/deck"
	"mixdeck/internal/dsp"
)

// ErrUnknownCommand is returned by Apply for an unrecognised op.
var ErrUnknownCommand = errors.New("unknown command")

// Command is a control message, as received from feed clients.
//
//	{"op": "play", "deck": "left"}
//	{"op": "eq", "deck": "right", "band": "low", "value": 0.25}
//	{"op": "crossfader", "value": -0.4}
type Command struct {
	Op    string  `json:"op"`
	Deck  string  `json:"deck,omitempty"`
	Band  string  `json:"band,omitempty"`
	Value float64 `json:"value,omitempty"`
	On    bool    `json:"on,omitempty"`
}

// Reply is the answer to a Command.
type Reply struct {
	Type   string `json:"type"` // always "reply"
	Op     string `json:"op"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// deckOps maps the per-deck ops to the deck operation they run.
var deckOps = map[string]func(d *deck.Deck, c Command, band dsp.Band) deck.Result{
	"play":       func(d *deck.Deck, _ Command, _ dsp.Band) deck.Result { return d.Play() },
	"pause":      func(d *deck.Deck, _ Command, _ dsp.Band) deck.Result { return d.Pause() },
	"stop":       func(d *deck.Deck, _ Command, _ dsp.Band) deck.Result { return d.Stop() },
	"eject":      func(d *deck.Deck, _ Command, _ dsp.Band) deck.Result { return d.Eject() },
	"seek":       func(d *deck.Deck, c Command, _ dsp.Band) deck.Result { return d.SeekSeconds(c.Value) },
	"loop_in":    func(d *deck.Deck, _ Command, _ dsp.Band) deck.Result { return d.SetLoopIn() },
	"loop_out":   func(d *deck.Deck, _ Command, _ dsp.Band) deck.Result { return d.SetLoopOut() },
	"loop":       func(d *deck.Deck, _ Command, _ dsp.Band) deck.Result { return d.ToggleLoop() },
	"roll_start": func(d *deck.Deck, _ Command, _ dsp.Band) deck.Result { return d.StartLoopRoll() },
	"roll_stop":  func(d *deck.Deck, _ Command, _ dsp.Band) deck.Result { return d.StopLoopRoll() },
	"nudge":      func(d *deck.Deck, c Command, _ dsp.Band) deck.Result { return d.NudgeLoop(c.Value) },
	"preset":     func(d *deck.Deck, c Command, _ dsp.Band) deck.Result { return d.SetLoopPreset(c.Value) },
	"cue":        func(d *deck.Deck, c Command, _ dsp.Band) deck.Result { return d.SetCue(c.On) },
	"eq":         func(d *deck.Deck, c Command, b dsp.Band) deck.Result { return d.SetEQ(b, c.Value) },
	"kill":       func(d *deck.Deck, c Command, b dsp.Band) deck.Result { return d.KillEQ(b, c.On) },
	"volume":     func(d *deck.Deck, c Command, _ dsp.Band) deck.Result { return d.SetVolume(c.Value) },
	"trim":       func(d *deck.Deck, c Command, _ dsp.Band) deck.Result { return d.SetTrim(c.Value) },
}

// Apply runs c against the engine. Deck no-ops come back as their Result
// with a nil error; malformed commands return an error.
func (e *Engine) Apply(c Command) (deck.Result, error) {
	switch c.Op {
	case "crossfader":
		e.mixer.SetCrossfader(c.Value)
		return deck.Applied, nil
	case "master":
		e.mixer.SetMasterVolume(c.Value)
		return deck.Applied, nil
	case "cue_volume":
		e.mixer.SetCueVolume(c.Value)
		return deck.Applied, nil
	}

	op, ok := deckOps[c.Op]
	if !ok && c.Op != "sync" {
		return deck.Unchanged, fmt.Errorf("%w: %q", ErrUnknownCommand, c.Op)
	}
	side, err := ParseSide(c.Deck)
	if err != nil {
		return deck.Unchanged, err
	}
	if c.Op == "sync" {
		return e.Sync(side), nil
	}
	var band dsp.Band
	if c.Op == "eq" || c.Op == "kill" {
		if band, err = dsp.ParseBand(c.Band); err != nil {
			return deck.Unchanged, err
		}
	}
	return op(e.decks[side], c, band), nil
}

// HandleMessage decodes a JSON Command, applies it and returns the Reply.
func (e *Engine) HandleMessage(data []byte) any {
	var c Command
	if err := json.Unmarshal(data, &c); err != nil {
		return Reply{Type: "reply", Error: fmt.Sprintf("malformed command: %v", err)}
	}
	res, err := e.Apply(c)
	reply := Reply{Type: "reply", Op: c.Op}
	if err != nil {
		reply.Error = err.Error()
		return reply
	}
	reply.Result = res.String()
	return reply
}
