// SPDX-License-Identifier: MIT
//
// Package deck implements one playback unit: transport, loops and loop roll,
// tempo sync, three-band EQ with kills, gain and cue pre-listen.
//
// Control operations run on arbitrary goroutines and serialise on the deck
// mutex. Each one ends by publishing an immutable program that the audio
// callback picks up at its next block, so a restart (pause then play) is a
// single observable transition. The playhead is advanced only by the
// callback, in source frames, and reported back through atomics.
package deck

import (
	"math"
	"sync"
	"sync/atomic"

	"mixdeck/internal/analysis"
	"mixdeck/internal/dsp"
	"mixdeck/internal/log"
	"mixdeck/internal/track"
)

// Deck is one playback unit. The zero value is not usable; call New.
type Deck struct {
	name       string
	outputRate float64
	logger     *log.Logger

	mu          sync.Mutex
	track       *track.Track
	playing     bool
	rolling     bool
	looping     bool
	savedOffset float64 // source frames
	loopStart   float64
	loopEnd     float64
	bpm         float64
	rate        float64
	volume      float64
	trim        float64
	eqDB        dsp.Gains
	eqKilled    [dsp.NumBands]bool
	cueActive   bool
	epoch       uint64
	anchorSeq   uint64
	anchorAt    float64
	cueSeq      uint64
	cueAt       float64

	program atomic.Pointer[program]

	// Written by the callback.
	rtHead   atomic.Uint64 // float64 bits
	rtRoll   atomic.Uint64 // float64 bits
	rtAnchor atomic.Uint64
	ended    atomic.Uint64 // play epoch that reached the end of the track

	rt voice
}

// New returns an empty deck rendering at outputRate Hz.
func New(name string, outputRate int) *Deck {
	d := &Deck{
		name:       name,
		outputRate: float64(outputRate),
		logger:     log.Named("deck." + name),
		rate:       1,
		volume:     1,
		trim:       1,
	}
	d.publishLocked()
	return d
}

// Name returns the deck name.
func (d *Deck) Name() string { return d.name }

// publishLocked builds the program for the current state and hands it to
// the callback.
func (d *Deck) publishLocked() {
	p := &program{
		track:     d.track,
		playing:   d.playing || d.rolling,
		rolling:   d.rolling,
		loopStart: d.loopStart,
		loopEnd:   d.loopEnd,
		gain:      float32(d.volume * d.trim),
		eq:        dsp.DesignChain(d.eqDB, d.outputRate),
		epoch:     d.epoch,
		anchorSeq: d.anchorSeq,
		anchorAt:  d.anchorAt,
		cue:       d.cueActive,
		cueSeq:    d.cueSeq,
		cueAnchor: d.cueAt,
	}
	p.looping = (d.looping || d.rolling) && d.loopEnd > d.loopStart
	if d.track != nil {
		p.step = d.rate * float64(d.track.SampleRate()) / d.outputRate
	}
	d.program.Store(p)
}

// anchorLocked makes the next program move the playhead to at.
func (d *Deck) anchorLocked(at float64) {
	d.anchorSeq++
	d.anchorAt = at
}

// startLocked begins a new play epoch at offset.
func (d *Deck) startLocked(offset float64) {
	d.epoch++
	d.playing = true
	d.anchorLocked(offset)
	d.publishLocked()
}

// livePositionLocked returns the playhead in source frames.
func (d *Deck) livePositionLocked() float64 {
	if !d.playing && !d.rolling {
		return d.savedOffset
	}
	if d.rtAnchor.Load() != d.anchorSeq {
		return d.anchorAt // not picked up by the callback yet
	}
	return math.Float64frombits(d.rtHead.Load())
}

// reconcileLocked applies an end of track reported by the callback: the deck
// stops and rewinds.
func (d *Deck) reconcileLocked() {
	if !d.playing || d.rolling || d.ended.Load() != d.epoch {
		return
	}
	d.playing = false
	d.savedOffset = 0
	if !d.looping {
		d.loopStart, d.loopEnd = 0, 0
	}
	d.anchorLocked(0)
	d.publishLocked()
	d.logger.Debugf("end of track, rewound")
}

// pauseLocked stops playback and keeps the playhead. An unheld loop is
// cleared.
func (d *Deck) pauseLocked() {
	d.savedOffset = d.livePositionLocked()
	d.playing = false
	if !d.looping {
		d.loopStart, d.loopEnd = 0, 0
	}
}

// restartLocked is pause followed by play as one transition.
func (d *Deck) restartLocked() {
	d.pauseLocked()
	d.startLocked(d.savedOffset)
}

func (d *Deck) lastFrame() float64 {
	return float64(d.track.Frames() - 1)
}

func (d *Deck) clampFrame(f float64) float64 {
	return min(max(f, 0), d.lastFrame())
}

// Load puts t on the deck. Playback stops, transport, loop, sync and cue
// state reset; EQ and gain are kept. A nil track ejects.
func (d *Deck) Load(t *track.Track) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.track = t
	d.playing, d.rolling, d.looping, d.cueActive = false, false, false, false
	d.savedOffset, d.loopStart, d.loopEnd = 0, 0, 0
	d.rate = 1
	d.bpm = 0
	if t != nil {
		d.bpm = t.BPM()
		d.logger.Infof("loaded %q (%.0f BPM)", t.Info().Title, d.bpm)
	}
	d.anchorLocked(0)
	d.publishLocked()
	return Applied
}

// Eject removes the track.
func (d *Deck) Eject() Result {
	d.mu.Lock()
	empty := d.track == nil
	d.mu.Unlock()
	if empty {
		return NoTrack
	}
	return d.Load(nil)
}

// Track returns the loaded track, or nil.
func (d *Deck) Track() *track.Track {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.track
}

// Play starts playback from the saved offset, looping if a loop is held.
func (d *Deck) Play() Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reconcileLocked()
	switch {
	case d.track == nil:
		return NoTrack
	case d.rolling:
		return Busy
	case d.playing:
		return Unchanged
	}
	d.startLocked(d.savedOffset)
	return Applied
}

// Pause stops playback and saves the playhead.
func (d *Deck) Pause() Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reconcileLocked()
	switch {
	case d.track == nil:
		return NoTrack
	case d.rolling:
		return Busy
	case !d.playing:
		return Unchanged
	}
	d.pauseLocked()
	d.publishLocked()
	return Applied
}

// Stop halts playback and rewinds to the start. An unheld loop is cleared.
func (d *Deck) Stop() Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.track == nil {
		return NoTrack
	}
	d.playing, d.rolling = false, false
	d.savedOffset = 0
	if !d.looping {
		d.loopStart, d.loopEnd = 0, 0
	}
	d.anchorLocked(0)
	d.publishLocked()
	return Applied
}

// Seek moves the playhead to frame, clamped to the track. While playing the
// source is re-anchored at once.
func (d *Deck) Seek(frame int64) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reconcileLocked()
	switch {
	case d.track == nil:
		return NoTrack
	case d.rolling:
		return Busy
	}
	target := d.clampFrame(float64(frame))
	d.savedOffset = target
	if d.playing {
		d.startLocked(target)
	}
	return Applied
}

// SeekSeconds is Seek with a position in seconds of the track.
func (d *Deck) SeekSeconds(seconds float64) Result {
	d.mu.Lock()
	t := d.track
	d.mu.Unlock()
	if t == nil {
		return NoTrack
	}
	return d.Seek(int64(math.Round(seconds * float64(t.SampleRate()))))
}

// Sync matches the audible tempo to targetBPM by setting the playback rate
// to targetBPM / detected BPM.
func (d *Deck) Sync(targetBPM float64) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reconcileLocked()
	switch {
	case d.track == nil:
		return NoTrack
	case d.rolling:
		return Busy
	case d.track.BPM() <= 0 || targetBPM <= 0:
		return TempoUnknown
	case targetBPM == d.bpm:
		return Unchanged
	}
	d.bpm = targetBPM
	d.rate = targetBPM / d.track.BPM()
	if d.playing {
		d.restartLocked()
	} else {
		d.publishLocked()
	}
	d.logger.Debugf("synced to %.1f BPM (rate %.4f)", targetBPM, d.rate)
	return Applied
}

// SetCue starts or stops the cue pre-listen voice at the current position.
func (d *Deck) SetCue(active bool) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reconcileLocked()
	if d.track == nil {
		return NoTrack
	}
	if !active && !d.cueActive {
		return Unchanged
	}
	d.cueActive = active
	if active {
		d.cueSeq++
		d.cueAt = d.livePositionLocked()
	}
	d.publishLocked()
	return Applied
}

// SetEQ sets band to (value-0.5)*24 dB, value clamped to [0,1]. A killed
// band is un-killed.
func (d *Deck) SetEQ(band dsp.Band, value float64) Result {
	if !band.Valid() {
		return Unchanged
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.eqDB[band] = dsp.GainForValue(value)
	d.eqKilled[band] = false
	d.publishLocked()
	return Applied
}

// KillEQ drops band to the kill floor, or back to 0 dB. The previous gain
// is not restored.
func (d *Deck) KillEQ(band dsp.Band, kill bool) Result {
	if !band.Valid() {
		return Unchanged
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.eqKilled[band] = kill
	d.eqDB[band] = 0
	if kill {
		d.eqDB[band] = dsp.KillGainDB
	}
	d.publishLocked()
	return Applied
}

// EQ returns the gain of band in dB.
func (d *Deck) EQ(band dsp.Band) float64 {
	if !band.Valid() {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.eqDB[band]
}

// Killed reports whether band is killed.
func (d *Deck) Killed(band dsp.Band) bool {
	if !band.Valid() {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.eqKilled[band]
}

// SetVolume sets the channel fader, clamped to [0,1].
func (d *Deck) SetVolume(v float64) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.volume = min(max(v, 0), 1)
	d.publishLocked()
	return Applied
}

// SetTrim sets the trim knob; 0..1 maps to 0..2x, 0.5 is unity.
func (d *Deck) SetTrim(v float64) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.trim = min(max(v, 0), 1) * 2
	d.publishLocked()
	return Applied
}

// Gain returns volume * trim.
func (d *Deck) Gain() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.volume * d.trim
}

// BPM returns the current tempo: the detected tempo, or the sync target.
func (d *Deck) BPM() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bpm
}

// Rate returns the playback-rate multiplier.
func (d *Deck) Rate() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rate
}

// Position returns the playhead in source frames.
func (d *Deck) Position() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reconcileLocked()
	return int64(d.livePositionLocked())
}

// PositionSeconds returns the playhead in seconds of the track.
func (d *Deck) PositionSeconds() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reconcileLocked()
	if d.track == nil {
		return 0
	}
	return d.livePositionLocked() / float64(d.track.SampleRate())
}

// State returns the transport state.
func (d *Deck) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reconcileLocked()
	return d.stateLocked()
}

func (d *Deck) stateLocked() State {
	switch {
	case d.rolling:
		return Rolling
	case d.playing && d.looping && d.loopEnd > d.loopStart:
		return PlayingLooped
	case d.playing:
		return Playing
	default:
		return Stopped
	}
}

// Release silences the deck for shutdown. The track stays loaded.
func (d *Deck) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.playing || d.rolling {
		d.savedOffset = d.livePositionLocked()
	}
	d.playing, d.rolling, d.cueActive = false, false, false
	d.publishLocked()
}

// secondsPerBeatLocked uses the detected tempo: beat positions live on the
// track's own timeline whatever the playback rate.
func (d *Deck) secondsPerBeatLocked() float64 {
	if d.track == nil {
		return 0
	}
	return analysis.SecondsPerBeat(d.track.BPM())
}
