// SPDX-License-Identifier: MIT
package deck

import "math"

// beatsPerBar is the bar length of loop presets.
const beatsPerBar = 4

// ReentryOffset returns where normal playback resumes after a loop roll
// over [start, end) held for elapsed: start + (elapsed mod (end-start)).
// Units are the caller's, frames or seconds.
func ReentryOffset(start, end, elapsed float64) float64 {
	if end <= start {
		return start
	}
	return start + math.Mod(max(elapsed, 0), end-start)
}

// snapLocked rounds a playhead position to the nearest beat of the detected
// tempo and clamps it to the track. Without a tempo the position is used as
// is.
func (d *Deck) snapLocked(frame float64) float64 {
	spb := d.secondsPerBeatLocked()
	if spb == 0 {
		return d.clampFrame(math.Round(frame))
	}
	sr := float64(d.track.SampleRate())
	beat := math.Round(frame/sr/spb) * spb
	return d.clampFrame(math.Round(beat * sr))
}

func (d *Deck) hasLoopLocked() bool { return d.loopEnd > d.loopStart }

// republishLocked restarts playback when a held loop is playing so new
// bounds take effect at once, and otherwise only publishes.
func (d *Deck) republishLocked() {
	if d.looping && d.playing {
		d.restartLocked()
		return
	}
	d.publishLocked()
}

// SetLoopIn marks the loop start at the beat nearest the playhead. A loop
// end before the new start is pulled up to it.
func (d *Deck) SetLoopIn() Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reconcileLocked()
	switch {
	case d.track == nil:
		return NoTrack
	case d.rolling:
		return Busy
	}
	d.loopStart = d.snapLocked(d.livePositionLocked())
	d.loopEnd = max(d.loopEnd, d.loopStart)
	d.publishLocked()
	return Applied
}

// SetLoopOut marks the loop end at the beat nearest the playhead. An end
// before the loop start is rejected.
func (d *Deck) SetLoopOut() Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reconcileLocked()
	switch {
	case d.track == nil:
		return NoTrack
	case d.rolling:
		return Busy
	}
	end := d.snapLocked(d.livePositionLocked())
	if end < d.loopStart {
		return InvalidLoop
	}
	d.loopEnd = end
	d.publishLocked()
	return Applied
}

// SetLoop sets both bounds in source frames, clamped to the track.
func (d *Deck) SetLoop(start, end int64) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reconcileLocked()
	switch {
	case d.track == nil:
		return NoTrack
	case d.rolling:
		return Busy
	}
	s, e := d.clampFrame(float64(start)), d.clampFrame(float64(end))
	if e < s {
		return InvalidLoop
	}
	d.loopStart, d.loopEnd = s, e
	d.republishLocked()
	return Applied
}

// ToggleLoop flips the loop hold. While playing, playback restarts in place
// so the change is heard at once.
func (d *Deck) ToggleLoop() Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reconcileLocked()
	switch {
	case d.track == nil:
		return NoTrack
	case d.rolling:
		return Busy
	}
	d.looping = !d.looping
	if d.playing {
		d.restartLocked()
	} else {
		d.publishLocked()
	}
	return Applied
}

// StartLoopRoll suspends normal playback and plays the loop region from its
// start. The roll always loops, held or not.
func (d *Deck) StartLoopRoll() Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reconcileLocked()
	switch {
	case d.track == nil:
		return NoTrack
	case d.rolling:
		return Unchanged
	case !d.hasLoopLocked():
		return InvalidLoop
	}
	if d.playing {
		d.savedOffset = d.livePositionLocked()
		d.playing = false
	}
	d.rolling = true
	d.epoch++
	d.anchorLocked(d.loopStart)
	d.publishLocked()
	return Applied
}

// StopLoopRoll ends the roll and resumes normal playback where the loop
// would have reached.
func (d *Deck) StopLoopRoll() Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case d.track == nil:
		return NoTrack
	case !d.rolling:
		return Unchanged
	}
	elapsed := 0.0
	if d.rtAnchor.Load() == d.anchorSeq {
		elapsed = math.Float64frombits(d.rtRoll.Load())
	}
	d.rolling = false
	d.savedOffset = ReentryOffset(d.loopStart, d.loopEnd, elapsed)
	d.startLocked(d.savedOffset)
	return Applied
}

// NudgeLoop shifts both loop bounds by beats of the detected tempo. The
// shift is cut short at the track edges.
func (d *Deck) NudgeLoop(beats float64) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reconcileLocked()
	switch {
	case d.track == nil:
		return NoTrack
	case d.rolling:
		return Busy
	case d.secondsPerBeatLocked() == 0:
		return TempoUnknown
	case !d.hasLoopLocked():
		return InvalidLoop
	}
	delta := math.Round(beats * d.secondsPerBeatLocked() * float64(d.track.SampleRate()))
	delta = min(max(delta, -d.loopStart), d.lastFrame()-d.loopEnd)
	if delta == 0 {
		return Unchanged
	}
	d.loopStart += delta
	d.loopEnd += delta
	d.republishLocked()
	return Applied
}

// SetLoopPreset sets the loop end to bars bars of four beats after the loop
// start, cut at the end of the track.
func (d *Deck) SetLoopPreset(bars float64) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reconcileLocked()
	switch {
	case d.track == nil:
		return NoTrack
	case d.rolling:
		return Busy
	case d.secondsPerBeatLocked() == 0:
		return TempoUnknown
	case bars <= 0:
		return InvalidLoop
	}
	length := math.Round(bars * beatsPerBar * d.secondsPerBeatLocked() * float64(d.track.SampleRate()))
	end := min(d.loopStart+length, d.lastFrame())
	if end <= d.loopStart {
		return InvalidLoop
	}
	d.loopEnd = end
	d.republishLocked()
	return Applied
}

// LoopFrames returns the loop bounds in source frames and whether a loop is
// held.
func (d *Deck) LoopFrames() (start, end int64, held bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.loopStart), int64(d.loopEnd), d.looping
}
