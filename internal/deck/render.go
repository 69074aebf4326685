// SPDX-License-Identifier: MIT
package deck

import (
	"math"

	"mixdeck/internal/dsp"
	"mixdeck/internal/track"
)

// program is an immutable snapshot of everything the audio callback needs
// from a deck. The control side builds a fresh one per change and publishes
// it with a single atomic store.
//
// Re-anchors (seek, restart, roll start) are identified by anchorSeq and
// carried into every later program, so a position jump is never lost when a
// parameter-only change supersedes it before the callback runs.
type program struct {
	track   *track.Track
	playing bool // main voice running, normal or rolling
	looping bool // wrap at loopEnd
	rolling bool

	loopStart float64 // source frames
	loopEnd   float64

	step float64 // source frames per output frame
	gain float32
	eq   dsp.ChainCoefficients

	anchorSeq uint64
	anchorAt  float64
	epoch     uint64 // play epoch, echoed back on end of track

	cue       bool
	cueSeq    uint64
	cueAnchor float64
}

// voice is the callback-owned playback state.
type voice struct {
	prog        *program
	chain       dsp.Chain
	head        float64
	anchorSeq   uint64
	rollElapsed float64
	cueHead     float64
	cueSeq      uint64
}

func (v *voice) apply(p *program) {
	v.prog = p
	v.chain.SetCoefficients(p.eq)
	if p.anchorSeq != v.anchorSeq {
		v.anchorSeq = p.anchorSeq
		v.head = p.anchorAt
		if p.looping && v.head >= p.loopEnd {
			v.head = p.loopStart
		}
		v.rollElapsed = 0
	}
	if p.cueSeq != v.cueSeq {
		v.cueSeq = p.cueSeq
		v.cueHead = p.cueAnchor
	}
}

// Render produces one block of the deck: main is the post-EQ, post-gain
// signal and cue the raw pre-listen signal, both interleaved stereo of the
// same length. cue may be nil. Render runs on the audio callback; it takes no
// lock and does not allocate.
func (d *Deck) Render(main, cue []float32) {
	v := &d.rt
	if p := d.program.Load(); p != v.prog {
		v.apply(p)
	}
	p := v.prog

	clear(main)
	if cue != nil {
		clear(cue)
	}
	if p.track == nil {
		return
	}

	if p.playing {
		d.renderMain(v, p, main)
	}
	// The chain runs on silence too so filter tails decay after a pause.
	v.chain.Process(main)
	if p.gain != 1 {
		for i := range main {
			main[i] *= p.gain
		}
	}
	if p.cue && cue != nil {
		v.cueHead = renderLinear(p.track, v.cueHead, p.step, cue)
	}

	d.rtHead.Store(math.Float64bits(v.head))
	d.rtRoll.Store(math.Float64bits(v.rollElapsed))
	d.rtAnchor.Store(v.anchorSeq)
}

func (d *Deck) renderMain(v *voice, p *program, out []float32) {
	t := p.track
	samples := t.Samples()
	ch := t.Channels()
	last := int64(t.Frames()) - 1
	end := float64(t.Frames())
	ls, le := p.loopStart, p.loopEnd
	span := le - ls
	head := v.head

	for i := 0; i+1 < len(out); i += 2 {
		if p.looping {
			if head >= le {
				head = ls + math.Mod(head-le, span)
			}
		} else if head >= end {
			head = end
			d.ended.Store(p.epoch)
			break
		}

		i0 := int64(head)
		i1 := i0 + 1
		if p.looping && float64(i1) >= le {
			i1 = int64(ls)
		} else if i1 > last {
			i1 = i0
		}
		frac := float32(head - float64(i0))

		b0, b1 := int(i0)*ch, int(i1)*ch
		l0, l1 := samples[b0], samples[b1]
		r0, r1 := l0, l1
		if ch > 1 {
			r0, r1 = samples[b0+1], samples[b1+1]
		}
		out[i] = l0 + (l1-l0)*frac
		out[i+1] = r0 + (r1-r0)*frac

		head += p.step
		if p.rolling {
			v.rollElapsed += p.step
		}
	}
	v.head = head
}

// renderLinear reads t from head into out without looping and returns the
// advanced head. Past the end it leaves out silent.
func renderLinear(t *track.Track, head, step float64, out []float32) float64 {
	samples := t.Samples()
	ch := t.Channels()
	last := int64(t.Frames()) - 1
	end := float64(t.Frames())
	for i := 0; i+1 < len(out) && head < end; i += 2 {
		i0 := int64(head)
		i1 := min(i0+1, last)
		frac := float32(head - float64(i0))
		b0, b1 := int(i0)*ch, int(i1)*ch
		l0, l1 := samples[b0], samples[b1]
		r0, r1 := l0, l1
		if ch > 1 {
			r0, r1 = samples[b0+1], samples[b1+1]
		}
		out[i] = l0 + (l1-l0)*frac
		out[i+1] = r0 + (r1-r0)*frac
		head += step
	}
	return head
}
