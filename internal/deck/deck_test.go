// SPDX-License-Identifier: MIT
package deck

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"mixdeck/internal/dsp"
	"mixdeck/internal/track"
	"mixdeck/pkg/utils"
)

const (
	testRate  = 8000
	blockSize = 80
)

// rampTrack returns a mono track whose sample i is i/frames, so rendered
// values reveal the playhead.
func rampTrack(seconds, bpm float64, sampleRate int) *track.Track {
	frames := int(seconds * float64(sampleRate))
	pcm := track.PCM{
		Samples:    utils.GenerateRamp(frames, 1/float32(frames)),
		SampleRate: sampleRate,
		Channels:   1,
	}
	return track.New(track.Info{ID: "t1", Title: "ramp", EstimatedBPM: bpm}, pcm)
}

func loadedDeck(t *testing.T, seconds, bpm float64) (*Deck, *track.Track) {
	t.Helper()
	d := New("left", testRate)
	tr := rampTrack(seconds, bpm, testRate)
	if r := d.Load(tr); r != Applied {
		t.Fatalf("Load() = %v", r)
	}
	return d, tr
}

type renderer struct {
	main, cue []float32
}

func newRenderer() *renderer {
	return &renderer{main: make([]float32, 2*blockSize), cue: make([]float32, 2*blockSize)}
}

func (r *renderer) blocks(d *Deck, n int) {
	for i := 0; i < n; i++ {
		d.Render(r.main, r.cue)
	}
}

func wantPosition(t *testing.T, d *Deck, want int64) {
	t.Helper()
	if got := d.Position(); got != want {
		t.Fatalf("Position() = %d, want %d", got, want)
	}
}

func wantResult(t *testing.T, op string, got, want Result) {
	t.Helper()
	if got != want {
		t.Fatalf("%s = %v, want %v", op, got, want)
	}
}

func TestEmptyDeckOperationsAreNoOps(t *testing.T) {
	d := New("left", testRate)
	before := d.Snapshot()

	ops := map[string]func() Result{
		"Play":          d.Play,
		"Pause":         d.Pause,
		"Stop":          d.Stop,
		"Eject":         d.Eject,
		"Seek":          func() Result { return d.Seek(100) },
		"SeekSeconds":   func() Result { return d.SeekSeconds(1) },
		"SetLoopIn":     d.SetLoopIn,
		"SetLoopOut":    d.SetLoopOut,
		"SetLoop":       func() Result { return d.SetLoop(0, 10) },
		"ToggleLoop":    d.ToggleLoop,
		"StartLoopRoll": d.StartLoopRoll,
		"StopLoopRoll":  d.StopLoopRoll,
		"NudgeLoop":     func() Result { return d.NudgeLoop(1) },
		"SetLoopPreset": func() Result { return d.SetLoopPreset(1) },
		"Sync":          func() Result { return d.Sync(128) },
		"SetCue":        func() Result { return d.SetCue(true) },
	}
	for name, op := range ops {
		if got := op(); got != NoTrack {
			t.Errorf("%s on empty deck = %v, want %v", name, got, NoTrack)
		}
	}

	after := d.Snapshot()
	if before != after {
		t.Errorf("empty deck state changed:\n%+v\n%+v", before, after)
	}

	r := newRenderer()
	r.blocks(d, 2)
	for i, s := range r.main {
		if s != 0 {
			t.Fatalf("empty deck rendered %v at %d", s, i)
		}
	}
}

func TestPlayPauseResumesInPlace(t *testing.T) {
	d, _ := loadedDeck(t, 10, 120)
	r := newRenderer()

	wantResult(t, "Play", d.Play(), Applied)
	wantResult(t, "second Play", d.Play(), Unchanged)
	r.blocks(d, 10)
	wantPosition(t, d, 800)
	if d.State() != Playing {
		t.Errorf("State() = %v, want playing", d.State())
	}

	wantResult(t, "Pause", d.Pause(), Applied)
	wantResult(t, "second Pause", d.Pause(), Unchanged)
	r.blocks(d, 5)
	wantPosition(t, d, 800)
	if d.State() != Stopped {
		t.Errorf("State() after pause = %v", d.State())
	}

	d.Play()
	wantPosition(t, d, 800)
	r.blocks(d, 1)
	wantPosition(t, d, 800+blockSize)
}

func TestSeek(t *testing.T) {
	d, tr := loadedDeck(t, 10, 120)
	r := newRenderer()

	d.Play()
	r.blocks(d, 3)
	wantResult(t, "Seek", d.Seek(4000), Applied)
	wantPosition(t, d, 4000) // visible before the callback picks it up
	r.blocks(d, 1)
	wantPosition(t, d, 4000+blockSize)

	d.Seek(-50)
	wantPosition(t, d, 0)
	d.Seek(1 << 40)
	wantPosition(t, d, int64(tr.Frames()-1))

	d.Pause()
	d.SeekSeconds(2)
	wantPosition(t, d, 16000)
	d.Play()
	r.blocks(d, 1)
	wantPosition(t, d, 16000+blockSize)
}

func TestReanchorSurvivesLaterPublication(t *testing.T) {
	d, _ := loadedDeck(t, 10, 120)
	r := newRenderer()
	d.Play()
	r.blocks(d, 2)

	d.Seek(4000)
	d.SetEQ(dsp.High, 0.8) // supersedes the seek program before any block
	d.SetVolume(0.9)
	r.blocks(d, 1)
	wantPosition(t, d, 4000+blockSize)
}

func TestEndOfTrackStopsAndRewinds(t *testing.T) {
	d, _ := loadedDeck(t, 1, 120)
	r := newRenderer()
	d.Seek(7950)
	d.Play()
	r.blocks(d, 2)

	if got := d.State(); got != Stopped {
		t.Fatalf("State() at end of track = %v, want stopped", got)
	}
	wantPosition(t, d, 0)
	wantResult(t, "Play after end", d.Play(), Applied)
}

func TestStop(t *testing.T) {
	d, _ := loadedDeck(t, 10, 120)
	r := newRenderer()
	d.Play()
	r.blocks(d, 4)
	wantResult(t, "Stop", d.Stop(), Applied)
	wantPosition(t, d, 0)
	if d.State() != Stopped {
		t.Errorf("State() after Stop = %v", d.State())
	}
}

func TestHeldLoopWrapsAndSurvivesPause(t *testing.T) {
	d, tr := loadedDeck(t, 10, 120)
	r := newRenderer()

	d.SetLoop(8000, 12000)
	d.ToggleLoop()
	d.Seek(11960)
	d.Play()
	if d.State() != PlayingLooped {
		t.Fatalf("State() = %v, want playing_looped", d.State())
	}
	r.blocks(d, 1)
	wantPosition(t, d, 8040)

	// Frame 40 of the block is the loop start.
	if got, want := r.main[80], tr.Samples()[8000]; math.Abs(float64(got-want)) > 1e-4 {
		t.Errorf("sample after wrap = %v, want %v", got, want)
	}

	d.Pause()
	if s, e, held := d.LoopFrames(); s != 8000 || e != 12000 || !held {
		t.Errorf("held loop after pause = %d..%d held=%v", s, e, held)
	}
}

func TestPauseClearsUnheldLoop(t *testing.T) {
	d, _ := loadedDeck(t, 10, 120)
	d.SetLoop(8000, 12000)
	d.Play()
	d.Pause()
	if s, e, _ := d.LoopFrames(); s != 0 || e != 0 {
		t.Errorf("unheld loop after pause = %d..%d, want cleared", s, e)
	}
}

func TestToggleLoopRestartsInPlace(t *testing.T) {
	d, _ := loadedDeck(t, 10, 120)
	r := newRenderer()
	d.SetLoop(0, 4000)
	d.Seek(6000)
	d.Play()
	r.blocks(d, 1)

	// The playhead is past the new loop, so the restart lands on its start.
	wantResult(t, "ToggleLoop", d.ToggleLoop(), Applied)
	r.blocks(d, 1)
	wantPosition(t, d, blockSize)

	// Releasing the hold while playing clears the region.
	d.ToggleLoop()
	if s, e, held := d.LoopFrames(); s != 0 || e != 0 || held {
		t.Errorf("loop after release = %d..%d held=%v", s, e, held)
	}
}

func TestLoopMarkersSnapToBeats(t *testing.T) {
	d, _ := loadedDeck(t, 10, 120) // one beat = 4000 frames

	d.Seek(5900)
	wantResult(t, "SetLoopIn", d.SetLoopIn(), Applied)
	d.Seek(7100)
	wantResult(t, "SetLoopOut", d.SetLoopOut(), Applied)
	if s, e, _ := d.LoopFrames(); s != 4000 || e != 8000 {
		t.Errorf("loop = %d..%d, want 4000..8000", s, e)
	}

	d.Seek(1000)
	wantResult(t, "SetLoopOut before start", d.SetLoopOut(), InvalidLoop)
	if _, e, _ := d.LoopFrames(); e != 8000 {
		t.Errorf("rejected loop out moved the end to %d", e)
	}

	d.Seek(9900)
	d.SetLoopIn()
	if s, e, _ := d.LoopFrames(); s != 8000 || e != 8000 {
		t.Errorf("loop in past the end = %d..%d, want 8000..8000", s, e)
	}
}

func TestLoopMarkersWithoutTempo(t *testing.T) {
	d, _ := loadedDeck(t, 10, 0)
	d.Seek(5900)
	d.SetLoopIn()
	if s, _, _ := d.LoopFrames(); s != 5900 {
		t.Errorf("unsnapped loop in = %d, want 5900", s)
	}
	wantResult(t, "SetLoopPreset", d.SetLoopPreset(1), TempoUnknown)
	wantResult(t, "NudgeLoop", d.NudgeLoop(1), TempoUnknown)
	wantResult(t, "Sync", d.Sync(120), TempoUnknown)
}

func TestSetLoopPreset(t *testing.T) {
	d, tr := loadedDeck(t, 10, 120)
	wantResult(t, "SetLoopPreset(1)", d.SetLoopPreset(1), Applied)
	if got := d.Snapshot().Loop.End; got != 2.0 {
		t.Errorf("loop end = %vs, want 2.0s", got)
	}
	wantResult(t, "SetLoopPreset(0)", d.SetLoopPreset(0), InvalidLoop)

	d.SetLoopPreset(16) // 32 s, longer than the track
	if _, e, _ := d.LoopFrames(); e != int64(tr.Frames()-1) {
		t.Errorf("preset end = %d, want clamped to %d", e, tr.Frames()-1)
	}
}

func TestNudgeLoop(t *testing.T) {
	d, tr := loadedDeck(t, 10, 120)
	wantResult(t, "NudgeLoop on empty region", d.NudgeLoop(1), InvalidLoop)

	d.SetLoop(4000, 8000)
	wantResult(t, "NudgeLoop(1)", d.NudgeLoop(1), Applied)
	if s, e, _ := d.LoopFrames(); s != 8000 || e != 12000 {
		t.Errorf("after +1 beat = %d..%d", s, e)
	}

	d.NudgeLoop(-5)
	if s, e, _ := d.LoopFrames(); s != 0 || e != 4000 {
		t.Errorf("after -5 beats = %d..%d, want clamped to 0..4000", s, e)
	}
	wantResult(t, "NudgeLoop at start", d.NudgeLoop(-1), Unchanged)

	d.SetLoop(70000, 76000)
	d.NudgeLoop(2)
	last := int64(tr.Frames() - 1)
	if s, e, _ := d.LoopFrames(); e != last || s != last-6000 {
		t.Errorf("after nudge past the end = %d..%d", s, e)
	}
}

func TestLoopRoll(t *testing.T) {
	d, _ := loadedDeck(t, 10, 120)
	r := newRenderer()

	wantResult(t, "StartLoopRoll on empty region", d.StartLoopRoll(), InvalidLoop)
	wantResult(t, "StopLoopRoll when idle", d.StopLoopRoll(), Unchanged)

	d.SetLoop(8000, 16000)
	d.Play()
	r.blocks(d, 10)
	wantResult(t, "StartLoopRoll", d.StartLoopRoll(), Applied)
	if d.State() != Rolling {
		t.Fatalf("State() = %v, want rolling", d.State())
	}

	busy := map[string]func() Result{
		"Play":          d.Play,
		"Pause":         d.Pause,
		"Seek":          func() Result { return d.Seek(0) },
		"ToggleLoop":    d.ToggleLoop,
		"NudgeLoop":     func() Result { return d.NudgeLoop(1) },
		"SetLoopPreset": func() Result { return d.SetLoopPreset(1) },
		"Sync":          func() Result { return d.Sync(128) },
		"SetLoopIn":     d.SetLoopIn,
	}
	for name, op := range busy {
		if got := op(); got != Busy {
			t.Errorf("%s while rolling = %v, want busy", name, got)
		}
	}

	r.blocks(d, 150) // 1.5 s of a 1 s loop
	wantResult(t, "StopLoopRoll", d.StopLoopRoll(), Applied)
	wantPosition(t, d, 12000)
	if d.State() != Playing {
		t.Errorf("State() after roll = %v, want playing", d.State())
	}
	r.blocks(d, 1)
	wantPosition(t, d, 12000+blockSize)
}

func TestReentryOffset(t *testing.T) {
	tests := []struct {
		start, end, elapsed, want float64
	}{
		{2.0, 3.0, 2.5, 2.5},
		{2.0, 3.0, 0.25, 2.25},
		{2.0, 3.0, 3.0, 2.0},
		{0, 16000, 40000, 8000},
		{5, 5, 10, 5},
	}
	for _, tt := range tests {
		if got := ReentryOffset(tt.start, tt.end, tt.elapsed); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("ReentryOffset(%v, %v, %v) = %v, want %v", tt.start, tt.end, tt.elapsed, got, tt.want)
		}
	}
}

func TestSyncChangesPlaybackRate(t *testing.T) {
	d, _ := loadedDeck(t, 10, 100)
	r := newRenderer()

	wantResult(t, "Sync", d.Sync(125), Applied)
	wantResult(t, "repeat Sync", d.Sync(125), Unchanged)
	if d.BPM() != 125 || d.Rate() != 1.25 {
		t.Errorf("BPM/Rate = %v/%v, want 125/1.25", d.BPM(), d.Rate())
	}

	d.Play()
	r.blocks(d, 8) // 640 output frames
	wantPosition(t, d, 800)

	// Beat math stays on the track's own tempo.
	d.Pause()
	d.Stop()
	d.SetLoopPreset(1)
	if _, e, _ := d.LoopFrames(); e != 19200 {
		t.Errorf("synced preset end = %d, want 19200 (4 beats at 100 BPM)", e)
	}
	if !d.Snapshot().SyncActive {
		t.Error("SyncActive = false after sync")
	}
}

func TestSampleRateConversion(t *testing.T) {
	d := New("right", testRate)
	d.Load(rampTrack(10, 120, testRate/2))
	r := newRenderer()
	d.Play()
	r.blocks(d, 1)
	wantPosition(t, d, blockSize/2)
}

func TestEQSemantics(t *testing.T) {
	d, _ := loadedDeck(t, 1, 120)
	for _, v := range []float64{0, 0.1, 0.25, 0.5, 0.75, 1} {
		d.SetEQ(dsp.Mid, v)
		if got, want := d.EQ(dsp.Mid), (v-0.5)*24; got != want {
			t.Errorf("SetEQ(%v) read back %v dB, want %v", v, got, want)
		}
	}

	d.SetEQ(dsp.Low, 0.75)
	d.KillEQ(dsp.Low, true)
	if d.EQ(dsp.Low) != dsp.KillGainDB || !d.Killed(dsp.Low) {
		t.Errorf("killed band = %v dB killed=%v", d.EQ(dsp.Low), d.Killed(dsp.Low))
	}
	d.KillEQ(dsp.Low, false)
	if d.EQ(dsp.Low) != 0 || d.Killed(dsp.Low) {
		t.Errorf("unkilled band = %v dB, want 0 (not the pre-kill 6 dB)", d.EQ(dsp.Low))
	}

	d.KillEQ(dsp.High, true)
	d.SetEQ(dsp.High, 0.25)
	if d.EQ(dsp.High) != -6 || d.Killed(dsp.High) {
		t.Errorf("SetEQ on killed band = %v dB killed=%v, want -6 and cleared", d.EQ(dsp.High), d.Killed(dsp.High))
	}

	if d.SetEQ(dsp.Band(7), 1) != Unchanged {
		t.Error("SetEQ on an unknown band should be a no-op")
	}
}

func TestGain(t *testing.T) {
	d, tr := loadedDeck(t, 10, 120)
	r := newRenderer()
	d.SetVolume(0.5)
	d.SetTrim(0.5)
	if d.Gain() != 0.5 {
		t.Errorf("Gain() = %v, want 0.5", d.Gain())
	}
	d.Seek(40000)
	d.Play()
	r.blocks(d, 1)
	want := 0.5 * tr.Samples()[40000]
	if math.Abs(float64(r.main[0]-want)) > 1e-4 {
		t.Errorf("rendered %v, want %v", r.main[0], want)
	}

	d.SetTrim(1)
	if d.Gain() != 1 {
		t.Errorf("Gain() at full trim and half volume = %v, want 1", d.Gain())
	}
}

func TestCueIsIndependentOfMain(t *testing.T) {
	d, tr := loadedDeck(t, 10, 120)
	r := newRenderer()
	d.SetVolume(0)
	d.Seek(4000)

	wantResult(t, "SetCue(false) when off", d.SetCue(false), Unchanged)
	wantResult(t, "SetCue(true)", d.SetCue(true), Applied)
	r.blocks(d, 1)
	if r.cue[0] != tr.Samples()[4000] || r.cue[1] != tr.Samples()[4000] {
		t.Errorf("cue frame = %v/%v, want %v", r.cue[0], r.cue[1], tr.Samples()[4000])
	}
	if r.main[0] != 0 {
		t.Errorf("main bus = %v while paused", r.main[0])
	}
	r.blocks(d, 1)
	if r.cue[0] != tr.Samples()[4000+blockSize] {
		t.Errorf("cue did not advance: %v", r.cue[0])
	}
	wantPosition(t, d, 4000) // the deck itself stays put

	d.SetCue(false)
	r.blocks(d, 1)
	if r.cue[0] != 0 {
		t.Errorf("cue after SetCue(false) = %v", r.cue[0])
	}
}

func TestLoadResetsTransport(t *testing.T) {
	d, _ := loadedDeck(t, 10, 100)
	r := newRenderer()
	d.SetEQ(dsp.Low, 1)
	d.SetLoop(0, 8000)
	d.ToggleLoop()
	d.Sync(120)
	d.SetCue(true)
	d.Play()
	r.blocks(d, 3)

	next := rampTrack(5, 128, testRate)
	d.Load(next)
	s := d.Snapshot()
	if s.IsPlaying || s.Loop.IsActive || s.Loop.End != 0 || s.CueActive || s.Rate != 1 || s.BPM != 128 {
		t.Errorf("Load did not reset transport: %+v", s)
	}
	if s.EQLow != 12 {
		t.Errorf("Load reset EQ: low = %v", s.EQLow)
	}
	wantPosition(t, d, 0)

	wantResult(t, "Eject", d.Eject(), Applied)
	wantResult(t, "second Eject", d.Eject(), NoTrack)
}

func TestSnapshotJSON(t *testing.T) {
	d, _ := loadedDeck(t, 2, 120)
	d.Play()
	b, err := json.Marshal(d.Snapshot())
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	for _, want := range []string{`"state":"playing"`, `"isPlaying":true`, `"bpm":120`, `"title":"ramp"`} {
		if !strings.Contains(string(b), want) {
			t.Errorf("snapshot %s missing %s", b, want)
		}
	}
}

func TestResultErr(t *testing.T) {
	if !errors.Is(NoTrack.Err(), ErrNoTrackLoaded) || !errors.Is(InvalidLoop.Err(), ErrInvalidLoopRegion) {
		t.Error("no-op results should map to their errors")
	}
	if Applied.Err() != nil || Unchanged.Err() != nil {
		t.Error("Applied and Unchanged are not errors")
	}
	if !Applied.OK() || Busy.OK() {
		t.Error("OK() misreports")
	}
}

func TestRelease(t *testing.T) {
	d, _ := loadedDeck(t, 10, 120)
	r := newRenderer()
	d.SetCue(true)
	d.Play()
	r.blocks(d, 2)
	d.Release()
	r.blocks(d, 20) // let the filter tail settle
	for i := range r.main {
		if math.Abs(float64(r.main[i])) > 1e-6 || r.cue[i] != 0 {
			t.Fatalf("released deck still sounding at %d: %v / %v", i, r.main[i], r.cue[i])
		}
	}
	if d.Track() == nil {
		t.Error("Release dropped the track")
	}
}

func TestRenderDoesNotAllocate(t *testing.T) {
	d, _ := loadedDeck(t, 10, 120)
	d.SetLoop(0, 16000)
	d.ToggleLoop()
	d.SetCue(true)
	d.Play()
	r := newRenderer()
	allocs := testing.AllocsPerRun(100, func() {
		d.Render(r.main, r.cue)
	})
	if allocs != 0 {
		t.Errorf("Render allocated %.1f times per run, want 0", allocs)
	}
}

func TestConcurrentControlAndRender(t *testing.T) {
	d, _ := loadedDeck(t, 10, 120)
	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		r := newRenderer()
		for {
			select {
			case <-done:
				return
			default:
				r.blocks(d, 1)
			}
		}
	}()

	for i := 0; i < 200; i++ {
		d.Play()
		d.Seek(int64(i * 100))
		d.SetEQ(dsp.Band(i%3), float64(i%10)/10)
		d.SetLoop(8000, 16000)
		d.ToggleLoop()
		d.StartLoopRoll()
		_ = d.Snapshot()
		d.StopLoopRoll()
		d.Pause()
	}
	close(done)
	wg.Wait()
}

func BenchmarkRender(b *testing.B) {
	d := New("left", 44100)
	d.Load(rampTrack(30, 120, 44100))
	d.SetEQ(dsp.Low, 0.7)
	d.Play()
	main := make([]float32, 2*512)
	cue := make([]float32, 2*512)
	b.ReportAllocs()
	for b.Loop() {
		d.Render(main, cue)
	}
}
