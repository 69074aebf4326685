// SPDX-License-Identifier: MIT
/*
Package audio is the composition root of the mixing engine. It owns:
- the two decks, the mixer and the analyzer
- a PortAudio output stream driving the real-time callback
- an output ceiling clip
- master recording to WAV, encoded off the callback

Thread Safety:
- The callback takes no locks and does not allocate; every buffer it touches
  is allocated in NewEngine
- Control methods run on any goroutine and publish to the callback through
  the atomic snapshots of the deck and mixer packages
- The callback locks its OS thread while processing
*/
package audio

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"mixdeck/internal/analysis"
	"mixdeck/internal/config"
	"mixdeck/internal/deck"
	"mixdeck/internal/log"
	"mixdeck/internal/mixer"
	"mixdeck/internal/track"

	"github.com/gordonklaus/portaudio"
)

// Side names a deck.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	switch s {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

// Valid reports whether s names a deck.
func (s Side) Valid() bool { return s == Left || s == Right }

// other returns the opposite deck.
func (s Side) other() Side { return 1 - s }

// ParseSide accepts "left"/"a" and "right"/"b", case-insensitively.
func ParseSide(name string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "left", "a":
		return Left, nil
	case "right", "b":
		return Right, nil
	default:
		return Left, fmt.Errorf("unknown deck %q", name)
	}
}

type Engine struct {
	// Core configuration and state.
	config     *config.Config
	logger     *log.Logger
	sampleRate float64
	frames     int // frames per block
	channels   int // output channels

	decks    [2]*deck.Deck
	mixer    *mixer.Mixer
	analyzer *analysis.Analyzer
	loader   *track.Loader

	ceiling atomic.Uint32 // float32 bits
	clock   atomic.Uint64 // frames rendered

	// Callback scratch, interleaved stereo unless noted.
	deckMain [2][]float32
	deckCue  [2][]float32
	mainBus  []float32
	cueBus   []float32
	mono     []float32 // analyzer input

	// Recording state.
	recMu    sync.Mutex
	recorder atomic.Pointer[Recorder]

	// Output stream handling.
	streamMu      sync.Mutex
	outputStream  *portaudio.Stream
	outputDevice  *portaudio.DeviceInfo
	outputLatency time.Duration
}

// NewEngine builds the engine from cfg without touching the audio device;
// Start opens the stream. A nil cfg selects the defaults.
func NewEngine(cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	window, err := analysis.ParseWindowFunc(cfg.Analyzer.Window)
	if err != nil {
		return nil, err
	}
	analyzer, err := analysis.NewAnalyzer(analysis.AnalyzerOptions{
		FFTSize:     cfg.Analyzer.FFTSize,
		SampleRate:  cfg.Audio.SampleRate,
		Window:      window,
		Smoothing:   cfg.Analyzer.Smoothing,
		MinDecibels: cfg.Analyzer.MinDecibels,
		MaxDecibels: cfg.Analyzer.MaxDecibels,
	})
	if err != nil {
		return nil, err
	}

	frames := cfg.Audio.FramesPerBuffer
	rate := int(cfg.Audio.SampleRate)

	engine := &Engine{
		config:     cfg,
		logger:     log.Named("engine"),
		sampleRate: cfg.Audio.SampleRate,
		frames:     frames,
		channels:   cfg.Audio.OutputChannels,
		decks:      [2]*deck.Deck{deck.New(Left.String(), rate), deck.New(Right.String(), rate)},
		mixer:      mixer.New(),
		analyzer:   analyzer,
		loader: track.NewLoader(track.LoaderConfig{
			MaxBytes:   cfg.Loader.MaxFileBytes,
			FFmpegPath: cfg.Loader.FFmpegPath,
		}),
		mainBus: make([]float32, 2*frames),
		cueBus:  make([]float32, 2*frames),
		mono:    make([]float32, frames),
	}
	for i := range engine.decks {
		engine.deckMain[i] = make([]float32, 2*frames)
		engine.deckCue[i] = make([]float32, 2*frames)
	}
	engine.SetCeiling(cfg.Audio.Ceiling)
	engine.mixer.SetCrossfader(cfg.Mixer.Crossfader)
	engine.mixer.SetMasterVolume(cfg.Mixer.MasterVolume)
	engine.mixer.SetCueVolume(cfg.Mixer.CueVolume)

	engine.logger.Debugf("engine ready (%.0f Hz, %d frames, %d channels)", engine.sampleRate, frames, engine.channels)
	return engine, nil
}

// Start opens and starts the output stream on the configured device. If the
// device has fewer channels than configured, the engine falls back to
// stereo.
func (e *Engine) Start() error {
	e.streamMu.Lock()
	defer e.streamMu.Unlock()
	if e.outputStream != nil {
		return fmt.Errorf("output stream already running")
	}

	device, err := OutputDevice(e.config.Audio.OutputDevice)
	if err != nil {
		return err
	}
	if device.MaxOutputChannels < e.channels {
		e.logger.Warnf("%s has %d output channels, using stereo", device.Name, device.MaxOutputChannels)
		e.channels = 2
	}
	e.outputDevice = device
	if e.config.Audio.LowLatency {
		e.outputLatency = device.DefaultLowOutputLatency
	} else {
		e.outputLatency = device.DefaultHighOutputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: 0, // No input device
			Device:   nil,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: e.channels,
			Device:   device,
			Latency:  e.outputLatency,
		},
		FramesPerBuffer: e.frames,
		SampleRate:      e.sampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processOutputStream)
	if err != nil {
		return fmt.Errorf("opening output stream on %s: %w", device.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("starting output stream: %w", err)
	}
	e.outputStream = stream
	e.logger.Infof("output on %s (%d channels, %.1fms latency)", device.Name, e.channels, e.outputLatency.Seconds()*1000)
	return nil
}

// Stop stops and closes the output stream. It is a no-op when the stream is
// not running.
func (e *Engine) Stop() error {
	e.streamMu.Lock()
	defer e.streamMu.Unlock()
	if e.outputStream == nil {
		return nil
	}
	stream := e.outputStream
	e.outputStream = nil
	if err := stream.Stop(); err != nil {
		stream.Close()
		return err
	}
	return stream.Close()
}

// Close releases the sink, silences both decks and finalises any recording.
func (e *Engine) Close() error {
	streamErr := e.Stop()
	for _, d := range e.decks {
		d.Release()
	}
	recErr := e.StopRecording()
	if streamErr != nil {
		return streamErr
	}
	return recErr
}

// processOutputStream is the PortAudio callback.
func (e *Engine) processOutputStream(out []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	e.Process(out)
}

// Process renders one callback buffer of interleaved output. Buffers longer
// than the configured block are rendered in several passes.
// Performance Critical (Hot Path):
// - No allocations
// - No locks
func (e *Engine) Process(out []float32) {
	ch := e.channels
	total := len(out) / ch
	for off := 0; off < total; {
		n := min(total-off, e.frames)
		e.processBlock(out[off*ch:(off+n)*ch], n)
		off += n
	}
}

// processBlock renders both decks, mixes them, taps the analyzer and the
// recorder with the master bus and interleaves into out.
func (e *Engine) processBlock(out []float32, n int) {
	s := 2 * n
	for i, d := range e.decks {
		d.Render(e.deckMain[i][:s], e.deckCue[i][:s])
	}

	main, cue := e.mainBus[:s], e.cueBus[:s]
	e.mixer.Mix(main, cue, e.deckMain[Left][:s], e.deckMain[Right][:s], e.deckCue[Left][:s], e.deckCue[Right][:s])

	ceiling := math.Float32frombits(e.ceiling.Load())
	clip(main, ceiling)

	mono := e.mono[:n]
	for k := range mono {
		mono[k] = 0.5 * (main[2*k] + main[2*k+1])
	}
	e.analyzer.Process(mono)

	if r := e.recorder.Load(); r != nil {
		r.Write(main)
	}

	ch := e.channels
	split := ch >= 4
	for k := 0; k < n; k++ {
		frame := out[k*ch : (k+1)*ch]
		l, r := main[2*k], main[2*k+1]
		cl, cr := cue[2*k], cue[2*k+1]
		if split {
			frame[0], frame[1] = l, r
			frame[2], frame[3] = clipSample(cl, ceiling), clipSample(cr, ceiling)
			clear(frame[4:])
		} else {
			frame[0], frame[1] = clipSample(l+cl, ceiling), clipSample(r+cr, ceiling)
			clear(frame[2:])
		}
	}

	e.clock.Add(uint64(n))
}

// Deck returns the deck on side.
func (e *Engine) Deck(side Side) *deck.Deck { return e.decks[side] }

// Mixer returns the mixing bus.
func (e *Engine) Mixer() *mixer.Mixer { return e.mixer }

// Analyzer returns the spectrum/level analyzer fed with the master bus.
func (e *Engine) Analyzer() *analysis.Analyzer { return e.analyzer }

// Loader returns the track loader.
func (e *Engine) Loader() *track.Loader { return e.loader }

// SampleRate returns the output sample rate (Hz).
func (e *Engine) SampleRate() float64 { return e.sampleRate }

// Channels returns the number of output channels.
func (e *Engine) Channels() int { return e.channels }

// Clock returns the number of frames rendered since the engine was built.
func (e *Engine) Clock() uint64 { return e.clock.Load() }

// ClockSeconds returns Clock in seconds.
func (e *Engine) ClockSeconds() float64 { return float64(e.clock.Load()) / e.sampleRate }

// Load decodes data and puts the track on side. A failed load leaves the
// deck untouched.
func (e *Engine) Load(ctx context.Context, side Side, data []byte, declaredSize int64, mediaType string, meta track.Metadata) (track.Info, error) {
	if !side.Valid() {
		return track.Info{}, fmt.Errorf("invalid deck %v", side)
	}
	t, err := e.loader.Load(ctx, data, declaredSize, mediaType, meta)
	if err != nil {
		return track.Info{}, err
	}
	e.decks[side].Load(t)
	return t.Info(), nil
}

// LoadFile is Load for a file on disk; the title defaults to the file name.
func (e *Engine) LoadFile(ctx context.Context, side Side, path string) (track.Info, error) {
	if !side.Valid() {
		return track.Info{}, fmt.Errorf("invalid deck %v", side)
	}
	t, err := e.loader.LoadFile(ctx, path, track.Metadata{})
	if err != nil {
		return track.Info{}, err
	}
	e.decks[side].Load(t)
	return t.Info(), nil
}

// Sync matches the tempo of side to the current tempo of the other deck.
func (e *Engine) Sync(side Side) deck.Result {
	if !side.Valid() {
		return deck.Unchanged
	}
	return e.decks[side].Sync(e.decks[side.other()].BPM())
}
