// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"mixdeck/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var recLogger = log.Named("recorder")

// Recorder writes the master bus to a WAV file. The audio callback hands it
// blocks through Write; a writer goroutine encodes them. Blocks travel in
// preallocated buffers over two channels, free and full, so Write never
// allocates or blocks. When no free buffer is available the block is
// dropped and counted as an overrun.
type Recorder struct {
	path     string
	channels int
	scale    float64

	file    *os.File
	encoder *wav.Encoder
	intBuf  *audio.IntBuffer

	free chan []float32
	full chan []float32
	quit chan struct{}
	done chan struct{}

	frames   atomic.Uint64
	overruns atomic.Uint64

	startOnce sync.Once
	closeOnce sync.Once
	writeErr  error // first encode error, owned by the writer goroutine
	closeErr  error
}

// NewRecorder creates path and starts the writer goroutine. blockSamples is
// the largest interleaved block Write will be given; queue is the number of
// blocks buffered between the callback and the writer.
func NewRecorder(path string, sampleRate, channels, bitDepth, blockSamples, queue int) (*Recorder, error) {
	r, err := newRecorder(path, sampleRate, channels, bitDepth, blockSamples, queue)
	if err != nil {
		return nil, err
	}
	r.start()
	return r, nil
}

func newRecorder(path string, sampleRate, channels, bitDepth, blockSamples, queue int) (*Recorder, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported recording bit depth %d", bitDepth)
	}
	if channels <= 0 || blockSamples <= 0 || queue <= 0 {
		return nil, fmt.Errorf("invalid recorder geometry: %d channels, %d samples, queue %d", channels, blockSamples, queue)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		path:     path,
		channels: channels,
		scale:    float64(int64(1)<<(bitDepth-1) - 1),
		file:     file,
		encoder:  wav.NewEncoder(file, sampleRate, bitDepth, channels, 1),
		intBuf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  sampleRate,
			},
			Data:           make([]int, blockSamples),
			SourceBitDepth: bitDepth,
		},
		free: make(chan []float32, queue),
		full: make(chan []float32, queue),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	for range queue {
		r.free <- make([]float32, blockSamples)
	}
	return r, nil
}

func (r *Recorder) start() {
	r.startOnce.Do(func() { go r.run() })
}

// Write queues an interleaved block for encoding. It is safe on the audio
// callback: it neither locks nor allocates, and drops the block when the
// writer has fallen behind.
func (r *Recorder) Write(block []float32) {
	select {
	case buf := <-r.free:
		n := copy(buf[:cap(buf)], block)
		select {
		case r.full <- buf[:n]:
		default:
			r.overruns.Add(1)
			r.free <- buf
		}
	default:
		r.overruns.Add(1)
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for {
		select {
		case buf := <-r.full:
			r.encode(buf)
		case <-r.quit:
			// Drain what the callback queued before the stop.
			for {
				select {
				case buf := <-r.full:
					r.encode(buf)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) encode(buf []float32) {
	data := r.intBuf.Data[:len(buf)]
	for i, s := range buf {
		v := min(max(float64(s), -1), 1)
		data[i] = int(v * r.scale)
	}
	r.intBuf.Data = data
	if err := r.encoder.Write(r.intBuf); err != nil && r.writeErr == nil {
		r.writeErr = err
		recLogger.Errorf("writing %s: %v", r.path, err)
	} else if err == nil {
		r.frames.Add(uint64(len(buf) / r.channels))
	}
	r.free <- buf
}

// Close stops the writer after it has encoded every queued block and
// finalises the WAV header. It is safe to call more than once.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		r.start() // a recorder that never ran still drains and closes
		close(r.quit)
		<-r.done
		encErr := r.encoder.Close()
		fileErr := r.file.Close()
		r.closeErr = errors.Join(r.writeErr, encErr, fileErr)
		recLogger.Infof("saved %s (%d frames, %d overruns)", r.path, r.frames.Load(), r.overruns.Load())
	})
	return r.closeErr
}

// Path returns the output file.
func (r *Recorder) Path() string { return r.path }

// Frames returns the number of frames encoded so far.
func (r *Recorder) Frames() uint64 { return r.frames.Load() }

// Overruns returns the number of blocks dropped because the writer was
// behind.
func (r *Recorder) Overruns() uint64 { return r.overruns.Load() }

// RecordingStatus describes an active recording.
type RecordingStatus struct {
	Path     string `json:"path"`
	Frames   uint64 `json:"frames"`
	Overruns uint64 `json:"overruns"`
}

// defaultRecordingPath names a recording after the current time.
func defaultRecordingPath(dir string, now time.Time) string {
	return filepath.Join(dir, "mixdeck-"+now.UTC().Format("02-01-2006-150405")+".wav")
}

// StartRecording begins recording the master bus to path, or to a
// timestamped file in the configured directory when path is empty. It
// returns the file being written.
func (e *Engine) StartRecording(path string) (string, error) {
	e.recMu.Lock()
	defer e.recMu.Unlock()
	if e.recorder.Load() != nil {
		return "", fmt.Errorf("already recording")
	}

	if path == "" {
		dir := e.config.Recording.OutputDir
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("creating recording directory: %w", err)
		}
		path = defaultRecordingPath(dir, time.Now())
	}

	r, err := NewRecorder(path, int(e.sampleRate), 2, e.config.Recording.BitDepth,
		2*e.frames, e.config.Recording.QueueBlocks)
	if err != nil {
		return "", err
	}
	e.recorder.Store(r)
	e.logger.Infof("recording to %s", path)
	return path, nil
}

// StopRecording detaches the recorder from the callback and finalises the
// file. It returns nil when not recording.
func (e *Engine) StopRecording() error {
	e.recMu.Lock()
	defer e.recMu.Unlock()
	r := e.recorder.Swap(nil)
	if r == nil {
		return nil
	}
	return r.Close()
}

// Recording returns the status of the active recording, or nil.
func (e *Engine) Recording() *RecordingStatus {
	r := e.recorder.Load()
	if r == nil {
		return nil
	}
	return &RecordingStatus{Path: r.Path(), Frames: r.Frames(), Overruns: r.Overruns()}
}
