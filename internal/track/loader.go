// SPDX-License-Identifier: MIT
package track

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"mixdeck/internal/analysis"
	"mixdeck/internal/log"
)

// DefaultMaxBytes is the largest encoded file accepted, 50 MiB.
const DefaultMaxBytes int64 = 50 * 1024 * 1024

// Accepted media types.
const (
	MediaTypeMPEG = "audio/mpeg"
	MediaTypeMP3  = "audio/mp3"
	MediaTypeWAV  = "audio/wav"
	MediaTypeMP4  = "audio/mp4"
	MediaTypeM4A  = "audio/m4a"
)

var mediaTypeAliases = map[string]string{
	"audio/x-wav": MediaTypeWAV,
	"audio/wave":  MediaTypeWAV,
	"audio/x-m4a": MediaTypeM4A,
	"audio/x-mp3": MediaTypeMP3,
}

var errEmptyPCM = errors.New("decoder produced no audio")

var logger = log.Named("track")

// Decoder turns encoded bytes into PCM.
type Decoder interface {
	Decode(ctx context.Context, data []byte) (PCM, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(ctx context.Context, data []byte) (PCM, error)

// Decode calls f.
func (f DecoderFunc) Decode(ctx context.Context, data []byte) (PCM, error) { return f(ctx, data) }

// NormalizeMediaType lowercases a media type, drops its parameters and maps
// known aliases onto the accepted names.
func NormalizeMediaType(mediaType string) string {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}
	if alias, ok := mediaTypeAliases[mt]; ok {
		return alias
	}
	return mt
}

// MediaTypeForPath guesses the media type from a file extension. It returns
// "" for unknown extensions.
func MediaTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return MediaTypeMPEG
	case ".wav", ".wave":
		return MediaTypeWAV
	case ".m4a":
		return MediaTypeM4A
	case ".mp4":
		return MediaTypeMP4
	default:
		return ""
	}
}

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	MaxBytes   int64  // 0 selects DefaultMaxBytes
	FFmpegPath string // "" selects "ffmpeg" from PATH
}

// Loader validates, decodes and analyses encoded audio.
type Loader struct {
	maxBytes int64
	decoders map[string]Decoder
	now      func() time.Time
	seq      atomic.Uint64
}

// NewLoader returns a loader with the WAV, MP3 and ffmpeg decoders
// registered for the accepted media types.
func NewLoader(cfg LoaderConfig) *Loader {
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	ff := &FFmpegDecoder{Path: cfg.FFmpegPath}
	l := &Loader{
		maxBytes: maxBytes,
		decoders: map[string]Decoder{
			MediaTypeMPEG: MP3Decoder{},
			MediaTypeMP3:  MP3Decoder{},
			MediaTypeWAV:  WAVDecoder{},
			MediaTypeMP4:  ff,
			MediaTypeM4A:  ff,
		},
		now: time.Now,
	}
	return l
}

// Register installs d for an accepted media type, replacing the default.
func (l *Loader) Register(mediaType string, d Decoder) {
	l.decoders[NormalizeMediaType(mediaType)] = d
}

// MaxBytes returns the size ceiling.
func (l *Loader) MaxBytes() int64 { return l.maxBytes }

// Accepts reports whether mediaType is in the accepted set.
func (l *Loader) Accepts(mediaType string) bool {
	_, ok := l.decoders[NormalizeMediaType(mediaType)]
	return ok
}

// Check runs the pre-flight validation without decoding.
func (l *Loader) Check(size int64, mediaType string) error {
	if size > l.maxBytes {
		return &FileTooLargeError{Size: size, Limit: l.maxBytes}
	}
	if !l.Accepts(mediaType) {
		return &UnsupportedFormatError{MediaType: mediaType}
	}
	return nil
}

// Load validates the input, decodes it, estimates its tempo and returns a
// ready track. Size and format are checked before any decoding.
func (l *Loader) Load(ctx context.Context, data []byte, declaredSize int64, mediaType string, meta Metadata) (*Track, error) {
	if err := l.Check(max(declaredSize, int64(len(data))), mediaType); err != nil {
		return nil, err
	}
	mt := NormalizeMediaType(mediaType)

	start := l.now()
	pcm, err := l.decoders[mt].Decode(ctx, data)
	if err != nil {
		return nil, &DecodeError{MediaType: mt, Err: err}
	}
	if pcm.Channels < 1 || pcm.SampleRate <= 0 || pcm.Frames() == 0 {
		return nil, &DecodeError{MediaType: mt, Err: errEmptyPCM}
	}

	bpm := analysis.EstimateBPM(pcm.Samples, pcm.Channels, float64(pcm.SampleRate))
	t := New(Info{
		ID:           l.nextID(),
		Title:        meta.Title,
		Artist:       meta.Artist,
		EstimatedBPM: bpm,
		FileSize:     int64(len(data)),
		MediaType:    mt,
	}, pcm)

	logger.Infof("loaded %q: %.1fs, %d Hz, %d ch, %.0f BPM (%v)",
		t.info.Title, t.info.DurationSeconds, t.info.SampleRate, t.info.ChannelCount, bpm, l.now().Sub(start).Round(time.Millisecond))
	return t, nil
}

// LoadFile loads a track from disk, taking the media type from the file
// extension. The size ceiling is checked before the file is read.
func (l *Loader) LoadFile(ctx context.Context, path string, meta Metadata) (*Track, error) {
	mt := MediaTypeForPath(path)
	if mt == "" {
		return nil, &UnsupportedFormatError{MediaType: filepath.Ext(path)}
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat track: %w", err)
	}
	if err := l.Check(fi.Size(), mt); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read track: %w", err)
	}
	return l.Load(ctx, data, fi.Size(), mt, meta)
}

// nextID returns the load timestamp in milliseconds with a per-loader
// sequence suffix, so two loads in the same millisecond differ.
func (l *Loader) nextID() string {
	return strconv.FormatInt(l.now().UnixMilli(), 10) + "-" + strconv.FormatUint(l.seq.Add(1), 10)
}
