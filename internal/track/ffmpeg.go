// SPDX-License-Identifier: MIT
package track

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// FFmpegDecoder decodes anything ffmpeg understands, MP4/M4A in particular,
// to 32-bit float PCM through an ffmpeg subprocess.
type FFmpegDecoder struct {
	Path       string // "" selects "ffmpeg" from PATH
	SampleRate int    // 0 selects 44100
	Channels   int    // 0 selects 2
}

func (f *FFmpegDecoder) command() string {
	if f.Path == "" {
		return "ffmpeg"
	}
	return f.Path
}

// Decode implements Decoder. MP4 containers may keep their index at the end
// of the file, so the input is staged in a temporary file ffmpeg can seek.
func (f *FFmpegDecoder) Decode(ctx context.Context, data []byte) (PCM, error) {
	rate := f.SampleRate
	if rate <= 0 {
		rate = 44100
	}
	channels := f.Channels
	if channels <= 0 {
		channels = 2
	}

	tmp, err := os.CreateTemp("", "mixdeck-decode-*")
	if err != nil {
		return PCM{}, fmt.Errorf("stage input: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return PCM{}, fmt.Errorf("stage input: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return PCM{}, fmt.Errorf("stage input: %w", err)
	}

	cmd := exec.CommandContext(ctx, f.command(),
		"-hide_banner",
		"-loglevel", "error",
		"-i", tmp.Name(),
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ar", strconv.Itoa(rate),
		"-ac", strconv.Itoa(channels),
		"pipe:1",
	)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return PCM{}, fmt.Errorf("ffmpeg: %s: %w", strings.TrimSpace(string(exitErr.Stderr)), err)
		}
		return PCM{}, fmt.Errorf("ffmpeg: %w", err)
	}

	return PCM{
		Samples:    decodeF32LE(out),
		SampleRate: rate,
		Channels:   channels,
	}, nil
}

// decodeF32LE converts little-endian float32 bytes to samples. A trailing
// partial sample is dropped.
func decodeF32LE(b []byte) []float32 {
	samples := make([]float32, len(b)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return samples
}

// Available reports whether the ffmpeg binary can be found.
func (f *FFmpegDecoder) Available() bool {
	_, err := exec.LookPath(f.command())
	return err == nil
}

var _ Decoder = (*FFmpegDecoder)(nil)
