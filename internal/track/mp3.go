// SPDX-License-Identifier: MIT
package track

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
)

// mp3Chunk is the number of frames pulled from the stream per read.
const mp3Chunk = 4096

// MP3Decoder decodes MPEG-1/2 layer III audio.
type MP3Decoder struct{}

// Decode implements Decoder. The stream is read to the end; ctx is checked
// between chunks.
func (MP3Decoder) Decode(ctx context.Context, data []byte) (PCM, error) {
	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		return PCM{}, fmt.Errorf("open MP3 stream: %w", err)
	}
	defer streamer.Close()

	samples, err := drain(ctx, streamer, format)
	if err != nil {
		return PCM{}, err
	}
	return PCM{
		Samples:    samples,
		SampleRate: int(format.SampleRate),
		Channels:   outputChannels(format),
	}, nil
}

func outputChannels(format beep.Format) int {
	if format.NumChannels >= 2 {
		return 2
	}
	return 1
}

// drain reads a beep stream into interleaved float32.
func drain(ctx context.Context, s beep.StreamSeeker, format beep.Format) ([]float32, error) {
	channels := outputChannels(format)
	out := make([]float32, 0, max(s.Len(), 0)*channels)
	buf := make([][2]float64, mp3Chunk)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, ok := s.Stream(buf)
		for _, frame := range buf[:n] {
			out = append(out, float32(frame[0]))
			if channels == 2 {
				out = append(out, float32(frame[1]))
			}
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("decode MP3 frames: %w", err)
	}
	return out, nil
}
