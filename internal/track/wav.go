// SPDX-License-Identifier: MIT
package track

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// WAVDecoder decodes integer PCM WAV files of 8, 16, 24 or 32 bits.
type WAVDecoder struct{}

// Decode implements Decoder.
func (WAVDecoder) Decode(_ context.Context, data []byte) (PCM, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return PCM{}, errors.New("not a valid WAV file")
	}
	if d.WavAudioFormat != wavFormatPCM && d.WavAudioFormat != wavFormatExtensible {
		return PCM{}, fmt.Errorf("unsupported WAV encoding %d", d.WavAudioFormat)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return PCM{}, fmt.Errorf("read WAV samples: %w", err)
	}
	samples, err := intBufferToFloat(buf, int(d.BitDepth))
	if err != nil {
		return PCM{}, err
	}
	return PCM{
		Samples:    samples,
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
	}, nil
}

// intBufferToFloat scales integer samples of the given bit depth to [-1,1].
// 8-bit WAV samples are unsigned.
func intBufferToFloat(buf *audio.IntBuffer, bitDepth int) ([]float32, error) {
	if bitDepth < 8 || bitDepth > 32 || bitDepth%8 != 0 {
		return nil, fmt.Errorf("unsupported WAV bit depth %d", bitDepth)
	}
	out := make([]float32, len(buf.Data))
	if bitDepth == 8 {
		for i, v := range buf.Data {
			out[i] = float32(v-128) / 128
		}
		return out, nil
	}
	scale := 1 / float64(int64(1)<<(bitDepth-1))
	for i, v := range buf.Data {
		out[i] = float32(float64(v) * scale)
	}
	return out, nil
}
