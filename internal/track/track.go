// SPDX-License-Identifier: MIT
//
// Package track turns encoded audio into immutable, tempo-analysed tracks.
//
// A Track is created once by a Loader and never modified afterwards; decks
// share it by pointer and the real-time path reads its samples without
// synchronisation.
package track

import "time"

// Info is the persistable description of a track. It never carries PCM.
type Info struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Artist          string  `json:"artist"`
	DurationSeconds float64 `json:"duration"`
	SampleRate      int     `json:"sampleRate"`
	ChannelCount    int     `json:"channelCount"`
	EstimatedBPM    float64 `json:"bpm"`
	FileSize        int64   `json:"fileSize"`
	MediaType       string  `json:"mediaType"`
}

// Metadata is supplied by the caller alongside the encoded bytes.
type Metadata struct {
	Title  string
	Artist string
}

// PCM is decoded audio: interleaved float32 samples on a [-1,1] scale.
type PCM struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames.
func (p PCM) Frames() int {
	if p.Channels <= 0 {
		return 0
	}
	return len(p.Samples) / p.Channels
}

// Track is a decoded, analysed track.
type Track struct {
	info    Info
	samples []float32
	frames  int
}

// New builds a track from decoded PCM. The duration is derived from the
// frame count so that duration == frames / sampleRate holds exactly. New
// takes ownership of pcm.Samples.
func New(info Info, pcm PCM) *Track {
	frames := pcm.Frames()
	info.SampleRate = pcm.SampleRate
	info.ChannelCount = pcm.Channels
	info.DurationSeconds = 0
	if pcm.SampleRate > 0 {
		info.DurationSeconds = float64(frames) / float64(pcm.SampleRate)
	}
	return &Track{
		info:    info,
		samples: pcm.Samples[:frames*pcm.Channels],
		frames:  frames,
	}
}

// Info returns the track description.
func (t *Track) Info() Info { return t.info }

// ID returns the track id.
func (t *Track) ID() string { return t.info.ID }

// Samples returns the interleaved PCM. Callers must not modify it.
func (t *Track) Samples() []float32 { return t.samples }

// Frames returns the number of sample frames.
func (t *Track) Frames() int { return t.frames }

// Channels returns the channel count.
func (t *Track) Channels() int { return t.info.ChannelCount }

// SampleRate returns the native sample rate in Hz.
func (t *Track) SampleRate() int { return t.info.SampleRate }

// BPM returns the estimated tempo, 0 when unknown.
func (t *Track) BPM() float64 { return t.info.EstimatedBPM }

// Duration returns the track length.
func (t *Track) Duration() time.Duration {
	return time.Duration(t.info.DurationSeconds * float64(time.Second))
}

// Frame returns the left and right samples of frame i. Mono tracks return
// the same sample twice; channels beyond the second are ignored.
func (t *Track) Frame(i int) (l, r float32) {
	ch := t.info.ChannelCount
	base := i * ch
	l = t.samples[base]
	if ch == 1 {
		return l, l
	}
	return l, t.samples[base+1]
}
