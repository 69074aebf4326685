// SPDX-License-Identifier: MIT
package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the mixing engine.
const (
	// Audio output
	DefaultOutputDevice    = MinDeviceID // Default to system default device
	DefaultSampleRate      = 44100       // CD-quality audio
	DefaultFramesPerBuffer = 512         // Balanced latency/performance
	DefaultLowLatency      = false       // Standard latency mode
	DefaultOutputChannels  = 2           // Stereo; 4 routes the cue bus to channels 3/4
	DefaultCeiling         = 1.0         // Hard clip at full scale

	// Mixer
	DefaultCrossfader   = 0.0 // Centred
	DefaultMasterVolume = 1.0
	DefaultCueVolume    = 1.0

	// Analyzer, following the Web Audio AnalyserNode
	DefaultFFTSize     = 2048
	DefaultFFTWindow   = "blackman"
	DefaultSmoothing   = 0.8
	DefaultMinDecibels = -100.0
	DefaultMaxDecibels = -30.0

	// Loader
	DefaultMaxFileBytes = 50 << 20 // 50 MiB
	DefaultFFmpegPath   = ""       // "ffmpeg" from PATH

	// Recording
	DefaultRecordingDir   = "./recordings"
	DefaultBitDepth       = 16
	DefaultRecordingQueue = 64 // Blocks buffered between callback and writer

	// Transport
	DefaultWebSocketAddress = ":8080"
	DefaultFeedInterval     = 33 * time.Millisecond // ~30Hz
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 16 * time.Millisecond // ~60Hz

	// Hardware and processing limits
	MinDeviceID       = -1     // -1 represents system default device
	MinSampleRate     = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate     = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames   = 8192   // Maximum frames per buffer (power of 2)
	MinOutputChannels = 2
	MaxOutputChannels = 8
	MinFFTSize        = 32
	MaxFFTSize        = 32768
)

// Default returns the built-in configuration used when no file is found.
func Default() Config {
	return Config{
		Debug:    false,
		LogLevel: "info",
		Audio: AudioConfig{
			OutputDevice:    DefaultOutputDevice,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			OutputChannels:  DefaultOutputChannels,
			Ceiling:         DefaultCeiling,
		},
		Mixer: MixerConfig{
			Crossfader:   DefaultCrossfader,
			MasterVolume: DefaultMasterVolume,
			CueVolume:    DefaultCueVolume,
		},
		Analyzer: AnalyzerConfig{
			FFTSize:     DefaultFFTSize,
			Window:      DefaultFFTWindow,
			Smoothing:   DefaultSmoothing,
			MinDecibels: DefaultMinDecibels,
			MaxDecibels: DefaultMaxDecibels,
		},
		Loader: LoaderConfig{
			MaxFileBytes: DefaultMaxFileBytes,
			FFmpegPath:   DefaultFFmpegPath,
		},
		Recording: RecordingConfig{
			Enabled:     false,
			OutputDir:   DefaultRecordingDir,
			BitDepth:    DefaultBitDepth,
			QueueBlocks: DefaultRecordingQueue,
		},
		Transport: TransportConfig{
			WebSocketEnabled: true,
			WebSocketAddress: DefaultWebSocketAddress,
			FeedInterval:     DefaultFeedInterval,
			UDPEnabled:       false,
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
		},
	}
}
