// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"mixdeck/internal/log"
	"mixdeck/pkg/bitint"

	"gopkg.in/yaml.v3"
)

var logger = log.Named("config")

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug mode (forces the debug log level).
	LogLevel  string          `yaml:"log_level"` // Logging level ("debug", "info", "warn", "error").
	Audio     AudioConfig     `yaml:"audio"`     // Output stream settings.
	Mixer     MixerConfig     `yaml:"mixer"`     // Initial mixer positions.
	Analyzer  AnalyzerConfig  `yaml:"analyzer"`  // Spectrum analyzer settings.
	Loader    LoaderConfig    `yaml:"loader"`    // Track loading limits.
	Recording RecordingConfig `yaml:"recording"` // Master recording settings.
	Transport TransportConfig `yaml:"transport"` // Feed transports (websocket, UDP).
}

// AudioConfig holds settings related to the output stream.
type AudioConfig struct {
	OutputDevice    int     `yaml:"output_device"`     // PortAudio device index for output (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz (e.g., 44100, 48000).
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per callback block (affects latency).
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from the device.
	OutputChannels  int     `yaml:"output_channels"`   // Output channels; 4 or more puts the cue bus on 3/4.
	Ceiling         float64 `yaml:"ceiling"`           // Output clip ceiling in (0,1].
}

// MixerConfig holds the mixer positions applied at startup.
type MixerConfig struct {
	Crossfader   float64 `yaml:"crossfader"`    // -1 (left deck) to 1 (right deck).
	MasterVolume float64 `yaml:"master_volume"` // Linear [0,1].
	CueVolume    float64 `yaml:"cue_volume"`    // Linear [0,1].
}

// AnalyzerConfig holds settings for the spectrum/level analyzer.
type AnalyzerConfig struct {
	FFTSize     int     `yaml:"fft_size"`     // Power of two; bins = fft_size / 2.
	Window      string  `yaml:"window"`       // Window function name (e.g., "blackman", "hann").
	Smoothing   float64 `yaml:"smoothing"`    // Temporal smoothing in [0,1).
	MinDecibels float64 `yaml:"min_decibels"` // Maps to byte 0.
	MaxDecibels float64 `yaml:"max_decibels"` // Maps to byte 255.
}

// LoaderConfig holds track loading limits.
type LoaderConfig struct {
	MaxFileBytes int64  `yaml:"max_file_bytes"` // Files above this size are rejected before decoding.
	FFmpegPath   string `yaml:"ffmpeg_path"`    // ffmpeg binary for MP4/M4A ("" searches PATH).
}

// RecordingConfig holds settings related to master recording.
type RecordingConfig struct {
	Enabled     bool   `yaml:"enabled"`      // Record the master bus from startup.
	OutputDir   string `yaml:"output_dir"`   // Directory to save recordings.
	BitDepth    int    `yaml:"bit_depth"`    // 16, 24 or 32.
	QueueBlocks int    `yaml:"queue_blocks"` // Blocks buffered before overruns are dropped.
}

// TransportConfig holds settings related to publishing the analysis feed.
type TransportConfig struct {
	WebSocketEnabled bool          `yaml:"websocket_enabled"`  // Serve the JSON feed and commands over websocket.
	WebSocketAddress string        `yaml:"websocket_address"`  // Listen address (e.g., ":8080").
	FeedInterval     time.Duration `yaml:"feed_interval"`      // Interval between feed frames.
	LogFeed          bool          `yaml:"log_feed"`           // Also log every feed frame at debug level.
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Enable sending spectrum packets over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address and port (e.g., "127.0.0.1:9090").
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between UDP packets.
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("mixdeck.yaml", "config.yaml"). If no file is found,
// it uses built-in defaults. After loading defaults or from file, it applies environment
// variable overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range []string{"mixdeck.yaml", "config.yaml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		logger.Debugf("loaded %s", path)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	if c.LogLevel != "" {
		if _, ok := log.ParseLevel(c.LogLevel); !ok {
			return fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel)
		}
	}

	a := c.Audio
	if a.OutputDevice < MinDeviceID {
		return fmt.Errorf("audio.output_device must be >= %d, got %d", MinDeviceID, a.OutputDevice)
	}
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate must be in [%d, %d], got %.0f", MinSampleRate, MaxSampleRate, a.SampleRate)
	}
	if a.FramesPerBuffer <= 0 || a.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("audio.frames_per_buffer must be in [1, %d], got %d", MaxBufferFrames, a.FramesPerBuffer)
	}
	if a.OutputChannels < MinOutputChannels || a.OutputChannels > MaxOutputChannels {
		return fmt.Errorf("audio.output_channels must be in [%d, %d], got %d", MinOutputChannels, MaxOutputChannels, a.OutputChannels)
	}
	if a.Ceiling <= 0 || a.Ceiling > 1 {
		return fmt.Errorf("audio.ceiling must be in (0, 1], got %g", a.Ceiling)
	}

	m := c.Mixer
	if m.Crossfader < -1 || m.Crossfader > 1 {
		return fmt.Errorf("mixer.crossfader must be in [-1, 1], got %g", m.Crossfader)
	}
	if m.MasterVolume < 0 || m.MasterVolume > 1 || m.CueVolume < 0 || m.CueVolume > 1 {
		return fmt.Errorf("mixer volumes must be in [0, 1], got master %g cue %g", m.MasterVolume, m.CueVolume)
	}

	an := c.Analyzer
	if !bitint.IsPowerOfTwo(an.FFTSize) || an.FFTSize < MinFFTSize || an.FFTSize > MaxFFTSize {
		return fmt.Errorf("analyzer.fft_size must be a power of 2 in [%d, %d], got %d (try %d)",
			MinFFTSize, MaxFFTSize, an.FFTSize, min(max(bitint.NextPowerOfTwo(an.FFTSize), MinFFTSize), MaxFFTSize))
	}
	if an.Smoothing < 0 || an.Smoothing >= 1 {
		return fmt.Errorf("analyzer.smoothing must be in [0, 1), got %g", an.Smoothing)
	}
	if an.MinDecibels >= an.MaxDecibels {
		return fmt.Errorf("analyzer.min_decibels (%g) must be below max_decibels (%g)", an.MinDecibels, an.MaxDecibels)
	}

	if c.Loader.MaxFileBytes <= 0 {
		return fmt.Errorf("loader.max_file_bytes must be positive, got %d", c.Loader.MaxFileBytes)
	}

	r := c.Recording
	switch r.BitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("recording.bit_depth must be 16, 24 or 32, got %d", r.BitDepth)
	}
	if r.QueueBlocks <= 0 {
		return fmt.Errorf("recording.queue_blocks must be positive, got %d", r.QueueBlocks)
	}
	if r.Enabled && r.OutputDir == "" {
		return fmt.Errorf("recording.output_dir must be set when recording is enabled")
	}

	t := c.Transport
	if t.WebSocketEnabled {
		if _, _, err := net.SplitHostPort(t.WebSocketAddress); err != nil {
			return fmt.Errorf("transport.websocket_address %q: %w", t.WebSocketAddress, err)
		}
		if t.FeedInterval <= 0 {
			return fmt.Errorf("transport.feed_interval must be positive when the websocket feed is enabled")
		}
	}
	if t.UDPEnabled {
		if t.UDPTargetAddress == "" {
			return fmt.Errorf("transport.udp_target_address must be set when UDP is enabled")
		}
		if !strings.Contains(t.UDPTargetAddress, ":") {
			return fmt.Errorf("transport.udp_target_address '%s' appears invalid (missing port?)", t.UDPTargetAddress)
		}
		if t.UDPSendInterval <= 0 {
			return fmt.Errorf("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}
	return nil
}

// Level returns the effective log level: debug mode wins over log_level.
func (c *Config) Level() log.LogLevel {
	if c.Debug {
		return log.LevelDebug
	}
	level, _ := log.ParseLevel(c.LogLevel)
	return level
}

// applyEnvOverrides applies MIXDECK_* variables on top of the file values.
// Unparsable values are ignored with a warning.
func (c *Config) applyEnvOverrides() {
	// MIXDECK_{...}
	// These are general overrides.

	envBool("MIXDECK_DEBUG", &c.Debug)
	envString("MIXDECK_LOG_LEVEL", &c.LogLevel)

	// MIXDECK_AUDIO_{...}
	envInt("MIXDECK_OUTPUT_DEVICE", &c.Audio.OutputDevice)
	envFloat("MIXDECK_SAMPLE_RATE", &c.Audio.SampleRate)
	envInt("MIXDECK_FRAMES_PER_BUFFER", &c.Audio.FramesPerBuffer)

	// MIXDECK_WS_{...} and MIXDECK_UDP_{...}
	// These are specific to the transport layer.
	envBool("MIXDECK_WS_ENABLED", &c.Transport.WebSocketEnabled)
	envString("MIXDECK_WS_ADDRESS", &c.Transport.WebSocketAddress)
	envBool("MIXDECK_UDP_ENABLED", &c.Transport.UDPEnabled)
	envString("MIXDECK_UDP_TARGET_ADDRESS", &c.Transport.UDPTargetAddress)
	envDuration("MIXDECK_UDP_SEND_INTERVAL", &c.Transport.UDPSendInterval)

	envString("MIXDECK_RECORDING_DIR", &c.Recording.OutputDir)
	envString("MIXDECK_FFMPEG", &c.Loader.FFmpegPath)
}

func envString(name string, dst *string) {
	if val, ok := os.LookupEnv(name); ok {
		*dst = val
		logger.Infof("overriding from %s: %s", name, val)
	}
}

func envBool(name string, dst *bool) {
	envParse(name, dst, strconv.ParseBool)
}

func envInt(name string, dst *int) {
	envParse(name, dst, strconv.Atoi)
}

func envFloat(name string, dst *float64) {
	envParse(name, dst, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func envDuration(name string, dst *time.Duration) {
	envParse(name, dst, time.ParseDuration)
}

func envParse[T any](name string, dst *T, parse func(string) (T, error)) {
	val, ok := os.LookupEnv(name)
	if !ok {
		return
	}
	v, err := parse(val)
	if err != nil {
		logger.Warnf("ignoring %s=%q: %v", name, val, err)
		return
	}
	*dst = v
	logger.Infof("overriding from %s: %v", name, v)
}
