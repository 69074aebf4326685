// SPDX-License-Identifier: MIT
//
// Package cmd is the mixdeck command line: it parses flags and subcommands
// into Options and runs the one-off commands that need no output stream.
package cmd

import (
	"os"

	"mixdeck/internal/config"
	"mixdeck/pkg/build"

	"github.com/spf13/cobra"
)

// Commands selected by the command line.
const (
	CommandPlay    = "play"
	CommandList    = "list"
	CommandDevices = "devices"
	CommandBPM     = "bpm"
)

// Options is the parsed command line. Command is empty when cobra handled
// the invocation itself (help, version).
type Options struct {
	Config  *config.Config
	Command string
	Left    string // track file for the left deck
	Right   string // track file for the right deck
	File    string // argument of the bpm command
	Record  bool
	Output  string // recording path; empty for a timestamped file
}

// flagValues holds the raw flag values; only flags set on the command line
// override the loaded configuration.
type flagValues struct {
	configPath      string
	device          int
	channels        int
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool
	verbose         bool
	wsAddr          string
	udpTarget       string
}

// ParseArgs parses os.Args.
func ParseArgs() (*Options, error) {
	return Parse(os.Args[1:])
}

// Parse parses args, loads the configuration and applies the flag
// overrides.
func Parse(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{}
	var fv flagValues

	run := func(command string) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			options.Command = command
			if command == CommandBPM {
				options.File = args[0]
			}
			cfg, err := loadConfig(cmd, &fv)
			if err != nil {
				return err
			}
			options.Config = cfg
			return nil
		}
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: run(CommandPlay),
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE:  run(CommandList),
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "devices",
		Short: "Pick an output device and sample rate interactively",
		Args:  cobra.NoArgs,
		RunE:  run(CommandDevices),
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "bpm <file>",
		Short: "Print the detected tempo of a track",
		Args:  cobra.ExactArgs(1),
		RunE:  run(CommandBPM),
	})

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&fv.configPath, "config", "f", "",
		"Configuration file. Default searches mixdeck.yaml then config.yaml")

	// Audio Device Configuration
	pf.IntVarP(&fv.device, "device", "d", config.DefaultOutputDevice,
		"Specify output device ID. Use 'list' command to see available devices.")
	pf.IntVarP(&fv.channels, "channels", "c", config.DefaultOutputChannels,
		"Number of output channels (4 routes the cue bus to channels 3/4)")
	pf.Float64VarP(&fv.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&fv.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	pf.BoolVarP(&fv.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")

	// Tracks
	rootCmd.Flags().StringVar(&options.Left, "left", "", "Track to load on the left deck")
	rootCmd.Flags().StringVar(&options.Right, "right", "", "Track to load on the right deck")

	// Recording Configuration
	rootCmd.Flags().BoolVarP(&options.Record, "record", "r", false,
		"Record the master bus")
	rootCmd.Flags().StringVarP(&options.Output, "output", "o", "",
		"Output file name. Default is recordings/mixdeck-DD-MM-YYYY-HHMMSS.wav")

	// Feed Configuration
	rootCmd.Flags().StringVar(&fv.wsAddr, "ws-addr", config.DefaultWebSocketAddress,
		"Serve the websocket feed on this address")
	rootCmd.Flags().StringVar(&fv.udpTarget, "udp", "",
		"Send the spectrum as UDP packets to host:port")

	// Debug Configuration
	pf.BoolVarP(&fv.verbose, "verbose", "v", false, "Show verbose output")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return options, nil
}

// loadConfig loads the configuration file and applies the flags the user
// set explicitly.
func loadConfig(cmd *cobra.Command, fv *flagValues) (*config.Config, error) {
	cfg, err := config.LoadConfig(fv.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("device") {
		cfg.Audio.OutputDevice = fv.device
	}
	if flags.Changed("channels") {
		cfg.Audio.OutputChannels = fv.channels
	}
	if flags.Changed("sample-rate") {
		cfg.Audio.SampleRate = fv.sampleRate
	}
	if flags.Changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = fv.framesPerBuffer
	}
	if flags.Changed("low-latency") {
		cfg.Audio.LowLatency = fv.lowLatency
	}
	if flags.Changed("verbose") {
		cfg.Debug = fv.verbose
	}
	if flags.Changed("ws-addr") {
		cfg.Transport.WebSocketEnabled = true
		cfg.Transport.WebSocketAddress = fv.wsAddr
	}
	if flags.Changed("udp") {
		cfg.Transport.UDPEnabled = true
		cfg.Transport.UDPTargetAddress = fv.udpTarget
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
