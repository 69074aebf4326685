// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"mixdeck/internal/audio"
	"mixdeck/internal/config"
	"mixdeck/internal/track"
	"mixdeck/internal/tui"

	"gopkg.in/yaml.v3"
)

// Seams replaced in tests.
var (
	listDevices = audio.ListDevices
	pickDevice  = tui.PickOutputDevice
)

// Execute runs the one-off command of opts. It returns false when the
// command is the engine itself, which the caller runs.
func Execute(ctx context.Context, opts *Options, w io.Writer) (bool, error) {
	switch opts.Command {
	case CommandList:
		return true, listDevices(w)
	case CommandDevices:
		return true, RunDevices(opts.Config, w)
	case CommandBPM:
		return true, RunBPM(ctx, opts.Config, opts.File, w)
	case "":
		return true, nil
	default:
		return false, nil
	}
}

// RunBPM decodes path and prints its detected tempo.
func RunBPM(ctx context.Context, cfg *config.Config, path string, w io.Writer) error {
	loader := track.NewLoader(track.LoaderConfig{
		MaxBytes:   cfg.Loader.MaxFileBytes,
		FFmpegPath: cfg.Loader.FFmpegPath,
	})
	t, err := loader.LoadFile(ctx, path, track.Metadata{})
	if err != nil {
		return err
	}
	info := t.Info()
	tempo := "tempo unknown"
	if info.EstimatedBPM > 0 {
		tempo = fmt.Sprintf("%.1f BPM", info.EstimatedBPM)
	}
	_, err = fmt.Fprintf(w, "%s: %s (%.2fs, %d Hz, %d ch)\n",
		filepath.Base(path), tempo, info.DurationSeconds, info.SampleRate, info.ChannelCount)
	return err
}

// RunDevices runs the device picker and prints the chosen device as an
// audio section for the configuration file.
func RunDevices(cfg *config.Config, w io.Writer) error {
	sel, err := pickDevice()
	if err != nil {
		return err
	}
	if sel == nil {
		return nil
	}
	section := cfg.Audio
	section.OutputDevice = sel.DeviceID
	section.SampleRate = sel.SampleRate

	fmt.Fprintf(w, "# %s\n", sel.DeviceName)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(struct {
		Audio config.AudioConfig `yaml:"audio"`
	}{section}); err != nil {
		return err
	}
	return enc.Close()
}
