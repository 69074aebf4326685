// SPDX-License-Identifier: MIT
package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mixdeck.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseRoot(t *testing.T) {
	opts, err := Parse([]string{"--left", "a.wav", "--right", "b.mp3", "-s", "48000", "-c", "4", "-r", "-o", "take.wav"})
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if opts.Command != CommandPlay {
		t.Errorf("Command = %q, want %q", opts.Command, CommandPlay)
	}
	if opts.Left != "a.wav" || opts.Right != "b.mp3" {
		t.Errorf("tracks = %q/%q", opts.Left, opts.Right)
	}
	if !opts.Record || opts.Output != "take.wav" {
		t.Errorf("record = %v %q", opts.Record, opts.Output)
	}
	if opts.Config.Audio.SampleRate != 48000 || opts.Config.Audio.OutputChannels != 4 {
		t.Errorf("audio = %+v", opts.Config.Audio)
	}
}

func TestParseFlagsOverrideOnlyWhenSet(t *testing.T) {
	path := writeConfig(t, "audio:\n  sample_rate: 96000\n  frames_per_buffer: 256\n")

	opts, err := Parse([]string{"-f", path})
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if opts.Config.Audio.SampleRate != 96000 || opts.Config.Audio.FramesPerBuffer != 256 {
		t.Errorf("file values lost: %+v", opts.Config.Audio)
	}

	opts, err = Parse([]string{"-f", path, "--sample-rate", "48000"})
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if opts.Config.Audio.SampleRate != 48000 || opts.Config.Audio.FramesPerBuffer != 256 {
		t.Errorf("override = %+v, want 48000 Hz and the file's 256 frames", opts.Config.Audio)
	}
}

func TestParseTransportFlags(t *testing.T) {
	opts, err := Parse([]string{"--udp", "127.0.0.1:9999", "--ws-addr", "127.0.0.1:8181", "-v"})
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	tc := opts.Config.Transport
	if !tc.UDPEnabled || tc.UDPTargetAddress != "127.0.0.1:9999" {
		t.Errorf("udp = %v %q", tc.UDPEnabled, tc.UDPTargetAddress)
	}
	if !tc.WebSocketEnabled || tc.WebSocketAddress != "127.0.0.1:8181" {
		t.Errorf("websocket = %v %q", tc.WebSocketEnabled, tc.WebSocketAddress)
	}
	if !opts.Config.Debug {
		t.Error("--verbose did not enable debug")
	}
}

func TestParseSubcommands(t *testing.T) {
	tests := []struct {
		args    []string
		command string
		file    string
	}{
		{[]string{"list"}, CommandList, ""},
		{[]string{"devices", "-b", "1024"}, CommandDevices, ""},
		{[]string{"bpm", "song.wav"}, CommandBPM, "song.wav"},
	}
	for _, tt := range tests {
		opts, err := Parse(tt.args)
		if err != nil {
			t.Errorf("Parse(%v) error: %v", tt.args, err)
			continue
		}
		if opts.Command != tt.command || opts.File != tt.file {
			t.Errorf("Parse(%v) = %q %q, want %q %q", tt.args, opts.Command, opts.File, tt.command, tt.file)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bpm without a file", []string{"bpm"}},
		{"unknown flag", []string{"--tempo", "128"}},
		{"stray argument", []string{"song.wav"}},
		{"invalid sample rate", []string{"-s", "1000"}},
		{"invalid udp target", []string{"--udp", "localhost"}},
		{"missing config file", []string{"-f", filepath.Join(os.TempDir(), "does-not-exist", "mixdeck.yaml")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.args); err == nil {
				t.Errorf("Parse(%v) succeeded, want error", tt.args)
			}
		})
	}
}

func TestParseVersion(t *testing.T) {
	opts, err := Parse([]string{"--version"})
	if err != nil {
		t.Fatalf("Parse(--version) error: %v", err)
	}
	if opts.Command != "" || opts.Config != nil {
		t.Errorf("--version selected %q", opts.Command)
	}
}
