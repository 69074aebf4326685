// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"mixdeck/cmd"
	"mixdeck/internal/audio"
	"mixdeck/internal/config"
	"mixdeck/internal/log"
	"mixdeck/internal/transport"
	"mixdeck/internal/transport/udp"
	"mixdeck/pkg/build"
)

// main is the entry point of mixdeck.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Configure runtime settings
//   - Parse command line arguments and configuration
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Load the requested tracks
//   - Start the output stream
//   - Start recording and the feed transports if enabled
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop the feed, the engine and any recording
//   - Clean up resources
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Development builds carry no ldflags; the defaults are fine.
	if err := build.Initialize(); err != nil {
		log.Debugf("build info: %v", err)
	}

	// One thread for the audio callback, one for control and I/O.
	runtime.GOMAXPROCS(2)

	opts, err := cmd.ParseArgs()
	if err != nil {
		log.Fatalf("%v", err)
	}
	if opts.Config != nil {
		log.SetLevel(opts.Config.Level())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Handle one-off commands that don't require the output stream
	if opts.Command == cmd.CommandList {
		if err := audio.Initialize(); err != nil {
			log.Fatalf("%v", err)
		}
		defer audio.Terminate()
	}
	done, err := cmd.Execute(ctx, opts, os.Stdout)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if done {
		return
	}

	if err := run(ctx, opts); err != nil {
		log.Fatalf("%v", err)
	}
}

// run drives the engine until ctx is cancelled.
func run(ctx context.Context, opts *cmd.Options) error {
	cfg := opts.Config
	info := build.GetBuildFlags()
	log.Infof("%s", info)

	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	engine, err := audio.NewEngine(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Errorf("closing engine: %v", err)
		}
	}()

	for side, path := range []string{audio.Left: opts.Left, audio.Right: opts.Right} {
		if path == "" {
			continue
		}
		if _, err := engine.LoadFile(ctx, audio.Side(side), path); err != nil {
			return fmt.Errorf("loading %s deck: %w", audio.Side(side), err)
		}
	}

	// CRITICAL: start of real-time audio processing
	if err := engine.Start(); err != nil {
		return err
	}

	recordingPath := ""
	if opts.Record || cfg.Recording.Enabled {
		if recordingPath, err = engine.StartRecording(opts.Output); err != nil {
			return err
		}
	}

	shutdown, err := startTransports(cfg, engine)
	if err != nil {
		return err
	}

	fmt.Printf("%s running, Ctrl+C to stop. '%s --help' for usage information.\n", info.Name, info.Name)

	// Block until termination signal is received
	<-ctx.Done()

	// ==================== SHUTDOWN PHASE (Cold Path) ====================
	// Transports go first so no client polls a closing engine.
	shutdown()
	if recordingPath != "" {
		if err := engine.StopRecording(); err != nil {
			return err
		}
		fmt.Printf("\nRecording saved to: %s\n", recordingPath)
	}
	return nil
}

// startTransports starts the configured feed transports and returns the
// function that stops them.
func startTransports(cfg *config.Config, engine *audio.Engine) (func(), error) {
	var (
		transports []transport.Transport
		closers    []func() error
	)
	shutdown := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Errorf("shutting down transport: %v", err)
			}
		}
	}

	tc := cfg.Transport
	if tc.WebSocketEnabled {
		ws := transport.NewWebSocketTransport(tc.WebSocketAddress, engine.HandleMessage)
		closers = append(closers, ws.Close)
		if err := ws.Start(); err != nil {
			shutdown()
			return nil, err
		}
		transports = append(transports, ws)
	}
	if tc.LogFeed {
		lt := transport.NewLoggingTransport()
		transports = append(transports, lt)
		closers = append(closers, lt.Close)
	}
	if tc.UDPEnabled {
		sender, err := udp.NewUDPSender(tc.UDPTargetAddress)
		if err != nil {
			shutdown()
			return nil, err
		}
		closers = append(closers, sender.Close)
		publisher, err := udp.NewUDPPublisher(tc.UDPSendInterval, sender, engine)
		if err != nil {
			shutdown()
			return nil, err
		}
		publisher.Start()
		closers = append(closers, publisher.Stop)
	}

	if len(transports) > 0 {
		feed, err := transport.NewFeed(tc.FeedInterval, engine, transports...)
		if err != nil {
			shutdown()
			return nil, err
		}
		feed.Start()
		closers = append(closers, feed.Stop)
	}
	return shutdown, nil
}
