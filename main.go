// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"runtime"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/gordonklaus/portaudio"

	"tapeloop/cmd"
	"tapeloop/internal/analysis"
	"tapeloop/internal/audio"
	"tapeloop/internal/config"
	"tapeloop/internal/controller"
	"tapeloop/internal/engine"
	"tapeloop/internal/export"
	"tapeloop/internal/log"
	"tapeloop/internal/protocol"
	"tapeloop/internal/tape"
	"tapeloop/internal/transport"
	"tapeloop/internal/transport/udp"
	"tapeloop/internal/tui"
	"tapeloop/pkg/build"
)

// main is the entry point of the looper.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Parse command line arguments and load the configuration
//   - Initialize PortAudio and resolve devices
//   - Allocate queues, tapes and the engine
//   - Open streams and transports
//
// 2. Concurrent Phase (Hot Path):
//   - Engine loop on its own locked OS thread
//   - Audio callbacks on driver threads
//   - Terminal UI or headless log follower, publishers, export worker
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals or quit from the UI
//   - Stop streams, then the engine, then everything downstream
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		log.Debugf("Build information not embedded: %v", err)
	}

	// One thread for the engine, one for UI, transports and I/O. The audio
	// callbacks run on driver threads outside the Go scheduler.
	runtime.GOMAXPROCS(2)

	options, err := cmd.ParseArgs()
	if err != nil {
		log.Fatalf("%v", err)
	}
	if options.Command == "" || options.Command == cmd.CommandVersion {
		return
	}
	cfg := options.Config

	if err := log.Configure(cfg.LogLevel, cfg.Debug); err != nil {
		log.Fatalf("%v", err)
	}
	closeLog := setupLogOutput(cfg)
	defer closeLog()

	if err := audio.Initialize(); err != nil {
		log.Fatalf("%v", err)
	}
	defer audio.Terminate()

	// Handle one-off commands that don't require the engine to be running
	if options.Command == cmd.CommandList {
		if err := audio.ListDevices(os.Stdout); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	a := cfg.Audio
	inDev, err := audio.InputDevice(a.InputDevice)
	if err != nil {
		log.Fatalf("%v", err)
	}
	// outDev stays nil when oto plays the output.
	var outDev *portaudio.DeviceInfo
	outputName := config.BackendOto
	if a.OutputBackend == config.BackendPortAudio {
		if outDev, err = audio.OutputDevice(a.OutputDevice); err != nil {
			log.Fatalf("%v", err)
		}
		outputName = outDev.Name
	}
	if a.InputChannels != a.OutputChannels {
		log.Warnf("Input has %d channels but output has %d; tapes follow the input layout",
			a.InputChannels, a.OutputChannels)
	}

	window, err := analysis.ParseWindowFunc(cfg.Looper.SpectrumWindow)
	if err != nil {
		log.Fatalf("%v", err)
	}
	engOpts := engine.Options{
		SampleRate:      a.SampleRate,
		InputChannels:   a.InputChannels,
		OutputChannels:  a.OutputChannels,
		BPM:             cfg.Looper.BPM,
		Bars:            cfg.Looper.Bars,
		WritingCapacity: cfg.WritingCapacity(),
		SpectrumSize:    cfg.Looper.SpectrumSize,
		SpectrumWindow:  window,
		SpectrumEvery:   cfg.Looper.SpectrumEvery,
	}
	length := engOpts.TapeLength()

	q := protocol.NewQueues()

	// The worker reports back through the controller created below; no
	// export can complete before the engine runs.
	var ctrl *controller.Controller
	worker := export.NewWorker(export.Options{
		Dir:        cfg.Export.Dir,
		Name:       cfg.Export.Name,
		SampleRate: int(a.SampleRate),
		Channels:   a.InputChannels,
		OnDone: func(path string, err error) {
			if err != nil {
				ctrl.Logf("Export failed: %v", err)
				return
			}
			ctrl.Logf("Wrote %s", path)
		},
	})

	eng, err := engine.New(engOpts, q, worker)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctrl = controller.New(q, controller.Options{
		Stats: controller.Stats{
			BPM:            cfg.Looper.BPM,
			Bars:           cfg.Looper.Bars,
			BarSeconds:     tape.BarSeconds(cfg.Looper.BPM),
			TapeLength:     length,
			SampleRate:     a.SampleRate,
			InputDevice:    inDev.Name,
			OutputDevice:   outputName,
			InputChannels:  a.InputChannels,
			OutputChannels: a.OutputChannels,
			InputBuffer:    a.InputBuffer,
			OutputBuffer:   a.OutputBuffer,
		},
		DroppedEvents: eng.DroppedEvents,
	})
	log.Infof("Tape length %d samples (%d bars at %d bpm, %.0f Hz, %d ch)",
		length, cfg.Looper.Bars, cfg.Looper.BPM, a.SampleRate, a.InputChannels)

	inCB := audio.NewInputCallback(q, length, audio.NewGate(a.GateThreshold))
	outCB := audio.NewOutputCallback(q, a.OutputChannels)

	var streamOut *audio.OutputCallback
	if outDev != nil {
		streamOut = outCB
	}
	streams, err := audio.OpenStreams(audio.StreamOptions{
		InputDevice:    inDev,
		OutputDevice:   outDev,
		InputChannels:  a.InputChannels,
		OutputChannels: a.OutputChannels,
		SampleRate:     a.SampleRate,
		InputFrames:    a.InputBuffer,
		OutputFrames:   a.OutputBuffer,
		LowLatency:     a.LowLatency,
	}, inCB, streamOut)
	if err != nil {
		log.Fatalf("%v", err)
	}

	var otoOut *audio.OtoOutput
	if outDev == nil {
		if otoOut, err = audio.NewOtoOutput(int(a.SampleRate), a.OutputChannels, outCB); err != nil {
			log.Fatalf("%v", err)
		}
	}

	publishers, err := openPublishers(cfg, ctrl)
	if err != nil {
		log.Fatalf("%v", err)
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker.Start()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = eng.Run(ctx, engine.NewTickerScheduler(cfg.Looper.EnginePeriod))
	}()

	// CRITICAL: the first callback marks the start of the hot path.
	if err := streams.Start(); err != nil {
		log.Fatalf("%v", err)
	}
	if otoOut != nil {
		otoOut.Start()
	}
	for _, p := range publishers {
		p.Start()
	}

	if cfg.Headless {
		log.Infof("Running headless, press Ctrl+C to stop")
		followLog(ctx, ctrl, controller.DefaultPollInterval)
	} else if err := tui.Run(ctx, ctrl, tui.DefaultRefresh); err != nil {
		log.Errorf("Terminal UI: %v", err)
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	stop()
	if err := streams.Close(); err != nil {
		log.Errorf("Error closing streams: %v", err)
	}
	if otoOut != nil {
		if err := otoOut.Close(); err != nil {
			log.Errorf("Error closing oto output: %v", err)
		}
	}
	wg.Wait()

	for _, p := range publishers {
		if err := p.Close(); err != nil {
			log.Errorf("Error closing publisher: %v", err)
		}
	}
	if err := worker.Close(); err != nil {
		log.Errorf("Error closing export worker: %v", err)
	}
}

// setupLogOutput sends logs to the configured file. Without one, the terminal
// UI discards logs so they do not draw over the screen.
func setupLogOutput(cfg *config.Config) func() {
	if cfg.LogFile == "" {
		if !cfg.Headless {
			log.SetOutput(io.Discard)
		}
		return func() {}
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Fatalf("Cannot open log file: %v", err)
	}
	log.SetOutput(f)
	return func() { _ = f.Close() }
}

// openPublishers creates the snapshot publishers enabled in the configuration.
func openPublishers(cfg *config.Config, ctrl *controller.Controller) ([]*transport.Publisher, error) {
	var publishers []*transport.Publisher
	t := cfg.Transport

	if t.WebSocketEnabled {
		wst := transport.NewWebSocketTransport(t.WebSocketAddress, ctrl)
		if err := wst.Start(); err != nil {
			return nil, err
		}
		p, err := transport.NewPublisher(t.PublishInterval, ctrl, wst, transport.NewLoggingTransport())
		if err != nil {
			return nil, err
		}
		publishers = append(publishers, p)
	}

	if t.UDPEnabled {
		sender, err := udp.NewSender(t.UDPTargetAddress)
		if err != nil {
			return nil, err
		}
		p, err := transport.NewPublisher(t.UDPSendInterval, ctrl, udp.NewMeterTransport(sender))
		if err != nil {
			return nil, err
		}
		publishers = append(publishers, p)
	}

	return publishers, nil
}

// followLog polls the controller and writes new log lines to the logger
// until ctx is done.
func followLog(ctx context.Context, ctrl *controller.Controller, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last string
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ctrl.Poll()
			lines := ctrl.Snapshot().Log
			start := 0
			if i := slices.Index(lines, last); i >= 0 && last != "" {
				start = i + 1
			}
			for _, line := range lines[start:] {
				log.Infof("%s", line)
			}
			if len(lines) > 0 {
				last = lines[len(lines)-1]
			}
		}
	}
}
