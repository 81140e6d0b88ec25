// SPDX-License-Identifier: MIT
package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the looper.
const (
	// Audio device defaults
	DefaultDeviceID       = MinDeviceID // Default to system default device
	DefaultSampleRate     = 44100       // CD-quality audio
	DefaultChannels       = 2           // Stereo in and out
	DefaultInputBuffer    = 128         // Small capture buffer keeps the loop tight
	DefaultOutputBuffer   = 512         // Balanced latency/performance
	DefaultLowLatency     = false       // Standard latency mode
	DefaultOutputBackend  = BackendPortAudio
	DefaultGateThreshold  = 0.0 // Gate disabled
	DefaultLogLevel       = "info"
	DefaultWebSocketAddr  = ":8080"
	DefaultUDPTargetAddr  = "127.0.0.1:9090"
	DefaultPublishEvery   = 33 * time.Millisecond // ~30Hz
	DefaultEnginePeriod   = time.Millisecond
	DefaultExportDir      = "./recordings"
	DefaultExportName     = "tapeloop"
	DefaultExportSeconds  = 120
	DefaultSpectrumSize   = 1024
	DefaultSpectrumWindow = "Hann"
	DefaultSpectrumEvery  = 33

	// Looper defaults
	DefaultBPM  = 120
	DefaultBars = 4

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per buffer (power of 2)
	MaxChannels     = 32
	MinBPM          = 20
	MaxBPM          = 400
	MaxBars         = 64
)

// Output backends.
const (
	BackendPortAudio = "portaudio"
	BackendOto       = "oto"
)

// Default returns the built-in configuration used when no file is found and
// as the base every file is decoded over.
func Default() Config {
	return Config{
		Debug:    false,
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			InputDevice:    DefaultDeviceID,
			OutputDevice:   DefaultDeviceID,
			SampleRate:     DefaultSampleRate,
			InputChannels:  DefaultChannels,
			OutputChannels: DefaultChannels,
			InputBuffer:    DefaultInputBuffer,
			OutputBuffer:   DefaultOutputBuffer,
			LowLatency:     DefaultLowLatency,
			OutputBackend:  DefaultOutputBackend,
			GateThreshold:  DefaultGateThreshold,
		},
		Looper: LooperConfig{
			BPM:            DefaultBPM,
			Bars:           DefaultBars,
			EnginePeriod:   DefaultEnginePeriod,
			SpectrumSize:   DefaultSpectrumSize,
			SpectrumWindow: DefaultSpectrumWindow,
			SpectrumEvery:  DefaultSpectrumEvery,
		},
		Export: ExportConfig{
			Dir:        DefaultExportDir,
			Name:       DefaultExportName,
			MaxSeconds: DefaultExportSeconds,
		},
		Transport: TransportConfig{
			PublishInterval:  DefaultPublishEvery,
			WebSocketEnabled: false,
			WebSocketAddress: DefaultWebSocketAddr,
			UDPEnabled:       false, // Default UDP to false.
			UDPTargetAddress: DefaultUDPTargetAddr,
			UDPSendInterval:  DefaultPublishEvery,
		},
	}
}
