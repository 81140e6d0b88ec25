// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"tapeloop/internal/analysis"
	"tapeloop/internal/log"
	"tapeloop/pkg/bitint"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug mode (verbose logging).
	LogLevel  string          `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	LogFile   string          `yaml:"log_file"`  // Write logs here instead of stderr; the TUI defaults to a file.
	Headless  bool            `yaml:"headless"`  // Run without the terminal UI.
	Audio     AudioConfig     `yaml:"audio"`     // Audio device settings.
	Looper    LooperConfig    `yaml:"looper"`    // Tape geometry and engine settings.
	Export    ExportConfig    `yaml:"export"`    // Writing-tape export settings.
	Transport TransportConfig `yaml:"transport"` // Snapshot publishing (websocket, UDP).
}

// AudioConfig holds settings related to audio input/output.
type AudioConfig struct {
	InputDevice    int     `yaml:"input_device"`    // PortAudio device index for capture (-1 for default).
	OutputDevice   int     `yaml:"output_device"`   // PortAudio device index for playback (-1 for default).
	SampleRate     float64 `yaml:"sample_rate"`     // Sample rate in Hz (e.g., 44100, 48000).
	InputChannels  int     `yaml:"input_channels"`  // Capture channels; also the tape layout.
	OutputChannels int     `yaml:"output_channels"` // Playback channels.
	InputBuffer    int     `yaml:"input_buffer"`    // Frames per capture callback.
	OutputBuffer   int     `yaml:"output_buffer"`   // Frames per playback callback.
	LowLatency     bool    `yaml:"low_latency"`     // Request low latency settings from PortAudio device.
	OutputBackend  string  `yaml:"output_backend"`  // "portaudio" or "oto".
	GateThreshold  float64 `yaml:"gate_threshold"`  // Input noise gate, 0 disables.
}

// LooperConfig holds the tape geometry and engine loop settings.
type LooperConfig struct {
	BPM            int           `yaml:"bpm"`             // Tempo used to size the tapes.
	Bars           int           `yaml:"bars"`            // Bars per tape (4/4).
	EnginePeriod   time.Duration `yaml:"engine_period"`   // Pause between engine iterations.
	SpectrumSize   int           `yaml:"spectrum_size"`   // FFT size in frames (power of 2, 0 disables).
	SpectrumWindow string        `yaml:"spectrum_window"` // Window function name (e.g., "Hann", "Hamming").
	SpectrumEvery  int           `yaml:"spectrum_every"`  // Engine iterations between spectrum updates.
}

// ExportConfig holds settings for writing the writing tape to disk.
type ExportConfig struct {
	Dir        string `yaml:"dir"`         // Directory to save exported files.
	Name       string `yaml:"name"`        // File name prefix.
	MaxSeconds int    `yaml:"max_seconds"` // Capacity of the writing tape (0 disables it).
}

// TransportConfig holds settings related to publishing snapshots.
type TransportConfig struct {
	PublishInterval  time.Duration `yaml:"publish_interval"`   // Interval between websocket snapshots.
	WebSocketEnabled bool          `yaml:"websocket_enabled"`  // Serve snapshots and accept commands over websocket.
	WebSocketAddress string        `yaml:"websocket_address"`  // Listen address (e.g., ":8080").
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Enable sending meter packets over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address and port for UDP packets (e.g., "127.0.0.1:9090").
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between sending UDP packets.
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		// Define potential locations for the config file.
		candidates := []string{
			"config.yaml",
		}
		if home, err := os.UserHomeDir(); err == nil {
			candidates = append(candidates, filepath.Join(home, ".config", "tapeloop", "config.yaml"))
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return &cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	if c.LogLevel != "" {
		_, ok := log.ParseLevel(c.LogLevel)
		check(ok, "log_level %q is not a known level", c.LogLevel)
	}

	a := c.Audio
	check(a.InputDevice >= MinDeviceID, "audio.input_device must be >= %d", MinDeviceID)
	check(a.OutputDevice >= MinDeviceID, "audio.output_device must be >= %d", MinDeviceID)
	check(a.SampleRate >= MinSampleRate && a.SampleRate <= MaxSampleRate,
		"audio.sample_rate must be in [%d, %d], got %v", MinSampleRate, MaxSampleRate, a.SampleRate)
	check(a.InputChannels >= 1 && a.InputChannels <= MaxChannels,
		"audio.input_channels must be in [1, %d], got %d", MaxChannels, a.InputChannels)
	check(a.OutputChannels >= 1 && a.OutputChannels <= MaxChannels,
		"audio.output_channels must be in [1, %d], got %d", MaxChannels, a.OutputChannels)
	check(a.InputBuffer >= 1 && a.InputBuffer <= MaxBufferFrames,
		"audio.input_buffer must be in [1, %d], got %d", MaxBufferFrames, a.InputBuffer)
	check(a.OutputBuffer >= 1 && a.OutputBuffer <= MaxBufferFrames,
		"audio.output_buffer must be in [1, %d], got %d", MaxBufferFrames, a.OutputBuffer)
	check(a.OutputBackend == BackendPortAudio || a.OutputBackend == BackendOto,
		"audio.output_backend must be %q or %q, got %q", BackendPortAudio, BackendOto, a.OutputBackend)
	check(a.GateThreshold >= 0 && a.GateThreshold <= 1,
		"audio.gate_threshold must be in [0, 1], got %v", a.GateThreshold)

	l := c.Looper
	check(l.BPM >= MinBPM && l.BPM <= MaxBPM, "looper.bpm must be in [%d, %d], got %d", MinBPM, MaxBPM, l.BPM)
	check(l.Bars >= 1 && l.Bars <= MaxBars, "looper.bars must be in [1, %d], got %d", MaxBars, l.Bars)
	check(l.EnginePeriod > 0, "looper.engine_period must be positive")
	check(l.SpectrumSize == 0 || bitint.IsPowerOfTwo(l.SpectrumSize),
		"looper.spectrum_size must be 0 or a power of 2, got %d", l.SpectrumSize)
	check(l.SpectrumEvery >= 1, "looper.spectrum_every must be at least 1, got %d", l.SpectrumEvery)
	if _, err := analysis.ParseWindowFunc(l.SpectrumWindow); err != nil {
		errs = append(errs, fmt.Errorf("looper.spectrum_window: %w", err))
	}

	check(c.Export.Dir != "", "export.dir must be set")
	check(c.Export.MaxSeconds >= 0, "export.max_seconds must not be negative")

	t := c.Transport
	check(t.PublishInterval > 0, "transport.publish_interval must be positive")
	if t.WebSocketEnabled {
		check(t.WebSocketAddress != "", "transport.websocket_address must be set when the websocket is enabled")
	}
	if t.UDPEnabled {
		_, _, err := net.SplitHostPort(t.UDPTargetAddress)
		check(err == nil, "transport.udp_target_address '%s' appears invalid (missing port?)", t.UDPTargetAddress)
		check(t.UDPSendInterval > 0, "transport.udp_send_interval must be positive when UDP is enabled")
	}

	return errors.Join(errs...)
}

// applyEnvOverrides replaces file values with ENV_* variables. Unparseable
// values are logged and ignored.
func (cfg *Config) applyEnvOverrides() {
	// ENV_{...}
	// These are general overrides.

	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
			log.Infof("configuration: Overriding debug from env: %v", bVal)
		} else {
			log.Warnf("configuration: Ignoring ENV_DEBUG=%q: %v", val, err)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		log.Infof("configuration: Overriding log_level from env: %s", val)
	}

	// ENV_LOOPER_{...}
	// These size the tapes.

	// ENV_LOOPER_BPM
	if val, ok := os.LookupEnv("ENV_LOOPER_BPM"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Looper.BPM = iVal
			log.Infof("configuration: Overriding looper.bpm from env: %d", iVal)
		} else {
			log.Warnf("configuration: Ignoring ENV_LOOPER_BPM=%q: %v", val, err)
		}
	}
	// ENV_LOOPER_BARS
	if val, ok := os.LookupEnv("ENV_LOOPER_BARS"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Looper.Bars = iVal
			log.Infof("configuration: Overriding looper.bars from env: %d", iVal)
		} else {
			log.Warnf("configuration: Ignoring ENV_LOOPER_BARS=%q: %v", val, err)
		}
	}

	// ENV_WS_ADDRESS
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		cfg.Transport.WebSocketAddress = val
		cfg.Transport.WebSocketEnabled = val != ""
		log.Infof("configuration: Overriding transport.websocket_address from env: %s", val)
	}

	// ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
			log.Infof("configuration: Overriding transport.udp_enabled from env: %v", bVal)
		} else {
			log.Warnf("configuration: Ignoring ENV_UDP_ENABLED=%q: %v", val, err)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
		log.Infof("configuration: Overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.UDPSendInterval = dur
			log.Infof("configuration: Overriding transport.udp_send_interval from env: %s", dur)
		} else {
			log.Warnf("configuration: Ignoring ENV_UDP_SEND_INTERVAL=%q: %v", val, err)
		}
	}
}

// WritingCapacity is the writing tape size in samples.
func (c *Config) WritingCapacity() int {
	return c.Export.MaxSeconds * int(c.Audio.SampleRate) * c.Audio.InputChannels
}
