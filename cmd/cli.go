// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"tapeloop/internal/config"
	"tapeloop/pkg/build"
)

// Commands selected on the command line. An empty command means cobra
// already handled the invocation (help, --version) and there is nothing to run.
const (
	CommandRun     = "run"
	CommandList    = "list"
	CommandVersion = "version"
)

// Options are the result of parsing the command line.
type Options struct {
	Command string
	Config  *config.Config
}

// flagValues hold the raw flags; only flags the user set override the file.
type flagValues struct {
	configPath   string
	bpm          int
	bars         int
	inputDevice  int
	outputDevice int
	sampleRate   float64
	inChannels   int
	outChannels  int
	backend      string
	lowLatency   bool
	gate         float64
	wsAddress    string
	udpTarget    string
	exportDir    string
	headless     bool
	verbose      bool
	logFile      string
}

// ParseArgs parses os.Args and loads the configuration.
func ParseArgs() (*Options, error) {
	return parse(os.Args[1:], os.Stdout)
}

func parse(args []string, out io.Writer) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{}
	var fv flagValues

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         build.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(fv.configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd, &fv, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid flags: %w", err)
			}
			options.Config = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandRun
			return nil
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetArgs(args)

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandList
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		// Build information needs no configuration.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandVersion
			fmt.Fprintln(cmd.OutOrStdout(), buildInfo.String())
		},
	})

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&fv.configPath, "config", "f", "",
		"Path to the YAML configuration file (default: ./config.yaml)")

	// Looper Configuration
	pf.IntVar(&fv.bpm, "bpm", config.DefaultBPM, "Tempo in beats per minute")
	pf.IntVar(&fv.bars, "bars", config.DefaultBars, "Bars per tape (4/4)")

	// Audio Device Configuration
	pf.IntVarP(&fv.inputDevice, "input-device", "i", config.DefaultDeviceID,
		"Input device ID. Use 'list' command to see available devices.")
	pf.IntVarP(&fv.outputDevice, "output-device", "o", config.DefaultDeviceID,
		"Output device ID. Use 'list' command to see available devices.")
	pf.Float64VarP(&fv.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVar(&fv.inChannels, "input-channels", config.DefaultChannels, "Number of input channels")
	pf.IntVar(&fv.outChannels, "output-channels", config.DefaultChannels, "Number of output channels")
	pf.StringVar(&fv.backend, "backend", config.DefaultOutputBackend,
		"Output backend: portaudio or oto")
	pf.BoolVarP(&fv.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")
	pf.Float64Var(&fv.gate, "gate", config.DefaultGateThreshold,
		"Input noise gate threshold in [0, 1], 0 disables")

	// Transport and Export Configuration
	pf.StringVar(&fv.wsAddress, "ws", "", "Serve the websocket monitor on this address")
	pf.StringVar(&fv.udpTarget, "udp", "", "Send UDP meter packets to this address")
	pf.StringVar(&fv.exportDir, "export-dir", config.DefaultExportDir, "Directory for written tapes")

	// Runtime Configuration
	pf.BoolVar(&fv.headless, "headless", false, "Run without the terminal UI")
	pf.BoolVarP(&fv.verbose, "verbose", "v", false, "Show verbose output")
	pf.StringVar(&fv.logFile, "log-file", "", "Write logs to this file")

	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return options, nil
}

// applyFlags copies every flag the user set into cfg.
func applyFlags(cmd *cobra.Command, fv *flagValues, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("bpm") {
		cfg.Looper.BPM = fv.bpm
	}
	if changed("bars") {
		cfg.Looper.Bars = fv.bars
	}
	if changed("input-device") {
		cfg.Audio.InputDevice = fv.inputDevice
	}
	if changed("output-device") {
		cfg.Audio.OutputDevice = fv.outputDevice
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = fv.sampleRate
	}
	if changed("input-channels") {
		cfg.Audio.InputChannels = fv.inChannels
	}
	if changed("output-channels") {
		cfg.Audio.OutputChannels = fv.outChannels
	}
	if changed("backend") {
		cfg.Audio.OutputBackend = fv.backend
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = fv.lowLatency
	}
	if changed("gate") {
		cfg.Audio.GateThreshold = fv.gate
	}
	if changed("ws") {
		cfg.Transport.WebSocketEnabled = fv.wsAddress != ""
		cfg.Transport.WebSocketAddress = fv.wsAddress
	}
	if changed("udp") {
		cfg.Transport.UDPEnabled = fv.udpTarget != ""
		cfg.Transport.UDPTargetAddress = fv.udpTarget
	}
	if changed("export-dir") {
		cfg.Export.Dir = fv.exportDir
	}
	if changed("headless") {
		cfg.Headless = fv.headless
	}
	if fv.verbose {
		cfg.Debug = true
	}
	if changed("log-file") {
		cfg.LogFile = fv.logFile
	}
}
