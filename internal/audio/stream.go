// SPDX-License-Identifier: MIT
/*
Package audio is the looper's hardware boundary:
- PortAudio capture and playback streams driving the callbacks
- An oto playback backend as an alternative to PortAudio output
- Device discovery and listing
- A noise gate applied on capture

Thread Safety:
- Callbacks run on driver threads and only touch lock-free queues
- Stream setup and teardown happen on the caller's goroutine
*/
package audio

import (
	"errors"
	"fmt"
	"time"

	"github.com/gordonklaus/portaudio"
)

// StreamOptions describe the stream pair to open.
type StreamOptions struct {
	InputDevice    *portaudio.DeviceInfo
	OutputDevice   *portaudio.DeviceInfo // nil when another backend plays
	InputChannels  int
	OutputChannels int
	SampleRate     float64
	InputFrames    int
	OutputFrames   int
	LowLatency     bool
}

func (o StreamOptions) inputLatency() time.Duration {
	if o.LowLatency {
		return o.InputDevice.DefaultLowInputLatency
	}
	return o.InputDevice.DefaultHighInputLatency
}

func (o StreamOptions) outputLatency() time.Duration {
	if o.LowLatency {
		return o.OutputDevice.DefaultLowOutputLatency
	}
	return o.OutputDevice.DefaultHighOutputLatency
}

// Streams owns the PortAudio capture stream and, optionally, the playback
// stream.
type Streams struct {
	opts   StreamOptions
	input  *portaudio.Stream
	output *portaudio.Stream
}

// OpenStreams opens both streams without starting them. out may be nil when
// OutputDevice is nil.
func OpenStreams(opts StreamOptions, in *InputCallback, out *OutputCallback) (*Streams, error) {
	if opts.InputDevice == nil {
		return nil, errors.New("no input device")
	}
	s := &Streams{opts: opts}

	inParams := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: opts.InputChannels,
			Device:   opts.InputDevice,
			Latency:  opts.inputLatency(),
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: opts.InputFrames,
		SampleRate:      opts.SampleRate,
	}
	stream, err := portaudio.OpenStream(inParams, in.Process)
	if err != nil {
		return nil, fmt.Errorf("failed to open input stream on %s: %w", opts.InputDevice.Name, err)
	}
	s.input = stream

	if opts.OutputDevice == nil {
		return s, nil
	}
	if out == nil {
		s.input.Close()
		return nil, errors.New("output device given without output callback")
	}

	outParams := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: 0, // No input device
			Device:   nil,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: opts.OutputChannels,
			Device:   opts.OutputDevice,
			Latency:  opts.outputLatency(),
		},
		FramesPerBuffer: opts.OutputFrames,
		SampleRate:      opts.SampleRate,
	}
	stream, err = portaudio.OpenStream(outParams, out.Fill)
	if err != nil {
		s.input.Close()
		return nil, fmt.Errorf("failed to open output stream on %s: %w", opts.OutputDevice.Name, err)
	}
	s.output = stream

	return s, nil
}

// Start starts playback before capture so the first captured samples have
// somewhere to go.
func (s *Streams) Start() error {
	if s.output != nil {
		if err := s.output.Start(); err != nil {
			return fmt.Errorf("failed to start output stream: %w", err)
		}
	}
	if err := s.input.Start(); err != nil {
		return fmt.Errorf("failed to start input stream: %w", err)
	}
	return nil
}

// Close stops and closes both streams. It reports the first error but
// always attempts both.
func (s *Streams) Close() error {
	var errs []error
	for _, stream := range []*portaudio.Stream{s.input, s.output} {
		if stream == nil {
			continue
		}
		if err := stream.Stop(); err != nil {
			errs = append(errs, err)
		}
		if err := stream.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.input, s.output = nil, nil
	return errors.Join(errs...)
}

// InputName and OutputName return the device names for display.
func (s *Streams) InputName() string {
	return s.opts.InputDevice.Name
}

func (s *Streams) OutputName() string {
	if s.opts.OutputDevice == nil {
		return ""
	}
	return s.opts.OutputDevice.Name
}
