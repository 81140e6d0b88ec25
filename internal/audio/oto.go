// SPDX-License-Identifier: MIT
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// otoBuffer is the playback buffer requested from oto.
const otoBuffer = 20 * time.Millisecond

// OtoOutput plays the output queue through oto instead of a PortAudio
// output stream. oto pulls samples by calling Read.
type OtoOutput struct {
	ctx    *oto.Context
	player *oto.Player
	cb     *OutputCallback

	scratch []float32 // pre-allocated sample buffer
	mu      sync.Mutex
	started bool
}

// NewOtoOutput creates the oto context and waits until the device is ready.
func NewOtoOutput(sampleRate, channels int, cb *OutputCallback) (*OtoOutput, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   otoBuffer,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready

	o := newOtoReader(cb)
	o.ctx = ctx
	return o, nil
}

func newOtoReader(cb *OutputCallback) *OtoOutput {
	return &OtoOutput{
		cb:      cb,
		scratch: make([]float32, 4096),
	}
}

// Read implements io.Reader for the oto player. It never blocks and never
// returns an error; an empty queue plays silence.
func (o *OtoOutput) Read(p []byte) (int, error) {
	n := len(p) / 4
	if len(o.scratch) < n {
		o.scratch = make([]float32, n)
	}
	samples := o.scratch[:n]
	o.cb.Fill(samples)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(v))
	}
	return n * 4, nil
}

// Start begins playback.
func (o *OtoOutput) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.started {
		return
	}
	if o.player == nil {
		o.player = o.ctx.NewPlayer(o)
	}
	o.player.Play()
	o.started = true
}

// Close pauses playback and releases the player. The oto context lives
// for the rest of the process.
func (o *OtoOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		o.player.Pause()
		if err := o.player.Err(); err != nil {
			return fmt.Errorf("oto player failed: %w", err)
		}
		o.player = nil
	}
	o.started = false
	return nil
}
