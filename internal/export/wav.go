// SPDX-License-Identifier: MIT
/*
Package export writes the looper's writing tape to disk as 16-bit PCM WAV.

Exports run on a worker goroutine so the engine loop only ever hands over a
slice and moves on.
*/
package export

import (
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// BitDepth of exported files.
const BitDepth = 16

// WriteWAV encodes interleaved float samples as 16-bit PCM. Samples outside
// [-1, 1] are clamped.
func WriteWAV(w io.WriteSeeker, samples []float32, sampleRate, channels int) error {
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("invalid format: %d Hz, %d channels", sampleRate, channels)
	}

	enc := wav.NewEncoder(w, sampleRate, BitDepth, channels, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: BitDepth,
	}
	for i, s := range samples {
		buf.Data[i] = toPCM16(s)
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize wav: %w", err)
	}
	return nil
}

func toPCM16(s float32) int {
	v := float64(s) * math.MaxInt16
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int(v)
}
