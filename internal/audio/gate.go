// SPDX-License-Identifier: MIT
package audio

import "math"

// Gate is a noise gate for the input callback. Samples whose magnitude is
// below the threshold are replaced by silence.
type Gate struct {
	enabled   bool
	threshold float32
}

// NewGate returns a gate with the given threshold. A threshold of 0 leaves
// the gate disabled.
func NewGate(threshold float64) *Gate {
	g := &Gate{}
	g.SetThreshold(threshold)
	g.enabled = g.threshold > 0
	return g
}

func (g *Gate) Enable() {
	g.enabled = true
}

func (g *Gate) Disable() {
	g.enabled = false
}

func (g *Gate) Enabled() bool {
	return g.enabled
}

// SetThreshold adjusts the noise gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (g *Gate) SetThreshold(threshold float64) {
	if threshold < 0.0 {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}
	g.threshold = float32(threshold)
}

// Threshold returns the current threshold in the range 0.0-1.0.
func (g *Gate) Threshold() float64 {
	return float64(g.threshold)
}

// Apply returns v, or 0 when the gate is enabled and v is below threshold.
func (g *Gate) Apply(v float32) float32 {
	if g.enabled && float32(math.Abs(float64(v))) < g.threshold {
		return 0
	}
	return v
}
