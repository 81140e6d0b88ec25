// SPDX-License-Identifier: MIT
package analysis

// SampleProcessor consumes interleaved float32 samples. Implementations are
// called from the engine loop and must not block or allocate.
type SampleProcessor interface {
	Process(samples []float32)
}

// SpectrumProvider exposes the most recent band magnitudes of a spectrum
// analysis.
type SpectrumProvider interface {
	BandsInto(dst *[Bands]float32) bool // BandsInto copies normalized band magnitudes, false until enough history exists.
	BandFrequency(band int) float64     // BandFrequency returns the lower edge (Hz) of a band.
}
