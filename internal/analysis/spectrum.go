// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"

	"tapeloop/pkg/bitint"
)

// Bands is the number of log-spaced bands reported by Spectrum.
const Bands = 32

// lowestBandHz is the lower edge of the first band.
const lowestBandHz = 20.0

// WindowFunc selects the window applied before the FFT.
type WindowFunc int

const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

func (w WindowFunc) String() string {
	switch w {
	case BartlettHann:
		return "BartlettHann"
	case Blackman:
		return "Blackman"
	case BlackmanNuttall:
		return "BlackmanNuttall"
	case Hann:
		return "Hann"
	case Hamming:
		return "Hamming"
	case Lanczos:
		return "Lanczos"
	case Nuttall:
		return "Nuttall"
	default:
		return fmt.Sprintf("WindowFunc(%d)", int(w))
	}
}

// Pre-allocated buffers for the FFT.
type spectrumWorkspace struct {
	history   []float32    // Ring of the latest mono frames.
	input     []float64    // Windowed, time-ordered frames.
	coeffs    []complex128 // FFT output, size/2+1 bins.
	magnitude []float64
	window    []float64
	bands     []float64
}

// Spectrum tracks the mixed output and reduces it to Bands normalized
// magnitudes. It keeps the first channel of every interleaved frame. All
// buffers are allocated by NewSpectrum; Process and BandsInto never allocate.
type Spectrum struct {
	fft        *fourier.FFT
	size       int
	sampleRate float64
	channels   int

	channel int // Channel of the next incoming sample.
	pos     int // Next write slot in history.
	filled  int

	edges     [Bands + 1]int // Bin index of each band edge.
	workspace spectrumWorkspace
}

var _ SampleProcessor = (*Spectrum)(nil)
var _ SpectrumProvider = (*Spectrum)(nil)

// NewSpectrum creates an analyzer over size frames (a power of 2) of a
// stream with the given frame rate and channel count.
func NewSpectrum(size int, sampleRate float64, channels int, windowType WindowFunc) (*Spectrum, error) {
	if !bitint.IsPowerOfTwo(size) {
		return nil, fmt.Errorf("spectrum size must be a power of 2, got %d", size)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("channel count must be positive, got %d", channels)
	}

	coeffs := make([]float64, size)
	applyWindow(coeffs, windowType)

	bins := size/2 + 1
	s := &Spectrum{
		fft:        fourier.NewFFT(size),
		size:       size,
		sampleRate: sampleRate,
		channels:   channels,
		workspace: spectrumWorkspace{
			history:   make([]float32, size),
			input:     make([]float64, size),
			coeffs:    make([]complex128, bins),
			magnitude: make([]float64, bins),
			window:    coeffs,
			bands:     make([]float64, Bands),
		},
	}
	s.computeEdges()
	return s, nil
}

// computeEdges spaces band edges logarithmically between lowestBandHz and
// Nyquist, keeping every band at least one bin wide.
func (s *Spectrum) computeEdges() {
	nyquist := s.sampleRate / 2
	lastBin := s.size / 2
	ratio := nyquist / lowestBandHz
	for k := range s.edges {
		freq := lowestBandHz * math.Pow(ratio, float64(k)/Bands)
		bin := int(math.Round(freq * float64(s.size) / s.sampleRate))
		if k > 0 && bin <= s.edges[k-1] {
			bin = s.edges[k-1] + 1
		}
		s.edges[k] = min(bin, lastBin+1)
	}
}

// Process appends interleaved samples to the history.
func (s *Spectrum) Process(samples []float32) {
	for _, v := range samples {
		s.Feed(v)
	}
}

// Feed appends a single interleaved sample to the history.
func (s *Spectrum) Feed(v float32) {
	if s.channel == 0 {
		s.workspace.history[s.pos] = v
		s.pos = (s.pos + 1) & (s.size - 1)
		if s.filled < s.size {
			s.filled++
		}
	}
	s.channel++
	if s.channel == s.channels {
		s.channel = 0
	}
}

// Ready reports whether a full FFT frame of history is available.
func (s *Spectrum) Ready() bool {
	return s.filled == s.size
}

// BandsInto runs the FFT over the history and writes the band magnitudes,
// normalized so the loudest band is 1, into dst.
func (s *Spectrum) BandsInto(dst *[Bands]float32) bool {
	if !s.Ready() {
		return false
	}
	ws := &s.workspace

	// Oldest frame first.
	for i := range s.size {
		ws.input[i] = float64(ws.history[(s.pos+i)&(s.size-1)]) * ws.window[i]
	}

	s.fft.Coefficients(ws.coeffs, ws.input)
	for i, c := range ws.coeffs {
		ws.magnitude[i] = cmplx.Abs(c)
	}

	for b := range Bands {
		lo, hi := s.edges[b], s.edges[b+1]
		if lo >= len(ws.magnitude) {
			ws.bands[b] = 0
			continue
		}
		hi = min(hi, len(ws.magnitude))
		var energy float64
		for _, m := range ws.magnitude[lo:hi] {
			energy += m * m
		}
		ws.bands[b] = math.Sqrt(energy / float64(hi-lo))
	}

	if peak := floats.Max(ws.bands); peak > 0 {
		floats.Scale(1/peak, ws.bands)
	}
	for b, v := range ws.bands {
		dst[b] = float32(v)
	}
	return true
}

// BandFrequency returns the lower edge of band in Hz.
func (s *Spectrum) BandFrequency(band int) float64 {
	if band < 0 || band >= Bands {
		return 0
	}
	return float64(s.edges[band]) * s.sampleRate / float64(s.size)
}

// Size returns the FFT size in frames.
func (s *Spectrum) Size() int {
	return s.size
}

// ParseWindowFunc converts a case-insensitive name to a WindowFunc. Unknown
// names return Hann together with an error.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning", "":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hann, fmt.Errorf("unknown window function name: '%s'", name)
	}
}

// applyWindow fills coeffs with the selected window. The gonum window
// functions multiply in place, so coeffs starts at 1.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		window.Hann(coeffs)
	}
}
