// SPDX-License-Identifier: MIT
package analysis

// WaveformSize is the number of points in a tape's visual summary.
const WaveformSize = 100

// Downsample summarizes samples into len(dst) points. The input is split
// into buckets of len(samples)/(len(dst)+1) samples, each point is the sum of
// absolute values in its bucket, and only the first len(dst) buckets are kept
// so a trailing partial bucket never shows up. Points with no bucket are 0.
func Downsample(samples []float32, dst []float32) {
	for i := range dst {
		dst[i] = 0
	}
	if len(dst) == 0 || len(samples) == 0 {
		return
	}

	bucket := len(samples) / (len(dst) + 1)
	if bucket < 1 {
		bucket = 1
	}

	point := 0
	var sum float32
	counter := 0
	for _, s := range samples {
		if s < 0 {
			sum -= s
		} else {
			sum += s
		}
		counter++
		if counter == bucket {
			dst[point] = sum
			point++
			if point == len(dst) {
				return
			}
			sum = 0
			counter = 0
		}
	}
}
