// SPDX-License-Identifier: MIT
package analysis

// Peak folds sample into a running absolute peak.
func Peak(current, sample float32) float32 {
	if sample < 0 {
		sample = -sample
	}
	if sample > current {
		return sample
	}
	return current
}
