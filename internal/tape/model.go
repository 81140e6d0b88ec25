// SPDX-License-Identifier: MIT
package tape

// Model is the fixed set of tapes owned by the engine loop.
type Model struct {
	Tapes [Count]*Tape
}

// NewModel creates Count silent tapes of the given length.
func NewModel(length int) *Model {
	m := &Model{}
	for i := range m.Tapes {
		m.Tapes[i] = New(length)
	}
	return m
}

// AnySolo reports whether at least one tape is soloed.
func (m *Model) AnySolo() bool {
	for _, t := range m.Tapes {
		if t.solo {
			return true
		}
	}
	return false
}

// Contribution is tape i's share of the mix at position index. When any tape
// is soloed, only soloed tapes contribute.
func (m *Model) Contribution(i, index int, anySolo bool) float32 {
	t := m.Tapes[i]
	if anySolo && !t.solo {
		return 0
	}
	return t.At(index) * t.Gain()
}

// Clamp maps any integer onto a valid tape slot.
func Clamp(i int) int {
	if i < 0 {
		return 0
	}
	if i >= Count {
		return Count - 1
	}
	return i
}

// SecondarySet marks the tapes that join the primary tape in group
// operations.
type SecondarySet [Count]bool

func (s *SecondarySet) Toggle(i int) {
	i = Clamp(i)
	s[i] = !s[i]
}

func (s *SecondarySet) Has(i int) bool {
	return i >= 0 && i < Count && s[i]
}

// Mask packs the set into a bitmask, bit i set for tape i.
func (s *SecondarySet) Mask() uint8 {
	var m uint8
	for i, on := range s {
		if on {
			m |= 1 << i
		}
	}
	return m
}

// Each calls fn for every member of the set in slot order.
func (s *SecondarySet) Each(fn func(i int)) {
	for i, on := range s {
		if on {
			fn(i)
		}
	}
}
