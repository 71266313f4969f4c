package permission

import "math/bits"

// Mask64 is a set of up to 64 registered permissions, one bit each.
type Mask64 uint64

// Has reports whether bit is set.
func (m Mask64) Has(bit int) bool {
	if bit < 0 || bit >= 64 {
		return false
	}
	return m&(1<<uint(bit)) != 0
}

// Set adds bit to the mask.
func (m *Mask64) Set(bit int) {
	if bit < 0 || bit >= 64 {
		return
	}
	*m |= 1 << uint(bit)
}

// Clear removes bit from the mask.
func (m *Mask64) Clear(bit int) {
	if bit < 0 || bit >= 64 {
		return
	}
	*m &^= 1 << uint(bit)
}

// Count returns the number of set bits.
func (m Mask64) Count() int {
	return bits.OnesCount64(uint64(m))
}

// Bits returns the set bit indexes in ascending order.
func (m Mask64) Bits() []int {
	out := make([]int, 0, m.Count())
	for v := uint64(m); v != 0; v &= v - 1 {
		out = append(out, bits.TrailingZeros64(v))
	}
	return out
}

func (m Mask64) Raw() uint64 {
	return uint64(m)
}
