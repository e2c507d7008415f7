package permission

// Mask64 is a set of permission bits. When the registry reserves a root
// bit, bit 63 satisfies every check.
type Mask64 uint64

const rootBit = 63

func (m Mask64) Has(bit int, rootReserved bool) bool {
	if bit < 0 || bit > rootBit {
		return false
	}
	if rootReserved && m&(1<<rootBit) != 0 {
		return true
	}
	return m&(1<<bit) != 0
}

// With returns m with bit set. Out-of-range bits are ignored.
func (m Mask64) With(bit int) Mask64 {
	if bit < 0 || bit > rootBit {
		return m
	}
	return m | 1<<bit
}

// Without returns m with bit cleared.
func (m Mask64) Without(bit int) Mask64 {
	if bit < 0 || bit > rootBit {
		return m
	}
	return m &^ (1 << bit)
}

func (m Mask64) Raw() uint64 { return uint64(m) }
