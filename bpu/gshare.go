package bpu

// GShare indexes a table of 2-bit saturating counters by the XOR of the
// branch PC and the global history register.
type GShare struct {
	table   []saturating2Bit
	mask    uint64
	history uint64
	histLen uint
	histMask uint64
}

// NewGShare returns a GShare predictor with a table of 2^tableBits
// entries and a histBits-wide global history register.
func NewGShare(tableBits, histBits uint) *GShare {
	return &GShare{
		table:    make([]saturating2Bit, 1<<tableBits),
		mask:     1<<tableBits - 1,
		histLen:  histBits,
		histMask: 1<<histBits - 1,
	}
}

func (g *GShare) index(pc uint64) uint64 {
	return (pc ^ g.history) & g.mask
}

// Predict returns the counter's direction at the gshare-indexed entry.
func (g *GShare) Predict(pc uint64) bool {
	return g.table[g.index(pc)].taken()
}

// Update trains the indexed counter and shifts the observed outcome
// into the global history register.
func (g *GShare) Update(pc uint64, taken bool) {
	idx := g.index(pc)
	g.table[idx].update(taken)
	g.history = (g.history << 1 | boolBit(taken)) & g.histMask
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
