package bpu

import "github.com/rv64sim/rv64sim/isa"

type btbEntry struct {
	valid  bool
	tag    uint64
	target uint64
	kind   isa.BranchKind
}

// BTB is a set-associative branch target buffer indexed by the low bits
// of the PC and tagged with the remaining upper bits, storing the last
// resolved target and branch-kind hint for each tracked PC.
type BTB struct {
	sets      [][]btbEntry
	indexMask uint64
	setShift  uint
	ways      int
	fifoNext  []int // per-set round-robin replacement pointer
}

// NewBTB returns a BTB with numSets sets, each ways-associative.
func NewBTB(numSets, ways int) *BTB {
	b := &BTB{
		sets:      make([][]btbEntry, numSets),
		indexMask: uint64(numSets - 1),
		ways:      ways,
		fifoNext:  make([]int, numSets),
	}
	for i := range b.sets {
		b.sets[i] = make([]btbEntry, ways)
	}
	for 1<<b.setShift < numSets {
		b.setShift++
	}
	return b
}

func (b *BTB) setIndex(pc uint64) uint64 {
	return (pc >> 1) & b.indexMask
}

func (b *BTB) tag(pc uint64) uint64 {
	return pc >> 1 >> b.setShift
}

// Lookup returns the stored target and branch kind for pc, and whether
// an entry was found.
func (b *BTB) Lookup(pc uint64) (target uint64, kind isa.BranchKind, ok bool) {
	set := b.sets[b.setIndex(pc)]
	tag := b.tag(pc)
	for _, e := range set {
		if e.valid && e.tag == tag {
			return e.target, e.kind, true
		}
	}
	return 0, isa.BranchNone, false
}

// Update installs or refreshes the entry for pc, evicting round-robin
// within the set when no matching or free way exists.
func (b *BTB) Update(pc, target uint64, kind isa.BranchKind) {
	idx := b.setIndex(pc)
	set := b.sets[idx]
	tag := b.tag(pc)

	for i := range set {
		if set[i].valid && set[i].tag == tag {
			set[i].target, set[i].kind = target, kind
			return
		}
	}
	for i := range set {
		if !set[i].valid {
			set[i] = btbEntry{valid: true, tag: tag, target: target, kind: kind}
			return
		}
	}
	way := b.fifoNext[idx]
	set[way] = btbEntry{valid: true, tag: tag, target: target, kind: kind}
	b.fifoNext[idx] = (way + 1) % b.ways
}
