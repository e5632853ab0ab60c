package cache

// fifoPolicy evicts the way with the smallest insertion counter in the
// set, per a monotonically increasing per-set insertion clock.
type fifoPolicy struct {
	ways  [][]plainBlock
	order [][]uint64 // insertion sequence number per way
	clock []uint64   // next sequence number per set

	blockSize uint64
}

func newFIFOPolicy(numSets, assoc, blockSize int) *fifoPolicy {
	p := &fifoPolicy{
		ways:      make([][]plainBlock, numSets),
		order:     make([][]uint64, numSets),
		clock:     make([]uint64, numSets),
		blockSize: uint64(blockSize),
	}
	for i := range p.ways {
		p.ways[i] = make([]plainBlock, assoc)
		p.order[i] = make([]uint64, assoc)
	}
	return p
}

func (p *fifoPolicy) setOf(blockAddr uint64) int {
	return int(blockAddr / p.blockSize % uint64(len(p.ways)))
}

func (p *fifoPolicy) lookup(blockAddr uint64) (block, bool) {
	set := p.setOf(blockAddr)
	way, ok := lookupPlain(p.ways, set, blockAddr)
	if !ok {
		return block{}, false
	}
	b := p.ways[set][way]
	return block{set: set, way: way, valid: b.valid, dirty: b.dirty, tag: b.tag}, true
}

// onAccess is a no-op; FIFO ignores recency on hits.
func (p *fifoPolicy) onAccess(b block) {}

func (p *fifoPolicy) victim(blockAddr uint64) block {
	set := p.setOf(blockAddr)
	if way, ok := firstInvalid(p.ways[set]); ok {
		b := p.ways[set][way]
		return block{set: set, way: way, valid: b.valid, dirty: b.dirty, tag: b.tag}
	}
	way := 0
	oldest := p.order[set][0]
	for i, seq := range p.order[set] {
		if seq < oldest {
			oldest, way = seq, i
		}
	}
	b := p.ways[set][way]
	return block{set: set, way: way, valid: b.valid, dirty: b.dirty, tag: b.tag}
}

func (p *fifoPolicy) install(b block, blockAddr uint64) block {
	p.ways[b.set][b.way] = plainBlock{valid: true, dirty: false, tag: blockAddr}
	p.order[b.set][b.way] = p.clock[b.set]
	p.clock[b.set]++
	return block{set: b.set, way: b.way, valid: true, dirty: false, tag: blockAddr}
}

func (p *fifoPolicy) setDirty(b block, dirty bool) {
	p.ways[b.set][b.way].dirty = dirty
}
