package cache

// mruPolicy evicts the most-recently-used way in the set, the inverse
// of LRU, remembering only the most recently touched way of each set.
type mruPolicy struct {
	ways   [][]plainBlock
	recent []int // most-recently-touched way per set, -1 if none yet

	blockSize uint64
}

func newMRUPolicy(numSets, assoc, blockSize int) *mruPolicy {
	p := &mruPolicy{
		ways:      make([][]plainBlock, numSets),
		recent:    make([]int, numSets),
		blockSize: uint64(blockSize),
	}
	for i := range p.ways {
		p.ways[i] = make([]plainBlock, assoc)
		p.recent[i] = -1
	}
	return p
}

func (p *mruPolicy) setOf(blockAddr uint64) int {
	return int(blockAddr / p.blockSize % uint64(len(p.ways)))
}

func (p *mruPolicy) lookup(blockAddr uint64) (block, bool) {
	set := p.setOf(blockAddr)
	way, ok := lookupPlain(p.ways, set, blockAddr)
	if !ok {
		return block{}, false
	}
	b := p.ways[set][way]
	return block{set: set, way: way, valid: b.valid, dirty: b.dirty, tag: b.tag}, true
}

func (p *mruPolicy) onAccess(b block) {
	p.recent[b.set] = b.way
}

func (p *mruPolicy) victim(blockAddr uint64) block {
	set := p.setOf(blockAddr)
	if way, ok := firstInvalid(p.ways[set]); ok {
		b := p.ways[set][way]
		return block{set: set, way: way, valid: b.valid, dirty: b.dirty, tag: b.tag}
	}
	way := p.recent[set]
	if way < 0 {
		way = 0
	}
	b := p.ways[set][way]
	return block{set: set, way: way, valid: b.valid, dirty: b.dirty, tag: b.tag}
}

func (p *mruPolicy) install(b block, blockAddr uint64) block {
	p.ways[b.set][b.way] = plainBlock{valid: true, dirty: false, tag: blockAddr}
	p.recent[b.set] = b.way
	return block{set: b.set, way: b.way, valid: true, dirty: false, tag: blockAddr}
}

func (p *mruPolicy) setDirty(b block, dirty bool) {
	p.ways[b.set][b.way].dirty = dirty
}
