package cache

import "math/rand/v2"

// randomPolicy evicts a uniformly random way in the set, using a
// deterministic PRNG seeded from configuration so that runs are
// reproducible.
type randomPolicy struct {
	ways  [][]plainBlock
	rng   *rand.Rand
	assoc int

	blockSize uint64
}

func newRandomPolicy(numSets, assoc, blockSize int, seed uint64) *randomPolicy {
	p := &randomPolicy{
		ways:      make([][]plainBlock, numSets),
		rng:       rand.New(rand.NewPCG(seed, seed)),
		assoc:     assoc,
		blockSize: uint64(blockSize),
	}
	for i := range p.ways {
		p.ways[i] = make([]plainBlock, assoc)
	}
	return p
}

func (p *randomPolicy) setOf(blockAddr uint64) int {
	return int(blockAddr / p.blockSize % uint64(len(p.ways)))
}

func (p *randomPolicy) lookup(blockAddr uint64) (block, bool) {
	set := p.setOf(blockAddr)
	way, ok := lookupPlain(p.ways, set, blockAddr)
	if !ok {
		return block{}, false
	}
	b := p.ways[set][way]
	return block{set: set, way: way, valid: b.valid, dirty: b.dirty, tag: b.tag}, true
}

func (p *randomPolicy) onAccess(b block) {}

func (p *randomPolicy) victim(blockAddr uint64) block {
	set := p.setOf(blockAddr)
	if way, ok := firstInvalid(p.ways[set]); ok {
		b := p.ways[set][way]
		return block{set: set, way: way, valid: b.valid, dirty: b.dirty, tag: b.tag}
	}
	way := p.rng.IntN(p.assoc)
	b := p.ways[set][way]
	return block{set: set, way: way, valid: b.valid, dirty: b.dirty, tag: b.tag}
}

func (p *randomPolicy) install(b block, blockAddr uint64) block {
	p.ways[b.set][b.way] = plainBlock{valid: true, dirty: false, tag: blockAddr}
	return block{set: b.set, way: b.way, valid: true, dirty: false, tag: blockAddr}
}

func (p *randomPolicy) setDirty(b block, dirty bool) {
	p.ways[b.set][b.way].dirty = dirty
}
