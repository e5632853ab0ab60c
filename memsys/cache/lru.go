package cache

import akitacache "github.com/sarchlab/akita/v4/mem/cache"

// lruPolicy delegates tag bookkeeping and victim selection to akita's
// cache directory, used exactly the way the teacher's timing/cache.Cache
// does: a single NewDirectory with the stock NewLRUVictimFinder.
type lruPolicy struct {
	dir       *akitacache.DirectoryImpl
	assoc     int
	blockSize int
}

func newLRUPolicy(numSets, assoc, blockSize int) *lruPolicy {
	return &lruPolicy{
		dir: akitacache.NewDirectory(
			numSets, assoc, blockSize,
			akitacache.NewLRUVictimFinder(),
		),
		assoc:     assoc,
		blockSize: blockSize,
	}
}

func toBlock(b *akitacache.Block) block {
	if b == nil {
		return block{}
	}
	return block{set: b.SetID, way: b.WayID, valid: b.IsValid, dirty: b.IsDirty, tag: b.Tag}
}

func (p *lruPolicy) lookup(blockAddr uint64) (block, bool) {
	b := p.dir.Lookup(0, blockAddr)
	if b == nil || !b.IsValid {
		return block{}, false
	}
	return toBlock(b), true
}

func (p *lruPolicy) onAccess(b block) {
	akb := p.dir.Lookup(0, b.tag)
	if akb != nil {
		p.dir.Visit(akb)
	}
}

func (p *lruPolicy) victim(blockAddr uint64) block {
	v := p.dir.FindVictim(blockAddr)
	return toBlock(v)
}

func (p *lruPolicy) install(b block, blockAddr uint64) block {
	v := p.dir.FindVictim(blockAddr)
	if v == nil {
		return b
	}
	v.Tag = blockAddr
	v.IsValid = true
	v.IsDirty = false
	return toBlock(v)
}

func (p *lruPolicy) setDirty(b block, dirty bool) {
	akb := p.dir.Lookup(0, b.tag)
	if akb != nil {
		akb.IsDirty = dirty
	}
}
