package cache

// PrefetchKind selects the prefetch policy observing a cache level's
// accesses.
type PrefetchKind uint8

const (
	PrefetchNone PrefetchKind = iota
	PrefetchNextLine
	PrefetchStride
	PrefetchStream
	PrefetchTagged
)

// Prefetcher observes every access a cache level makes and may enqueue
// addresses to prefetch. Prefetch fills are opportunistic: the owning
// hierarchy drains the queue and issues fills that never stall the
// pipeline and never raise traps.
type Prefetcher interface {
	OnAccess(addr uint64, hit bool)
	Drain() []uint64
}

func newPrefetcher(cfg Config) Prefetcher {
	switch cfg.Prefetch {
	case PrefetchNextLine:
		return &nextLinePrefetcher{blockSize: uint64(cfg.BlockSize)}
	case PrefetchStride:
		return newStridePrefetcher(cfg)
	case PrefetchStream:
		return newStreamPrefetcher(cfg)
	case PrefetchTagged:
		return &taggedPrefetcher{blockSize: uint64(cfg.BlockSize), seen: map[uint64]bool{}}
	default:
		return noopPrefetcher{}
	}
}

type noopPrefetcher struct{}

func (noopPrefetcher) OnAccess(addr uint64, hit bool) {}
func (noopPrefetcher) Drain() []uint64                { return nil }

// nextLinePrefetcher prefetches addr+blockSize on every miss.
type nextLinePrefetcher struct {
	blockSize uint64
	pending   []uint64
}

func (p *nextLinePrefetcher) OnAccess(addr uint64, hit bool) {
	if hit {
		return
	}
	blockAddr := addr / p.blockSize * p.blockSize
	p.pending = append(p.pending, blockAddr+p.blockSize)
}

func (p *nextLinePrefetcher) Drain() []uint64 {
	out := p.pending
	p.pending = nil
	return out
}

// taggedPrefetcher behaves like nextLinePrefetcher but only prefetches on
// a demand fill that has not already been the target of a prior
// prefetch, avoiding re-triggering a prefetch chain on data the stream
// has already fetched ahead of.
type taggedPrefetcher struct {
	blockSize uint64
	seen      map[uint64]bool
	pending   []uint64
}

func (p *taggedPrefetcher) OnAccess(addr uint64, hit bool) {
	if hit {
		return
	}
	blockAddr := addr / p.blockSize * p.blockSize
	if p.seen[blockAddr] {
		return
	}
	p.seen[blockAddr] = true
	next := blockAddr + p.blockSize
	p.pending = append(p.pending, next)
}

func (p *taggedPrefetcher) Drain() []uint64 {
	out := p.pending
	p.pending = nil
	return out
}

// stridePrefetcher tracks a per-PC-less, address-stream table of
// (lastAddr, stride, confidence) and prefetches ahead once confidence
// crosses a threshold. Without a PC input on the narrow OnAccess
// signature, it tracks a single global stream; pipeline call sites that
// want per-instruction streams key separate Prefetcher instances by PC
// bucket instead.
type stridePrefetcher struct {
	blockSize  uint64
	degree     int
	lastAddr   uint64
	stride     int64
	confidence int
	hasLast    bool
	pending    []uint64
}

func newStridePrefetcher(cfg Config) *stridePrefetcher {
	deg := cfg.PrefetchDeg
	if deg <= 0 {
		deg = 1
	}
	return &stridePrefetcher{blockSize: uint64(cfg.BlockSize), degree: deg}
}

const strideConfidenceThreshold = 2

func (p *stridePrefetcher) OnAccess(addr uint64, hit bool) {
	if !p.hasLast {
		p.lastAddr, p.hasLast = addr, true
		return
	}
	stride := int64(addr) - int64(p.lastAddr)
	if stride == p.stride && stride != 0 {
		if p.confidence < 15 {
			p.confidence++
		}
	} else {
		p.stride = stride
		p.confidence = 0
	}
	p.lastAddr = addr

	if p.confidence >= strideConfidenceThreshold {
		for k := 1; k <= p.degree; k++ {
			p.pending = append(p.pending, uint64(int64(addr)+p.stride*int64(k)))
		}
	}
}

func (p *stridePrefetcher) Drain() []uint64 {
	out := p.pending
	p.pending = nil
	return out
}

// streamPrefetcher maintains a small set of monotonically ascending
// address streams and prefetches ahead of any stream whose last two
// accesses were ascending by one block.
type streamPrefetcher struct {
	blockSize uint64
	degree    int
	streams   []uint64 // last seen address per tracked stream
	pending   []uint64
}

func newStreamPrefetcher(cfg Config) *streamPrefetcher {
	deg := cfg.PrefetchDeg
	if deg <= 0 {
		deg = 1
	}
	return &streamPrefetcher{blockSize: uint64(cfg.BlockSize), degree: deg, streams: make([]uint64, 4)}
}

func (p *streamPrefetcher) OnAccess(addr uint64, hit bool) {
	blockAddr := addr / p.blockSize * p.blockSize
	for i, last := range p.streams {
		if last != 0 && blockAddr == last+p.blockSize {
			for k := 1; k <= p.degree; k++ {
				p.pendingAppend(last + p.blockSize*uint64(k+1))
			}
			p.streams[i] = blockAddr
			return
		}
	}
	// no matching stream: replace the oldest slot
	copy(p.streams, p.streams[1:])
	p.streams[len(p.streams)-1] = blockAddr
}

func (p *streamPrefetcher) pendingAppend(addr uint64) {
	p.pending = append(p.pending, addr)
}

func (p *streamPrefetcher) Drain() []uint64 {
	out := p.pending
	p.pending = nil
	return out
}
