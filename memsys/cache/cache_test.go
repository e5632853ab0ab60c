package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rv64sim/rv64sim/memsys/cache"
)

type fakeBacking struct {
	mem map[uint64][]byte
}

func newFakeBacking() *fakeBacking { return &fakeBacking{mem: map[uint64][]byte{}} }

func (f *fakeBacking) Read(addr uint64, size int) []byte {
	if d, ok := f.mem[addr]; ok {
		return d
	}
	return make([]byte, size)
}

func (f *fakeBacking) Write(addr uint64, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	f.mem[addr] = cp
}

func baseConfig(repl cache.ReplacementKind) cache.Config {
	return cache.Config{
		Size:          1024,
		Associativity: 4,
		BlockSize:     64,
		HitLatency:    1,
		MissLatency:   10,
		Replacement:   repl,
	}
}

var _ = Describe("Cache", func() {
	for _, repl := range []cache.ReplacementKind{
		cache.ReplacementLRU, cache.ReplacementPLRU, cache.ReplacementFIFO,
		cache.ReplacementMRU, cache.ReplacementRandom,
	} {
		repl := repl
		Describe("with a given replacement policy", func() {
			It("misses on first access and hits on second", func() {
				c := cache.New(baseConfig(repl), newFakeBacking())
				r1 := c.Read(0x1000, 8)
				Expect(r1.Hit).To(BeFalse())
				r2 := c.Read(0x1000, 8)
				Expect(r2.Hit).To(BeTrue())
			})

			It("writes are write-allocate and write-back", func() {
				backing := newFakeBacking()
				c := cache.New(baseConfig(repl), backing)
				c.Write(0x2000, 8, 0xdeadbeef)
				r := c.Read(0x2000, 8)
				Expect(r.Hit).To(BeTrue())
				Expect(r.Data).To(Equal(uint64(0xdeadbeef)))
			})

			It("evicts and writes back a dirty line when the set fills up", func() {
				backing := newFakeBacking()
				cfg := baseConfig(repl)
				c := cache.New(cfg, backing)
				numSets := cfg.Size / (cfg.Associativity * cfg.BlockSize)
				stride := uint64(cfg.BlockSize * numSets)
				for i := 0; i < cfg.Associativity+1; i++ {
					c.Write(uint64(i)*stride, 8, uint64(i))
				}
				stats := c.Stats()
				Expect(stats.Evictions).To(BeNumerically(">=", 1))
				Expect(stats.Writebacks).To(BeNumerically(">=", 1))
			})
		})
	}
})

var _ = Describe("Prefetchers", func() {
	It("NextLine enqueues addr+blockSize on a miss", func() {
		cfg := baseConfig(cache.ReplacementLRU)
		cfg.Prefetch = cache.PrefetchNextLine
		c := cache.New(cfg, newFakeBacking())
		c.Read(0x1000, 8)
		pending := c.DrainPrefetches()
		Expect(pending).To(ContainElement(uint64(0x1000 + cfg.BlockSize)))
	})
})
