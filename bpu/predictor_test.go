package bpu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rv64sim/rv64sim/bpu"
)

var _ = Describe("GShare", func() {
	It("learns a strongly-taken branch", func() {
		g := bpu.NewGShare(8, 8)
		pc := uint64(0x1000)
		for i := 0; i < 10; i++ {
			g.Update(pc, true)
		}
		Expect(g.Predict(pc)).To(BeTrue())
	})

	It("learns a strongly-not-taken branch", func() {
		g := bpu.NewGShare(8, 8)
		pc := uint64(0x2000)
		for i := 0; i < 10; i++ {
			g.Update(pc, false)
		}
		Expect(g.Predict(pc)).To(BeFalse())
	})
})

var _ = Describe("Tournament", func() {
	It("converges on a per-PC-biased pattern the local component favors", func() {
		t := bpu.NewTournament(6, 6)
		pc := uint64(0x3000)
		for i := 0; i < 20; i++ {
			t.Update(pc, true)
		}
		Expect(t.Predict(pc)).To(BeTrue())
	})
})

var _ = Describe("Perceptron", func() {
	It("predicts taken after repeated taken training", func() {
		p := bpu.NewPerceptron(16, 8, 10)
		pc := uint64(0x4000)
		for i := 0; i < 30; i++ {
			p.Update(pc, true)
		}
		Expect(p.Predict(pc)).To(BeTrue())
	})
})

var _ = Describe("TAGE", func() {
	It("predicts a steady pattern correctly after warmup", func() {
		tg := bpu.NewTAGE(4, 8)
		pc := uint64(0x5000)
		for i := 0; i < 50; i++ {
			tg.Update(pc, true)
		}
		Expect(tg.Predict(pc)).To(BeTrue())
	})
})

var _ = Describe("BTB", func() {
	It("stores and recalls a target", func() {
		b := bpu.NewBTB(64, 4)
		b.Update(0x1000, 0x2000, 0)
		target, _, ok := b.Lookup(0x1000)
		Expect(ok).To(BeTrue())
		Expect(target).To(Equal(uint64(0x2000)))
	})

	It("misses on an untracked pc", func() {
		b := bpu.NewBTB(64, 4)
		_, _, ok := b.Lookup(0x9999)
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("RAS", func() {
	It("pops in LIFO order", func() {
		r := bpu.NewRAS(4)
		r.Push(0x100)
		r.Push(0x200)
		top, ok := r.Pop()
		Expect(ok).To(BeTrue())
		Expect(top).To(Equal(uint64(0x200)))
	})

	It("wraps when full, discarding the oldest entry", func() {
		r := bpu.NewRAS(2)
		r.Push(0x1)
		r.Push(0x2)
		r.Push(0x3)
		a, _ := r.Pop()
		b, _ := r.Pop()
		Expect(a).To(Equal(uint64(0x3)))
		Expect(b).To(Equal(uint64(0x2)))
	})

	It("reports empty on an empty stack", func() {
		r := bpu.NewRAS(2)
		_, ok := r.Pop()
		Expect(ok).To(BeFalse())
	})
})
