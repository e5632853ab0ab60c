package isa_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rv64sim/rv64sim/isa"
)

var _ = Describe("Decode", func() {
	It("decodes ADDI", func() {
		// addi x5, x6, 10
		raw := uint32(10)<<20 | 6<<15 | 0<<12 | 5<<7 | 0x04<<2 | 0x3
		d := isa.Decode(0x1000, raw, false)
		Expect(d.Legal).To(BeTrue())
		Expect(d.Op).To(Equal(isa.OpADD))
		Expect(d.Rd).To(Equal(uint8(5)))
		Expect(d.Rs1).To(Equal(uint8(6)))
		Expect(d.Imm).To(Equal(int64(10)))
	})

	It("decodes negative immediates with sign extension", func() {
		// addi x1, x0, -1
		raw := uint32(0xfff)<<20 | 0<<15 | 0<<12 | 1<<7 | 0x04<<2 | 0x3
		d := isa.Decode(0, raw, false)
		Expect(d.Imm).To(Equal(int64(-1)))
	})

	It("decodes LUI", func() {
		raw := uint32(0x12345) << 12
		raw |= 5 << 7
		raw |= uint32(0x0d) << 2
		raw |= 0x3
		d := isa.Decode(0, raw, false)
		Expect(d.Op).To(Equal(isa.OpLUI))
		Expect(d.Imm).To(Equal(int64(0x12345000)))
	})

	It("decodes JAL with correct sign-extended offset", func() {
		// jal x1, -4
		raw := encodeJALRaw(-4, 1)
		d := isa.Decode(0x100, raw, false)
		Expect(d.Op).To(Equal(isa.OpJAL))
		Expect(d.Ctrl.Branch).To(Equal(isa.BranchCall))
		Expect(d.Imm).To(Equal(int64(-4)))
	})

	It("decodes JALR with x0 dest and ra source as a return", func() {
		raw := uint32(0)<<20 | 1<<15 | 0<<12 | 0<<7 | 0x19<<2 | 0x3
		d := isa.Decode(0, raw, false)
		Expect(d.Ctrl.Branch).To(Equal(isa.BranchReturn))
	})

	It("decodes branch instructions with correct class", func() {
		raw := uint32(0)<<25 | 6<<20 | 5<<15 | 0x0<<12 | 0<<7 | 0x18<<2 | 0x3
		d := isa.Decode(0, raw, false)
		Expect(d.Class).To(Equal(isa.ClassBranch))
		Expect(d.Op).To(Equal(isa.OpBEQ))
	})

	It("decodes loads with correct width and signedness", func() {
		raw := uint32(0)<<20 | 5<<15 | 0x0<<12 | 6<<7 | 0x00<<2 | 0x3
		d := isa.Decode(0, raw, false)
		Expect(d.Op).To(Equal(isa.OpLB))
		Expect(d.Ctrl.MemWidth).To(Equal(uint8(1)))
		Expect(d.Ctrl.MemSigned).To(BeTrue())
	})

	It("decodes M-extension MUL", func() {
		raw := uint32(0x01)<<25 | 6<<20 | 5<<15 | 0x0<<12 | 7<<7 | 0x0c<<2 | 0x3
		d := isa.Decode(0, raw, false)
		Expect(d.Op).To(Equal(isa.OpMUL))
	})

	It("decodes atomics with aq/rl bits", func() {
		funct7 := uint32(0x00<<2) | 0x3 // AMOADD, aq=1 rl=1
		raw := funct7<<25 | 6<<20 | 5<<15 | 0x2<<12 | 7<<7 | 0x0b<<2 | 0x3
		d := isa.Decode(0, raw, false)
		Expect(d.Op).To(Equal(isa.OpAMOADD))
		Expect(d.Ctrl.Aq).To(BeTrue())
		Expect(d.Ctrl.Rl).To(BeTrue())
	})

	It("decodes CSR instructions and carries the CSR address", func() {
		raw := uint32(0x305)<<20 | 0<<15 | 0x2<<12 | 5<<7 | 0x1c<<2 | 0x3
		d := isa.Decode(0, raw, false)
		Expect(d.Op).To(Equal(isa.OpCSRRS))
		Expect(d.Ctrl.CSR).To(Equal(uint16(0x305)))
	})

	It("decodes MRET", func() {
		raw := uint32(0x302)<<20 | 0<<15 | 0<<12 | 0<<7 | 0x1c<<2 | 0x3
		d := isa.Decode(0, raw, false)
		Expect(d.Op).To(Equal(isa.OpMRET))
	})

	It("marks unrecognised opcodes illegal", func() {
		raw := uint32(0x1f) << 2
		d := isa.Decode(0, raw|0x3, false)
		Expect(d.Legal).To(BeFalse())
		Expect(d.Class).To(Equal(isa.ClassIllegal))
	})
})

var _ = Describe("ExpandCompressed", func() {
	It("expands C.ADDI4SPN", func() {
		// c.addi4spn x8, x2, 4: funct3=000 nzuimm[5:4|9:6|2|3]=4 rd'=000(x8) op=00
		raw := uint16(0)<<13 | 0<<12 | (1<<6) | 0<<5 | 0<<2 | 0x0
		expanded, ok := isa.ExpandCompressed(raw)
		Expect(ok).To(BeTrue())
		d := isa.Decode(0, expanded, true)
		Expect(d.Rd).To(Equal(uint8(8)))
	})

	It("expands C.LI", func() {
		// c.li x5, 5 : funct3=010 imm[5]=0 rd=00101 imm[4:0]=00101 op=01
		raw := uint16(0x2)<<13 | 0<<12 | 5<<7 | 5<<2 | 0x1
		expanded, ok := isa.ExpandCompressed(raw)
		Expect(ok).To(BeTrue())
		d := isa.Decode(0, expanded, true)
		Expect(d.Op).To(Equal(isa.OpADD))
		Expect(d.Rd).To(Equal(uint8(5)))
		Expect(d.Imm).To(Equal(int64(5)))
	})

	It("expands C.MV", func() {
		// c.mv x5, x6: funct3=100 hi=0 rd=00101 rs2=00110 op=10
		raw := uint16(0x4)<<13 | 0<<12 | 5<<7 | 6<<2 | 0x2
		expanded, ok := isa.ExpandCompressed(raw)
		Expect(ok).To(BeTrue())
		d := isa.Decode(0, expanded, true)
		Expect(d.Op).To(Equal(isa.OpADD))
		Expect(d.Rd).To(Equal(uint8(5)))
		Expect(d.Rs2).To(Equal(uint8(6)))
	})

	It("expands C.EBREAK", func() {
		raw := uint16(0x4)<<13 | 1<<12 | 0<<7 | 0<<2 | 0x2
		expanded, ok := isa.ExpandCompressed(raw)
		Expect(ok).To(BeTrue())
		Expect(expanded).To(Equal(uint32(0x00100073)))
	})

	It("rejects reserved quadrant-3 encodings", func() {
		raw := uint16(0x3)
		_, ok := isa.ExpandCompressed(raw)
		Expect(ok).To(BeFalse())
	})
})

func encodeJALRaw(imm int32, rd uint8) uint32 {
	v := uint32(imm)
	b20 := v >> 20 & 0x1
	b10_1 := v >> 1 & 0x3ff
	b11 := v >> 11 & 0x1
	b19_12 := v >> 12 & 0xff
	return b20<<31 | b10_1<<21 | b11<<20 | b19_12<<12 | uint32(rd)<<7 | 0x1b<<2 | 0x3
}
