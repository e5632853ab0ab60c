package mmu

import (
	"testing"

	"github.com/rv64sim/rv64sim/cpu"
)

type fakeMem struct {
	data map[uint64][]byte
}

func newFakeMem() *fakeMem { return &fakeMem{data: map[uint64][]byte{}} }

func (f *fakeMem) Read(addr uint64, size int) []byte {
	if d, ok := f.data[addr]; ok {
		return d
	}
	return make([]byte, size)
}

func (f *fakeMem) Write(addr uint64, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	f.data[addr] = cp
}

func putPTE(mem *fakeMem, addr, pte uint64) {
	data := make([]byte, 8)
	for i := 0; i < 8; i++ {
		data[i] = byte(pte >> (8 * i))
	}
	mem.data[addr] = data
}

func TestTranslateBareMode(t *testing.T) {
	mem := newFakeMem()
	m := New(4, 4, mem)
	pa, err := m.Translate(0, 0x80001000, AccessFetch, cpu.PrivMachine, 0)
	if err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if pa != 0x80001000 {
		t.Errorf("bare mode should pass va through, got %#x", pa)
	}
}

func TestWalkThreeLevel(t *testing.T) {
	mem := newFakeMem()
	rootPPN := uint64(0x1000)
	l1PPN := uint64(0x2000)
	l0PPN := uint64(0x3000)
	leafPPN := uint64(0x4000)

	va := uint64(0x40201000) // vpn2=1 vpn1=1 vpn0=1

	putPTE(mem, rootPPN<<12+1*8, l1PPN<<10|pteV)
	putPTE(mem, l1PPN<<12+1*8, l0PPN<<10|pteV)
	putPTE(mem, l0PPN<<12+1*8, leafPPN<<10|pteV|pteR|pteW|pteX|pteU)

	satp := uint64(8)<<60 | rootPPN

	m := New(4, 4, mem)
	pa, err := m.Translate(satp, va, AccessLoad, cpu.PrivUser, 0)
	if err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	want := leafPPN<<12 + va&0xfff
	if pa != want {
		t.Errorf("pa = %#x, want %#x", pa, want)
	}

	// second translate should hit the TLB and return the same answer
	pa2, err2 := m.Translate(satp, va, AccessLoad, cpu.PrivUser, 0)
	if err2 != nil || pa2 != pa {
		t.Errorf("tlb hit mismatch: pa=%#x err=%v", pa2, err2)
	}
}

func TestWalkPermissionDenied(t *testing.T) {
	mem := newFakeMem()
	rootPPN := uint64(0x1000)
	leafPPN := uint64(0x2000)
	va := uint64(0x0)

	putPTE(mem, rootPPN<<12, leafPPN<<10|pteV|pteR) // no W

	satp := uint64(8)<<60 | rootPPN
	m := New(4, 4, mem)
	_, err := m.Translate(satp, va, AccessStore, cpu.PrivUser, 0)
	if err == nil {
		t.Errorf("expected page fault on write to read-only page")
	}
}

func TestSFENCEVMAFlushesAll(t *testing.T) {
	mem := newFakeMem()
	rootPPN := uint64(0x1000)
	leafPPN := uint64(0x2000)
	va := uint64(0x0)
	putPTE(mem, rootPPN<<12, leafPPN<<10|pteV|pteR|pteW|pteX|pteU)

	satp := uint64(8)<<60 | rootPPN
	m := New(4, 4, mem)
	m.Translate(satp, va, AccessLoad, cpu.PrivUser, 0)
	m.SFENCEVMA(false, 0, false, 0)

	if _, ok := m.DTLB.Lookup(va>>12, 0); ok {
		t.Errorf("expected TLB entry flushed after SFENCE.VMA")
	}
}
