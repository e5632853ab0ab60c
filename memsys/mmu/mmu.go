// Package mmu implements the SV39 memory management unit: split
// instruction/data TLBs and a hardware page-table walker.
package mmu

import "github.com/rv64sim/rv64sim/cpu"

// AccessKind identifies the purpose of a translation request, which
// selects the TLB consulted and the permission bits enforced.
type AccessKind uint8

const (
	AccessFetch AccessKind = iota
	AccessLoad
	AccessStore
)

// PTE permission bits, matching the SV39 page table entry layout.
const (
	pteV = 1 << 0
	pteR = 1 << 1
	pteW = 1 << 2
	pteX = 1 << 3
	pteU = 1 << 4
	pteG = 1 << 5
	pteA = 1 << 6
	pteD = 1 << 7
)

// mstatus bit positions consulted for SUM/MXR during permission checks.
const (
	statusSUM = 1 << 18
	statusMXR = 1 << 19
)

// PageFault reports a translation failure; the walker fills stval with
// the faulting virtual address and the pipeline's trap logic picks the
// cause code from Kind.
type PageFault struct {
	Kind  AccessKind
	VAddr uint64
}

func (f *PageFault) Error() string { return "page fault" }

// BackingStore loads raw bytes for a page-table entry fetch. It is
// satisfied by memsys/cache.LevelBacking (cmd/rv64sim wraps the L1 data
// cache in one), keeping the walker ignorant of whether PTE loads hit or
// miss the cache hierarchy.
type BackingStore interface {
	Read(addr uint64, size int) []byte
}

const (
	pageShift = 12
	pageSize  = 1 << pageShift
	vpnBits   = 9
	ptesPerPage = 512
)

// MMU bundles the instruction and data TLBs plus the shared walker over
// a single backing store.
type MMU struct {
	ITLB   *TLB
	DTLB   *TLB
	Walker *Walker
}

// New returns an MMU with iTLB/dTLB of the given entry counts, backed by
// the given physical-memory store.
func New(itlbEntries, dtlbEntries int, backing BackingStore) *MMU {
	return &MMU{
		ITLB:   NewTLB(itlbEntries),
		DTLB:   NewTLB(dtlbEntries),
		Walker: NewWalker(backing),
	}
}

// Translate resolves va to a physical address under satp for the given
// access kind and privilege, consulting the TLB first and falling back
// to the walker on a miss, then installing the result.
func (m *MMU) Translate(satp uint64, va uint64, kind AccessKind, priv cpu.Privilege, status uint64) (uint64, *PageFault) {
	if satpMode(satp) == 0 || priv == cpu.PrivMachine {
		return va, nil
	}

	tlb := m.DTLB
	if kind == AccessFetch {
		tlb = m.ITLB
	}

	asid := satpASID(satp)
	vpn := va >> pageShift

	if e, ok := tlb.Lookup(vpn, asid); ok {
		if !checkPermission(e.Flags, kind, priv, status) {
			return 0, &PageFault{Kind: kind, VAddr: va}
		}
		pageOff := va & (pageSizeFor(e.PageSize) - 1)
		return e.PPN<<pageShift + pageOff, nil
	}

	pa, entry, err := m.Walker.Walk(satp, va, kind, priv, status)
	if err != nil {
		return 0, err
	}
	tlb.Install(vpn, asid, entry)
	return pa, nil
}

// SFENCEVMA flushes TLB entries per the standard rs1/rs2 semantics: both
// zero flushes everything, otherwise flush matches by VA and/or ASID.
func (m *MMU) SFENCEVMA(hasVA bool, va uint64, hasASID bool, asid uint32) {
	m.ITLB.Flush(hasVA, va, hasASID, asid)
	m.DTLB.Flush(hasVA, va, hasASID, asid)
}

func satpMode(satp uint64) uint64 { return satp >> 60 & 0xf }
func satpASID(satp uint64) uint32 { return uint32(satp >> 44 & 0xffff) }
func satpPPN(satp uint64) uint64  { return satp & (1<<44 - 1) }

func pageSizeFor(level int) uint64 {
	switch level {
	case 2:
		return 1 << 30 // 1G
	case 1:
		return 1 << 21 // 2M
	default:
		return 1 << 12 // 4K
	}
}

func checkPermission(flags uint8, kind AccessKind, priv cpu.Privilege, status uint64) bool {
	switch kind {
	case AccessFetch:
		if flags&pteX == 0 {
			return false
		}
	case AccessLoad:
		canRead := flags&pteR != 0 || (flags&pteX != 0 && status&statusMXR != 0)
		if !canRead {
			return false
		}
	case AccessStore:
		if flags&pteW == 0 {
			return false
		}
	}
	if flags&pteU != 0 {
		if priv == cpu.PrivSupervisor && status&statusSUM == 0 {
			return false
		}
	} else if priv == cpu.PrivUser {
		return false
	}
	return true
}
