package mmu

// Entry is a resolved translation cached in a TLB.
type Entry struct {
	VPN      uint64
	ASID     uint32
	PPN      uint64
	Flags    uint8
	PageSize int // 0=4K, 1=2M, 2=1G, matching the walker's terminating level
	Valid    bool
	Global   bool
}

// TLB is a fully-associative translation cache evicted LRU, sized by the
// number of entries configured for the owning MMU.
type TLB struct {
	entries []Entry
	recency []uint64
	clock   uint64
}

// NewTLB returns an empty TLB with the given entry count.
func NewTLB(n int) *TLB {
	return &TLB{entries: make([]Entry, n), recency: make([]uint64, n)}
}

// Lookup finds a valid entry matching vpn and asid (global entries match
// any asid), touching it for recency.
func (t *TLB) Lookup(vpn uint64, asid uint32) (Entry, bool) {
	for i, e := range t.entries {
		if !e.Valid {
			continue
		}
		coveredVPN := vpn &^ (pageSizeVPNMask(e.PageSize))
		entryVPN := e.VPN &^ (pageSizeVPNMask(e.PageSize))
		if coveredVPN == entryVPN && (e.Global || e.ASID == asid) {
			t.clock++
			t.recency[i] = t.clock
			return e, true
		}
	}
	return Entry{}, false
}

// pageSizeVPNMask returns the bits of VPN covered by a superpage offset
// at the given terminating level, so lookups ignore the lower VPN
// segments a superpage entry does not constrain.
func pageSizeVPNMask(level int) uint64 {
	switch level {
	case 2:
		return 1<<(2*vpnBits) - 1
	case 1:
		return 1<<vpnBits - 1
	default:
		return 0
	}
}

// Install inserts e (keyed by vpn/asid) into the TLB, evicting the
// least-recently-used slot if full.
func (t *TLB) Install(vpn uint64, asid uint32, e Entry) {
	e.VPN, e.ASID, e.Valid = vpn, asid, true

	for i, ex := range t.entries {
		if !ex.Valid {
			t.entries[i] = e
			t.clock++
			t.recency[i] = t.clock
			return
		}
	}

	victim := 0
	oldest := t.recency[0]
	for i, r := range t.recency {
		if r < oldest {
			oldest, victim = r, i
		}
	}
	t.entries[victim] = e
	t.clock++
	t.recency[victim] = t.clock
}

// Flush clears entries matching the given VA/ASID filters, per
// SFENCE.VMA semantics: no filters clears everything.
func (t *TLB) Flush(hasVA bool, va uint64, hasASID bool, asid uint32) {
	vpn := va >> pageShift
	for i := range t.entries {
		e := &t.entries[i]
		if !e.Valid {
			continue
		}
		if hasVA {
			mask := pageSizeVPNMask(e.PageSize)
			if vpn&^mask != e.VPN&^mask {
				continue
			}
		}
		if hasASID && !e.Global && e.ASID != asid {
			continue
		}
		e.Valid = false
	}
}
