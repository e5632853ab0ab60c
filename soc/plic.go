package soc

// maxPLICSources bounds the number of interrupt sources tracked; the
// simulated SoC's devices (UART, VirtIO block) comfortably fit within a
// single 32-bit bitmap.
const maxPLICSources = 32

// PLIC is a minimal platform-level interrupt controller: per-source
// pending/enable/priority state plus a claim/complete register pair.
type PLIC struct {
	base      uint64
	pending   uint32
	enable    uint32
	priority  [maxPLICSources]uint32
	threshold uint32
	claimed   uint32 // source currently claimed and not yet completed
}

// NewPLIC returns a PLIC mapped at base.
func NewPLIC(base uint64) *PLIC { return &PLIC{base: base} }

func (p *PLIC) Base() uint64 { return p.base }
func (p *PLIC) Size() uint64 { return 0x400000 }

const (
	plicPriorityBase = 0x0
	plicPendingBase  = 0x1000
	plicEnableBase   = 0x2000
	plicThreshold    = 0x200000
	plicClaim        = 0x200004
)

// Read returns the register at offset.
func (p *PLIC) Read(offset uint64, width int) uint64 {
	switch {
	case offset < plicPendingBase:
		src := offset / 4
		if src < maxPLICSources {
			return uint64(p.priority[src])
		}
	case offset == plicPendingBase:
		return uint64(p.pending)
	case offset == plicEnableBase:
		return uint64(p.enable)
	case offset == plicThreshold:
		return uint64(p.threshold)
	case offset == plicClaim:
		return uint64(p.claim())
	}
	return 0
}

// Write stores value into the register at offset.
func (p *PLIC) Write(offset uint64, width int, value uint64) {
	switch {
	case offset < plicPendingBase:
		src := offset / 4
		if src < maxPLICSources {
			p.priority[src] = uint32(value)
		}
	case offset == plicEnableBase:
		p.enable = uint32(value)
	case offset == plicThreshold:
		p.threshold = uint32(value)
	case offset == plicClaim:
		p.complete(uint32(value))
	}
}

// SetPending asserts or clears the pending bit for source (1-indexed,
// per the RISC-V PLIC convention where source 0 means "no interrupt").
func (p *PLIC) SetPending(source uint32, pending bool) {
	if source == 0 || source >= maxPLICSources {
		return
	}
	if pending {
		p.pending |= 1 << source
	} else {
		p.pending &^= 1 << source
	}
}

func (p *PLIC) claim() uint32 {
	if p.claimed != 0 {
		return 0
	}
	best := uint32(0)
	bestPrio := uint32(0)
	for src := uint32(1); src < maxPLICSources; src++ {
		if p.pending&(1<<src) == 0 || p.enable&(1<<src) == 0 {
			continue
		}
		if p.priority[src] <= p.threshold {
			continue
		}
		if p.priority[src] > bestPrio {
			bestPrio, best = p.priority[src], src
		}
	}
	if best != 0 {
		p.pending &^= 1 << best
		p.claimed = best
	}
	return best
}

func (p *PLIC) complete(source uint32) {
	if p.claimed == source {
		p.claimed = 0
	}
}

// Tick reports whether any enabled source above threshold is pending.
func (p *PLIC) Tick() bool {
	return p.asserted()
}

func (p *PLIC) asserted() bool {
	for src := uint32(1); src < maxPLICSources; src++ {
		if p.pending&(1<<src) != 0 && p.enable&(1<<src) != 0 && p.priority[src] > p.threshold {
			return true
		}
	}
	return false
}

// PendingBitmap returns the raw pending bitmap for the bus to surface to
// the pipeline.
func (p *PLIC) PendingBitmap() uint32 { return p.pending }
