package pipeline

// HazardUnit detects data hazards and computes the forwarding and
// stalling decisions the pipeline applies each cycle.
type HazardUnit struct{}

// NewHazardUnit returns a hazard detection unit; it carries no state of
// its own, matching every latch it inspects being passed in explicitly.
func NewHazardUnit() *HazardUnit { return &HazardUnit{} }

// ForwardingSource names where a forwarded operand comes from.
type ForwardingSource uint8

const (
	ForwardNone ForwardingSource = iota
	ForwardFromEXMEM
	ForwardFromMEMWB
)

// ForwardingResult carries the forwarding decision for each ID/EX source
// operand (rv1, rv2; rv3 is only ever an FP register and uses the same
// rules against the FP destination).
type ForwardingResult struct {
	ForwardRs1 ForwardingSource
	ForwardRs2 ForwardingSource
	ForwardRs3 ForwardingSource
}

// DetectForwarding resolves RAW hazards between the instruction in ID/EX
// and the two newer results sitting in EX/MEM and MEM/WB. EX/MEM has
// priority since it is the more recent result.
func (h *HazardUnit) DetectForwarding(idex *IDEXRegister, exmem *EXMEMRegister, memwb *MEMWBRegister) ForwardingResult {
	var result ForwardingResult
	if !idex.Valid {
		return result
	}

	d := idex.Decoded
	result.ForwardRs1 = h.sourceFor(d.Rs1, false, exmem, memwb)
	result.ForwardRs2 = h.sourceFor(d.Rs2, false, exmem, memwb)
	result.ForwardRs3 = h.sourceFor(d.Rs3, true, exmem, memwb)
	return result
}

func (h *HazardUnit) sourceFor(reg uint8, fp bool, exmem *EXMEMRegister, memwb *MEMWBRegister) ForwardingSource {
	if !fp && reg == 0 {
		return ForwardNone
	}
	if exmem.Valid && exmem.Decoded.Legal && destOf(exmem.Decoded) == reg && destIsFP(exmem.Decoded) == fp && writesReg(exmem.Decoded) && !exmem.Trap.Valid {
		return ForwardFromEXMEM
	}
	if memwb.Valid && memwb.Decoded.Legal && destOf(memwb.Decoded) == reg && destIsFP(memwb.Decoded) == fp && writesReg(memwb.Decoded) && !memwb.Trap.Valid {
		return ForwardFromMEMWB
	}
	return ForwardNone
}

// GetForwardedValue resolves a forwarding decision into a concrete value.
// EX/MEM never holds a ready load value (it has not been through memory
// yet), so forwarding from EX/MEM always uses the ALU/FPU result.
func (h *HazardUnit) GetForwardedValue(source ForwardingSource, original uint64, exmem *EXMEMRegister, memwb *MEMWBRegister) uint64 {
	switch source {
	case ForwardFromEXMEM:
		return exmem.WBValue
	case ForwardFromMEMWB:
		return memwb.WBValue
	default:
		return original
	}
}

// operandUse describes which source-operand slots a not-yet-latched
// decoded instruction actually reads, so load-use detection does not
// false-positive on, say, an immediate that happens to equal a pending
// load's destination register number.
type operandUse struct {
	Rs1, Rs2, Rs3             uint8
	UsesRs1, UsesRs2, UsesRs3 bool
}

// DetectLoadUseHazard reports whether the instruction about to enter
// ID/EX needs a register still only available from a load sitting in
// ID/EX (one cycle away from producing its MEM result). Forwarding
// cannot resolve this; the consumer must stall one cycle.
func (h *HazardUnit) DetectLoadUseHazard(idex *IDEXRegister, use operandUse) bool {
	if !idex.Valid || !isLoad(idex.Decoded) {
		return false
	}
	rd := idex.Decoded.Rd
	if rd == 0 {
		return false
	}
	if use.UsesRs1 && use.Rs1 == rd {
		return true
	}
	if use.UsesRs2 && use.Rs2 == rd {
		return true
	}
	if use.UsesRs3 && use.Rs3 == rd {
		return true
	}
	return false
}

// StallResult indicates what pipeline actions are needed this cycle.
type StallResult struct {
	StallIF        bool
	StallID        bool
	InsertBubbleEX bool
}

// ComputeStalls turns the hazard signals observed this cycle into a
// concrete stall decision. Branch-driven flushing is handled separately
// in Pipeline.Tick since it also redirects the PC.
func (h *HazardUnit) ComputeStalls(loadUseHazard, csrBarrier bool) StallResult {
	var r StallResult
	if loadUseHazard || csrBarrier {
		r.StallIF = true
		r.StallID = true
	}
	if loadUseHazard {
		r.InsertBubbleEX = true
	}
	return r
}
