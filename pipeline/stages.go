package pipeline

import (
	"github.com/rv64sim/rv64sim/bpu"
	"github.com/rv64sim/rv64sim/cpu"
	"github.com/rv64sim/rv64sim/isa"
	"github.com/rv64sim/rv64sim/memsys/cache"
	"github.com/rv64sim/rv64sim/memsys/mmu"
	"github.com/rv64sim/rv64sim/soc"
)

func destOf(d isa.Decoded) uint8 { return d.Rd }

func destIsFP(d isa.Decoded) bool {
	switch d.Class {
	case isa.ClassFPLoad, isa.ClassFPArith, isa.ClassFPFMA, isa.ClassFPDivSqrt:
		return d.Ctrl.WBSource != isa.WBAlu
	default:
		return false
	}
}

func writesReg(d isa.Decoded) bool {
	if !d.Legal {
		return false
	}
	switch d.Class {
	case isa.ClassALU, isa.ClassLoad, isa.ClassJump, isa.ClassFPLoad,
		isa.ClassFPArith, isa.ClassFPFMA, isa.ClassFPDivSqrt,
		isa.ClassAMO, isa.ClassLR, isa.ClassSC:
		return destOf(d) != 0 || destIsFP(d)
	case isa.ClassSystem:
		switch d.Op {
		case isa.OpCSRRW, isa.OpCSRRS, isa.OpCSRRC, isa.OpCSRRWI, isa.OpCSRRSI, isa.OpCSRRCI:
			return destOf(d) != 0
		default:
			return false
		}
	default:
		return false
	}
}

func isLoad(d isa.Decoded) bool {
	switch d.Class {
	case isa.ClassLoad, isa.ClassFPLoad, isa.ClassLR, isa.ClassAMO:
		return true
	default:
		return false
	}
}

func isCSR(d isa.Decoded) bool {
	switch d.Op {
	case isa.OpCSRRW, isa.OpCSRRS, isa.OpCSRRC, isa.OpCSRRWI, isa.OpCSRRSI, isa.OpCSRRCI:
		return true
	default:
		return false
	}
}

func operandUseOf(d isa.Decoded) operandUse {
	u := operandUse{Rs1: d.Rs1, Rs2: d.Rs2, Rs3: d.Rs3}
	switch d.Op {
	case isa.OpLUI, isa.OpAUIPC, isa.OpJAL, isa.OpECALL, isa.OpEBREAK,
		isa.OpMRET, isa.OpSRET, isa.OpWFI, isa.OpFENCE, isa.OpFENCEI,
		isa.OpCSRRWI, isa.OpCSRRSI, isa.OpCSRRCI:
	default:
		u.UsesRs1 = true
	}
	if d.Class == isa.ClassALU && !d.Ctrl.ImmOp {
		u.UsesRs2 = true
	}
	switch d.Class {
	case isa.ClassStore, isa.ClassFPStore, isa.ClassBranch, isa.ClassAMO, isa.ClassSC:
		u.UsesRs2 = true
	}
	if d.Op == isa.OpSFENCEVMA {
		u.UsesRs2 = true
	}
	if d.Class == isa.ClassFPArith || d.Class == isa.ClassFPFMA || d.Class == isa.ClassFPDivSqrt {
		u.UsesRs2 = d.Op != isa.OpFSQRT && d.Op != isa.OpFCVT && d.Op != isa.OpFCLASS
	}
	if d.Class == isa.ClassFPFMA {
		u.UsesRs3 = true
	}
	return u
}

// FetchStage reads the next instruction word, consulting the BPU/BTB for
// the predicted direction and target and translating through the I-TLB.
type FetchStage struct {
	icache *cache.Cache
	mmu    *mmu.MMU
	bpu    bpu.Predictor
	btb    *bpu.BTB
}

// NewFetchStage returns a fetch stage backed by an instruction cache, the
// shared MMU, and the branch predictor/BTB pair.
func NewFetchStage(icache *cache.Cache, m *mmu.MMU, predictor bpu.Predictor, btb *bpu.BTB) *FetchStage {
	return &FetchStage{icache: icache, mmu: m, bpu: predictor, btb: btb}
}

// FetchResult is what one fetch attempt produces.
type FetchResult struct {
	Raw        uint32
	Compressed bool
	PredTaken  bool
	PredTarget uint64
	Trap       Trap
	Stalled    bool
	Latency    uint64
}

// Fetch attempts to read the instruction word at pc.
func (s *FetchStage) Fetch(pc uint64, satp uint64, priv cpu.Privilege, status uint64) FetchResult {
	var r FetchResult

	paddr, pf := s.mmu.Translate(satp, pc, mmu.AccessFetch, priv, status)
	if pf != nil {
		r.Trap = Trap{Valid: true, Cause: cpu.CauseInstPageFault, TVal: pc}
		return r
	}

	half := s.icache.Read(paddr, 2)
	if !half.Hit {
		r.Stalled = half.Latency > 0
		r.Latency = half.Latency
	}
	lo := uint16(half.Data)
	compressed := lo&0x3 != 3

	var raw uint32
	if compressed {
		expanded, ok := isa.ExpandCompressed(lo)
		if !ok {
			r.Raw, r.Compressed = uint32(lo), true
			return withPrediction(r, s, pc, true)
		}
		raw = expanded
	} else {
		full := s.icache.Read(paddr, 4)
		if !full.Hit && full.Latency > r.Latency {
			r.Latency = full.Latency
		}
		raw = uint32(full.Data)
	}
	r.Raw, r.Compressed = raw, compressed
	return withPrediction(r, s, pc, compressed)
}

func withPrediction(r FetchResult, s *FetchStage, pc uint64, compressed bool) FetchResult {
	r.PredTaken = s.bpu.Predict(pc)
	if target, _, ok := s.btb.Lookup(pc); ok {
		r.PredTarget = target
	} else {
		size := uint64(4)
		if compressed {
			size = 2
		}
		r.PredTarget = pc + size
	}
	return r
}

// DecodeStage decodes the fetched word and reads its source registers.
type DecodeStage struct {
	regFile   *cpu.RegFile
	fpRegFile *cpu.FPRegFile
	ras       *bpu.RAS
}

// NewDecodeStage returns a decode stage reading from the given register
// files and training the return-address stack on calls/returns.
func NewDecodeStage(regFile *cpu.RegFile, fpRegFile *cpu.FPRegFile, ras *bpu.RAS) *DecodeStage {
	return &DecodeStage{regFile: regFile, fpRegFile: fpRegFile, ras: ras}
}

// Decode decodes word and reads the registers it uses.
func (s *DecodeStage) Decode(pc uint64, word uint32, compressed bool) (isa.Decoded, uint64, uint64, uint64) {
	d := isa.Decode(pc, word, compressed)

	var rv1, rv2, rv3 uint64
	u := operandUseOf(d)
	fpSrc := isFPSourceClass(d)
	if u.UsesRs1 {
		if fpSrc && d.Class != isa.ClassFPStore {
			rv1 = s.readFP(d.Rs1, d.Ctrl.FPDouble)
		} else {
			rv1 = s.regFile.Read(d.Rs1)
		}
	}
	if u.UsesRs2 {
		if fpSrc {
			rv2 = s.readFP(d.Rs2, d.Ctrl.FPDouble)
		} else {
			rv2 = s.regFile.Read(d.Rs2)
		}
	}
	if u.UsesRs3 {
		rv3 = s.readFP(d.Rs3, d.Ctrl.FPDouble)
	}

	switch d.Ctrl.Branch {
	case isa.BranchCall:
		s.ras.Push(pc + uint64(d.Size))
	case isa.BranchReturn:
		s.ras.Pop()
	}

	return d, rv1, rv2, rv3
}

func (s *DecodeStage) readFP(r uint8, double bool) uint64 {
	if double {
		return s.fpRegFile.ReadDouble(r)
	}
	return uint64(s.fpRegFile.ReadSingle(r))
}

// isFPSourceClass reports whether rs1/rs2 of d name floating-point
// registers rather than integer ones. True for every FP-class
// instruction except the two conversions that cross register files in
// the int-bound direction: FCVT.{S,D}.{W,WU,L,LU} and FMV.{W,D}.X. For
// FP stores only rs2 is a floating-point register; rs1 is the integer
// base address, and Decode reads it from the integer file.
func isFPSourceClass(d isa.Decoded) bool {
	switch d.Class {
	case isa.ClassFPStore:
		return true
	case isa.ClassFPArith, isa.ClassFPFMA, isa.ClassFPDivSqrt:
		switch d.Op {
		case isa.OpFCVT:
			return d.Ctrl.Funct7>>2 != 0x1a
		case isa.OpFMV:
			return d.Ctrl.WBSource == isa.WBAlu
		default:
			return true
		}
	default:
		return false
	}
}

// ExecuteStage dispatches to the ALU, multiplier/divider, FPU, and AMO
// unit, and resolves branch outcomes against the prediction.
type ExecuteStage struct {
	alu *cpu.ALU
	fpu *cpu.FPU
	amo *cpu.AMOUnit
	csr *cpu.CSRFile
}

// NewExecuteStage returns an execute stage sharing the pipeline's
// functional units and CSR bank.
func NewExecuteStage(alu *cpu.ALU, fpu *cpu.FPU, amo *cpu.AMOUnit, csr *cpu.CSRFile) *ExecuteStage {
	return &ExecuteStage{alu: alu, fpu: fpu, amo: amo, csr: csr}
}

// ExecuteResult carries everything the memory stage and the pipeline's
// own branch-resolution logic need.
type ExecuteResult struct {
	ALUResult    uint64
	MemAddr      uint64
	StoreData    uint64
	BranchTaken  bool
	BranchTarget uint64
	Trap         Trap
	RedirectPriv  bool // MRET/SRET/trap changed privilege+PC outside normal branch resolution
	Flush         bool // FENCE.I / SFENCE.VMA: flush the front end
	SFENCEVMA     bool
	SFENCEHasVA   bool // rs1 != x0: restrict the flush to SFENCEVA
	SFENCEVA      uint64
	SFENCEHasASID bool // rs2 != x0: restrict the flush to SFENCEASID
	SFENCEASID    uint32
}

// Execute performs the ALU/FPU/branch/AMO computation for the
// instruction in ID/EX, using already-forwarded operand values.
func (s *ExecuteStage) Execute(idex *IDEXRegister, rv1, rv2, rv3 uint64) ExecuteResult {
	var r ExecuteResult
	d := idex.Decoded

	if !d.Legal {
		r.Trap = Trap{Valid: true, Cause: cpu.CauseIllegalInstruction, TVal: uint64(d.Raw)}
		return r
	}

	switch d.Class {
	case isa.ClassALU:
		op2 := rv2
		if d.Ctrl.ImmOp {
			op2 = uint64(d.Imm)
		}
		r.ALUResult = s.alu.Exec(d.Op, d.Ctrl.Is32, rv1, op2)
		if d.Op == isa.OpAUIPC {
			r.ALUResult = idex.PC + uint64(d.Imm)
		}

	case isa.ClassLoad, isa.ClassFPLoad:
		r.MemAddr = rv1 + uint64(d.Imm)

	case isa.ClassStore, isa.ClassFPStore:
		r.MemAddr = rv1 + uint64(d.Imm)
		r.StoreData = rv2

	case isa.ClassAMO, isa.ClassLR, isa.ClassSC:
		r.MemAddr = rv1
		r.StoreData = rv2

	case isa.ClassBranch:
		taken := evalBranchCond(d.Op, rv1, rv2)
		target := uint64(int64(idex.PC) + d.Imm)
		if taken && target&1 != 0 {
			r.Trap = Trap{Valid: true, Cause: cpu.CauseInstAddrMisaligned, TVal: target}
			return r
		}
		r.BranchTaken, r.BranchTarget = taken, target

	case isa.ClassJump:
		r.ALUResult = idex.PC + uint64(d.Size)
		r.BranchTaken = true
		if d.Op == isa.OpJALR {
			r.BranchTarget = (rv1 + uint64(d.Imm)) &^ 1
		} else {
			r.BranchTarget = uint64(int64(idex.PC) + d.Imm)
		}
		if r.BranchTarget&1 != 0 {
			r.Trap = Trap{Valid: true, Cause: cpu.CauseInstAddrMisaligned, TVal: r.BranchTarget}
		}

	case isa.ClassFPArith, isa.ClassFPFMA, isa.ClassFPDivSqrt:
		r.ALUResult = s.execFP(d, rv1, rv2, rv3)

	case isa.ClassFence:
		if d.Op == isa.OpFENCEI {
			r.Flush = true
		}

	case isa.ClassSystem:
		s.execSystem(d, idex.PC, rv1, rv2, &r)
	}

	return r
}

func evalBranchCond(op isa.Op, a, b uint64) bool {
	switch op {
	case isa.OpBEQ:
		return a == b
	case isa.OpBNE:
		return a != b
	case isa.OpBLT:
		return int64(a) < int64(b)
	case isa.OpBGE:
		return int64(a) >= int64(b)
	case isa.OpBLTU:
		return a < b
	case isa.OpBGEU:
		return a >= b
	default:
		return false
	}
}

func (s *ExecuteStage) execFP(d isa.Decoded, rv1, rv2, rv3 uint64) uint64 {
	switch d.Op {
	case isa.OpFCMP:
		return s.fpu.Compare(d.Ctrl.Funct3, d.Ctrl.FPDouble, rv1, rv2)
	case isa.OpFCLASS:
		return s.fpu.Classify(d.Ctrl.FPDouble, rv1)
	case isa.OpFCVT:
		return s.execFCVT(d, rv1)
	case isa.OpFMV:
		if d.Ctrl.WBSource == isa.WBAlu {
			if d.Ctrl.FPDouble {
				return rv1
			}
			return uint64(uint32(rv1))
		}
		return rv1
	default:
		if d.Ctrl.FPDouble {
			return s.fpu.ExecDouble(d.Op, rv1, rv2, rv3)
		}
		return uint64(s.fpu.ExecSingle(d.Op, uint32(rv1), uint32(rv2), uint32(rv3)))
	}
}

// execFCVT dispatches FCVT.{W,WU,L,LU}.{S,D}, FCVT.{S,D}.{W,WU,L,LU}, and
// FCVT.S.D/FCVT.D.S. The funct7 family (top 5 bits) tells int conversions
// apart from the S<->D format conversion; within an int conversion, rs2's
// standard encoding (0=W,1=WU,2=L,3=LU) selects width/sign.
func (s *ExecuteStage) execFCVT(d isa.Decoded, rv1 uint64) uint64 {
	switch d.Ctrl.Funct7 >> 2 {
	case 0x08:
		return s.fpu.ConvertFormat(d.Ctrl.FPDouble, rv1)
	case 0x18:
		unsigned, is32 := d.Rs2 == 1 || d.Rs2 == 3, d.Rs2 == 0 || d.Rs2 == 1
		return s.fpu.ConvertToInt(d.Ctrl.FPDouble, unsigned, is32, rv1)
	default: // 0x1a: int to float
		unsigned, is32 := d.Rs2 == 1 || d.Rs2 == 3, d.Rs2 == 0 || d.Rs2 == 1
		return s.fpu.ConvertFromInt(d.Ctrl.FPDouble, unsigned, is32, rv1)
	}
}

func (s *ExecuteStage) execSystem(d isa.Decoded, pc, rv1, rv2 uint64, r *ExecuteResult) {
	switch d.Op {
	case isa.OpECALL:
		cause := uint64(cpu.CauseEcallFromU)
		switch s.csr.Priv {
		case cpu.PrivSupervisor:
			cause = cpu.CauseEcallFromS
		case cpu.PrivMachine:
			cause = cpu.CauseEcallFromM
		}
		r.Trap = Trap{Valid: true, Cause: cause}
	case isa.OpEBREAK:
		r.Trap = Trap{Valid: true, Cause: cpu.CauseBreakpoint, TVal: pc}
	case isa.OpMRET:
		r.BranchTaken, r.RedirectPriv = true, true
		r.BranchTarget = mret(s.csr)
	case isa.OpSRET:
		r.BranchTaken, r.RedirectPriv = true, true
		r.BranchTarget = sret(s.csr)
	case isa.OpWFI:
		// modeled as a no-op: the next interrupt check still happens at
		// the usual writeback boundary.
	case isa.OpSFENCEVMA:
		r.Flush, r.SFENCEVMA = true, true
		r.SFENCEHasVA, r.SFENCEVA = d.Rs1 != 0, rv1
		r.SFENCEHasASID, r.SFENCEASID = d.Rs2 != 0, uint32(rv2)
	case isa.OpCSRRW, isa.OpCSRRS, isa.OpCSRRC, isa.OpCSRRWI, isa.OpCSRRSI, isa.OpCSRRCI:
		old := s.csr.Read(d.Ctrl.CSR)
		operand := rv1
		if d.Op == isa.OpCSRRWI || d.Op == isa.OpCSRRSI || d.Op == isa.OpCSRRCI {
			operand = uint64(d.Imm)
		}
		var next uint64
		writes := true
		switch d.Op {
		case isa.OpCSRRW, isa.OpCSRRWI:
			next = operand
		case isa.OpCSRRS, isa.OpCSRRSI:
			next = old | operand
			writes = operand != 0 || d.Rs1 != 0
		case isa.OpCSRRC, isa.OpCSRRCI:
			next = old &^ operand
			writes = operand != 0 || d.Rs1 != 0
		}
		if writes {
			s.csr.Write(d.Ctrl.CSR, next)
		}
		r.ALUResult = old
	}
}

// MemoryStage performs the address-translated D-cache access (or a
// direct, uncached MMIO bus access for device addresses) for loads,
// stores, and atomics.
type MemoryStage struct {
	dcache *cache.Cache
	mmu    *mmu.MMU
	bus    *soc.Bus
	amo    *cpu.AMOUnit

	reservedValid bool
	reservedAddr  uint64
}

// NewMemoryStage returns a memory stage backed by a data cache for RAM
// addresses and the bus for MMIO addresses.
func NewMemoryStage(dcache *cache.Cache, m *mmu.MMU, bus *soc.Bus, amo *cpu.AMOUnit) *MemoryStage {
	return &MemoryStage{dcache: dcache, mmu: m, bus: bus, amo: amo}
}

// MemoryResult carries the loaded value (if any) and the access latency
// the pipeline must stall for.
type MemoryResult struct {
	Data    uint64
	Trap    Trap
	Latency uint64
}

// Access performs the EX/MEM instruction's memory operation.
func (s *MemoryStage) Access(exmem *EXMEMRegister, satp uint64, priv cpu.Privilege, status uint64) MemoryResult {
	d := exmem.Decoded
	var r MemoryResult

	switch d.Class {
	case isa.ClassLoad, isa.ClassFPLoad:
		kind := mmu.AccessLoad
		paddr, pf := s.mmu.Translate(satp, exmem.MemAddr, kind, priv, status)
		if pf != nil {
			cause := uint64(cpu.CauseLoadPageFault)
			r.Trap = Trap{Valid: true, Cause: cause, TVal: exmem.MemAddr}
			return r
		}
		result := s.access(paddr, int(d.Ctrl.MemWidth), false, 0)
		r.Latency = result.Latency
		if d.Class == isa.ClassFPLoad {
			r.Data = boxFPLoad(result.Data, d.Ctrl.FPDouble)
		} else {
			r.Data = extendLoad(result.Data, d.Ctrl.MemWidth, d.Ctrl.MemSigned)
		}

	case isa.ClassStore, isa.ClassFPStore:
		paddr, pf := s.mmu.Translate(satp, exmem.MemAddr, mmu.AccessStore, priv, status)
		if pf != nil {
			r.Trap = Trap{Valid: true, Cause: cpu.CauseStorePageFault, TVal: exmem.MemAddr}
			return r
		}
		result := s.access(paddr, int(d.Ctrl.MemWidth), true, exmem.StoreData)
		r.Latency = result.Latency
		if s.reservedValid && s.reservedAddr == paddr {
			s.reservedValid = false
		}

	case isa.ClassLR:
		paddr, pf := s.mmu.Translate(satp, exmem.MemAddr, mmu.AccessLoad, priv, status)
		if pf != nil {
			r.Trap = Trap{Valid: true, Cause: cpu.CauseLoadPageFault, TVal: exmem.MemAddr}
			return r
		}
		result := s.access(paddr, int(d.Ctrl.MemWidth), false, 0)
		r.Latency = result.Latency
		r.Data = extendLoad(result.Data, d.Ctrl.MemWidth, true)
		s.reservedValid, s.reservedAddr = true, paddr

	case isa.ClassSC:
		paddr, pf := s.mmu.Translate(satp, exmem.MemAddr, mmu.AccessStore, priv, status)
		if pf != nil {
			r.Trap = Trap{Valid: true, Cause: cpu.CauseStorePageFault, TVal: exmem.MemAddr}
			return r
		}
		if s.reservedValid && s.reservedAddr == paddr {
			result := s.access(paddr, int(d.Ctrl.MemWidth), true, exmem.StoreData)
			r.Latency = result.Latency
			r.Data = 0
		} else {
			r.Data = 1
		}
		s.reservedValid = false

	case isa.ClassAMO:
		paddr, pf := s.mmu.Translate(satp, exmem.MemAddr, mmu.AccessLoad, priv, status)
		if pf != nil {
			r.Trap = Trap{Valid: true, Cause: cpu.CauseLoadPageFault, TVal: exmem.MemAddr}
			return r
		}
		readResult := s.access(paddr, int(d.Ctrl.MemWidth), false, 0)
		old := extendLoad(readResult.Data, d.Ctrl.MemWidth, true)
		newVal := s.amo.Compute(d.Op, d.Ctrl.MemWidth, old, exmem.StoreData)
		writeResult := s.access(paddr, int(d.Ctrl.MemWidth), true, newVal)
		r.Latency = readResult.Latency + writeResult.Latency
		r.Data = old
	}

	return r
}

// access routes a physical address to the MMIO bus if any registered
// device claims it, falling back to the cached-DRAM path otherwise.
func (s *MemoryStage) access(paddr uint64, size int, isWrite bool, data uint64) cache.AccessResult {
	if isWrite {
		if err := s.bus.Write(paddr, size, data); err == nil {
			return cache.AccessResult{Hit: true, Latency: 1}
		}
		return s.dcache.Write(paddr, size, data)
	}
	if v, err := s.bus.Read(paddr, size); err == nil {
		return cache.AccessResult{Hit: true, Latency: 1, Data: v}
	}
	return s.dcache.Read(paddr, size)
}

// boxFPLoad prepares a loaded floating-point value for the FP register
// file: a single-precision load must be NaN-boxed (upper 32 bits set)
// before landing in a 64-bit FP register slot; a double-precision load
// already fills the full width.
func boxFPLoad(v uint64, double bool) uint64 {
	if double {
		return v
	}
	return 0xffffffff00000000 | uint64(uint32(v))
}

func extendLoad(v uint64, width uint8, signed bool) uint64 {
	if !signed {
		switch width {
		case 1:
			return uint64(uint8(v))
		case 2:
			return uint64(uint16(v))
		case 4:
			return uint64(uint32(v))
		default:
			return v
		}
	}
	switch width {
	case 1:
		return uint64(int64(int8(v)))
	case 2:
		return uint64(int64(int16(v)))
	case 4:
		return uint64(int64(int32(v)))
	default:
		return v
	}
}

// WritebackStage commits the final result to the architectural register
// file (integer or FP) and delivers any carried trap.
type WritebackStage struct {
	regFile   *cpu.RegFile
	fpRegFile *cpu.FPRegFile
	csr       *cpu.CSRFile
}

// NewWritebackStage returns a writeback stage targeting the given
// register files and CSR bank.
func NewWritebackStage(regFile *cpu.RegFile, fpRegFile *cpu.FPRegFile, csr *cpu.CSRFile) *WritebackStage {
	return &WritebackStage{regFile: regFile, fpRegFile: fpRegFile, csr: csr}
}

// Writeback commits memwb's result, or delivers its trap.
func (s *WritebackStage) Writeback(memwb *MEMWBRegister) (trapTaken bool, newPC uint64) {
	if !memwb.Valid {
		return false, 0
	}

	if memwb.Trap.Valid {
		newPC = deliverTrap(s.csr, memwb.Trap.Cause, memwb.Trap.TVal, memwb.PC)
		return true, newPC
	}

	if !writesReg(memwb.Decoded) {
		return false, 0
	}
	if memwb.DestFP {
		if memwb.Decoded.Ctrl.FPDouble {
			s.fpRegFile.WriteDouble(memwb.Dest, memwb.WBValue)
		} else {
			s.fpRegFile.WriteSingle(memwb.Dest, uint32(memwb.WBValue))
		}
	} else {
		s.regFile.Write(memwb.Dest, memwb.WBValue)
	}
	return false, 0
}
