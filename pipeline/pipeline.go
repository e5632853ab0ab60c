package pipeline

import (
	"github.com/rv64sim/rv64sim/bpu"
	"github.com/rv64sim/rv64sim/cpu"
	"github.com/rv64sim/rv64sim/isa"
	"github.com/rv64sim/rv64sim/memsys/cache"
	"github.com/rv64sim/rv64sim/memsys/mmu"
	"github.com/rv64sim/rv64sim/soc"
	"github.com/rv64sim/rv64sim/stats"
)

// Pipeline is the 5-stage in-order RV64GC core: fetch, decode, execute,
// memory, writeback, connected by four latches and driven by a single
// Tick per simulated cycle. Only one instruction ever retires per
// cycle; the architecture carries no superscalar issue width.
type Pipeline struct {
	fetchStage     *FetchStage
	decodeStage    *DecodeStage
	executeStage   *ExecuteStage
	memoryStage    *MemoryStage
	writebackStage *WritebackStage

	ifid  IFIDRegister
	idex  IDEXRegister
	exmem EXMEMRegister
	memwb MEMWBRegister

	nextIfid  IFIDRegister
	nextIdex  IDEXRegister
	nextExmem EXMEMRegister
	nextMemwb MEMWBRegister

	hazardUnit *HazardUnit

	regFile   *cpu.RegFile
	fpRegFile *cpu.FPRegFile
	csr       *cpu.CSRFile
	bus       *soc.Bus
	pc        uint64
	fetchSize uint64

	// csrInFlight serializes CSR instructions: one must retire (clear
	// at writeback) before the next is allowed past decode, since CSR
	// side effects can change privilege, enable bits, or satp under
	// instructions that are concurrently being fetched/decoded.
	csrInFlight bool

	// memStallRemaining counts additional cycles a multi-cycle cache
	// miss still owes before the in-flight memory access's result is
	// allowed to land in MEM/WB.
	memStallRemaining uint64
	pendingMem        MemoryResult
	memBusyLastCycle  bool

	cycleCount       uint64
	instructionCount uint64
	stallCount       uint64
	branchCount      uint64
	flushCount       uint64
	mispredictCount  uint64

	halted   bool
	exitCode int64
}

// Stats reports pipeline performance counters.
type Stats struct {
	Cycles       uint64
	Instructions uint64
	Stalls       uint64
	Branches     uint64
	Flushes      uint64
	Mispredicts  uint64
	CPI          float64
}

// NewPipeline builds a pipeline over the given architectural state and
// memory-system components. All components are expected to already be
// wired together by the caller (e.g. the cache's backing store is the
// same physical memory the MMU's walker reads page tables from).
func NewPipeline(
	regFile *cpu.RegFile,
	fpRegFile *cpu.FPRegFile,
	csr *cpu.CSRFile,
	icache, dcache *cache.Cache,
	mmuUnit *mmu.MMU,
	bus *soc.Bus,
	predictor bpu.Predictor,
	btb *bpu.BTB,
	ras *bpu.RAS,
) *Pipeline {
	alu := &cpu.ALU{}
	fpu := cpu.NewFPU()
	amo := cpu.NewAMOUnit()

	return &Pipeline{
		fetchStage:     NewFetchStage(icache, mmuUnit, predictor, btb),
		decodeStage:    NewDecodeStage(regFile, fpRegFile, ras),
		executeStage:   NewExecuteStage(alu, fpu, amo, csr),
		memoryStage:    NewMemoryStage(dcache, mmuUnit, bus, amo),
		writebackStage: NewWritebackStage(regFile, fpRegFile, csr),
		hazardUnit:     NewHazardUnit(),
		regFile:        regFile,
		fpRegFile:      fpRegFile,
		csr:            csr,
		bus:            bus,
		fetchSize:      4,
	}
}

// SetPC sets the program counter, e.g. to the ELF entry point.
func (p *Pipeline) SetPC(pc uint64) { p.pc = pc }

// PC returns the current fetch program counter.
func (p *Pipeline) PC() uint64 { return p.pc }

// Halted reports whether the pipeline has stopped retiring instructions.
func (p *Pipeline) Halted() bool { return p.halted }

// ExitCode returns the code the simulated program exited with.
func (p *Pipeline) ExitCode() int64 { return p.exitCode }

// Halt stops the pipeline with the given exit code, e.g. from a
// simulator-level syscall trap outside the architectural ISA.
func (p *Pipeline) Halt(code int64) {
	p.halted = true
	p.exitCode = code
}

// SetExternalInterrupts posts the SoC's timer and platform-level
// external interrupt lines into mip/sip ahead of Tick's per-cycle
// pendingInterrupt check. The caller (the machine driving Bus.Tick) is
// expected to call this once per cycle before Tick.
func (p *Pipeline) SetExternalInterrupts(timer, external bool) {
	p.csr.SetIP(1<<(cpu.CauseMTimerInterrupt&^cpu.CauseInterruptFlag), timer)
	p.csr.SetIP(1<<(cpu.CauseMExternalInterrupt&^cpu.CauseInterruptFlag), external)
}

// Stats returns pipeline performance counters.
func (p *Pipeline) Stats() Stats {
	s := Stats{
		Cycles:       p.cycleCount,
		Instructions: p.instructionCount,
		Stalls:       p.stallCount,
		Branches:     p.branchCount,
		Flushes:      p.flushCount,
		Mispredicts:  p.mispredictCount,
	}
	if s.Instructions > 0 {
		s.CPI = float64(s.Cycles) / float64(s.Instructions)
	}
	return s
}

// ExportStats writes every pipeline counter into reg under the
// "pipeline." prefix, for callers collecting a system-wide dump
// alongside the memory hierarchy's counters.
func (p *Pipeline) ExportStats(reg *stats.Registry) {
	s := p.Stats()
	reg.Set("pipeline.cycles", s.Cycles)
	reg.Set("pipeline.instructions", s.Instructions)
	reg.Set("pipeline.stalls", s.Stalls)
	reg.Set("pipeline.branches", s.Branches)
	reg.Set("pipeline.flushes", s.Flushes)
	reg.Set("pipeline.mispredicts", s.Mispredicts)
}

func (p *Pipeline) satp() uint64    { return p.csr.Read(cpu.CSRSatp) }
func (p *Pipeline) status() uint64  { return p.csr.Read(cpu.CSRMstatus) }
func (p *Pipeline) priv() cpu.Privilege { return p.csr.Priv }

// Tick advances the pipeline by exactly one clock cycle.
func (p *Pipeline) Tick() {
	if p.halted {
		return
	}
	p.cycleCount++

	if cause, ok := pendingInterrupt(p.csr); ok && !p.memBusyLastCycle {
		p.takeAsyncTrap(cause, 0)
		return
	}

	memBusy := p.memStallRemaining > 0

	p.doWriteback()
	memDone := p.doMemory(memBusy)
	branchTaken, branchTarget, redirectPriv, flush := p.doExecute(memBusy)
	loadUseHazard := p.doDecode(memBusy || !memDone)
	p.doFetch(memBusy || !memDone)

	stallResult := p.hazardUnit.ComputeStalls(loadUseHazard, p.csrInFlight)
	memStall := memBusy && !memDone

	if stallResult.StallIF || stallResult.StallID || memStall {
		p.stallCount++
	}

	if (branchTaken || redirectPriv || flush) && !memStall {
		p.branchCount++
		if branchTaken {
			p.flushCount++
		}
		p.nextIfid.Clear()
		p.nextIdex.Clear()
		p.pc = branchTarget
		if flush && !branchTaken {
			p.pc = p.nextFetchOnFlush()
		}
	}

	if (stallResult.StallIF || memStall) && !(branchTaken || redirectPriv) {
		p.nextIfid = p.ifid
	}
	// Unlike StallIF (a plain freeze), StallID's effect on ID/EX is
	// already fully decided inside doDecode: a load-use hazard clears
	// it to a bubble, a CSR barrier freezes it to the current value.
	// Only a multi-cycle memory stall needs a generic freeze here.
	if memStall && !(branchTaken || redirectPriv) {
		p.nextIdex = p.idex
	}
	if memStall {
		p.nextExmem = p.exmem
	}

	p.ifid = p.nextIfid
	p.idex = p.nextIdex
	p.exmem = p.nextExmem
	p.memwb = p.nextMemwb

	if !stallResult.StallIF && !memStall && !branchTaken && !redirectPriv && !flush {
		p.pc += p.fetchSize
	}

	p.memBusyLastCycle = memStall
}

// nextFetchOnFlush returns the PC to resume fetching at after a
// FENCE.I/SFENCE.VMA front-end flush: the instruction immediately
// after the fence, already known from EX/MEM's own PC.
func (p *Pipeline) nextFetchOnFlush() uint64 {
	return p.exmem.PC + uint64(p.exmem.Decoded.Size)
}

func (p *Pipeline) takeAsyncTrap(cause, tval uint64) {
	newPC := deliverTrap(p.csr, cause, tval, p.pc)
	p.flushTrapState(newPC)
}

// flushTrapState squashes every in-flight instruction and redirects
// fetch, without itself performing trap delivery (the caller has
// either already delivered the trap via deliverTrap, or is delivering
// one now and passing the resulting PC straight through).
func (p *Pipeline) flushTrapState(newPC uint64) {
	p.ifid.Clear()
	p.idex.Clear()
	p.exmem.Clear()
	p.nextIfid.Clear()
	p.nextIdex.Clear()
	p.nextExmem.Clear()
	p.csrInFlight = false
	p.pc = newPC
	p.flushCount++
}

func (p *Pipeline) doFetch(hold bool) {
	if hold {
		return
	}
	if !p.canAcceptFetch() {
		p.nextIfid.Clear()
		return
	}

	result := p.fetchStage.Fetch(p.pc, p.satp(), p.priv(), p.status())
	if result.Stalled {
		p.nextIfid.Clear()
		return
	}

	p.nextIfid = IFIDRegister{
		Valid:      true,
		PC:         p.pc,
		Raw:        result.Raw,
		Compressed: result.Compressed,
		PredTaken:  result.PredTaken,
		PredTarget: result.PredTarget,
		FetchTrap:  result.Trap,
	}
	if result.Compressed {
		p.fetchSize = 2
	} else {
		p.fetchSize = 4
	}
}

// canAcceptFetch blocks fetch while a branch/trap redirect is already
// known to be landing this cycle from an older instruction, which the
// Tick orchestration otherwise flushes anyway; kept as an explicit
// named hook for clarity rather than inlining the condition.
func (p *Pipeline) canAcceptFetch() bool { return true }

func (p *Pipeline) doDecode(hold bool) (loadUseHazard bool) {
	if hold {
		return false
	}
	if !p.ifid.Valid {
		p.nextIdex.Clear()
		return false
	}
	if p.ifid.FetchTrap.Valid {
		p.nextIdex = IDEXRegister{Valid: true, PC: p.ifid.PC, Trap: p.ifid.FetchTrap}
		return false
	}

	d, rv1, rv2, rv3 := p.decodeStage.Decode(p.ifid.PC, p.ifid.Raw, p.ifid.Compressed)

	use := operandUseOf(d)
	loadUseHazard = p.hazardUnit.DetectLoadUseHazard(&p.idex, use)
	if loadUseHazard {
		// The load itself is already proceeding into EX this same
		// cycle on p.idex; ID/EX must become a bubble next cycle
		// rather than freeze, or the load would be re-executed.
		p.nextIdex.Clear()
		return true
	}

	fwd := p.hazardUnit.DetectForwarding(&IDEXRegister{Valid: true, Decoded: d}, &p.exmem, &p.memwb)
	if fwd.ForwardRs1 != ForwardNone {
		rv1 = p.hazardUnit.GetForwardedValue(fwd.ForwardRs1, rv1, &p.exmem, &p.memwb)
	}
	if fwd.ForwardRs2 != ForwardNone {
		rv2 = p.hazardUnit.GetForwardedValue(fwd.ForwardRs2, rv2, &p.exmem, &p.memwb)
	}
	if fwd.ForwardRs3 != ForwardNone {
		rv3 = p.hazardUnit.GetForwardedValue(fwd.ForwardRs3, rv3, &p.exmem, &p.memwb)
	}

	if isCSR(d) {
		if p.csrInFlight {
			p.nextIdex = p.idex
			return false
		}
		p.csrInFlight = true
	}

	p.nextIdex = IDEXRegister{
		Valid:      true,
		PC:         p.ifid.PC,
		Decoded:    d,
		RV1:        rv1,
		RV2:        rv2,
		RV3:        rv3,
		PredTaken:  p.ifid.PredTaken,
		PredTarget: p.ifid.PredTarget,
	}
	return false
}

func (p *Pipeline) doExecute(hold bool) (branchTaken bool, branchTarget uint64, redirectPriv bool, flush bool) {
	if hold {
		return false, 0, false, false
	}
	if !p.idex.Valid {
		p.nextExmem.Clear()
		return false, 0, false, false
	}
	if p.idex.Trap.Valid {
		p.nextExmem = EXMEMRegister{Valid: true, PC: p.idex.PC, Decoded: p.idex.Decoded, Trap: p.idex.Trap}
		return false, 0, false, false
	}

	r := p.executeStage.Execute(&p.idex, p.idex.RV1, p.idex.RV2, p.idex.RV3)
	d := p.idex.Decoded

	exmem := EXMEMRegister{
		Valid:        true,
		PC:           p.idex.PC,
		Decoded:      d,
		ALUResult:    r.ALUResult,
		MemAddr:      r.MemAddr,
		StoreData:    r.StoreData,
		BranchActual: r.BranchTaken,
		Trap:         r.Trap,
	}

	// Loads leave WBValue at zero here; finishMemory fills it in once the
	// data comes back from the cache/bus. Every other result-producing
	// class already has its value in hand at the end of EX.
	switch d.Ctrl.WBSource {
	case isa.WBAlu, isa.WBCSR, isa.WBPCPlus, isa.WBFPU:
		exmem.WBValue = r.ALUResult
	}

	p.nextExmem = exmem

	if d.Class == isa.ClassBranch {
		taken := r.BranchTaken != p.idex.PredTaken
		target := p.idex.PredTarget
		if r.BranchTaken {
			target = r.BranchTarget
		} else {
			target = p.idex.PC + uint64(d.Size)
		}
		mispredicted := taken || (r.BranchTaken && target != p.idex.PredTarget)
		if mispredicted {
			p.mispredictCount++
			return true, target, false, false
		}
		return false, 0, false, false
	}

	if d.Class == isa.ClassJump {
		mispredicted := !p.idex.PredTaken || r.BranchTarget != p.idex.PredTarget
		if mispredicted {
			p.mispredictCount++
			return true, r.BranchTarget, false, false
		}
		return false, 0, false, false
	}

	if r.RedirectPriv {
		return true, r.BranchTarget, true, false
	}

	if r.SFENCEVMA {
		p.fetchStage.mmu.SFENCEVMA(r.SFENCEHasVA, r.SFENCEVA, r.SFENCEHasASID, r.SFENCEASID)
	}

	if r.Flush {
		return false, 0, false, true
	}

	return false, 0, false, false
}

func (p *Pipeline) doMemory(hold bool) (done bool) {
	if hold {
		if p.memStallRemaining > 0 {
			p.memStallRemaining--
		}
		if p.memStallRemaining == 0 {
			p.finishMemory(p.pendingMem)
			return true
		}
		return false
	}
	if !p.exmem.Valid {
		p.nextMemwb.Clear()
		return true
	}
	if p.exmem.Trap.Valid {
		p.nextMemwb = MEMWBRegister{Valid: true, PC: p.exmem.PC, Decoded: p.exmem.Decoded, Trap: p.exmem.Trap}
		return true
	}

	d := p.exmem.Decoded
	if !needsMemoryAccess(d) {
		p.finishMemory(MemoryResult{Data: p.exmem.WBValue})
		return true
	}

	r := p.memoryStage.Access(&p.exmem, p.satp(), p.priv(), p.status())
	if r.Latency > 1 {
		p.memStallRemaining = r.Latency - 1
		p.pendingMem = r
		return false
	}
	p.finishMemory(r)
	return true
}

func needsMemoryAccess(d isa.Decoded) bool {
	switch d.Class {
	case isa.ClassLoad, isa.ClassStore, isa.ClassFPLoad, isa.ClassFPStore,
		isa.ClassAMO, isa.ClassLR, isa.ClassSC:
		return true
	default:
		return false
	}
}

func (p *Pipeline) finishMemory(r MemoryResult) {
	d := p.exmem.Decoded
	if r.Trap.Valid {
		p.nextMemwb = MEMWBRegister{Valid: true, PC: p.exmem.PC, Decoded: d, Trap: r.Trap}
		return
	}

	wb := p.exmem.WBValue
	if needsMemoryAccess(d) && d.Class != isa.ClassStore && d.Class != isa.ClassFPStore {
		wb = r.Data
	}

	p.nextMemwb = MEMWBRegister{
		Valid:   true,
		PC:      p.exmem.PC,
		Decoded: d,
		WBValue: wb,
		Dest:    destOf(d),
		DestFP:  destIsFP(d),
	}
}

func (p *Pipeline) doWriteback() {
	if !p.memwb.Valid {
		return
	}

	if isCSR(p.memwb.Decoded) {
		p.csrInFlight = false
	}

	trapTaken, newPC := p.writebackStage.Writeback(&p.memwb)
	if trapTaken {
		p.flushTrapState(newPC)
		return
	}

	p.instructionCount++
}
