// Package pipeline implements the five-stage in-order RV64GC pipeline:
// fetch, decode, execute, memory, writeback, connected by four latches
// and driven by a single Tick per simulated cycle.
package pipeline

import "github.com/rv64sim/rv64sim/isa"

// Trap carries precise-exception bookkeeping through a latch. A trap is
// detected in the stage that discovers it but only delivered once the
// carrying instruction reaches writeback, so that every younger
// instruction already in flight can be squashed first.
type Trap struct {
	Valid bool
	Cause uint64
	TVal  uint64
}

// IFIDRegister holds state between Fetch and Decode.
type IFIDRegister struct {
	Valid       bool
	PC          uint64
	Raw         uint32
	Compressed  bool
	PredTaken   bool
	PredTarget  uint64
	FetchTrap   Trap
}

// Clear resets the IF/ID register to an empty bubble.
func (r *IFIDRegister) Clear() { *r = IFIDRegister{} }

// IDEXRegister holds state between Decode and Execute: the decoded
// instruction plus the register values already read (rv1/rv2/rv3).
type IDEXRegister struct {
	Valid      bool
	PC         uint64
	Decoded    isa.Decoded
	RV1        uint64
	RV2        uint64
	RV3        uint64
	PredTaken  bool
	PredTarget uint64
	Trap       Trap
}

// Clear resets the ID/EX register to an empty bubble.
func (r *IDEXRegister) Clear() { *r = IDEXRegister{} }

// EXMEMRegister holds state between Execute and Memory.
type EXMEMRegister struct {
	Valid        bool
	PC           uint64
	Decoded      isa.Decoded
	ALUResult    uint64
	MemAddr      uint64
	StoreData    uint64
	BranchActual bool
	BranchTaken  bool
	BranchTarget uint64
	WBValue      uint64 // result already known (ALU/FPU/CSR/PC+4), used when no memory access is needed
	Trap         Trap
}

// Clear resets the EX/MEM register to an empty bubble.
func (r *EXMEMRegister) Clear() { *r = EXMEMRegister{} }

// MEMWBRegister holds state between Memory and Writeback.
type MEMWBRegister struct {
	Valid   bool
	PC      uint64
	Decoded isa.Decoded
	WBValue uint64
	Dest    uint8
	DestFP  bool
	Trap    Trap
}

// Clear resets the MEM/WB register to an empty bubble.
func (r *MEMWBRegister) Clear() { *r = MEMWBRegister{} }
