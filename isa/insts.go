// Package isa provides RV64GC instruction decoding.
//
// Decode is a pure function: raw instruction word in, Decoded record out.
// A 16-bit compressed word is first expanded to its 32-bit equivalent per
// the RVC encoding table; only the expanded form is decoded further.
package isa

// Class identifies the broad category of a decoded instruction. The
// pipeline dispatches on Class to pick a functional unit and to decide
// which control signals apply.
type Class uint8

// Instruction classes.
const (
	ClassALU Class = iota
	ClassLoad
	ClassStore
	ClassBranch
	ClassJump
	ClassSystem
	ClassFPLoad
	ClassFPStore
	ClassFPArith
	ClassFPFMA
	ClassFPDivSqrt
	ClassAMO
	ClassLR
	ClassSC
	ClassFence
	ClassIllegal
)

func (c Class) String() string {
	switch c {
	case ClassALU:
		return "ALU"
	case ClassLoad:
		return "LOAD"
	case ClassStore:
		return "STORE"
	case ClassBranch:
		return "BRANCH"
	case ClassJump:
		return "JUMP"
	case ClassSystem:
		return "SYSTEM"
	case ClassFPLoad:
		return "FP_LOAD"
	case ClassFPStore:
		return "FP_STORE"
	case ClassFPArith:
		return "FP_ARITH"
	case ClassFPFMA:
		return "FP_FMA"
	case ClassFPDivSqrt:
		return "FP_DIV_SQRT"
	case ClassAMO:
		return "AMO"
	case ClassLR:
		return "LR"
	case ClassSC:
		return "SC"
	case ClassFence:
		return "FENCE"
	default:
		return "ILLEGAL"
	}
}

// Op names a specific opcode within a Class, used by functional units to
// pick exact behaviour.
type Op uint16

// Opcodes. Only the operations the pipeline and memory model need to
// distinguish are enumerated; most FP variants fold into a handful of
// Op values plus the funct/rm fields carried in Ctrl.
const (
	OpUnknown Op = iota

	// Integer arithmetic/logic (register and immediate forms share one Op;
	// Ctrl.ImmOp distinguishes them).
	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND
	OpADDW
	OpSUBW
	OpSLLW
	OpSRLW
	OpSRAW
	OpLUI
	OpAUIPC

	// M extension.
	OpMUL
	OpMULH
	OpMULHSU
	OpMULHU
	OpDIV
	OpDIVU
	OpREM
	OpREMU
	OpMULW
	OpDIVW
	OpDIVUW
	OpREMW
	OpREMUW

	// Control flow.
	OpJAL
	OpJALR
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU

	// Loads/stores.
	OpLB
	OpLH
	OpLW
	OpLD
	OpLBU
	OpLHU
	OpLWU
	OpSB
	OpSH
	OpSW
	OpSD

	// FP loads/stores.
	OpFLW
	OpFLD
	OpFSW
	OpFSD

	// FP arithmetic (S/D distinguished by Ctrl.FPDouble).
	OpFADD
	OpFSUB
	OpFMUL
	OpFDIV
	OpFSQRT
	OpFSGNJ
	OpFMIN
	OpFMAX
	OpFCVT
	OpFMV
	OpFCMP
	OpFCLASS
	OpFMADD
	OpFMSUB
	OpFNMADD
	OpFNMSUB

	// Atomics.
	OpLR
	OpSC
	OpAMOSWAP
	OpAMOADD
	OpAMOXOR
	OpAMOAND
	OpAMOOR
	OpAMOMIN
	OpAMOMAX
	OpAMOMINU
	OpAMOMAXU

	// System / privileged.
	OpECALL
	OpEBREAK
	OpCSRRW
	OpCSRRS
	OpCSRRC
	OpCSRRWI
	OpCSRRSI
	OpCSRRCI
	OpMRET
	OpSRET
	OpWFI
	OpSFENCEVMA
	OpFENCE
	OpFENCEI

	OpIllegal
)

// BranchKind classifies control-transfer instructions for the BPU and RAS,
// per the RISC-V ABI hint convention (rd/rs1 in {x1,x5} for call/return).
type BranchKind uint8

const (
	BranchNone BranchKind = iota
	BranchCond
	BranchCall
	BranchReturn
	BranchJump
)

// WBSource names which value is written back at commit.
type WBSource uint8

const (
	WBNone WBSource = iota
	WBAlu
	WBLoad
	WBPCPlus
	WBCSR
	WBFPU
)

// Ctrl carries the control-signal bundle produced by decode.
type Ctrl struct {
	AluOp        Op
	WBSource     WBSource
	MemWidth     uint8 // access width in bytes: 1,2,4,8
	MemSigned    bool
	IsCompressed bool
	Branch       BranchKind
	Is32         bool // W-suffixed instructions operate on the low 32 bits
	FPDouble     bool // operates on double precision (D) rather than single (F)
	Funct3       uint8
	Funct7       uint8
	CSR          uint16
	Aq           bool // atomic acquire bit
	Rl           bool // atomic release bit
	ImmOp        bool // second operand is Imm rather than the Rs2 register
}

// Decoded is the tagged record produced by Decode.
type Decoded struct {
	PC    uint64
	Raw   uint32
	Size  uint8 // instruction size in bytes: 2 (compressed) or 4
	Class Class
	Rs1   uint8
	Rs2   uint8
	Rs3   uint8
	Rd    uint8
	Imm   int64
	Op    Op
	Ctrl  Ctrl
	Legal bool
}
