package isa

// baseOpcode is the 5-bit instruction-format selector: bits [6:2] of a
// 32-bit instruction word (bits [1:0] are always 0b11 for 32-bit words).
type baseOpcode uint32

const (
	boLoad    baseOpcode = 0x00 // I-type
	boLoadFP  baseOpcode = 0x01 // I-type
	boMiscMem baseOpcode = 0x03 // I-type (FENCE)
	boOpImm   baseOpcode = 0x04 // I-type
	boAUIPC   baseOpcode = 0x05 // U-type
	boOpImm32 baseOpcode = 0x06 // I-type
	boStore   baseOpcode = 0x08 // S-type
	boStoreFP baseOpcode = 0x09 // S-type
	boAMO     baseOpcode = 0x0b // R-type
	boOp      baseOpcode = 0x0c // R-type
	boLUI     baseOpcode = 0x0d // U-type
	boOp32    baseOpcode = 0x0e // R-type
	boMadd    baseOpcode = 0x10 // R4-type
	boMsub    baseOpcode = 0x11 // R4-type
	boNmsub   baseOpcode = 0x12 // R4-type
	boNmadd   baseOpcode = 0x13 // R4-type
	boOpFP    baseOpcode = 0x14 // R-type
	boBranch  baseOpcode = 0x18 // B-type
	boJALR    baseOpcode = 0x19 // I-type
	boJAL     baseOpcode = 0x1b // J-type
	boSystem  baseOpcode = 0x1c // I-type
)

// Decode decodes a single RV64GC instruction word. Compressed (16-bit)
// words must already be expanded to their 32-bit equivalent via
// ExpandCompressed before calling Decode; the pipeline's fetch stage does
// this based on the low two bits of the first halfword.
//
// Unrecognised encodings return a Decoded with Legal=false and
// Class=ClassIllegal, carrying the raw word for the illegal-instruction
// trap.
func Decode(pc uint64, raw uint32, compressed bool) Decoded {
	d := Decoded{PC: pc, Raw: raw, Size: 4, Legal: true}
	if compressed {
		d.Size = 2
		d.Ctrl.IsCompressed = true
	}

	op := baseOpcode(raw >> 2 & 0x1f)
	funct3 := uint8(raw >> 12 & 0x7)
	rd := uint8(raw >> 7 & 0x1f)
	rs1 := uint8(raw >> 15 & 0x1f)
	rs2 := uint8(raw >> 20 & 0x1f)
	funct7 := uint8(raw >> 25 & 0x7f)

	d.Rd, d.Rs1, d.Rs2 = rd, rs1, rs2
	d.Ctrl.Funct3, d.Ctrl.Funct7 = funct3, funct7

	switch op {
	case boLUI:
		d.Class, d.Op = ClassALU, OpLUI
		d.Imm = int64(int32(raw & 0xfffff000))
		d.Ctrl.WBSource = WBAlu
		d.Ctrl.ImmOp = true
	case boAUIPC:
		d.Class, d.Op = ClassALU, OpAUIPC
		d.Imm = int64(int32(raw & 0xfffff000))
		d.Ctrl.WBSource = WBAlu
		d.Ctrl.ImmOp = true
	case boJAL:
		d.Class, d.Op = ClassJump, OpJAL
		d.Imm = decodeJImm(raw)
		d.Ctrl.WBSource = WBPCPlus
		d.Ctrl.Branch = callOrJump(rd)
	case boJALR:
		d.Class, d.Op = ClassJump, OpJALR
		d.Imm = decodeIImm(raw)
		d.Ctrl.WBSource = WBPCPlus
		d.Ctrl.Branch = jalrKind(rd, rs1)
	case boBranch:
		d.Class = ClassBranch
		d.Imm = decodeBImm(raw)
		d.Ctrl.Branch = BranchCond
		switch funct3 {
		case 0x0:
			d.Op = OpBEQ
		case 0x1:
			d.Op = OpBNE
		case 0x4:
			d.Op = OpBLT
		case 0x5:
			d.Op = OpBGE
		case 0x6:
			d.Op = OpBLTU
		case 0x7:
			d.Op = OpBGEU
		default:
			return illegal(d)
		}
	case boLoad:
		d.Class = ClassLoad
		d.Imm = decodeIImm(raw)
		d.Ctrl.WBSource = WBLoad
		switch funct3 {
		case 0x0:
			d.Op, d.Ctrl.MemWidth, d.Ctrl.MemSigned = OpLB, 1, true
		case 0x1:
			d.Op, d.Ctrl.MemWidth, d.Ctrl.MemSigned = OpLH, 2, true
		case 0x2:
			d.Op, d.Ctrl.MemWidth, d.Ctrl.MemSigned = OpLW, 4, true
		case 0x3:
			d.Op, d.Ctrl.MemWidth, d.Ctrl.MemSigned = OpLD, 8, false
		case 0x4:
			d.Op, d.Ctrl.MemWidth, d.Ctrl.MemSigned = OpLBU, 1, false
		case 0x5:
			d.Op, d.Ctrl.MemWidth, d.Ctrl.MemSigned = OpLHU, 2, false
		case 0x6:
			d.Op, d.Ctrl.MemWidth, d.Ctrl.MemSigned = OpLWU, 4, false
		default:
			return illegal(d)
		}
	case boStore:
		d.Class = ClassStore
		d.Imm = decodeSImm(raw)
		switch funct3 {
		case 0x0:
			d.Op, d.Ctrl.MemWidth = OpSB, 1
		case 0x1:
			d.Op, d.Ctrl.MemWidth = OpSH, 2
		case 0x2:
			d.Op, d.Ctrl.MemWidth = OpSW, 4
		case 0x3:
			d.Op, d.Ctrl.MemWidth = OpSD, 8
		default:
			return illegal(d)
		}
	case boLoadFP:
		d.Class = ClassFPLoad
		d.Imm = decodeIImm(raw)
		switch funct3 {
		case 0x2:
			d.Op, d.Ctrl.MemWidth = OpFLW, 4
		case 0x3:
			d.Op, d.Ctrl.MemWidth, d.Ctrl.FPDouble = OpFLD, 8, true
		default:
			return illegal(d)
		}
	case boStoreFP:
		d.Class = ClassFPStore
		d.Imm = decodeSImm(raw)
		switch funct3 {
		case 0x2:
			d.Op, d.Ctrl.MemWidth = OpFSW, 4
		case 0x3:
			d.Op, d.Ctrl.MemWidth, d.Ctrl.FPDouble = OpFSD, 8, true
		default:
			return illegal(d)
		}
	case boOpImm:
		d.Class = ClassALU
		d.Imm = decodeIImm(raw)
		d.Ctrl.WBSource = WBAlu
		d.Ctrl.ImmOp = true
		if !decodeOpImm(&d, funct3, funct7, raw) {
			return illegal(d)
		}
	case boOpImm32:
		d.Class = ClassALU
		d.Imm = decodeIImm(raw)
		d.Ctrl.WBSource, d.Ctrl.Is32 = WBAlu, true
		d.Ctrl.ImmOp = true
		if !decodeOpImm32(&d, funct3, funct7, raw) {
			return illegal(d)
		}
	case boOp:
		d.Class = ClassALU
		d.Ctrl.WBSource = WBAlu
		if !decodeOp(&d, funct3, funct7) {
			return illegal(d)
		}
	case boOp32:
		d.Class = ClassALU
		d.Ctrl.WBSource, d.Ctrl.Is32 = WBAlu, true
		if !decodeOp32(&d, funct3, funct7) {
			return illegal(d)
		}
	case boMiscMem:
		d.Class = ClassFence
		if funct3 == 0x1 {
			d.Op = OpFENCEI
		} else {
			d.Op = OpFENCE
		}
	case boAMO:
		if !decodeAMO(&d, funct3, funct7) {
			return illegal(d)
		}
	case boOpFP:
		if !decodeOpFP(&d, funct3, funct7, rs2) {
			return illegal(d)
		}
	case boMadd:
		d.Class, d.Op = ClassFPFMA, OpFMADD
		d.Rs3 = uint8(raw >> 27 & 0x1f)
		d.Ctrl.FPDouble = funct7&1 == 1
		d.Ctrl.WBSource = WBFPU
	case boMsub:
		d.Class, d.Op = ClassFPFMA, OpFMSUB
		d.Rs3 = uint8(raw >> 27 & 0x1f)
		d.Ctrl.FPDouble = funct7&1 == 1
		d.Ctrl.WBSource = WBFPU
	case boNmsub:
		d.Class, d.Op = ClassFPFMA, OpFNMSUB
		d.Rs3 = uint8(raw >> 27 & 0x1f)
		d.Ctrl.FPDouble = funct7&1 == 1
		d.Ctrl.WBSource = WBFPU
	case boNmadd:
		d.Class, d.Op = ClassFPFMA, OpFNMADD
		d.Rs3 = uint8(raw >> 27 & 0x1f)
		d.Ctrl.FPDouble = funct7&1 == 1
		d.Ctrl.WBSource = WBFPU
	case boSystem:
		if !decodeSystem(&d, funct3, raw) {
			return illegal(d)
		}
	default:
		return illegal(d)
	}

	return d
}

func illegal(d Decoded) Decoded {
	d.Class, d.Op, d.Legal = ClassIllegal, OpIllegal, false
	return d
}

func callOrJump(rd uint8) BranchKind {
	if rd == 1 || rd == 5 {
		return BranchCall
	}
	return BranchJump
}

func jalrKind(rd, rs1 uint8) BranchKind {
	switch {
	case rd == 0 && (rs1 == 1 || rs1 == 5):
		return BranchReturn
	case rd == 1 || rd == 5:
		return BranchCall
	default:
		return BranchJump
	}
}

func decodeOpImm(d *Decoded, funct3, funct7 uint8, raw uint32) bool {
	switch funct3 {
	case 0x0:
		d.Op = OpADD
	case 0x1:
		if funct7>>1 != 0 {
			return false
		}
		d.Op = OpSLL
		d.Imm = int64(raw >> 20 & 0x3f)
	case 0x2:
		d.Op = OpSLT
	case 0x3:
		d.Op = OpSLTU
	case 0x4:
		d.Op = OpXOR
	case 0x5:
		shamt := raw >> 20 & 0x3f
		d.Imm = int64(shamt)
		if funct7>>1 == 0x10 {
			d.Op = OpSRA
		} else {
			d.Op = OpSRL
		}
	case 0x6:
		d.Op = OpOR
	case 0x7:
		d.Op = OpAND
	default:
		return false
	}
	return true
}

func decodeOpImm32(d *Decoded, funct3, funct7 uint8, raw uint32) bool {
	switch funct3 {
	case 0x0:
		d.Op = OpADDW
	case 0x1:
		if funct7 != 0 {
			return false
		}
		d.Op = OpSLLW
		d.Imm = int64(raw >> 20 & 0x1f)
	case 0x5:
		shamt := raw >> 20 & 0x1f
		d.Imm = int64(shamt)
		if funct7 == 0x20 {
			d.Op = OpSRAW
		} else if funct7 == 0 {
			d.Op = OpSRLW
		} else {
			return false
		}
	default:
		return false
	}
	return true
}

func decodeOp(d *Decoded, funct3, funct7 uint8) bool {
	if funct7 == 0x01 {
		switch funct3 {
		case 0x0:
			d.Op = OpMUL
		case 0x1:
			d.Op = OpMULH
		case 0x2:
			d.Op = OpMULHSU
		case 0x3:
			d.Op = OpMULHU
		case 0x4:
			d.Op = OpDIV
		case 0x5:
			d.Op = OpDIVU
		case 0x6:
			d.Op = OpREM
		case 0x7:
			d.Op = OpREMU
		default:
			return false
		}
		return true
	}
	switch funct3 {
	case 0x0:
		if funct7 == 0x20 {
			d.Op = OpSUB
		} else if funct7 == 0 {
			d.Op = OpADD
		} else {
			return false
		}
	case 0x1:
		d.Op = OpSLL
	case 0x2:
		d.Op = OpSLT
	case 0x3:
		d.Op = OpSLTU
	case 0x4:
		d.Op = OpXOR
	case 0x5:
		if funct7 == 0x20 {
			d.Op = OpSRA
		} else if funct7 == 0 {
			d.Op = OpSRL
		} else {
			return false
		}
	case 0x6:
		d.Op = OpOR
	case 0x7:
		d.Op = OpAND
	default:
		return false
	}
	return true
}

func decodeOp32(d *Decoded, funct3, funct7 uint8) bool {
	if funct7 == 0x01 {
		switch funct3 {
		case 0x0:
			d.Op = OpMULW
		case 0x4:
			d.Op = OpDIVW
		case 0x5:
			d.Op = OpDIVUW
		case 0x6:
			d.Op = OpREMW
		case 0x7:
			d.Op = OpREMUW
		default:
			return false
		}
		return true
	}
	switch funct3 {
	case 0x0:
		if funct7 == 0x20 {
			d.Op = OpSUBW
		} else if funct7 == 0 {
			d.Op = OpADDW
		} else {
			return false
		}
	case 0x1:
		d.Op = OpSLLW
	case 0x5:
		if funct7 == 0x20 {
			d.Op = OpSRAW
		} else if funct7 == 0 {
			d.Op = OpSRLW
		} else {
			return false
		}
	default:
		return false
	}
	return true
}

func decodeAMO(d *Decoded, funct3, funct7 uint8) bool {
	width := uint8(4)
	if funct3 == 0x3 {
		width = 8
	} else if funct3 != 0x2 {
		return false
	}
	d.Ctrl.MemWidth = width
	d.Ctrl.Aq = funct7&0x2 != 0
	d.Ctrl.Rl = funct7&0x1 != 0
	switch funct7 >> 2 {
	case 0x00:
		d.Class, d.Op = ClassAMO, OpAMOADD
	case 0x01:
		d.Class, d.Op = ClassAMO, OpAMOSWAP
	case 0x02:
		d.Class, d.Op = ClassLR, OpLR
	case 0x03:
		d.Class, d.Op = ClassSC, OpSC
		d.Ctrl.WBSource = WBAlu
	case 0x04:
		d.Class, d.Op = ClassAMO, OpAMOXOR
	case 0x08:
		d.Class, d.Op = ClassAMO, OpAMOOR
	case 0x0c:
		d.Class, d.Op = ClassAMO, OpAMOAND
	case 0x10:
		d.Class, d.Op = ClassAMO, OpAMOMIN
	case 0x14:
		d.Class, d.Op = ClassAMO, OpAMOMAX
	case 0x18:
		d.Class, d.Op = ClassAMO, OpAMOMINU
	case 0x1c:
		d.Class, d.Op = ClassAMO, OpAMOMAXU
	default:
		return false
	}
	if d.Class == ClassAMO {
		d.Ctrl.WBSource = WBLoad
	}
	return true
}

func decodeOpFP(d *Decoded, funct3, funct7, rs2 uint8) bool {
	d.Class = ClassFPArith
	d.Ctrl.WBSource = WBFPU
	d.Ctrl.FPDouble = funct7&1 == 1
	switch funct7 >> 2 {
	case 0x00:
		d.Op = OpFADD
	case 0x01:
		d.Op = OpFSUB
	case 0x02:
		d.Op = OpFMUL
	case 0x03:
		d.Op = OpFDIV
		d.Class = ClassFPDivSqrt
	case 0x0b:
		d.Op = OpFSQRT
		d.Class = ClassFPDivSqrt
	case 0x04:
		d.Op = OpFSGNJ
	case 0x05:
		d.Op = OpFMIN // funct3 distinguishes MIN/MAX
		if funct3 == 1 {
			d.Op = OpFMAX
		}
	case 0x14:
		d.Op = OpFCMP
		d.Ctrl.WBSource = WBAlu
	case 0x18:
		d.Op = OpFCVT // FCVT.{W,WU,L,LU}.{S,D}: float to int, rs2 selects int width/sign
		d.Ctrl.WBSource = WBAlu
	case 0x1a:
		d.Op = OpFCVT // FCVT.{S,D}.{W,WU,L,LU}: int to float, rs2 selects int width/sign
	case 0x1c:
		if funct3 == 0 {
			d.Op = OpFMV
			d.Ctrl.WBSource = WBAlu
		} else {
			d.Op = OpFCLASS
			d.Ctrl.WBSource = WBAlu
		}
	case 0x1e:
		d.Op = OpFMV
	case 0x08:
		d.Op = OpFCVT // FCVT.S.D / FCVT.D.S
	default:
		_ = rs2
		return false
	}
	return true
}

func decodeSystem(d *Decoded, funct3 uint8, raw uint32) bool {
	d.Class = ClassSystem
	if funct3 == 0 {
		switch raw >> 20 {
		case 0x0:
			d.Op = OpECALL
		case 0x1:
			d.Op = OpEBREAK
		case 0x102:
			d.Op = OpSRET
		case 0x302:
			d.Op = OpMRET
		case 0x105:
			d.Op = OpWFI
		default:
			if raw>>25 == 0x09 {
				d.Op = OpSFENCEVMA
				return true
			}
			return false
		}
		return true
	}
	d.Ctrl.CSR = uint16(raw >> 20 & 0xfff)
	d.Ctrl.WBSource = WBCSR
	switch funct3 {
	case 0x1:
		d.Op = OpCSRRW
	case 0x2:
		d.Op = OpCSRRS
	case 0x3:
		d.Op = OpCSRRC
	case 0x5:
		d.Op = OpCSRRWI
		d.Imm = int64(d.Rs1)
	case 0x6:
		d.Op = OpCSRRSI
		d.Imm = int64(d.Rs1)
	case 0x7:
		d.Op = OpCSRRCI
		d.Imm = int64(d.Rs1)
	default:
		return false
	}
	return true
}

func decodeIImm(raw uint32) int64 {
	return int64(int32(raw)) >> 20
}

func decodeSImm(raw uint32) int64 {
	hi := raw >> 25 & 0x7f
	lo := raw >> 7 & 0x1f
	v := hi<<5 | lo
	return signExtend(v, 12)
}

func decodeBImm(raw uint32) int64 {
	v := raw>>19&0x1000 | raw<<4&0x800 | raw>>20&0x7e0 | raw>>7&0x1e
	return signExtend(v, 13)
}

func decodeJImm(raw uint32) int64 {
	v := raw>>11&0x100000 | raw&0xff000 | raw>>9&0x800 | raw>>20&0x7fe
	return signExtend(v, 21)
}

func signExtend(v uint32, bits uint) int64 {
	shift := 32 - bits
	return int64(int32(v<<shift)) >> shift
}
