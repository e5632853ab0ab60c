package isa

// ExpandCompressed expands a 16-bit RVC instruction into the 32-bit
// instruction word it is defined to be equivalent to, per the RISC-V C
// extension. The caller is responsible for detecting compressed
// instructions (low two bits of the halfword != 0b11) before calling this.
//
// Unsupported or reserved encodings return (0, false); the caller should
// treat this as an illegal instruction.
func ExpandCompressed(raw uint16) (uint32, bool) {
	quadrant := raw & 0x3
	funct3 := raw >> 13 & 0x7

	switch quadrant {
	case 0x0:
		return expandQuadrant0(raw, funct3)
	case 0x1:
		return expandQuadrant1(raw, funct3)
	case 0x2:
		return expandQuadrant2(raw, funct3)
	default:
		return 0, false
	}
}

// rvcReg maps a 3-bit compressed register field (x8-x15) to a full
// 5-bit register number.
func rvcReg(bits uint16) uint8 {
	return uint8(bits&0x7) + 8
}

func expandQuadrant0(raw uint16, funct3 uint16) (uint32, bool) {
	rdp := rvcReg(raw >> 2)
	rs1p := rvcReg(raw >> 7)

	switch funct3 {
	case 0x0: // C.ADDI4SPN -> addi rd', x2, nzuimm
		nzuimm := (raw>>7&0x30)<<4 | (raw>>1&0x3c0)>>0 | (raw>>4&0x4)<<0 | (raw>>2&0x8)<<0
		_ = nzuimm
		imm := uint32(raw>>7&0x30) | uint32(raw>>1&0x3c0) | uint32(raw>>4&0x4) | uint32(raw>>2&0x8)
		if imm == 0 {
			return 0, false
		}
		return encodeI(imm, 2, 0x0, rdp, 0x04), true
	case 0x1: // C.FLD -> fld rd', offset(rs1')
		off := uint32(raw>>7&0x38) | uint32(raw>>5&0x1c0)<<1
		_ = off
		offset := uint32(raw>>10&0x7)<<3 | uint32(raw>>5&0x3)<<6
		return encodeI(offset, rs1p, 0x3, rdp, 0x01), true
	case 0x2: // C.LW -> lw rd', offset(rs1')
		offset := uint32(raw>>10&0x7)<<3 | uint32(raw>>6&0x1)<<2 | uint32(raw>>5&0x1)<<6
		return encodeI(offset, rs1p, 0x2, rdp, 0x00), true
	case 0x3: // C.LD -> ld rd', offset(rs1')
		offset := uint32(raw>>10&0x7)<<3 | uint32(raw>>5&0x3)<<6
		return encodeI(offset, rs1p, 0x3, rdp, 0x00), true
	case 0x5: // C.FSD -> fsd rs2', offset(rs1')
		offset := uint32(raw>>10&0x7)<<3 | uint32(raw>>5&0x3)<<6
		return encodeS(offset, rdp, rs1p, 0x3, 0x09), true
	case 0x6: // C.SW -> sw rs2', offset(rs1')
		offset := uint32(raw>>10&0x7)<<3 | uint32(raw>>6&0x1)<<2 | uint32(raw>>5&0x1)<<6
		return encodeS(offset, rdp, rs1p, 0x2, 0x08), true
	case 0x7: // C.SD -> sd rs2', offset(rs1')
		offset := uint32(raw>>10&0x7)<<3 | uint32(raw>>5&0x3)<<6
		return encodeS(offset, rdp, rs1p, 0x3, 0x08), true
	default:
		return 0, false
	}
}

func expandQuadrant1(raw uint16, funct3 uint16) (uint32, bool) {
	rd := uint8(raw >> 7 & 0x1f)
	rdp := rvcReg(raw >> 7)
	rs2p := rvcReg(raw >> 2)

	switch funct3 {
	case 0x0: // C.ADDI / C.NOP
		imm := signExtend6(raw>>12&0x1<<5|raw>>2&0x1f, 6)
		return encodeI(uint32(imm)&0xfff, rd, 0x0, rd, 0x04), true
	case 0x1: // C.ADDIW (RV64)
		imm := signExtend6(raw>>12&0x1<<5|raw>>2&0x1f, 6)
		return encodeI(uint32(imm)&0xfff, rd, 0x0, rd, 0x06), true
	case 0x2: // C.LI -> addi rd, x0, imm
		imm := signExtend6(raw>>12&0x1<<5|raw>>2&0x1f, 6)
		return encodeI(uint32(imm)&0xfff, 0, 0x0, rd, 0x04), true
	case 0x3:
		if rd == 2 { // C.ADDI16SP
			imm := uint32(raw>>12&0x1)<<9 | uint32(raw>>3&0x3)<<7 |
				uint32(raw>>5&0x1)<<6 | uint32(raw>>2&0x1)<<5 | uint32(raw>>6&0x1)<<4
			se := signExtend(imm, 10)
			if se == 0 {
				return 0, false
			}
			return encodeI(uint32(se)&0xfff, 2, 0x0, 2, 0x04), true
		}
		// C.LUI -> lui rd, nzimm
		imm := uint32(raw>>12&0x1)<<17 | uint32(raw>>2&0x1f)<<12
		se := signExtend(imm, 18)
		if se == 0 {
			return 0, false
		}
		return uint32(se)&0xfffff000 | uint32(rd)<<7 | uint32(boLUI)<<2 | 0x3, true
	case 0x4:
		funct2 := raw >> 10 & 0x3
		switch funct2 {
		case 0x0: // C.SRLI
			shamt := uint32(raw>>12&0x1)<<5 | uint32(raw>>2&0x1f)
			return encodeI(shamt, rdp, 0x5, rdp, 0x04), true
		case 0x1: // C.SRAI
			shamt := uint32(raw>>12&0x1)<<5 | uint32(raw>>2&0x1f)
			return encodeI(shamt|0x400, rdp, 0x5, rdp, 0x04), true
		case 0x2: // C.ANDI
			imm := signExtend6(raw>>12&0x1<<5|raw>>2&0x1f, 6)
			return encodeI(uint32(imm)&0xfff, rdp, 0x7, rdp, 0x04), true
		case 0x3:
			funct1 := raw >> 12 & 0x1
			funct2b := raw >> 5 & 0x3
			var fn3 uint8
			var fn7 uint32
			switch {
			case funct1 == 0 && funct2b == 0:
				fn3, fn7 = 0x0, 0x20 // C.SUB
			case funct1 == 0 && funct2b == 1:
				fn3, fn7 = 0x4, 0x00 // C.XOR
			case funct1 == 0 && funct2b == 2:
				fn3, fn7 = 0x6, 0x00 // C.OR
			case funct1 == 0 && funct2b == 3:
				fn3, fn7 = 0x7, 0x00 // C.AND
			case funct1 == 1 && funct2b == 0:
				fn3, fn7 = 0x0, 0x20 // C.SUBW
				return encodeR(fn7, rs2p, rdp, fn3, rdp, 0x0e), true
			case funct1 == 1 && funct2b == 1:
				fn3, fn7 = 0x0, 0x00 // C.ADDW
				return encodeR(fn7, rs2p, rdp, fn3, rdp, 0x0e), true
			default:
				return 0, false
			}
			return encodeR(fn7, rs2p, rdp, fn3, rdp, 0x0c), true
		}
	case 0x5: // C.J -> jal x0, offset
		offset := decodeCJImm(raw)
		return encodeJ(offset, 0), true
	case 0x6: // C.BEQZ
		offset := decodeCBImm(raw)
		return encodeB(offset, 0, rdp, 0x0, 0x18), true
	case 0x7: // C.BNEZ
		offset := decodeCBImm(raw)
		return encodeB(offset, 0, rdp, 0x1, 0x18), true
	}
	return 0, false
}

func expandQuadrant2(raw uint16, funct3 uint16) (uint32, bool) {
	rd := uint8(raw >> 7 & 0x1f)
	rs2 := uint8(raw >> 2 & 0x1f)

	switch funct3 {
	case 0x0: // C.SLLI
		shamt := uint32(raw>>12&0x1)<<5 | uint32(raw>>2&0x1f)
		return encodeI(shamt, rd, 0x1, rd, 0x04), true
	case 0x1: // C.FLDSP
		offset := uint32(raw>>12&0x1)<<5 | uint32(raw>>5&0x3)<<3 | uint32(raw>>2&0x7)<<6
		return encodeI(offset, 2, 0x3, rd, 0x01), true
	case 0x2: // C.LWSP
		offset := uint32(raw>>12&0x1)<<5 | uint32(raw>>4&0x7)<<2 | uint32(raw>>2&0x3)<<6
		return encodeI(offset, 2, 0x2, rd, 0x00), true
	case 0x3: // C.LDSP
		offset := uint32(raw>>12&0x1)<<5 | uint32(raw>>5&0x3)<<3 | uint32(raw>>2&0x7)<<6
		return encodeI(offset, 2, 0x3, rd, 0x00), true
	case 0x4:
		hi := raw >> 12 & 0x1
		if hi == 0 {
			if rs2 == 0 { // C.JR -> jalr x0, 0(rd)
				if rd == 0 {
					return 0, false
				}
				return encodeI(0, rd, 0x0, 0, 0x19), true
			}
			// C.MV -> add rd, x0, rs2
			return encodeR(0x00, rs2, 0, 0x0, rd, 0x0c), true
		}
		if rs2 == 0 {
			if rd == 0 { // C.EBREAK
				return 0x00100073, true
			}
			// C.JALR -> jalr x1, 0(rd)
			return encodeI(0, rd, 0x0, 1, 0x19), true
		}
		// C.ADD -> add rd, rd, rs2
		return encodeR(0x00, rs2, rd, 0x0, rd, 0x0c), true
	case 0x5: // C.FSDSP
		offset := uint32(raw>>10&0x7)<<3 | uint32(raw>>7&0x7)<<6
		return encodeS(offset, rs2, 2, 0x3, 0x09), true
	case 0x6: // C.SWSP
		offset := uint32(raw>>9&0xf)<<2 | uint32(raw>>7&0x3)<<6
		return encodeS(offset, rs2, 2, 0x2, 0x08), true
	case 0x7: // C.SDSP
		offset := uint32(raw>>10&0x7)<<3 | uint32(raw>>7&0x7)<<6
		return encodeS(offset, rs2, 2, 0x3, 0x08), true
	}
	return 0, false
}

func signExtend6(v uint16, bits uint) int32 {
	shift := 16 - bits
	return int32(int16(v<<shift)) >> shift
}

func decodeCJImm(raw uint16) uint32 {
	imm := uint32(raw>>12&0x1)<<11 | uint32(raw>>11&0x1)<<4 | uint32(raw>>9&0x3)<<8 |
		uint32(raw>>8&0x1)<<10 | uint32(raw>>7&0x1)<<6 | uint32(raw>>6&0x1)<<7 |
		uint32(raw>>3&0x7)<<1 | uint32(raw>>2&0x1)<<5
	return uint32(signExtend(imm, 12))
}

func decodeCBImm(raw uint16) uint32 {
	imm := uint32(raw>>12&0x1)<<8 | uint32(raw>>10&0x3)<<3 | uint32(raw>>5&0x3)<<6 |
		uint32(raw>>3&0x3)<<1 | uint32(raw>>2&0x1)<<5
	return uint32(signExtend(imm, 9))
}

func encodeI(imm uint32, rs1, funct3, rd uint8, opcode baseOpcode) uint32 {
	return imm<<20 | uint32(rs1)<<15 | uint32(funct3)<<12 | uint32(rd)<<7 | uint32(opcode)<<2 | 0x3
}

func encodeS(imm uint32, rs2, rs1 uint8, funct3 uint8, opcode baseOpcode) uint32 {
	hi := imm >> 5 & 0x7f
	lo := imm & 0x1f
	return hi<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | uint32(funct3)<<12 | lo<<7 | uint32(opcode)<<2 | 0x3
}

func encodeR(funct7 uint32, rs2, rs1 uint8, funct3 uint8, rd uint8, opcode baseOpcode) uint32 {
	return funct7<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | uint32(funct3)<<12 | uint32(rd)<<7 | uint32(opcode)<<2 | 0x3
}

func encodeB(imm uint32, rs2, rs1 uint8, funct3 uint8, opcode baseOpcode) uint32 {
	b12 := imm >> 12 & 0x1
	b10_5 := imm >> 5 & 0x3f
	b4_1 := imm >> 1 & 0xf
	b11 := imm >> 11 & 0x1
	return b12<<31 | b10_5<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | uint32(funct3)<<12 | b4_1<<8 | b11<<7 | uint32(opcode)<<2 | 0x3
}

func encodeJ(imm uint32, rd uint8) uint32 {
	b20 := imm >> 20 & 0x1
	b10_1 := imm >> 1 & 0x3ff
	b11 := imm >> 11 & 0x1
	b19_12 := imm >> 12 & 0xff
	return b20<<31 | b10_1<<21 | b11<<20 | b19_12<<12 | uint32(rd)<<7 | uint32(boJAL)<<2 | 0x3
}
