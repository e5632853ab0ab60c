package cpu

import "github.com/rv64sim/rv64sim/isa"

// ALU performs the integer arithmetic/logic and M-extension operations.
// It is a pure function of its operands; it carries no state of its own,
// mirroring the teacher's stateless per-op method set.
type ALU struct{}

// NewALU returns a ready-to-use ALU.
func NewALU() *ALU { return &ALU{} }

// Exec computes the result of an ALU-class instruction given its two
// operands (already read from the register file or forwarded). For
// immediate shifts a2 carries the decoded shift amount.
func (a *ALU) Exec(op isa.Op, is32 bool, a1, a2 uint64) uint64 {
	if is32 {
		return signExtend32(a.exec32(op, uint32(a1), uint32(a2)))
	}
	return a.exec64(op, a1, a2)
}

func (a *ALU) exec64(op isa.Op, x, y uint64) uint64 {
	switch op {
	case isa.OpADD:
		return x + y
	case isa.OpSUB:
		return x - y
	case isa.OpSLL:
		return x << (y & 0x3f)
	case isa.OpSLT:
		return boolToU64(int64(x) < int64(y))
	case isa.OpSLTU:
		return boolToU64(x < y)
	case isa.OpXOR:
		return x ^ y
	case isa.OpSRL:
		return x >> (y & 0x3f)
	case isa.OpSRA:
		return uint64(int64(x) >> (y & 0x3f))
	case isa.OpOR:
		return x | y
	case isa.OpAND:
		return x & y
	case isa.OpLUI:
		return y
	case isa.OpAUIPC:
		return x + y
	case isa.OpMUL:
		return x * y
	case isa.OpMULH:
		return uint64(mulHighSigned(int64(x), int64(y)))
	case isa.OpMULHU:
		return mulHighUnsigned(x, y)
	case isa.OpMULHSU:
		return uint64(mulHighSignedUnsigned(int64(x), y))
	case isa.OpDIV:
		return divSigned(int64(x), int64(y))
	case isa.OpDIVU:
		return divUnsigned(x, y)
	case isa.OpREM:
		return remSigned(int64(x), int64(y))
	case isa.OpREMU:
		return remUnsigned(x, y)
	default:
		return 0
	}
}

func (a *ALU) exec32(op isa.Op, x, y uint32) uint32 {
	switch op {
	case isa.OpADDW:
		return x + y
	case isa.OpSUBW:
		return x - y
	case isa.OpSLLW:
		return x << (y & 0x1f)
	case isa.OpSRLW:
		return x >> (y & 0x1f)
	case isa.OpSRAW:
		return uint32(int32(x) >> (y & 0x1f))
	case isa.OpMULW:
		return x * y
	case isa.OpDIVW:
		return uint32(divSigned(int64(int32(x)), int64(int32(y))))
	case isa.OpDIVUW:
		return uint32(divUnsigned(uint64(x), uint64(y)))
	case isa.OpREMW:
		return uint32(remSigned(int64(int32(x)), int64(int32(y))))
	case isa.OpREMUW:
		return uint32(remUnsigned(uint64(x), uint64(y)))
	default:
		return 0
	}
}

func signExtend32(v uint32) uint64 {
	return uint64(int64(int32(v)))
}

func boolToU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func mulHighSigned(x, y int64) int64 {
	hi, _ := bitsMulSigned(x, y)
	return hi
}

func mulHighUnsigned(x, y uint64) uint64 {
	hi, _ := bitsMul(x, y)
	return hi
}

func mulHighSignedUnsigned(x int64, y uint64) int64 {
	neg := x < 0
	ux := uint64(x)
	if neg {
		ux = -ux
	}
	hi, lo := bitsMul(ux, y)
	if neg {
		hi = ^hi
		if lo == 0 {
			hi++
		}
	}
	return int64(hi)
}

// divSigned implements RISC-V's division-by-zero and overflow semantics:
// div by zero yields -1, and the most-negative-value / -1 overflow case
// yields the dividend unchanged.
func divSigned(x, y int64) uint64 {
	if y == 0 {
		return ^uint64(0)
	}
	if x == minInt64 && y == -1 {
		return uint64(x)
	}
	return uint64(x / y)
}

func divUnsigned(x, y uint64) uint64 {
	if y == 0 {
		return ^uint64(0)
	}
	return x / y
}

func remSigned(x, y int64) uint64 {
	if y == 0 {
		return uint64(x)
	}
	if x == minInt64 && y == -1 {
		return 0
	}
	return uint64(x % y)
}

func remUnsigned(x, y uint64) uint64 {
	if y == 0 {
		return x
	}
	return x % y
}

const minInt64 = -1 << 63
