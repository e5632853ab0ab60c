package cpu

import "github.com/rv64sim/rv64sim/isa"

// AMOUnit computes the read-modify-write value for an atomic memory
// operation. It does not perform the memory access itself; the pipeline's
// memory stage reads the old value, calls Compute, and writes the result
// back through the same cache port, so the reservation/ordering semantics
// live entirely in the bus and cache layers.
type AMOUnit struct{}

// NewAMOUnit returns a ready-to-use atomic unit.
func NewAMOUnit() *AMOUnit { return &AMOUnit{} }

// Compute returns the value to store back for an AMO op given the value
// read from memory (old) and the register operand (operand), at the
// given access width (4 or 8 bytes).
func (u *AMOUnit) Compute(op isa.Op, width uint8, old, operand uint64) uint64 {
	if width == 4 {
		return signExtend32(u.compute32(op, uint32(old), uint32(operand)))
	}
	return u.compute64(op, old, operand)
}

func (u *AMOUnit) compute64(op isa.Op, old, operand uint64) uint64 {
	switch op {
	case isa.OpAMOSWAP:
		return operand
	case isa.OpAMOADD:
		return old + operand
	case isa.OpAMOXOR:
		return old ^ operand
	case isa.OpAMOAND:
		return old & operand
	case isa.OpAMOOR:
		return old | operand
	case isa.OpAMOMIN:
		return pickU64(int64(old) < int64(operand), old, operand)
	case isa.OpAMOMAX:
		return pickU64(int64(old) > int64(operand), old, operand)
	case isa.OpAMOMINU:
		return pickU64(old < operand, old, operand)
	case isa.OpAMOMAXU:
		return pickU64(old > operand, old, operand)
	default:
		return old
	}
}

func (u *AMOUnit) compute32(op isa.Op, old, operand uint32) uint32 {
	switch op {
	case isa.OpAMOSWAP:
		return operand
	case isa.OpAMOADD:
		return old + operand
	case isa.OpAMOXOR:
		return old ^ operand
	case isa.OpAMOAND:
		return old & operand
	case isa.OpAMOOR:
		return old | operand
	case isa.OpAMOMIN:
		return pickU32(int32(old) < int32(operand), old, operand)
	case isa.OpAMOMAX:
		return pickU32(int32(old) > int32(operand), old, operand)
	case isa.OpAMOMINU:
		return pickU32(old < operand, old, operand)
	case isa.OpAMOMAXU:
		return pickU32(old > operand, old, operand)
	default:
		return old
	}
}

func pickU64(cond bool, a, b uint64) uint64 {
	if cond {
		return a
	}
	return b
}

func pickU32(cond bool, a, b uint32) uint32 {
	if cond {
		return a
	}
	return b
}
