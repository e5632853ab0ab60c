package cpu

import (
	"math"

	"github.com/rv64sim/rv64sim/isa"
)

// FPU performs F/D extension arithmetic. It operates on raw bit patterns
// so that the pipeline does not need to know about NaN-boxing; callers
// read/write through FPRegFile's ReadSingle/ReadDouble helpers.
type FPU struct{}

// NewFPU returns a ready-to-use FPU.
func NewFPU() *FPU { return &FPU{} }

// ExecDouble computes a double-precision FP-class result.
func (u *FPU) ExecDouble(op isa.Op, a, b, c uint64) uint64 {
	x, y, z := math.Float64frombits(a), math.Float64frombits(b), math.Float64frombits(c)
	switch op {
	case isa.OpFADD:
		return math.Float64bits(x + y)
	case isa.OpFSUB:
		return math.Float64bits(x - y)
	case isa.OpFMUL:
		return math.Float64bits(x * y)
	case isa.OpFDIV:
		return math.Float64bits(x / y)
	case isa.OpFSQRT:
		return math.Float64bits(math.Sqrt(x))
	case isa.OpFMIN:
		return math.Float64bits(fmin(x, y))
	case isa.OpFMAX:
		return math.Float64bits(fmax(x, y))
	case isa.OpFSGNJ:
		return math.Float64bits(math.Copysign(x, y))
	case isa.OpFMADD:
		return math.Float64bits(x*y + z)
	case isa.OpFMSUB:
		return math.Float64bits(x*y - z)
	case isa.OpFNMADD:
		return math.Float64bits(-(x*y + z))
	case isa.OpFNMSUB:
		return math.Float64bits(-(x*y - z))
	default:
		return 0
	}
}

// ExecSingle computes a single-precision FP-class result.
func (u *FPU) ExecSingle(op isa.Op, a, b, c uint32) uint32 {
	x, y, z := math.Float32frombits(a), math.Float32frombits(b), math.Float32frombits(c)
	switch op {
	case isa.OpFADD:
		return math.Float32bits(x + y)
	case isa.OpFSUB:
		return math.Float32bits(x - y)
	case isa.OpFMUL:
		return math.Float32bits(x * y)
	case isa.OpFDIV:
		return math.Float32bits(x / y)
	case isa.OpFSQRT:
		return math.Float32bits(float32(math.Sqrt(float64(x))))
	case isa.OpFMIN:
		return math.Float32bits(float32(fmin(float64(x), float64(y))))
	case isa.OpFMAX:
		return math.Float32bits(float32(fmax(float64(x), float64(y))))
	case isa.OpFSGNJ:
		return math.Float32bits(float32(math.Copysign(float64(x), float64(y))))
	case isa.OpFMADD:
		return math.Float32bits(x*y + z)
	case isa.OpFMSUB:
		return math.Float32bits(x*y - z)
	case isa.OpFNMADD:
		return math.Float32bits(-(x*y + z))
	case isa.OpFNMSUB:
		return math.Float32bits(-(x*y - z))
	default:
		return 0
	}
}

// Compare implements FEQ/FLT/FLE-family comparisons (funct3 selects
// which) and returns 1/0 for the integer destination register.
func (u *FPU) Compare(funct3 uint8, double bool, a, b uint64) uint64 {
	var x, y float64
	if double {
		x, y = math.Float64frombits(a), math.Float64frombits(b)
	} else {
		x, y = float64(math.Float32frombits(uint32(a))), float64(math.Float32frombits(uint32(b)))
	}
	var r bool
	switch funct3 {
	case 0x2:
		r = x == y
	case 0x1:
		r = x < y
	case 0x0:
		r = x <= y
	}
	return boolToU64(r)
}

// ConvertToInt converts a float to a signed or unsigned integer,
// truncating toward zero, per FCVT.*.*.
func (u *FPU) ConvertToInt(double, unsigned, is32 bool, bits uint64) uint64 {
	var f float64
	if double {
		f = math.Float64frombits(bits)
	} else {
		f = float64(math.Float32frombits(uint32(bits)))
	}
	if unsigned {
		if is32 {
			return uint64(uint32(f))
		}
		return uint64(f)
	}
	if is32 {
		return signExtend32(uint32(int32(f)))
	}
	return uint64(int64(f))
}

// ConvertFromInt converts an integer to float, per FCVT.*.*.
func (u *FPU) ConvertFromInt(double, unsigned, is32 bool, v uint64) uint64 {
	var f float64
	switch {
	case unsigned && is32:
		f = float64(uint32(v))
	case unsigned:
		f = float64(v)
	case is32:
		f = float64(int32(v))
	default:
		f = float64(int64(v))
	}
	if double {
		return math.Float64bits(f)
	}
	return uint64(math.Float32bits(float32(f)))
}

// ConvertFormat implements FCVT.S.D / FCVT.D.S: widening or narrowing
// between the two supported floating-point formats.
func (u *FPU) ConvertFormat(toDouble bool, bits uint64) uint64 {
	if toDouble {
		return math.Float64bits(float64(math.Float32frombits(uint32(bits))))
	}
	return uint64(math.Float32bits(float32(math.Float64frombits(bits))))
}

// Classify implements FCLASS.*, returning the RISC-V class bitmask.
func (u *FPU) Classify(double bool, bits uint64) uint64 {
	var f float64
	if double {
		f = math.Float64frombits(bits)
	} else {
		f = float64(math.Float32frombits(uint32(bits)))
	}
	switch {
	case math.IsNaN(f):
		return 1 << 9 // quiet NaN bucket; signalling-NaN distinction is not tracked
	case math.IsInf(f, -1):
		return 1 << 0
	case math.IsInf(f, 1):
		return 1 << 7
	case f == 0:
		return boolPick(math.Signbit(f), 1<<3, 1<<4)
	default:
		return boolPick(f < 0, 1<<1, 1<<6)
	}
}

func boolPick(b bool, t, f uint64) uint64 {
	if b {
		return t
	}
	return f
}

func fmin(x, y float64) float64 {
	if math.IsNaN(x) {
		return y
	}
	if math.IsNaN(y) {
		return x
	}
	return math.Min(x, y)
}

func fmax(x, y float64) float64 {
	if math.IsNaN(x) {
		return y
	}
	if math.IsNaN(y) {
		return x
	}
	return math.Max(x, y)
}
