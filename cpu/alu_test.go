package cpu

import (
	"testing"

	"github.com/rv64sim/rv64sim/isa"
)

func TestALUBasicOps(t *testing.T) {
	a := NewALU()
	cases := []struct {
		op   isa.Op
		x, y uint64
		want uint64
	}{
		{isa.OpADD, 1, 2, 3},
		{isa.OpSUB, 5, 2, 3},
		{isa.OpAND, 0xff, 0x0f, 0x0f},
		{isa.OpOR, 0xf0, 0x0f, 0xff},
		{isa.OpXOR, 0xff, 0xff, 0x0},
		{isa.OpSLTU, 1, 2, 1},
		{isa.OpSLT, ^uint64(0), 1, 1}, // -1 < 1
	}
	for _, c := range cases {
		got := a.Exec(c.op, false, c.x, c.y)
		if got != c.want {
			t.Errorf("op %v(%d,%d) = %d, want %d", c.op, c.x, c.y, got, c.want)
		}
	}
}

func TestALUDivByZero(t *testing.T) {
	a := NewALU()
	if got := a.Exec(isa.OpDIV, false, 10, 0); got != ^uint64(0) {
		t.Errorf("DIV by zero = %d, want all-ones", got)
	}
	if got := a.Exec(isa.OpDIVU, false, 10, 0); got != ^uint64(0) {
		t.Errorf("DIVU by zero = %d, want all-ones", got)
	}
	if got := a.Exec(isa.OpREM, false, 10, 0); got != 10 {
		t.Errorf("REM by zero = %d, want dividend", got)
	}
}

func TestALUDivOverflow(t *testing.T) {
	a := NewALU()
	mi := int64(minInt64)
	got := a.Exec(isa.OpDIV, false, uint64(mi), ^uint64(0))
	if got != uint64(mi) {
		t.Errorf("MININT/-1 = %d, want MININT unchanged", int64(got))
	}
}

func TestALU32BitSignExtension(t *testing.T) {
	a := NewALU()
	got := a.Exec(isa.OpADDW, true, 0x7fffffff, 1)
	if got != uint64(uint64(0xffffffff80000000)) {
		t.Errorf("ADDW overflow sign-extend = %#x", got)
	}
}

func TestRegFileX0Hardwired(t *testing.T) {
	rf := NewRegFile()
	rf.Write(0, 123)
	if rf.Read(0) != 0 {
		t.Errorf("x0 write should be dropped")
	}
	rf.Write(5, 99)
	if rf.Read(5) != 99 {
		t.Errorf("x5 write/read mismatch")
	}
}

func TestFPRegFileNaNBoxing(t *testing.T) {
	rf := NewFPRegFile()
	rf.WriteSingle(1, 0x3f800000) // 1.0f
	if rf.ReadDouble(1)>>32 != 0xffffffff {
		t.Errorf("single write did not NaN-box upper bits")
	}
	if rf.ReadSingle(1) != 0x3f800000 {
		t.Errorf("round-trip single mismatch")
	}
}

func TestAMOUnitCompute(t *testing.T) {
	u := NewAMOUnit()
	if got := u.Compute(isa.OpAMOADD, 8, 10, 5); got != 15 {
		t.Errorf("AMOADD = %d, want 15", got)
	}
	if got := u.Compute(isa.OpAMOSWAP, 8, 10, 5); got != 5 {
		t.Errorf("AMOSWAP = %d, want 5", got)
	}
	if got := u.Compute(isa.OpAMOMAXU, 8, 1, 2); got != 2 {
		t.Errorf("AMOMAXU = %d, want 2", got)
	}
}
