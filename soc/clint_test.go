package soc

import "testing"

func TestCLINTTimerIRQ(t *testing.T) {
	c := NewCLINT(0x2000000)
	c.Write(clintMTimeCmp, 4, 3)
	if c.TimerIRQ() {
		t.Fatal("should not fire before mtime reaches mtimecmp")
	}
	for i := 0; i < 3; i++ {
		c.Tick()
	}
	if !c.TimerIRQ() {
		t.Fatal("expected timer IRQ once mtime >= mtimecmp")
	}
}

func TestCLINTMtimeSplitRegisters(t *testing.T) {
	c := NewCLINT(0x2000000)
	c.Write(clintMTime, 4, 0xaabbccdd)
	c.Write(clintMTime+4, 4, 0x11223344)
	if c.mtime != 0x11223344aabbccdd {
		t.Fatalf("mtime = %#x", c.mtime)
	}
	if got := c.Read(clintMTime, 4); got != 0xaabbccdd {
		t.Fatalf("Read(low) = %#x", got)
	}
	if got := c.Read(clintMTime+4, 4); got != 0x11223344 {
		t.Fatalf("Read(high) = %#x", got)
	}
}

func TestCLINTSoftwareIRQ(t *testing.T) {
	c := NewCLINT(0x2000000)
	if c.SoftwareIRQ() {
		t.Fatal("should not be asserted initially")
	}
	c.Write(clintMSIP, 4, 1)
	if !c.SoftwareIRQ() {
		t.Fatal("expected software IRQ after MSIP write")
	}
}
