package soc

import "testing"

type fakeDevice struct {
	base, size uint64
	reg        uint64
	irq        bool
}

func (d *fakeDevice) Base() uint64 { return d.base }
func (d *fakeDevice) Size() uint64 { return d.size }
func (d *fakeDevice) Read(offset uint64, width int) uint64 { return d.reg }
func (d *fakeDevice) Write(offset uint64, width int, value uint64) { d.reg = value }
func (d *fakeDevice) Tick() bool { return d.irq }

func TestBusDispatchesToOwningDevice(t *testing.T) {
	b := NewBus(8, 1)
	d1 := &fakeDevice{base: 0x1000, size: 0x100}
	d2 := &fakeDevice{base: 0x2000, size: 0x100}
	b.Register(d2)
	b.Register(d1)

	if err := b.Write(0x1010, 8, 42); err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if d1.reg != 42 {
		t.Fatalf("d1.reg = %d, want 42", d1.reg)
	}

	v, err := b.Read(0x2000, 8)
	if err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if v != 0 {
		t.Fatalf("d2.reg = %d, want 0", v)
	}
}

func TestBusAccessFaultOutOfRange(t *testing.T) {
	b := NewBus(8, 1)
	b.Register(&fakeDevice{base: 0x1000, size: 0x100})

	_, err := b.Read(0x5000, 8)
	if err == nil {
		t.Fatal("expected access fault")
	}
}

func TestBusTickAggregatesCLINTAndPLIC(t *testing.T) {
	b := NewBus(8, 1)
	clint := NewCLINT(0x2000000)
	plic := NewPLIC(0xc000000)
	b.Register(clint)
	b.Register(plic)

	clint.mtimecmp = 5
	plic.priority[3] = 2
	plic.enable = 1 << 3
	plic.SetPending(3, true)

	var timerIRQ bool
	var pending uint32
	for i := 0; i < 6; i++ {
		timerIRQ, pending = b.Tick()
	}
	if !timerIRQ {
		t.Fatal("expected timer IRQ after mtime reached mtimecmp")
	}
	if pending&(1<<3) == 0 {
		t.Fatal("expected source 3 pending in bitmap")
	}
}

func TestBusTransitTime(t *testing.T) {
	b := NewBus(8, 10)
	if got := b.TransitTime(16); got != 20 {
		t.Fatalf("TransitTime(16) = %d, want 20", got)
	}
	if got := b.TransitTime(1); got != 10 {
		t.Fatalf("TransitTime(1) = %d, want 10", got)
	}
}
