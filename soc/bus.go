// Package soc models the minimal system-on-chip around the pipeline: an
// address-decoded interconnect and the MMIO devices it dispatches to
// (CLINT, PLIC, UART, VirtIO block, Goldfish RTC, syscon).
package soc

import "sort"

// Device is any MMIO-mapped component the bus can route accesses to.
type Device interface {
	Base() uint64
	Size() uint64
	Read(offset uint64, width int) uint64
	Write(offset uint64, width int, value uint64)
	// Tick advances the device by one cycle and reports whether it is
	// asserting an interrupt line this cycle.
	Tick() (irq bool)
}

// AccessFault is returned by Bus.Read/Write when an address falls
// outside every registered device's range.
type AccessFault struct {
	Addr uint64
}

func (f *AccessFault) Error() string { return "bus access fault" }

// Bus is an address-decoded interconnect: devices are held sorted by
// base address and located via binary search.
type Bus struct {
	devices    []Device
	clint      *CLINT
	plic       *PLIC
	widthBytes int
	latencyCycles uint64
}

// NewBus returns an empty bus with the given default transfer width (for
// TransitTime) and per-beat latency.
func NewBus(widthBytes int, latencyCycles uint64) *Bus {
	return &Bus{widthBytes: widthBytes, latencyCycles: latencyCycles}
}

// Register adds a device to the bus, keeping the device list sorted by
// base address. CLINT and PLIC are also recorded specially since the
// pipeline needs to query their asserted-IRQ state directly.
func (b *Bus) Register(d Device) {
	b.devices = append(b.devices, d)
	sort.Slice(b.devices, func(i, j int) bool { return b.devices[i].Base() < b.devices[j].Base() })
	switch v := d.(type) {
	case *CLINT:
		b.clint = v
	case *PLIC:
		b.plic = v
	}
}

func (b *Bus) find(addr uint64) (Device, uint64, bool) {
	idx := sort.Search(len(b.devices), func(i int) bool {
		return b.devices[i].Base()+b.devices[i].Size() > addr
	})
	if idx >= len(b.devices) {
		return nil, 0, false
	}
	d := b.devices[idx]
	if addr < d.Base() {
		return nil, 0, false
	}
	return d, addr - d.Base(), true
}

// Read dispatches a read of width bytes at addr to its owning device.
func (b *Bus) Read(addr uint64, width int) (uint64, *AccessFault) {
	d, off, ok := b.find(addr)
	if !ok {
		return 0, &AccessFault{Addr: addr}
	}
	return d.Read(off, width), nil
}

// Write dispatches a write of width bytes at addr to its owning device.
func (b *Bus) Write(addr uint64, width int, value uint64) *AccessFault {
	d, off, ok := b.find(addr)
	if !ok {
		return &AccessFault{Addr: addr}
	}
	d.Write(off, width, value)
	return nil
}

// Tick advances every registered device exactly once, in base-address
// order (the order Register keeps the list in), not in registration
// order, and reports the timer-interrupt and PLIC-bitmap state the
// pipeline should consume at the start of the next cycle.
func (b *Bus) Tick() (timerIRQ bool, plicPending uint32) {
	for _, d := range b.devices {
		d.Tick()
	}
	if b.clint != nil {
		timerIRQ = b.clint.TimerIRQ()
	}
	if b.plic != nil {
		plicPending = b.plic.PendingBitmap()
	}
	return timerIRQ, plicPending
}

// TransitTime computes the bus transfer time for nbytes, per
// calculate_transit_time(bytes) = ceil(bytes/width)*latency.
func (b *Bus) TransitTime(nbytes int) uint64 {
	beats := (nbytes + b.widthBytes - 1) / b.widthBytes
	return uint64(beats) * b.latencyCycles
}
