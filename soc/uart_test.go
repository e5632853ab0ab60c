package soc

import "testing"

func TestUARTTransmit(t *testing.T) {
	var out []byte
	u := NewUART(0x10000000, func(b byte) { out = append(out, b) })
	u.Write(uartTHR, 1, 'h')
	u.Write(uartTHR, 1, 'i')
	if string(out) != "hi" {
		t.Fatalf("out = %q, want %q", out, "hi")
	}
}

func TestUARTReceiveFIFOAndLSR(t *testing.T) {
	u := NewUART(0x10000000, nil)
	if u.Read(uartLSR, 1)&lsrDataReady != 0 {
		t.Fatal("LSR should not report data ready before input")
	}
	u.PushInput('a')
	u.PushInput('b')
	if u.Read(uartLSR, 1)&lsrDataReady == 0 {
		t.Fatal("LSR should report data ready after PushInput")
	}
	if got := u.Read(uartRBR, 1); got != uint64('a') {
		t.Fatalf("RBR = %c, want a", byte(got))
	}
	if u.Read(uartLSR, 1)&lsrDataReady == 0 {
		t.Fatal("LSR should still report data ready with one byte left")
	}
	u.Read(uartRBR, 1)
	if u.Read(uartLSR, 1)&lsrDataReady != 0 {
		t.Fatal("LSR should clear data ready once FIFO drains")
	}
}

func TestUARTIRQGatedByIER(t *testing.T) {
	u := NewUART(0x10000000, nil)
	u.PushInput('x')
	if u.Tick() {
		t.Fatal("should not assert IRQ before IER enables it")
	}
	u.Write(uartIER, 1, uint64(ierRxAvailable))
	if !u.Tick() {
		t.Fatal("expected IRQ once IER enables RX-available and data is pending")
	}
}
