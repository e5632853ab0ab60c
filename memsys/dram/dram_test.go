package dram

import "testing"

func TestRowBufferHit(t *testing.T) {
	c := New(DefaultConfig(), 1<<20)
	c.Access(0x100) // opens the row
	got := c.Access(0x104)
	if got != c.cfg.TCAS {
		t.Errorf("same-row access latency = %d, want TCAS=%d", got, c.cfg.TCAS)
	}
}

func TestRowBufferConflict(t *testing.T) {
	c := New(DefaultConfig(), 1<<20)
	c.Access(0x0)
	got := c.Access(uint64(c.cfg.RowSize) + 1)
	want := c.cfg.TPRE + c.cfg.TRAS + c.cfg.TCAS
	if got != want {
		t.Errorf("conflict latency = %d, want %d", got, want)
	}
}

func TestRowBufferEmpty(t *testing.T) {
	c := New(DefaultConfig(), 1<<20)
	got := c.Access(0x0)
	want := c.cfg.TRAS + c.cfg.TCAS
	if got != want {
		t.Errorf("empty-row latency = %d, want %d", got, want)
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	c := New(DefaultConfig(), 1<<20)
	c.Write(0x200, []byte{1, 2, 3, 4})
	got := c.Read(0x200, 4)
	for i, b := range []byte{1, 2, 3, 4} {
		if got[i] != b {
			t.Errorf("byte %d = %d, want %d", i, got[i], b)
		}
	}
}
