package loader

import "testing"

func TestLoadFlatSingleSegment(t *testing.T) {
	data := []byte{0x13, 0x00, 0x00, 0x00} // addi x0, x0, 0
	prog := LoadFlat(data, 0x8000_0000)

	if prog.EntryPoint != 0x8000_0000 {
		t.Errorf("entry point = 0x%x, want 0x80000000", prog.EntryPoint)
	}
	if len(prog.Segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(prog.Segments))
	}
	seg := prog.Segments[0]
	if seg.VirtAddr != 0x8000_0000 {
		t.Errorf("segment VirtAddr = 0x%x, want 0x80000000", seg.VirtAddr)
	}
	if seg.MemSize != uint64(len(data)) {
		t.Errorf("segment MemSize = %d, want %d", seg.MemSize, len(data))
	}
	want := SegmentFlagExecute | SegmentFlagWrite | SegmentFlagRead
	if seg.Flags != want {
		t.Errorf("segment Flags = %v, want %v", seg.Flags, want)
	}
}

func TestLoadFlatUsesDefaultStackTop(t *testing.T) {
	prog := LoadFlat(nil, 0x8000_0000)
	if prog.InitialSP != DefaultStackTop {
		t.Errorf("InitialSP = 0x%x, want DefaultStackTop 0x%x", prog.InitialSP, DefaultStackTop)
	}
}

func TestWriteToZeroFillsBSS(t *testing.T) {
	prog := &Program{
		Segments: []Segment{{
			VirtAddr: 0x1000,
			Data:     []byte{1, 2, 3},
			MemSize:  6,
		}},
	}

	written := map[uint64][]byte{}
	prog.WriteTo(func(addr uint64, data []byte) {
		written[addr] = append([]byte(nil), data...)
	})

	if got := written[0x1000]; len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("data write = %v, want [1 2 3]", got)
	}
	if got := written[0x1003]; len(got) != 3 {
		t.Errorf("bss padding write length = %d, want 3", len(got))
	} else {
		for i, b := range got {
			if b != 0 {
				t.Errorf("bss byte %d = %d, want 0", i, b)
			}
		}
	}
}

func TestLoadELFRejectsNonELF(t *testing.T) {
	if _, err := LoadELF("elf_test.go"); err == nil {
		t.Errorf("expected LoadELF to reject a non-ELF file")
	}
}

func TestLoadELFRejectsMissingFile(t *testing.T) {
	if _, err := LoadELF("/nonexistent/path/to/image.elf"); err == nil {
		t.Errorf("expected LoadELF to fail for a missing file")
	}
}
