// Package loader provides binary image loading for RV64 executables:
// raw flat images loaded at a fixed base, or ELF binaries via debug/elf.
package loader

import (
	"debug/elf"
	"fmt"
	"io"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// DefaultLoadBase is the conventional RV64 bare-metal load address, the
// base of simulated DRAM in the default memory map.
const DefaultLoadBase = 0x8000_0000

// DefaultStackTop is the default initial stack pointer for a bare-metal
// image with no ELF-provided stack hint: the top of a 256MiB DRAM
// region starting at DefaultLoadBase.
const DefaultStackTop = DefaultLoadBase + 256*1024*1024 - 16

// Segment represents a loadable segment from a binary image.
type Segment struct {
	// VirtAddr is the virtual (here, physical — the loader runs before
	// any page table exists) address where this segment should be
	// loaded.
	VirtAddr uint64
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint64
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Program represents a loaded program image ready for execution.
type Program struct {
	// EntryPoint is the address where execution should begin.
	EntryPoint uint64
	// Segments contains all loadable segments from the image.
	Segments []Segment
	// InitialSP is the initial stack pointer value.
	InitialSP uint64
}

// LoadFlat wraps a raw binary blob as a single executable, writable,
// readable segment loaded at base, matching the flat-image path spec.md
// §6 names for images with no ELF headers.
func LoadFlat(data []byte, base uint64) *Program {
	return &Program{
		EntryPoint: base,
		InitialSP:  DefaultStackTop,
		Segments: []Segment{{
			VirtAddr: base,
			Data:     data,
			MemSize:  uint64(len(data)),
			Flags:    SegmentFlagExecute | SegmentFlagWrite | SegmentFlagRead,
		}},
	}
}

// LoadELF parses an RV64 ELF binary and returns a Program struct ready
// for loading into simulated memory.
func LoadELF(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS64 {
		return nil, fmt.Errorf("not a 64-bit ELF file")
	}
	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("not a RISC-V ELF file (machine type: %v)", f.Machine)
	}

	prog := &Program{
		EntryPoint: f.Entry,
		InitialSP:  DefaultStackTop,
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Vaddr, n, phdr.Filesz)
			}
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		prog.Segments = append(prog.Segments, Segment{
			VirtAddr: phdr.Vaddr,
			Data:     data,
			MemSize:  phdr.Memsz,
			Flags:    flags,
		})
	}

	return prog, nil
}

// WriteTo copies every segment of prog into mem via write, zero-filling
// the BSS tail (MemSize beyond len(Data)) of each segment.
func (p *Program) WriteTo(write func(addr uint64, data []byte)) {
	for _, seg := range p.Segments {
		write(seg.VirtAddr, seg.Data)
		if pad := seg.MemSize - uint64(len(seg.Data)); pad > 0 {
			write(seg.VirtAddr+uint64(len(seg.Data)), make([]byte, pad))
		}
	}
}
