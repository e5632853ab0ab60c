// Command rv64sim runs a flat binary or ELF image on the RV64GC
// cycle-accurate pipeline, wiring together the memory hierarchy, MMU,
// and SoC devices per a JSON configuration file.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rv64sim/rv64sim/bpu"
	"github.com/rv64sim/rv64sim/config"
	"github.com/rv64sim/rv64sim/cpu"
	"github.com/rv64sim/rv64sim/loader"
	"github.com/rv64sim/rv64sim/memsys/cache"
	"github.com/rv64sim/rv64sim/memsys/dram"
	"github.com/rv64sim/rv64sim/memsys/mmu"
	"github.com/rv64sim/rv64sim/pipeline"
	"github.com/rv64sim/rv64sim/soc"
	"github.com/rv64sim/rv64sim/stats"
)

var (
	configPath = flag.String("config", "", "Path to simulator configuration JSON file")
	diskPath   = flag.String("disk", "", "Path to a raw disk image backing the VirtIO block device")
	cycleCap   = flag.Uint64("max-cycles", 0, "Stop after this many cycles (0 = unbounded)")
	verbose    = flag.Bool("v", false, "Verbose output")
	dumpStats  = flag.Bool("stats", false, "Print the full statistics registry on exit")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: rv64sim [options] <image>\n\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	imagePath := flag.Arg(0)

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	prog, err := loadImage(imagePath, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading image: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("Loaded: %s\n", imagePath)
		fmt.Printf("Entry point: 0x%x\n", prog.EntryPoint)
		fmt.Printf("Segments: %d\n", len(prog.Segments))
	}

	sys, err := newMachine(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error constructing machine: %v\n", err)
		os.Exit(1)
	}

	prog.WriteTo(sys.dram.LoadImage)
	sys.pipe.SetPC(prog.EntryPoint)

	exitCode := sys.run(*cycleCap)

	if *verbose || *dumpStats {
		s := sys.pipe.Stats()
		fmt.Printf("\nCycles: %d\n", s.Cycles)
		fmt.Printf("Instructions: %d\n", s.Instructions)
		fmt.Printf("CPI: %.3f\n", s.CPI)
		fmt.Printf("Stalls: %d  Branches: %d  Flushes: %d  Mispredicts: %d\n",
			s.Stalls, s.Branches, s.Flushes, s.Mispredicts)
	}
	if *dumpStats {
		reg := stats.NewRegistry()
		sys.exportStats(reg)
		fmt.Print(reg.String())
	}

	os.Exit(int(exitCode))
}

// loadImage loads path as an ELF if it carries an ELF magic number,
// otherwise as a flat image at the configured RAM base.
func loadImage(path string, cfg *config.Config) (*loader.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) >= 4 && data[0] == 0x7f && data[1] == 'E' && data[2] == 'L' && data[3] == 'F' {
		return loader.LoadELF(path)
	}
	return loader.LoadFlat(data, cfg.Memory.RAMBase), nil
}

// system bundles every component wired for one simulation run.
type system struct {
	pipe   *pipeline.Pipeline
	bus    *soc.Bus
	syscon *soc.Syscon
	dram   *dram.Controller
	l1i    *cache.Cache
	l1d    *cache.Cache
	l2     *cache.Cache
	l3     *cache.Cache
}

func (m *system) run(cycleCap uint64) int64 {
	var cycles uint64
	for !m.pipe.Halted() {
		timerIRQ, plicPending := m.bus.Tick()
		csrSetAsyncInterrupts(m.pipe, timerIRQ, plicPending)

		m.pipe.Tick()
		m.drainPrefetches()
		cycles++

		if m.syscon.ShutdownRequested() {
			break
		}
		if cycleCap != 0 && cycles >= cycleCap {
			break
		}
	}
	return m.pipe.ExitCode()
}

// drainPrefetches issues each level's accumulated prefetch requests into
// that same level. Addresses observed by a cache's prefetcher are already
// the physical addresses Read/Write were called with, so no translation
// step sits between drain and issue; a request for a line the backing
// store can't supply (an L3 miss past the end of DRAM, say) just costs a
// silently-absorbed miss the way any speculative fetch would.
func (m *system) drainPrefetches() {
	for _, c := range [...]*cache.Cache{m.l1i, m.l1d, m.l2, m.l3} {
		for _, addr := range c.DrainPrefetches() {
			c.IssuePrefetch(addr)
		}
	}
}

func (m *system) exportStats(reg *stats.Registry) {
	m.pipe.ExportStats(reg)
	m.l1i.ExportStats(reg, "l1i")
	m.l1d.ExportStats(reg, "l1d")
	m.l2.ExportStats(reg, "l2")
	m.l3.ExportStats(reg, "l3")
}

// newMachine wires the register files, memory hierarchy, MMU, SoC
// devices, and pipeline named by cfg into one ready-to-run system.
func newMachine(cfg *config.Config) (*system, error) {
	regFile := cpu.NewRegFile()
	fpRegFile := cpu.NewFPRegFile()
	csr := cpu.NewCSRFile()

	dramSize := cfg.Memory.RAMBase + cfg.Memory.RAMSize
	dramCtrl := dram.New(cfg.Memory.Resolve(), dramSize)

	l3Cfg := cfg.Memory.L3.Resolve(cfg.Seed)
	l3Cfg.MissLatency = dramCtrl.LastLatency(0)
	l3 := cache.New(l3Cfg, dramCtrl)

	l2Cfg := cfg.Memory.L2.Resolve(cfg.Seed)
	l2Cfg.MissLatency = cfg.Memory.L3.Latency
	l2 := cache.New(l2Cfg, cache.NewLevelBacking(l3))

	l1iCfg := cfg.Memory.L1I.Resolve(cfg.Seed)
	l1iCfg.MissLatency = cfg.Memory.L2.Latency
	l1i := cache.New(l1iCfg, cache.NewLevelBacking(l2))

	l1dCfg := cfg.Memory.L1D.Resolve(cfg.Seed)
	l1dCfg.MissLatency = cfg.Memory.L2.Latency
	l1d := cache.New(l1dCfg, cache.NewLevelBacking(l2))

	mmuUnit := mmu.New(cfg.Memory.TLBSize, cfg.Memory.TLBSize, cache.NewLevelBacking(l1d))

	bus := soc.NewBus(8, 1)
	clint := soc.NewCLINT(cfg.SoC.CLINTBase)
	plic := soc.NewPLIC(cfg.SoC.PLICBase)
	sysconDev := soc.NewSyscon(cfg.SoC.SysconBase)
	uart := soc.NewUART(cfg.SoC.UARTBase, func(b byte) { os.Stdout.Write([]byte{b}) })
	rtc := soc.NewRTC(cfg.SoC.RTCBase, func() uint64 { return uint64(time.Now().UnixNano()) })
	bus.Register(clint)
	bus.Register(plic)
	bus.Register(sysconDev)
	bus.Register(uart)
	bus.Register(rtc)

	if *diskPath != "" {
		disk, err := os.ReadFile(*diskPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read disk image: %w", err)
		}
		bus.Register(soc.NewVirtIOBlock(cfg.SoC.DiskBase, disk, 8, dramCtrl))
	}

	predictor := cfg.Pipeline.NewPredictor()
	btbSets, btbWays := btbShape(cfg.Pipeline.BTBSize)
	btb := bpu.NewBTB(btbSets, btbWays)
	ras := bpu.NewRAS(cfg.Pipeline.RASSize)

	pipe := pipeline.NewPipeline(regFile, fpRegFile, csr, l1i, l1d, mmuUnit, bus, predictor, btb, ras)

	return &system{
		pipe:   pipe,
		bus:    bus,
		syscon: sysconDev,
		dram:   dramCtrl,
		l1i:    l1i,
		l1d:    l1d,
		l2:     l2,
		l3:     l3,
	}, nil
}

// btbShape picks a power-of-two set count and way count whose product is
// at least entries, the shape bpu.NewBTB expects.
func btbShape(entries int) (sets, ways int) {
	if entries <= 0 {
		entries = 64
	}
	ways = 4
	sets = 1
	for sets*ways < entries {
		sets <<= 1
	}
	return sets, ways
}

// csrSetAsyncInterrupts posts the SoC's timer and external interrupt
// lines into mip ahead of the pipeline's per-cycle interrupt check.
func csrSetAsyncInterrupts(pipe *pipeline.Pipeline, timerIRQ bool, plicPending uint32) {
	pipe.SetExternalInterrupts(timerIRQ, plicPending != 0)
}
