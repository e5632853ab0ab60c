// Package config loads and validates the nested simulator configuration
// record, in the same encoding/json load/save/validate idiom the
// teacher's timing/latency package uses for its TimingConfig.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rv64sim/rv64sim/bpu"
	"github.com/rv64sim/rv64sim/memsys/cache"
	"github.com/rv64sim/rv64sim/memsys/dram"
)

// BranchPredictorConfig selects a direction predictor and its
// kind-specific sizing parameters.
type BranchPredictorConfig struct {
	Kind            string `json:"kind"` // static, gshare, tournament, perceptron, tage
	TableBits       uint   `json:"table_bits"`
	HistoryBits     uint   `json:"history_bits"`
	PerceptronCount int    `json:"perceptron_count"`
	Theta           int32  `json:"theta"`
	TAGETables      int    `json:"tage_tables"`
	ResetInterval   uint64 `json:"reset_interval"`
}

// PipelineConfig holds the front-end sizing knobs.
type PipelineConfig struct {
	Width           int                   `json:"width"`
	BTBSize         int                   `json:"btb_size"`
	RASSize         int                   `json:"ras_size"`
	BranchPredictor BranchPredictorConfig `json:"branch_predictor"`
}

// CacheConfig describes one cache level. Size/line/way are in the units
// named by their field. Enabled only decides whether Validate checks the
// level's fields; cmd/rv64sim builds all four levels whatever its value.
type CacheConfig struct {
	Enabled           bool   `json:"enabled"`
	SizeBytes         int    `json:"size_bytes"`
	LineBytes         int    `json:"line_bytes"`
	Ways              int    `json:"ways"`
	Policy            string `json:"policy"`     // LRU, PLRU, FIFO, MRU, Random
	Latency           uint64 `json:"latency"`
	Prefetcher        string `json:"prefetcher"` // None, NextLine, Stride, Stream, Tagged
	PrefetchTableSize int    `json:"prefetch_table_size"`
	PrefetchDegree    int    `json:"prefetch_degree"`
}

// DRAMConfig holds the row-buffer timing model.
type DRAMConfig struct {
	TRAS uint64 `json:"t_ras"`
	TCAS uint64 `json:"t_cas"`
	TPRE uint64 `json:"t_pre"`
}

// MemoryConfig holds the address map and memory-hierarchy sizing.
type MemoryConfig struct {
	RAMBase uint64     `json:"ram_base"`
	RAMSize uint64     `json:"ram_size"`
	TLBSize int        `json:"tlb_size"`
	DRAM    DRAMConfig `json:"dram"`
	L1I     CacheConfig `json:"l1i"`
	L1D     CacheConfig `json:"l1d"`
	L2      CacheConfig `json:"l2"`
	L3      CacheConfig `json:"l3"`
}

// SoCConfig holds the MMIO device base addresses.
type SoCConfig struct {
	UARTBase   uint64 `json:"uart_base"`
	CLINTBase  uint64 `json:"clint_base"`
	PLICBase   uint64 `json:"plic_base"`
	DiskBase   uint64 `json:"disk_base"`
	SysconBase uint64 `json:"syscon_base"`
	RTCBase    uint64 `json:"rtc_base"`
}

// Config is the top-level nested record, mirroring spec.md's
// pipeline/memory/soc shape one to one.
type Config struct {
	Seed     uint64         `json:"seed"`
	Pipeline PipelineConfig `json:"pipeline"`
	Memory   MemoryConfig   `json:"memory"`
	SoC      SoCConfig      `json:"soc"`
}

// Default returns the simulator's default configuration: the device
// memory map and cache/predictor shape spec.md §6 names.
func Default() *Config {
	return &Config{
		Seed: 1,
		Pipeline: PipelineConfig{
			Width:   1,
			BTBSize: 512,
			RASSize: 16,
			BranchPredictor: BranchPredictorConfig{
				Kind:        "gshare",
				TableBits:   12,
				HistoryBits: 12,
			},
		},
		Memory: MemoryConfig{
			RAMBase: 0x8000_0000,
			RAMSize: 256 * 1024 * 1024,
			TLBSize: 64,
			DRAM: DRAMConfig{
				TRAS: 28,
				TCAS: 14,
				TPRE: 14,
			},
			L1I: CacheConfig{Enabled: true, SizeBytes: 32 * 1024, LineBytes: 64, Ways: 4, Policy: "LRU", Latency: 1, Prefetcher: "None"},
			L1D: CacheConfig{Enabled: true, SizeBytes: 32 * 1024, LineBytes: 64, Ways: 8, Policy: "LRU", Latency: 2, Prefetcher: "None"},
			L2:  CacheConfig{Enabled: true, SizeBytes: 256 * 1024, LineBytes: 64, Ways: 8, Policy: "PLRU", Latency: 12, Prefetcher: "NextLine"},
			L3:  CacheConfig{Enabled: true, SizeBytes: 8 * 1024 * 1024, LineBytes: 64, Ways: 16, Policy: "Random", Latency: 30, Prefetcher: "None"},
		},
		SoC: SoCConfig{
			SysconBase: 0x0010_0000,
			CLINTBase:  0x0200_0000,
			PLICBase:   0x0C00_0000,
			UARTBase:   0x1000_0000,
			DiskBase:   0x1000_1000,
			RTCBase:    0x0010_1000,
		},
	}
}

// Load reads a Config from a JSON file, overlaying it onto the default
// configuration so an incomplete file still yields sane values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Save writes a Config to a JSON file.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks cross-field consistency fatal host errors must catch
// at construction: device or RAM bases that share an address, zero cache
// ways, and similar configuration-time mistakes. The config carries no
// device sizes, so ranges that overlap without sharing a base are not
// detected.
func (c *Config) Validate() error {
	if c.Pipeline.Width <= 0 {
		return fmt.Errorf("pipeline.width must be > 0")
	}
	if c.Memory.RAMSize == 0 {
		return fmt.Errorf("memory.ram_size must be > 0")
	}
	if c.Memory.TLBSize <= 0 {
		return fmt.Errorf("memory.tlb_size must be > 0")
	}
	for name, cc := range map[string]CacheConfig{"l1i": c.Memory.L1I, "l1d": c.Memory.L1D, "l2": c.Memory.L2, "l3": c.Memory.L3} {
		if !cc.Enabled {
			continue
		}
		if cc.Ways <= 0 {
			return fmt.Errorf("memory.%s.ways must be > 0", name)
		}
		if cc.SizeBytes <= 0 {
			return fmt.Errorf("memory.%s.size_bytes must be > 0", name)
		}
		if cc.LineBytes <= 0 || cc.LineBytes&(cc.LineBytes-1) != 0 {
			return fmt.Errorf("memory.%s.line_bytes must be a positive power of two", name)
		}
		if cc.SizeBytes%(cc.LineBytes*cc.Ways) != 0 {
			return fmt.Errorf("memory.%s.size_bytes must divide evenly into line_bytes*ways sets", name)
		}
	}

	bases := map[string]uint64{
		"soc.syscon_base": c.SoC.SysconBase,
		"soc.clint_base":  c.SoC.CLINTBase,
		"soc.plic_base":   c.SoC.PLICBase,
		"soc.uart_base":   c.SoC.UARTBase,
		"soc.disk_base":   c.SoC.DiskBase,
		"soc.rtc_base":    c.SoC.RTCBase,
		"memory.ram_base": c.Memory.RAMBase,
	}
	seen := map[uint64]string{}
	for name, addr := range bases {
		if other, ok := seen[addr]; ok {
			return fmt.Errorf("%s and %s both map to address 0x%x", name, other, addr)
		}
		seen[addr] = name
	}

	return nil
}

// predictorKind maps the config's string kind name to bpu.PredictorKind.
func predictorKind(name string) bpu.PredictorKind {
	switch name {
	case "gshare":
		return bpu.KindGShare
	case "tournament":
		return bpu.KindTournament
	case "perceptron":
		return bpu.KindPerceptron
	case "tage":
		return bpu.KindTAGE
	default:
		return bpu.KindStatic
	}
}

// BranchPredictorConfig converts to the bpu package's Config/Kind pair.
func (c BranchPredictorConfig) resolve() (bpu.PredictorKind, bpu.Config) {
	return predictorKind(c.Kind), bpu.Config{
		TableBits:       c.TableBits,
		HistoryBits:     c.HistoryBits,
		PerceptronCount: c.PerceptronCount,
		Theta:           c.Theta,
		TAGETables:      c.TAGETables,
		ResetInterval:   c.ResetInterval,
	}
}

// NewPredictor constructs the direction predictor this config names.
func (c PipelineConfig) NewPredictor() bpu.Predictor {
	kind, cfg := c.BranchPredictor.resolve()
	return bpu.NewPredictor(kind, cfg)
}

func replacementKind(name string) cache.ReplacementKind {
	switch name {
	case "PLRU":
		return cache.ReplacementPLRU
	case "FIFO":
		return cache.ReplacementFIFO
	case "MRU":
		return cache.ReplacementMRU
	case "Random":
		return cache.ReplacementRandom
	default:
		return cache.ReplacementLRU
	}
}

func prefetchKind(name string) cache.PrefetchKind {
	switch name {
	case "NextLine":
		return cache.PrefetchNextLine
	case "Stride":
		return cache.PrefetchStride
	case "Stream":
		return cache.PrefetchStream
	case "Tagged":
		return cache.PrefetchTagged
	default:
		return cache.PrefetchNone
	}
}

// Resolve converts a CacheConfig into the memsys/cache package's Config,
// threading the simulation-wide PRNG seed into the Random policy.
func (cc CacheConfig) Resolve(seed uint64) cache.Config {
	return cache.Config{
		Size:          cc.SizeBytes,
		Associativity: cc.Ways,
		BlockSize:     cc.LineBytes,
		HitLatency:    cc.Latency,
		MissLatency:   0, // filled in by the caller from the next level's latency
		Replacement:   replacementKind(cc.Policy),
		Prefetch:      prefetchKind(cc.Prefetcher),
		PrefetchDeg:   cc.PrefetchDegree,
		Seed:          seed,
	}
}

// Resolve converts the memory config's DRAM timings into the memsys/dram
// package's Config, with a fixed 8 KiB row and 8-byte channel width.
func (m MemoryConfig) Resolve() dram.Config {
	return dram.Config{
		RowSize:    8192,
		TRAS:       m.DRAM.TRAS,
		TCAS:       m.DRAM.TCAS,
		TPRE:       m.DRAM.TPRE,
		WidthBytes: 8,
	}
}
