package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rv64sim/rv64sim/bpu"
	"github.com/rv64sim/rv64sim/memsys/cache"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default() failed Validate: %v", err)
	}
}

func TestValidateRejectsZeroWays(t *testing.T) {
	cfg := Default()
	cfg.Memory.L1D.Ways = 0
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected Validate to reject zero ways")
	}
}

func TestValidateRejectsOverlappingBases(t *testing.T) {
	cfg := Default()
	cfg.SoC.UARTBase = cfg.SoC.CLINTBase
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected Validate to reject overlapping device bases")
	}
}

func TestValidateRejectsZeroWidth(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.Width = 0
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected Validate to reject zero pipeline width")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.Memory.L1D.Ways = 16
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Memory.L1D.Ways != 16 {
		t.Errorf("loaded L1D.Ways = %d, want 16", loaded.Memory.L1D.Ways)
	}
}

func TestLoadOverlaysPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.json")
	if err := os.WriteFile(path, []byte(`{"pipeline":{"width":2}}`), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Pipeline.Width != 2 {
		t.Errorf("loaded Pipeline.Width = %d, want 2", loaded.Pipeline.Width)
	}
	if loaded.Memory.RAMBase != Default().Memory.RAMBase {
		t.Errorf("loaded Memory.RAMBase = 0x%x, want default", loaded.Memory.RAMBase)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "invalid.json")
	if err := os.WriteFile(path, []byte(`{"pipeline":{"width":0}}`), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Errorf("expected Load to reject a config with pipeline.width=0")
	}
}

func TestNewPredictorResolvesKind(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.BranchPredictor.Kind = "tage"
	cfg.Pipeline.BranchPredictor.TAGETables = 2
	cfg.Pipeline.BranchPredictor.TableBits = 8

	p := cfg.Pipeline.NewPredictor()
	if _, ok := p.(*bpu.TAGE); !ok {
		t.Errorf("NewPredictor() = %T, want *bpu.TAGE", p)
	}
}

func TestCacheConfigResolve(t *testing.T) {
	cc := CacheConfig{SizeBytes: 1024, Ways: 4, LineBytes: 64, Latency: 2, Policy: "PLRU", Prefetcher: "Stream"}
	resolved := cc.Resolve(7)

	if resolved.Replacement != cache.ReplacementPLRU {
		t.Errorf("Replacement = %v, want PLRU", resolved.Replacement)
	}
	if resolved.Prefetch != cache.PrefetchStream {
		t.Errorf("Prefetch = %v, want Stream", resolved.Prefetch)
	}
	if resolved.Seed != 7 {
		t.Errorf("Seed = %d, want 7", resolved.Seed)
	}
}
