// Package dram models a single-channel, single-rank DRAM controller
// with a row-buffer timing model.
package dram

// Config holds the row-buffer timing parameters, in cycles, plus the
// channel width used for transit-time calculation. It is a small
// JSON-tagged struct in the same shape as the teacher's latency config,
// so it can be embedded directly in the top-level simulator config.
type Config struct {
	RowSize    int    `json:"row_size_bytes"`
	TRAS       uint64 `json:"t_ras"`
	TCAS       uint64 `json:"t_cas"`
	TPRE       uint64 `json:"t_pre"`
	WidthBytes int    `json:"width_bytes"`
}

// DefaultConfig returns a plausible DDR-class timing model.
func DefaultConfig() Config {
	return Config{
		RowSize:    8192,
		TRAS:       28,
		TCAS:       14,
		TPRE:       14,
		WidthBytes: 8,
	}
}

// Controller models a single row buffer shared across all accesses. A
// real multi-bank DRAM is out of scope; spec.md models a single open
// row per channel.
type Controller struct {
	cfg     Config
	openRow int64 // -1 when no row is open
	mem     []byte
}

// New returns a controller over a backing array of size bytes.
func New(cfg Config, size uint64) *Controller {
	return &Controller{cfg: cfg, openRow: -1, mem: make([]byte, size)}
}

func (c *Controller) rowOf(addr uint64) int64 {
	return int64(addr) / int64(c.cfg.RowSize)
}

// Access returns the row-buffer latency for an access to addr, updating
// the open-row state per the hit/conflict/empty state machine.
func (c *Controller) Access(addr uint64) uint64 {
	row := c.rowOf(addr)
	switch {
	case c.openRow == row:
		return c.cfg.TCAS
	case c.openRow != -1:
		c.openRow = row
		return c.cfg.TPRE + c.cfg.TRAS + c.cfg.TCAS
	default:
		c.openRow = row
		return c.cfg.TRAS + c.cfg.TCAS
	}
}

// Read returns size bytes starting at addr, updating the open row through
// Access but returning data unconditionally. The row-buffer latency is
// not returned; the cache level above charges its own fixed miss
// latency instead.
func (c *Controller) Read(addr uint64, size int) []byte {
	c.Access(addr)
	if int(addr)+size > len(c.mem) {
		return make([]byte, size)
	}
	out := make([]byte, size)
	copy(out, c.mem[addr:int(addr)+size])
	return out
}

// Write stores data at addr, also paying row-buffer latency.
func (c *Controller) Write(addr uint64, data []byte) {
	c.Access(addr)
	if int(addr)+len(data) > len(c.mem) {
		return
	}
	copy(c.mem[addr:], data)
}

// LastLatency returns the latency an Access to addr would cost given the
// currently open row, without changing that state, letting a cache level
// charge it as fill stall cycles without a state-changing call.
func (c *Controller) LastLatency(addr uint64) uint64 {
	row := c.rowOf(addr)
	if c.openRow == row {
		return c.cfg.TCAS
	}
	if c.openRow != -1 {
		return c.cfg.TPRE + c.cfg.TRAS + c.cfg.TCAS
	}
	return c.cfg.TRAS + c.cfg.TCAS
}

// TransitTime computes the bus transfer time for a burst of nbytes at
// the channel width, per spec.md's calculate_transit_time.
func (c *Controller) TransitTime(nbytes int, latencyCycles uint64) uint64 {
	beats := (nbytes + c.cfg.WidthBytes - 1) / c.cfg.WidthBytes
	return uint64(beats) * latencyCycles
}

// LoadImage copies raw bytes into DRAM starting at addr, used by the
// loader to place a flat or ELF image before execution begins.
func (c *Controller) LoadImage(addr uint64, data []byte) {
	copy(c.mem[addr:], data)
}
