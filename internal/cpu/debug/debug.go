// Package debug samples the core's debug port (spec.md §6's
// debug_pc/debug_inst/debug_x1/x2/x10/x11/debug_reg_addr/debug_reg_data
// wires) into typed Go values, instead of callers re-deriving a
// snapshot from raw wire lookups every time one is needed.
package debug

import "github.com/rv32pipe/rv32pipe/internal/cpu/pipeline"

// regFile is the subset of *pipeline.Core a Sampler needs — narrowed to
// keep this package testable against a fake without pulling in the
// rest of Core's surface.
type regFile interface {
	SetDebugRegAddr(addr uint8)
	Debug() pipeline.DebugState
	PC() uint32
	Priv() uint8
}

// Snapshot is one full register-file dump plus the fixed ABI-named
// registers the debug port exposes directly.
type Snapshot struct {
	PC   uint32
	Priv uint8
	X    [32]uint32
}

// Sampler walks a core's debug_reg_addr port across all 32 integer
// registers to build a full Snapshot. x0 is always read as the core's
// hardwired zero rather than sampled, since debug_reg_addr=0 is free to
// return whatever the register file happens to store there.
type Sampler struct {
	core regFile
}

func NewSampler(core *pipeline.Core) *Sampler { return &Sampler{core: core} }

// Sample drives debug_reg_addr through 1..31 and assembles a full
// Snapshot. Each SetDebugRegAddr call re-propagates the netlist, so
// this is read-only with respect to architectural state but not free.
func (s *Sampler) Sample() Snapshot {
	snap := Snapshot{PC: s.core.PC(), Priv: s.core.Priv()}
	for addr := uint8(1); addr < 32; addr++ {
		s.core.SetDebugRegAddr(addr)
		snap.X[addr] = s.core.Debug().RegData
	}
	return snap
}

// Quick returns the four registers exposed directly on the debug port
// (x1/x2/x10/x11 — ra/sp/a0/a1) without walking the full file, for the
// common case of watching a function's return value or stack pointer.
func (s *Sampler) Quick() pipeline.DebugState { return s.core.Debug() }
