// Package harness wires a pipeline.Core to an internal/hostmem.Bus and
// steps both in lockstep, one cycle at a time — the "surrounding
// collaborator" spec.md §6 leaves external to the core.
package harness

import (
	"github.com/rv32pipe/rv32pipe/internal/cpu/pipeline"
	"github.com/rv32pipe/rv32pipe/internal/hostmem"
)

// Harness owns a core and the bus it's wired to, and drives cycles.
type Harness struct {
	Core *pipeline.Core
	Bus  *hostmem.Bus
}

// New builds a core on top of a freshly wired RAM/CLINT/PLIC/UART bus.
func New(ramBase, ramSize uint32) (*Harness, error) {
	core, err := pipeline.New()
	if err != nil {
		return nil, err
	}
	return &Harness{Core: core, Bus: hostmem.NewBus(ramBase, ramSize)}, nil
}

// Step advances the core and the bus's free-running timer by one
// cycle.
func (h *Harness) Step() error {
	if err := h.Core.Step(h.Bus); err != nil {
		return err
	}
	h.Bus.Tick()
	return nil
}

// Run advances n cycles, stopping early on the first error.
func (h *Harness) Run(n int) error {
	for i := 0; i < n; i++ {
		if err := h.Step(); err != nil {
			return err
		}
	}
	return nil
}
