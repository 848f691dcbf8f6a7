// Package engine drives the two-phase cycle described in spec.md §4.2: a
// Low-phase combinational sweep with inputs frozen, a single atomic rising
// edge that samples every sequential element from the same pre-edge
// values, and a second Low-phase sweep so downstream signals reflect the
// new register outputs. It also hosts the behavior-DSL interpreter
// (behavior.go).
package engine

import (
	"errors"
	"fmt"

	"github.com/rv32pipe/rv32pipe/internal/bitvec"
	"github.com/rv32pipe/rv32pipe/internal/netlist"
)

// ErrFixpointDiverged is returned when repeated re-propagation (driven by
// a host that keeps changing an input mid-phase) fails to settle within
// MaxFixpointIters passes — spec.md §7's "bounded fixpoint iteration
// limit, optional" escape hatch for host inconsistency.
var ErrFixpointDiverged = errors.New("engine: combinational propagation did not converge")

// DefaultMaxFixpointIters bounds Reconverge's retry loop.
const DefaultMaxFixpointIters = 8

// Engine replays an elaborated netlist.Netlist's combinational schedule and
// drives its sequential elements on demand. It holds no state of its own
// beyond the netlist: all architectural state lives in netlist.Wire.Value.
type Engine struct {
	Net              *netlist.Netlist
	MaxFixpointIters int
}

// New wraps an already-elaborated netlist. Callers must run
// internal/elaborate.Elaborate first so Net.Order is populated.
func New(n *netlist.Netlist) *Engine {
	return &Engine{Net: n, MaxFixpointIters: DefaultMaxFixpointIters}
}

// SetInput writes a top-level input wire's value, as the host does between
// sub-phases (instruction word, data word, PTE words, IRQ lines).
func (e *Engine) SetInput(id netlist.WireID, v bitvec.BitVec) {
	e.Net.Wire(id).Value = v
}

// Propagate executes the combinational schedule exactly once, in the
// elaborator's topological order. Because that order already respects
// every wire dependency, one pass reaches the fixpoint for any input
// assignment unless the host mutates an input wire again afterward.
func (e *Engine) Propagate() {
	for _, idx := range e.Net.Order {
		eq := &e.Net.Equations[idx]
		ins := make([]bitvec.BitVec, len(eq.Inputs))
		for i, w := range eq.Inputs {
			ins[i] = e.Net.Wire(w).Value
		}
		outs := eq.Eval(ins)
		for i, w := range eq.Outputs {
			e.Net.Wire(w).Value = outs[i]
		}
	}
}

// Reconverge re-runs Propagate until two consecutive passes produce
// identical wire values, or MaxFixpointIters is exceeded. Use this after a
// host write that could legitimately need a second pass to settle (e.g. a
// PTW response feeding a mux whose other input was already stable);
// Propagate alone is sufficient whenever the schedule is already a valid
// topological order for the current inputs, which is the common case.
func (e *Engine) Reconverge() error {
	max := e.MaxFixpointIters
	if max <= 0 {
		max = DefaultMaxFixpointIters
	}
	prev := e.snapshot()
	for i := 0; i < max; i++ {
		e.Propagate()
		cur := e.snapshot()
		if equalSnapshots(prev, cur) {
			return nil
		}
		prev = cur
	}
	return fmt.Errorf("%w: after %d passes", ErrFixpointDiverged, max)
}

func (e *Engine) snapshot() []bitvec.BitVec {
	vals := make([]bitvec.BitVec, len(e.Net.Wires))
	for i := range e.Net.Wires {
		vals[i] = e.Net.Wires[i].Value
	}
	return vals
}

func equalSnapshots(a, b []bitvec.BitVec) bool {
	for i := range a {
		if !a[i].Eq(b[i]) || a[i].Width() != b[i].Width() {
			return false
		}
	}
	return true
}

// RisingEdge samples every sequential component's latch inputs — computed
// from the Low-phase-A combinational fixpoint — and commits their outputs
// simultaneously. No combinational evaluation happens here: this is
// exactly the "appears atomic" guarantee spec.md §5 requires, implemented
// by reading every Input before writing any Output.
func (e *Engine) RisingEdge() {
	type pendingWrite struct {
		id    netlist.WireID
		value bitvec.BitVec
	}
	var writes []pendingWrite

	for _, cid := range e.Net.SeqComps {
		seq := e.Net.Comp(cid).Seq
		resetAsserted := false
		if seq.Reset != NoWire {
			resetAsserted = e.Net.Wire(seq.Reset).Value.IsTrue()
		}
		for _, f := range seq.Fields {
			var next bitvec.BitVec
			if resetAsserted {
				next = f.ResetValue
			} else {
				next = e.Net.Wire(f.Input).Value
			}
			writes = append(writes, pendingWrite{id: f.Output, value: next})
		}
	}

	for _, w := range writes {
		e.Net.Wire(w.id).Value = w.value
	}
}

// NoWire marks a Sequential with no dedicated reset wire (always held low).
const NoWire netlist.WireID = -1

// Cycle runs one full clock_cycle: Low phase A, a caller-supplied host
// step (to consume stable outputs and drive fresh inputs — may be a
// no-op), the rising edge, and Low phase B. It mirrors spec.md §4.2
// exactly: phase A is the only place host interaction happens.
func (e *Engine) Cycle(hostStep func()) error {
	e.Propagate() // Low phase A
	if hostStep != nil {
		hostStep()
		if err := e.Reconverge(); err != nil {
			return err
		}
	}
	e.RisingEdge() // atomic register commit
	e.Propagate()  // Low phase B
	return nil
}
