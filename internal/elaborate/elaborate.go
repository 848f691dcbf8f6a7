// Package elaborate implements the elaboration pass: it validates a
// constructed netlist.Netlist against spec.md §4.1's invariants (every
// consumed wire has exactly one driver, no width mismatch on a binding, no
// combinational cycle that isn't broken by a sequential element) and
// produces the topological evaluation order the cycle engine replays every
// sub-phase.
//
// All errors this pass can find are collected and reported together,
// before any cycle runs — per spec.md §7, elaboration errors are fatal and
// reported once, never discovered mid-simulation.
package elaborate

import (
	"errors"
	"fmt"

	"github.com/rv32pipe/rv32pipe/internal/netlist"
)

var (
	ErrMultiplyDriven     = errors.New("elaborate: wire has more than one driver")
	ErrUndrivenWire       = errors.New("elaborate: wire is consumed but never driven")
	ErrWidthMismatch      = errors.New("elaborate: port binding width mismatch")
	ErrCombinationalCycle = errors.New("elaborate: combinational dependency cycle")
	ErrUnresolvedInstance = errors.New("elaborate: sub-instance reference does not resolve")
)

// Result is the product of a successful elaboration: the netlist is left
// in place (Order and validation already ran), returned here only so
// callers don't have to thread the *netlist.Netlist through separately.
type Result struct {
	Net *netlist.Netlist
}

// Elaborate validates n and computes its combinational evaluation order.
// On success, n.Order holds equation indices in an order that respects
// every wire dependency; on failure it returns every violation found,
// joined with errors.Join so the caller sees the whole picture at once.
func Elaborate(n *netlist.Netlist) (*Result, error) {
	var errs []error

	errs = append(errs, checkDrivers(n)...)
	errs = append(errs, checkBindingWidths(n)...)
	errs = append(errs, checkInstances(n)...)

	if len(errs) == 0 {
		order, cycleErr := topoSort(n)
		if cycleErr != nil {
			errs = append(errs, cycleErr)
		} else {
			n.Order = order
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &Result{Net: n}, nil
}

// checkDrivers enforces "every wire has exactly one driver" for wires that
// are actually consumed (read as an equation input, a sequential latch
// input, or a sub-instance input binding). A wire nobody reads may
// legitimately sit undriven (e.g. an unused debug tap) without being an
// error.
func checkDrivers(n *netlist.Netlist) []error {
	var errs []error
	consumed := make([]bool, len(n.Wires))
	for _, eq := range n.Equations {
		for _, in := range eq.Inputs {
			consumed[in] = true
		}
	}
	for _, c := range n.Components {
		if c.Seq != nil {
			for _, f := range c.Seq.Fields {
				consumed[f.Input] = true
			}
			consumed[c.Seq.Clock] = true
		}
	}

	for i := range n.Wires {
		w := &n.Wires[i]
		if w.Driver.MultiCount > 1 {
			errs = append(errs, fmt.Errorf("%w: %s (%d drivers)", ErrMultiplyDriven, w.Name, w.Driver.MultiCount))
		}
		if w.Driver.Kind == netlist.DriverNone && consumed[i] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUndrivenWire, w.Name))
		}
	}
	return errs
}

func checkBindingWidths(n *netlist.Netlist) []error {
	var errs []error
	for _, b := range n.Bindings {
		if b.PortWidth != b.WireWidth {
			errs = append(errs, fmt.Errorf("%w: %s (port width %d, wire width %d)",
				ErrWidthMismatch, b.Desc, b.PortWidth, b.WireWidth))
		}
	}
	return errs
}

func checkInstances(n *netlist.Netlist) []error {
	var errs []error
	for _, w := range n.Wires {
		if w.Driver.Kind == netlist.DriverSubInstancePort {
			if int(w.Driver.FromInst) < 0 || int(w.Driver.FromInst) >= len(n.Components) {
				errs = append(errs, fmt.Errorf("%w: wire %s references instance id %d", ErrUnresolvedInstance, w.Name, w.Driver.FromInst))
			}
		}
	}
	return errs
}

// topoSort orders Equations by wire dependency using Kahn's algorithm.
// Sequential elements break cycles: a wire driven by a register's output
// is a "root" with no equation predecessor, so a combinational loop that
// passes exclusively through registers is not flagged here — only a pure
// combinational cycle (no register anywhere on the loop) fails.
func topoSort(n *netlist.Netlist) ([]int, error) {
	numEq := len(n.Equations)
	indegree := make([]int, numEq)
	dependents := make([][]int, numEq) // producerEq -> []consumerEq

	producerOf := func(w netlist.WireID) (int, bool) {
		d := n.Wires[w].Driver
		if d.Kind == netlist.DriverEquation {
			return d.Equation, true
		}
		return 0, false
	}

	for ci, eq := range n.Equations {
		seen := make(map[int]bool)
		for _, in := range eq.Inputs {
			if producer, ok := producerOf(in); ok && producer != ci {
				if !seen[producer] {
					seen[producer] = true
					indegree[ci]++
					dependents[producer] = append(dependents[producer], ci)
				}
			}
		}
	}

	queue := make([]int, 0, numEq)
	for i := 0; i < numEq; i++ {
		if indegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]int, 0, numEq)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		order = append(order, cur)
		for _, dep := range dependents[cur] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) != numEq {
		remaining := make([]string, 0)
		for i := 0; i < numEq; i++ {
			if indegree[i] > 0 {
				remaining = append(remaining, n.Equations[i].Name)
			}
		}
		return nil, fmt.Errorf("%w: among %v", ErrCombinationalCycle, remaining)
	}
	return order, nil
}
