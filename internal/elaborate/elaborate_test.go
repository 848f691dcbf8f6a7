package elaborate

import (
	"errors"
	"testing"

	"github.com/rv32pipe/rv32pipe/internal/bitvec"
	"github.com/rv32pipe/rv32pipe/internal/netlist"
)

func TestElaborateOrdersSimpleChain(t *testing.T) {
	n := netlist.New("chain")
	comp := n.AddComponent("top", netlist.Hierarchical)
	a := n.AddWire("a", 8)
	b := n.AddWire("b", 8)
	c := n.AddWire("c", 8)
	n.MarkTopInput(a)
	// c = b + 1, registered before b = a + 1 to exercise reordering.
	n.AddEquation(comp, netlist.Equation{
		Name: "c_eq", Inputs: []netlist.WireID{b}, Outputs: []netlist.WireID{c},
		Eval: func(in []bitvec.BitVec) []bitvec.BitVec { return []bitvec.BitVec{in[0].Add(bitvec.New(8, 1))} },
	})
	n.AddEquation(comp, netlist.Equation{
		Name: "b_eq", Inputs: []netlist.WireID{a}, Outputs: []netlist.WireID{b},
		Eval: func(in []bitvec.BitVec) []bitvec.BitVec { return []bitvec.BitVec{in[0].Add(bitvec.New(8, 1))} },
	})

	res, err := Elaborate(n)
	if err != nil {
		t.Fatalf("Elaborate: %v", err)
	}
	if len(res.Net.Order) != 2 {
		t.Fatalf("order len = %d, want 2", len(res.Net.Order))
	}
	if res.Net.Order[0] != 1 || res.Net.Order[1] != 0 {
		t.Errorf("order = %v, want [1 0] (b_eq before c_eq)", res.Net.Order)
	}
}

func TestElaborateDetectsMultiplyDriven(t *testing.T) {
	n := netlist.New("multi")
	comp := n.AddComponent("top", netlist.Hierarchical)
	x := n.AddWire("x", 1)
	n.AddEquation(comp, netlist.Equation{Name: "e1", Outputs: []netlist.WireID{x}, Eval: constBit})
	n.AddEquation(comp, netlist.Equation{Name: "e2", Outputs: []netlist.WireID{x}, Eval: constBit})

	_, err := Elaborate(n)
	if !errors.Is(err, ErrMultiplyDriven) {
		t.Fatalf("err = %v, want ErrMultiplyDriven", err)
	}
}

func TestElaborateDetectsUndrivenConsumedWire(t *testing.T) {
	n := netlist.New("undriven")
	comp := n.AddComponent("top", netlist.Hierarchical)
	x := n.AddWire("x", 1)
	y := n.AddWire("y", 1)
	n.AddEquation(comp, netlist.Equation{Name: "e1", Inputs: []netlist.WireID{x}, Outputs: []netlist.WireID{y}, Eval: constBit})

	_, err := Elaborate(n)
	if !errors.Is(err, ErrUndrivenWire) {
		t.Fatalf("err = %v, want ErrUndrivenWire", err)
	}
}

func TestElaborateDetectsCombinationalCycle(t *testing.T) {
	n := netlist.New("cycle")
	comp := n.AddComponent("top", netlist.Hierarchical)
	x := n.AddWire("x", 1)
	y := n.AddWire("y", 1)
	n.AddEquation(comp, netlist.Equation{Name: "e1", Inputs: []netlist.WireID{y}, Outputs: []netlist.WireID{x}, Eval: constBit})
	n.AddEquation(comp, netlist.Equation{Name: "e2", Inputs: []netlist.WireID{x}, Outputs: []netlist.WireID{y}, Eval: constBit})

	_, err := Elaborate(n)
	if !errors.Is(err, ErrCombinationalCycle) {
		t.Fatalf("err = %v, want ErrCombinationalCycle", err)
	}
}

func TestElaborateDetectsWidthMismatch(t *testing.T) {
	n := netlist.New("widths")
	n.AddComponent("top", netlist.Hierarchical)
	n.RecordBinding("sub.in -> parent.wire", 8, 16)

	_, err := Elaborate(n)
	if !errors.Is(err, ErrWidthMismatch) {
		t.Fatalf("err = %v, want ErrWidthMismatch", err)
	}
}

func TestElaborateBreaksCycleThroughRegister(t *testing.T) {
	n := netlist.New("reg-break")
	comp := n.AddComponent("top", netlist.Hierarchical)
	regOut := n.AddWire("reg.q", 1)
	combOut := n.AddWire("comb.out", 1)
	latchIn := n.AddWire("reg.d", 1)
	clk := n.AddWire("clk", 1)
	n.MarkTopInput(clk)

	// comb.out depends on reg.q (the registered feedback), and reg.d
	// depends on comb.out: a loop that is legal because it passes through
	// a sequential element.
	n.AddEquation(comp, netlist.Equation{Name: "comb", Inputs: []netlist.WireID{regOut}, Outputs: []netlist.WireID{combOut}, Eval: constBit})
	n.AddEquation(comp, netlist.Equation{Name: "latch_in_eq", Inputs: []netlist.WireID{combOut}, Outputs: []netlist.WireID{latchIn}, Eval: constBit})
	n.AddSequential(comp, netlist.Sequential{
		Clock: clk,
		Fields: []netlist.LatchField{
			{Name: "reg", Input: latchIn, Output: regOut, ResetValue: bitvec.Zero(1)},
		},
	})

	if _, err := Elaborate(n); err != nil {
		t.Fatalf("Elaborate: %v", err)
	}
}

func constBit(in []bitvec.BitVec) []bitvec.BitVec { return []bitvec.BitVec{bitvec.Bool(true)} }
