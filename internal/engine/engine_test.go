package engine

import (
	"testing"

	"github.com/rv32pipe/rv32pipe/internal/bitvec"
	"github.com/rv32pipe/rv32pipe/internal/elaborate"
	"github.com/rv32pipe/rv32pipe/internal/netlist"
)

// buildCounter builds a trivial netlist: an 8-bit register that increments
// by 1 each cycle, with synchronous reset to 0.
func buildCounter(t *testing.T) (*Engine, netlist.WireID, netlist.WireID, netlist.WireID) {
	t.Helper()
	n := netlist.New("counter")
	comp := n.AddComponent("top", netlist.Hierarchical)

	clk := n.AddWire("clk", 1)
	rst := n.AddWire("rst", 1)
	q := n.AddWire("count.q", 8)
	d := n.AddWire("count.d", 8)
	n.MarkTopInput(clk)
	n.MarkTopInput(rst)

	n.AddEquation(comp, netlist.Equation{
		Name: "incr", Inputs: []netlist.WireID{q}, Outputs: []netlist.WireID{d},
		Eval: Compile(Binary(OpAdd, Input(0), Lit(8, 1))),
	})
	n.AddSequential(comp, netlist.Sequential{
		Clock: clk, Reset: rst,
		Fields: []netlist.LatchField{{Name: "count", Input: d, Output: q, ResetValue: bitvec.Zero(8)}},
	})

	if _, err := elaborate.Elaborate(n); err != nil {
		t.Fatalf("Elaborate: %v", err)
	}
	return New(n), clk, rst, q
}

func TestCycleIncrementsAcrossEdges(t *testing.T) {
	e, _, rst, q := buildCounter(t)
	e.SetInput(rst, bitvec.Bool(false))

	for i := 1; i <= 5; i++ {
		if err := e.Cycle(nil); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
		if got := e.Net.Wire(q).Value.Uint64(); got != uint64(i) {
			t.Errorf("cycle %d: count = %d, want %d", i, got, i)
		}
	}
}

func TestResetWinsOverIncrement(t *testing.T) {
	e, _, rst, q := buildCounter(t)
	e.SetInput(rst, bitvec.Bool(false))
	for i := 0; i < 3; i++ {
		e.Cycle(nil)
	}
	if e.Net.Wire(q).Value.Uint64() == 0 {
		t.Fatal("precondition failed: counter should have advanced")
	}
	e.SetInput(rst, bitvec.Bool(true))
	if err := e.Cycle(nil); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if got := e.Net.Wire(q).Value.Uint64(); got != 0 {
		t.Errorf("count after reset = %d, want 0", got)
	}
}

func TestRisingEdgeAtomicSwap(t *testing.T) {
	// Two registers that swap values each edge must both see the
	// PRE-edge values, never a partially-updated cascade.
	n := netlist.New("swap")
	comp := n.AddComponent("top", netlist.Hierarchical)
	clk := n.AddWire("clk", 1)
	n.MarkTopInput(clk)
	aQ := n.AddWire("a.q", 8)
	bQ := n.AddWire("b.q", 8)

	n.AddSequential(comp, netlist.Sequential{
		Clock: clk,
		Fields: []netlist.LatchField{
			{Name: "a", Input: bQ, Output: aQ, ResetValue: bitvec.Zero(8)},
			{Name: "b", Input: aQ, Output: bQ, ResetValue: bitvec.Zero(8)},
		},
	})
	if _, err := elaborate.Elaborate(n); err != nil {
		t.Fatalf("Elaborate: %v", err)
	}
	e := New(n)
	e.Net.Wire(aQ).Value = bitvec.New(8, 1)
	e.Net.Wire(bQ).Value = bitvec.New(8, 2)

	e.RisingEdge()

	if got := e.Net.Wire(aQ).Value.Uint64(); got != 2 {
		t.Errorf("a.q after swap = %d, want 2", got)
	}
	if got := e.Net.Wire(bQ).Value.Uint64(); got != 1 {
		t.Errorf("b.q after swap = %d, want 1", got)
	}
}

func TestBehaviorDSLMuxAndCase(t *testing.T) {
	sel := Lit(1, 1)
	mux := MuxExpr(sel, Lit(8, 10), Lit(8, 20))
	if got := Eval(mux, nil).Uint64(); got != 10 {
		t.Errorf("mux = %d, want 10", got)
	}

	c := Case(Input(0), []CaseArm{
		{Match: 0, Value: Lit(8, 100)},
		{Match: 1, Value: Lit(8, 200)},
	}, Lit(8, 255))
	if got := Eval(c, []bitvec.BitVec{bitvec.New(8, 1)}).Uint64(); got != 200 {
		t.Errorf("case(1) = %d, want 200", got)
	}
	if got := Eval(c, []bitvec.BitVec{bitvec.New(8, 9)}).Uint64(); got != 255 {
		t.Errorf("case(9) = %d, want 255 (default)", got)
	}
}

func TestBehaviorDSLLetBinding(t *testing.T) {
	expr := Let("x", Binary(OpAdd, Input(0), Lit(8, 1)),
		Binary(OpAdd, Var("x"), Var("x")))
	got := Eval(expr, []bitvec.BitVec{bitvec.New(8, 4)}).Uint64()
	if got != 10 { // (4+1)*2
		t.Errorf("let-expr = %d, want 10", got)
	}
}
