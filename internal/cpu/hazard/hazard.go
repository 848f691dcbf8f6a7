// Package hazard implements the pipeline hazard-detection unit (spec.md
// §4.6): load-use stalling and control-transfer flushing. It is pure and
// combinational — called from the pipeline's "hazard" equation (re-run on
// every propagation) with the current ID and EX instruction fields and
// asked for that cycle's stall/flush decisions.
package hazard

import (
	"github.com/rv32pipe/rv32pipe/internal/bitvec"
	"github.com/rv32pipe/rv32pipe/internal/engine"
)

// IDInfo is the subset of ID-stage instruction fields the hazard unit
// reads: which source registers the incoming instruction consumes.
type IDInfo struct {
	Rs1     uint8
	Rs2     uint8
	UsesRs1 bool
	UsesRs2 bool
}

// EXInfo is the subset of EX-stage (i.e. currently ID/EX latched)
// instruction fields needed to detect a load-use hazard.
type EXInfo struct {
	IsLoad bool
	Rd     uint8
}

// ControlTransfer reports whether the EX-stage instruction redirects the
// PC this cycle: a taken branch, an unconditional jump, a trap, or an
// xRET.
type ControlTransfer struct {
	TakenBranch bool
	Jump        bool
	Trap        bool
	XRet        bool
}

func (c ControlTransfer) any() bool {
	return c.TakenBranch || c.Jump || c.Trap || c.XRet
}

// Decision is the hazard unit's verdict for the current cycle.
type Decision struct {
	Stall     bool
	FlushIFID bool
	FlushIDEX bool
}

// Decision inputs, in the order the behavior-DSL expressions below
// address them with engine.Input: 0=id.Rs1, 1=id.Rs2, 2=id.UsesRs1,
// 3=id.UsesRs2, 4=ex.IsLoad, 5=ex.Rd, 6=control-transfer.
var (
	rdNonzero  = engine.Binary(engine.OpNe, engine.Input(5), engine.Lit(5, 0))
	rs1Match   = engine.Binary(engine.OpAnd, engine.Input(2), engine.Binary(engine.OpEq, engine.Input(0), engine.Input(5)))
	rs2Match   = engine.Binary(engine.OpAnd, engine.Input(3), engine.Binary(engine.OpEq, engine.Input(1), engine.Input(5)))
	anyMatch   = engine.Binary(engine.OpOr, rs1Match, rs2Match)
	stallExpr  = engine.Binary(engine.OpAnd, engine.Binary(engine.OpAnd, engine.Input(4), rdNonzero), anyMatch)
	flushIDEX  = engine.Binary(engine.OpOr, engine.Input(6), stallExpr)
	flushIFID  = engine.Input(6)
)

// Evaluate computes the load-use stall and control-flush decisions.
//
// A stall is raised when the instruction presently in EX (the ID/EX
// latch's contents this cycle) is a load whose destination is a
// nonzero register consumed by the instruction now in ID; x0 can never
// trigger a hazard since reads of x0 are not really reads.
//
// flush_if_id fires on any control transfer. flush_id_ex fires on the
// same events plus on a stall, which inserts a bubble into EX rather
// than letting a hazardous instruction execute. The decision itself is
// expressed as a behavior-DSL tree (spec.md §9) rather than a bespoke Go
// switch, since it is exactly the kind of boolean/mux logic the DSL
// models.
func Evaluate(id IDInfo, ex EXInfo, ctrl ControlTransfer) Decision {
	in := []bitvec.BitVec{
		bitvec.New(5, uint64(id.Rs1)),
		bitvec.New(5, uint64(id.Rs2)),
		bitvec.Bool(id.UsesRs1),
		bitvec.Bool(id.UsesRs2),
		bitvec.Bool(ex.IsLoad),
		bitvec.New(5, uint64(ex.Rd)),
		bitvec.Bool(ctrl.any()),
	}

	return Decision{
		Stall:     engine.Eval(stallExpr, in).IsTrue(),
		FlushIFID: engine.Eval(flushIFID, in).IsTrue(),
		FlushIDEX: engine.Eval(flushIDEX, in).IsTrue(),
	}
}
