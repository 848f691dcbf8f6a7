// Package forward implements the EX-stage operand forwarding unit
// (spec.md §4.7): for each of rs1 and rs2, choose among the register
// file value, the EX/MEM result, and the MEM/WB write-back data, with
// EX/MEM taking priority over MEM/WB. Register x0 is never forwarded —
// its register-file read of zero is always correct.
package forward

// Source identifies which value a forwarded operand came from, mostly
// useful for debug tracing.
type Source int

const (
	FromRegfile Source = iota
	FromExMem
	FromMemWb
)

// Stage describes one pipeline stage's forwardable write: the
// destination register and whether it will actually commit.
type Stage struct {
	Rd      uint8
	RegWrite bool
	Value   uint32
}

// Result is the resolved operand plus which path produced it.
type Result struct {
	Value  uint32
	Source Source
}

// Select resolves one operand: rfValue is what the register file itself
// currently returns for rs, exMem is the instruction ahead in EX/MEM,
// memWb is the instruction ahead of that in MEM/WB.
func Select(rs uint8, rfValue uint32, exMem, memWb Stage) Result {
	if rs == 0 {
		return Result{Value: 0, Source: FromRegfile}
	}
	if exMem.RegWrite && exMem.Rd == rs {
		return Result{Value: exMem.Value, Source: FromExMem}
	}
	if memWb.RegWrite && memWb.Rd == rs {
		return Result{Value: memWb.Value, Source: FromMemWb}
	}
	return Result{Value: rfValue, Source: FromRegfile}
}
