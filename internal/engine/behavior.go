package engine

import "github.com/rv32pipe/rv32pipe/internal/bitvec"

// Expr is the behavior-DSL expression tree: a pure, side-effect-free
// description of a combinational equation's output in terms of its
// declared inputs. It exists so that simple blocks — muxes, ALU op
// selection, forwarding priority — can be described as data instead of as
// a bespoke Go switch, while still compiling down to the same
// netlist.Equation.Eval signature everything else uses.
type Expr interface {
	eval(ctx *evalCtx) bitvec.BitVec
}

type evalCtx struct {
	Inputs []bitvec.BitVec
	Lets   map[string]bitvec.BitVec
	memo   map[Expr]bitvec.BitVec
}

func newEvalCtx(inputs []bitvec.BitVec) *evalCtx {
	return &evalCtx{Inputs: inputs, Lets: map[string]bitvec.BitVec{}, memo: map[Expr]bitvec.BitVec{}}
}

// Eval evaluates e against the supplied equation inputs (in the same order
// declared on the netlist.Equation), memoizing every sub-expression so a
// value shared by multiple branches of the tree is computed once.
func Eval(e Expr, inputs []bitvec.BitVec) bitvec.BitVec {
	return evalMemo(e, newEvalCtx(inputs))
}

func evalMemo(e Expr, ctx *evalCtx) bitvec.BitVec {
	if v, ok := ctx.memo[e]; ok {
		return v
	}
	v := e.eval(ctx)
	ctx.memo[e] = v
	return v
}

// Compile turns a behavior-DSL expression into a netlist.Equation.Eval
// function producing a single output.
func Compile(e Expr) func(in []bitvec.BitVec) []bitvec.BitVec {
	return func(in []bitvec.BitVec) []bitvec.BitVec {
		return []bitvec.BitVec{Eval(e, in)}
	}
}

// --- literal ---

type litExpr struct {
	v bitvec.BitVec
}

func Lit(width uint8, v uint64) Expr { return &litExpr{v: bitvec.New(width, v)} }

func (e *litExpr) eval(ctx *evalCtx) bitvec.BitVec { return e.v }

// --- input reference ---

type inputExpr struct {
	index int
}

// Input refers to the i-th wire in the owning equation's declared Inputs.
func Input(i int) Expr { return &inputExpr{index: i} }

func (e *inputExpr) eval(ctx *evalCtx) bitvec.BitVec { return ctx.Inputs[e.index] }

// --- let-bindings ---

type letExpr struct {
	name  string
	value Expr
	body  Expr
}

// Let binds name to the evaluated value for the scope of body.
func Let(name string, value, body Expr) Expr { return &letExpr{name: name, value: value, body: body} }

func (e *letExpr) eval(ctx *evalCtx) bitvec.BitVec {
	prev, had := ctx.Lets[e.name]
	ctx.Lets[e.name] = evalMemo(e.value, ctx)
	result := evalMemo(e.body, ctx)
	if had {
		ctx.Lets[e.name] = prev
	} else {
		delete(ctx.Lets, e.name)
	}
	return result
}

type letRefExpr struct {
	name string
}

// Var refers to a name bound by an enclosing Let.
func Var(name string) Expr { return &letRefExpr{name: name} }

func (e *letRefExpr) eval(ctx *evalCtx) bitvec.BitVec {
	v, ok := ctx.Lets[e.name]
	if !ok {
		panic("engine: unbound let variable " + e.name)
	}
	return v
}

// --- unary / binary ops ---

type UnaryOp uint8

const (
	OpNot UnaryOp = iota
)

type unaryExpr struct {
	op UnaryOp
	x  Expr
}

func Unary(op UnaryOp, x Expr) Expr { return &unaryExpr{op: op, x: x} }

func (e *unaryExpr) eval(ctx *evalCtx) bitvec.BitVec {
	x := evalMemo(e.x, ctx)
	switch e.op {
	case OpNot:
		return x.Not()
	default:
		panic("engine: unknown unary op")
	}
}

type BinaryOp uint8

const (
	OpAdd BinaryOp = iota
	OpSub
	OpAnd
	OpOr
	OpXor
	OpEq
	OpNe
	OpLt
	OpLtSigned
)

type binaryExpr struct {
	op   BinaryOp
	x, y Expr
}

func Binary(op BinaryOp, x, y Expr) Expr { return &binaryExpr{op: op, x: x, y: y} }

func (e *binaryExpr) eval(ctx *evalCtx) bitvec.BitVec {
	x := evalMemo(e.x, ctx)
	y := evalMemo(e.y, ctx)
	switch e.op {
	case OpAdd:
		return x.Add(y)
	case OpSub:
		return x.Sub(y)
	case OpAnd:
		return x.And(y)
	case OpOr:
		return x.Or(y)
	case OpXor:
		return x.Xor(y)
	case OpEq:
		return bitvec.Bool(x.Eq(y))
	case OpNe:
		return bitvec.Bool(!x.Eq(y))
	case OpLt:
		return x.Lt(y)
	case OpLtSigned:
		return x.LtSigned(y)
	default:
		panic("engine: unknown binary op")
	}
}

// --- slice / concat ---

type sliceExpr struct {
	x      Expr
	hi, lo uint8
}

func Slice(x Expr, hi, lo uint8) Expr { return &sliceExpr{x: x, hi: hi, lo: lo} }

func (e *sliceExpr) eval(ctx *evalCtx) bitvec.BitVec {
	return evalMemo(e.x, ctx).Slice(e.hi, e.lo)
}

type concatExpr struct {
	hi, lo Expr
}

func Concat(hi, lo Expr) Expr { return &concatExpr{hi: hi, lo: lo} }

func (e *concatExpr) eval(ctx *evalCtx) bitvec.BitVec {
	return evalMemo(e.hi, ctx).Concat(evalMemo(e.lo, ctx))
}

// --- mux / case ---

type muxExpr struct {
	sel, whenTrue, whenFalse Expr
}

func MuxExpr(sel, whenTrue, whenFalse Expr) Expr {
	return &muxExpr{sel: sel, whenTrue: whenTrue, whenFalse: whenFalse}
}

func (e *muxExpr) eval(ctx *evalCtx) bitvec.BitVec {
	sel := evalMemo(e.sel, ctx)
	if sel.IsTrue() {
		return evalMemo(e.whenTrue, ctx)
	}
	return evalMemo(e.whenFalse, ctx)
}

// CaseArm matches one literal selector value to a result expression.
type CaseArm struct {
	Match uint64
	Value Expr
}

type caseExpr struct {
	sel     Expr
	arms    []CaseArm
	dflt    Expr
}

// Case evaluates sel and returns the value of the first matching arm, or
// dflt if none match — the netlist equivalent of a `case` statement, used
// for e.g. ALU opcode dispatch.
func Case(sel Expr, arms []CaseArm, dflt Expr) Expr {
	return &caseExpr{sel: sel, arms: arms, dflt: dflt}
}

func (e *caseExpr) eval(ctx *evalCtx) bitvec.BitVec {
	sel := evalMemo(e.sel, ctx)
	for _, arm := range e.arms {
		if sel.Uint64() == arm.Match {
			return evalMemo(arm.Value, ctx)
		}
	}
	return evalMemo(e.dflt, ctx)
}
