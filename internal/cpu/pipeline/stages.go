package pipeline

import (
	"github.com/rv32pipe/rv32pipe/internal/bitvec"
	"github.com/rv32pipe/rv32pipe/internal/cpu/alu"
	"github.com/rv32pipe/rv32pipe/internal/cpu/csr"
	"github.com/rv32pipe/rv32pipe/internal/cpu/decode"
	"github.com/rv32pipe/rv32pipe/internal/cpu/forward"
	"github.com/rv32pipe/rv32pipe/internal/cpu/hazard"
	"github.com/rv32pipe/rv32pipe/internal/engine"
	"github.com/rv32pipe/rv32pipe/internal/netlist"
)

// buildStageEquations wires the IF/ID/EX/MEM stage logic and the hazard,
// PC-select and debug-sample helpers into the netlist (spec.md §9: "Eval
// ... may be backed by a behavior-DSL Expr ... or by a native Go closure
// for blocks whose control logic is simpler to read as code than as an
// expression tree"). pc_next's 3-way mux is plain enough to compile
// straight from a behavior-DSL Expr (see pcNextExpr below); so is the
// hazard unit's boolean stall/flush logic, expressed as a DSL tree inside
// hazard.Evaluate itself. IF/ID/EX/MEM/debug stay native closures — their
// control logic (decode, trap/delegation dispatch, the Sv32 walk) reads
// far better as code than as an expression tree.
func (c *Core) buildStageEquations(n *netlist.Netlist, top netlist.CompID) {
	w := c.w

	n.AddEquation(top, netlist.Equation{
		Name: "hazard",
		Inputs: []netlist.WireID{
			w.ifidInstrOut, w.idexInstrOut, w.exRedirectValid,
		},
		Outputs: []netlist.WireID{w.hzStall, w.hzFlushIfID, w.hzFlushIdEx},
		Eval:    evalHazard,
	})

	n.AddEquation(top, netlist.Equation{
		Name:    "pc_next",
		Inputs:  []netlist.WireID{w.pcOut, w.hzStall, w.exRedirectValid, w.exRedirectTarget},
		Outputs: []netlist.WireID{w.pcIn},
		Eval:    evalPCNext,
	})

	n.AddEquation(top, netlist.Equation{
		Name: "if",
		Inputs: []netlist.WireID{
			w.pcOut, w.hzStall, w.hzFlushIfID, w.instData,
			w.instPtwPte1, w.instPtwPte0, w.privOut,
			w.ifidPcOut, w.ifidInstrOut, w.ifidFaultOut,
		},
		Outputs: []netlist.WireID{
			w.instAddr, w.instPtwAddr1, w.instPtwAddr0,
			w.ifidPcIn, w.ifidInstrIn, w.ifidFaultIn,
		},
		Eval: c.evalIF,
	})

	n.AddEquation(top, netlist.Equation{
		Name: "id",
		Inputs: []netlist.WireID{
			w.ifidPcOut, w.ifidInstrOut, w.ifidFaultOut, w.hzFlushIdEx,
			w.memwbInstrOut, w.memwbWbdataOut, w.memwbRegwriteOut,
		},
		Outputs: []netlist.WireID{
			w.idexPcIn, w.idexInstrIn, w.idexRs1ValIn, w.idexRs2ValIn, w.idexFaultIn,
		},
		Eval: c.evalID,
	})

	n.AddEquation(top, netlist.Equation{
		Name: "ex",
		Inputs: []netlist.WireID{
			w.idexPcOut, w.idexInstrOut, w.idexRs1ValOut, w.idexRs2ValOut, w.idexFaultOut,
			w.exmemInstrOut, w.exmemExresultOut, w.exmemExflagsOut,
			w.memwbInstrOut, w.memwbWbdataOut, w.memwbRegwriteOut,
			w.privOut,
			w.dataPtwPte1, w.dataPtwPte0,
			w.irqSoftware, w.irqTimer, w.irqExternal,
		},
		Outputs: []netlist.WireID{
			w.exmemPcIn, w.exmemInstrIn, w.exmemExresultIn, w.exmemMemaddrIn,
			w.exmemStoredataIn, w.exmemExflagsIn,
			w.exRedirectValid, w.exRedirectTarget,
			w.dataPtwAddr1, w.dataPtwAddr0,
			w.privIn,
		},
		Eval: c.evalEX,
	})

	n.AddEquation(top, netlist.Equation{
		Name: "mem",
		Inputs: []netlist.WireID{
			w.exmemPcOut, w.exmemInstrOut, w.exmemExresultOut, w.exmemMemaddrOut,
			w.exmemStoredataOut, w.exmemExflagsOut, w.dataRdata,
			w.resvValidOut, w.resvAddrOut,
		},
		Outputs: []netlist.WireID{
			w.dataAddr, w.dataWdata, w.dataWe, w.dataRe, w.dataFunct3,
			w.memwbPcIn, w.memwbInstrIn, w.memwbWbdataIn, w.memwbRegwriteIn,
			w.resvValidIn, w.resvAddrIn,
		},
		Eval: c.evalMEM,
	})

	n.AddEquation(top, netlist.Equation{
		Name:   "debug",
		Inputs: []netlist.WireID{w.memwbPcOut, w.memwbInstrOut, w.debugRegAddr},
		Outputs: []netlist.WireID{
			w.debugPC, w.debugInst, w.debugX1, w.debugX2, w.debugX10, w.debugX11, w.debugRegData,
		},
		Eval: c.evalDebug,
	})
}

// operandUsage reports whether an instruction actually reads rs1/rs2, for
// the hazard unit's load-use check: e.g. LUI never reads a register, and
// an OP-IMM instruction never reads rs2.
func operandUsage(inst decode.Instruction) (usesRs1, usesRs2 bool) {
	switch inst.Class {
	case decode.ClassLui, decode.ClassJal, decode.ClassAuipc:
		return false, false
	case decode.ClassJalr, decode.ClassLoad:
		return true, false
	case decode.ClassBranch, decode.ClassStore:
		return true, true
	case decode.ClassALU:
		return true, !inst.Ctrl.AluSrcImm
	case decode.ClassAmo:
		return true, inst.Funct5 != decode.AmoLR
	case decode.ClassSystem:
		if inst.Sys == decode.SysCSR {
			return !inst.Ctrl.AluSrcImm, false
		}
		return false, false
	default:
		return false, false
	}
}

func evalHazard(in []bitvec.BitVec) []bitvec.BitVec {
	idInst := decode.Decode(in[0].Uint32())
	exInst := decode.Decode(in[1].Uint32())
	transfer := in[2].IsTrue()

	usesRs1, usesRs2 := operandUsage(idInst)
	d := hazard.Evaluate(
		hazard.IDInfo{Rs1: idInst.Rs1, Rs2: idInst.Rs2, UsesRs1: usesRs1, UsesRs2: usesRs2},
		hazard.EXInfo{IsLoad: exInst.Class == decode.ClassLoad, Rd: exInst.Rd},
		// The four-way branch/jump/trap/xret classification spec.md §4.6
		// describes is already unified upstream into one EX redirect
		// signal; Trap is as good a bucket as any to carry it through.
		hazard.ControlTransfer{Trap: transfer},
	)
	return []bitvec.BitVec{bv(1, boolBit(d.Stall)), bv(1, boolBit(d.FlushIFID)), bv(1, boolBit(d.FlushIDEX))}
}

// pcNextExpr computes the next PC: a redirect (trap/branch/jump/xret)
// wins over a stall (which holds PC steady to re-issue the stalled
// instruction), which wins over the default pc+4. Inputs, in the order
// declared on the "pc_next" equation: 0=pc, 1=stall, 2=redirectValid,
// 3=redirectTarget. A plain 3-way mux is exactly the shape the
// behavior DSL models (spec.md §9), unlike EX's trap/Sv32-walk logic.
var pcNextExpr = engine.MuxExpr(
	engine.Input(2),
	engine.Input(3),
	engine.MuxExpr(
		engine.Input(1),
		engine.Input(0),
		engine.Binary(engine.OpAdd, engine.Input(0), engine.Lit(32, 4)),
	),
)

var evalPCNext = engine.Compile(pcNextExpr)

func (c *Core) evalIF(in []bitvec.BitVec) []bitvec.BitVec {
	pc := in[0].Uint32()
	stall := in[1].IsTrue()
	flush := in[2].IsTrue()
	instData := in[3].Uint32()
	pte1 := in[4].Uint32()
	pte0 := in[5].Uint32()
	priv := uint8(in[6].Uint32())
	ifidPc := in[7].Uint32()
	ifidInstr := in[8].Uint32()
	ifidFault := in[9].IsTrue()

	satp := c.CSRs.Raw(csr.Satp)
	mxr := c.CSRs.Raw(csr.Mstatus)&csr.StatusMXR != 0
	sum := c.CSRs.Raw(csr.Mstatus)&csr.StatusSUM != 0
	wr := translate(c.ITLB, satp, pc, pte1, true, pte0, true, false, priv == PrivU, sum, mxr, true)

	pcIn, instrIn, faultIn := pc, instData, wr.Fault
	switch {
	case flush:
		pcIn, instrIn, faultIn = 0, decode.NopRaw, false
	case stall:
		pcIn, instrIn, faultIn = ifidPc, ifidInstr, ifidFault
	}

	return []bitvec.BitVec{
		bv(32, wr.PA), bv(32, wr.Addr1), bv(32, wr.Addr0),
		bv(32, pcIn), bv(32, instrIn), bv(1, boolBit(faultIn)),
	}
}

func (c *Core) evalID(in []bitvec.BitVec) []bitvec.BitVec {
	pc := in[0].Uint32()
	instrWord := in[1].Uint32()
	fault := in[2].IsTrue()
	flush := in[3].IsTrue()
	memwbInstrWord := in[4].Uint32()
	memwbWbData := in[5].Uint32()
	memwbRegWrite := in[6].IsTrue()

	inst := decode.Decode(instrWord)
	memwbInst := decode.Decode(memwbInstrWord)

	rs1 := c.Regs.Read1(inst.Rs1, memwbRegWrite, memwbInst.Rd, memwbWbData)
	rs2 := c.Regs.Read2(inst.Rs2, memwbRegWrite, memwbInst.Rd, memwbWbData)

	pcIn, instrIn, faultIn, rs1In, rs2In := pc, instrWord, fault, rs1, rs2
	if flush {
		pcIn, instrIn, faultIn, rs1In, rs2In = 0, decode.NopRaw, false, 0, 0
	}

	return []bitvec.BitVec{
		bv(32, pcIn), bv(32, instrIn), bv(32, rs1In), bv(32, rs2In), bv(1, boolBit(faultIn)),
	}
}

func (c *Core) evalEX(in []bitvec.BitVec) []bitvec.BitVec {
	pc := in[0].Uint32()
	instrWord := in[1].Uint32()
	rs1Raw := in[2].Uint32()
	rs2Raw := in[3].Uint32()
	fetchFault := in[4].IsTrue()
	exmemInstrWord := in[5].Uint32()
	exmemResult := in[6].Uint32()
	exmemFlags := in[7].Uint32()
	memwbInstrWord := in[8].Uint32()
	memwbWbData := in[9].Uint32()
	memwbRegWrite := in[10].IsTrue()
	priv := uint8(in[11].Uint32())
	dataPte1 := in[12].Uint32()
	dataPte0 := in[13].Uint32()
	irqS, irqT, irqE := in[14].IsTrue(), in[15].IsTrue(), in[16].IsTrue()

	inst := decode.Decode(instrWord)
	exmemInst := decode.Decode(exmemInstrWord)
	memwbInst := decode.Decode(memwbInstrWord)

	// The host's interrupt lines are level-sensitive mirrors of the
	// machine-level mip bits; supervisor-level pending bits (SSIP/STIP/
	// SEIP) are left alone here since they are software/PLIC managed via
	// CSR writes, not directly wired from the top-level IRQ ports.
	hwMask := uint32(csr.MIE_MSIE | csr.MIE_MTIE | csr.MIE_MEIE)
	hwBits := uint32(0)
	if irqS {
		hwBits |= csr.MIE_MSIE
	}
	if irqT {
		hwBits |= csr.MIE_MTIE
	}
	if irqE {
		hwBits |= csr.MIE_MEIE
	}
	c.pendingCSRWrites = append(c.pendingCSRWrites[:0], csr.Write{
		Addr: csr.Mip, Data: (c.CSRs.Raw(csr.Mip) &^ hwMask) | hwBits, Enable: true,
	})

	exmemRegWrite := flagBit(exmemFlags, 0)
	fwd1 := forward.Select(inst.Rs1, rs1Raw,
		forward.Stage{Rd: exmemInst.Rd, RegWrite: exmemRegWrite, Value: exmemResult},
		forward.Stage{Rd: memwbInst.Rd, RegWrite: memwbRegWrite, Value: memwbWbData})
	fwd2 := forward.Select(inst.Rs2, rs2Raw,
		forward.Stage{Rd: exmemInst.Rd, RegWrite: exmemRegWrite, Value: exmemResult},
		forward.Stage{Rd: memwbInst.Rd, RegWrite: memwbRegWrite, Value: memwbWbData})
	a, b := fwd1.Value, fwd2.Value

	aluA := a
	if inst.Class == decode.ClassAuipc {
		aluA = pc
	}
	aluB := b
	if inst.Ctrl.AluSrcImm {
		aluB = inst.Imm
	}
	aluResult, _ := alu.Execute(alu.Op(inst.Ctrl.AluOp), aluA, aluB)

	branchTaken := inst.Class == decode.ClassBranch && alu.Compare(inst.Funct3, a, b)
	var jumpTarget uint32
	switch inst.Class {
	case decode.ClassBranch:
		jumpTarget = pc + inst.Imm
	case decode.ClassJal:
		jumpTarget = pc + inst.Imm
	case decode.ClassJalr:
		jumpTarget = (a + inst.Imm) &^ 1
	}

	req := checkInterrupt(c.CSRs, priv)
	switch {
	case req.Taken:
	case fetchFault:
		req = resolveException(c.CSRs, priv, CauseInstPageFault, pc)
	case inst.Class == decode.ClassIllegal || (inst.Class == decode.ClassSystem && inst.Sys == decode.SysIllegal):
		req = resolveException(c.CSRs, priv, CauseIllegalInstruction, instrWord)
	case inst.Sys == decode.SysEbreak:
		req = resolveException(c.CSRs, priv, CauseBreakpoint, 0)
	case inst.Sys == decode.SysEcall:
		cause := uint32(CauseEcallM)
		switch priv {
		case PrivU:
			cause = CauseEcallU
		case PrivS:
			cause = CauseEcallS
		}
		req = resolveException(c.CSRs, priv, cause, 0)
	}

	var memAddr uint32
	var ptwAddr1, ptwAddr0 uint32
	isMemOp := inst.Class == decode.ClassLoad || inst.Class == decode.ClassStore || inst.Class == decode.ClassAmo
	if isMemOp && !req.Taken {
		vaddr := aluResult
		isWrite := inst.Class == decode.ClassStore
		if inst.Class == decode.ClassAmo {
			vaddr = a
			isWrite = inst.Funct5 != decode.AmoLR
		}
		user := priv == PrivU
		mstatus := c.CSRs.Raw(csr.Mstatus)
		sum := mstatus&csr.StatusSUM != 0
		mxr := mstatus&csr.StatusMXR != 0
		wr := translate(c.DTLB, c.CSRs.Raw(csr.Satp), vaddr, dataPte1, true, dataPte0, true, isWrite, user, sum, mxr, false)
		memAddr = wr.PA
		ptwAddr1, ptwAddr0 = wr.Addr1, wr.Addr0
		if wr.Fault {
			cause := uint32(CauseLoadPageFault)
			if isWrite {
				cause = CauseStorePageFault
			}
			req = resolveException(c.CSRs, priv, cause, vaddr)
		}
	}

	trapTaken := req.Taken
	newPriv := priv
	redirectValid := false
	var redirectTarget uint32

	switch {
	case trapTaken:
		c.pendingCSRWrites = append(c.pendingCSRWrites, csrWritesForTrap(c.CSRs, priv, req, pc, req.Tval)...)
		newPriv = req.TargetPriv
		redirectValid = true
		redirectTarget = trapVector(c.CSRs, req.TargetPriv)
	case inst.Sys == decode.SysMret:
		r := resolveMret(c.CSRs)
		c.pendingCSRWrites = append(c.pendingCSRWrites, r.Writes...)
		newPriv = r.NewPriv
		redirectValid = true
		redirectTarget = r.PC
	case inst.Sys == decode.SysSret:
		r := resolveSret(c.CSRs)
		c.pendingCSRWrites = append(c.pendingCSRWrites, r.Writes...)
		newPriv = r.NewPriv
		redirectValid = true
		redirectTarget = r.PC
	case branchTaken, inst.Class == decode.ClassJal, inst.Class == decode.ClassJalr:
		redirectValid = true
		redirectTarget = jumpTarget
	case inst.Sys == decode.SysSfenceVMA:
		c.DTLB.FlushAll()
		c.ITLB.FlushAll()
	}

	var csrReadVal uint32
	if inst.Class == decode.ClassSystem && inst.Sys == decode.SysCSR {
		addr := uint16(inst.SysImm)
		old := c.CSRs.Read(addr, nil)
		csrReadVal = old
		if !trapTaken {
			var src uint32
			if inst.Ctrl.AluSrcImm {
				src = uint32(inst.Rs1)
			} else {
				src = a
			}
			var newVal uint32
			doWrite := true
			switch inst.Funct3 {
			case decode.Funct3CsrRW, decode.Funct3CsrRWI:
				newVal = src
			case decode.Funct3CsrRS, decode.Funct3CsrRSI:
				newVal = old | src
				doWrite = inst.Rs1 != 0
			case decode.Funct3CsrRC, decode.Funct3CsrRCI:
				newVal = old &^ src
				doWrite = inst.Rs1 != 0
			}
			if doWrite {
				c.pendingCSRWrites = append(c.pendingCSRWrites, csr.Write{Addr: addr, Data: newVal, Enable: true})
				if addr == csr.Satp {
					// spec.md §4.12: flush_all empties all entries, triggered by
					// SFENCE.VMA or any write to satp (the root PPN may have
					// changed, so every cached translation is for a stale
					// address space).
					c.DTLB.FlushAll()
					c.ITLB.FlushAll()
				}
			}
		}
	}

	var exResult uint32
	switch {
	case inst.Class == decode.ClassAuipc:
		exResult = aluResult
	case inst.Class == decode.ClassJal, inst.Class == decode.ClassJalr:
		exResult = pc + 4
	case inst.Class == decode.ClassLui:
		exResult = inst.Imm
	case inst.Class == decode.ClassSystem && inst.Sys == decode.SysCSR:
		exResult = csrReadVal
	default:
		exResult = aluResult
	}

	isAmo := inst.Class == decode.ClassAmo
	memRead := inst.Ctrl.MemRead || (isAmo && inst.Funct5 != decode.AmoSC)
	memWrite := inst.Ctrl.MemWrite || (isAmo && inst.Funct5 != decode.AmoLR)
	regWrite := inst.Ctrl.RegWrite
	if trapTaken {
		memRead, memWrite, regWrite = false, false, false
	}
	exflags := packFlags(regWrite, memRead, memWrite)

	return []bitvec.BitVec{
		bv(32, pc), bv(32, instrWord), bv(32, exResult), bv(32, memAddr),
		bv(32, b), bv(8, exflags),
		bv(1, boolBit(redirectValid)), bv(32, redirectTarget),
		bv(32, ptwAddr1), bv(32, ptwAddr0),
		bv(2, uint32(newPriv)),
	}
}

func amoCombine(op uint8, old, operand uint32) uint32 {
	switch op {
	case decode.AmoAdd:
		return old + operand
	case decode.AmoSwap:
		return operand
	case decode.AmoXor:
		return old ^ operand
	case decode.AmoAnd:
		return old & operand
	case decode.AmoOr:
		return old | operand
	case decode.AmoMin:
		return alu.SignedMin(old, operand)
	case decode.AmoMax:
		return alu.SignedMax(old, operand)
	case decode.AmoMinu:
		if old < operand {
			return old
		}
		return operand
	case decode.AmoMaxu:
		if old > operand {
			return old
		}
		return operand
	default:
		return old
	}
}

func (c *Core) evalMEM(in []bitvec.BitVec) []bitvec.BitVec {
	pc := in[0].Uint32()
	instrWord := in[1].Uint32()
	exResult := in[2].Uint32()
	memAddr := in[3].Uint32()
	storeData := in[4].Uint32()
	exflags := in[5].Uint32()
	rdata := in[6].Uint32()
	resvValid := in[7].IsTrue()
	resvAddr := in[8].Uint32()

	inst := decode.Decode(instrWord)
	regWrite := flagBit(exflags, 0)
	memRead := flagBit(exflags, 1)
	memWrite := flagBit(exflags, 2)

	newResvValid, newResvAddr := resvValid, resvAddr
	var dAddr, dWdata uint32
	var dWe, dRe bool
	wbData := exResult

	switch inst.Class {
	case decode.ClassLoad:
		dAddr, dRe = memAddr, memRead
		wbData = rdata
	case decode.ClassStore:
		dAddr, dWe, dWdata = memAddr, memWrite, storeData
		newResvValid = false
	case decode.ClassAmo:
		if !memRead && !memWrite {
			// EX zeroed both flags (trap taken before reaching MEM, or a
			// flushed bubble) — no bus activity, reservation left untouched.
			break
		}
		dAddr = memAddr
		switch inst.Funct5 {
		case decode.AmoLR:
			dRe = true
			newResvValid, newResvAddr = true, memAddr
			wbData = rdata
		case decode.AmoSC:
			if resvValid && resvAddr == memAddr {
				dWe, dWdata, wbData = true, storeData, 0
			} else {
				wbData = 1
			}
			newResvValid = false
		default:
			dRe, dWe = true, true
			wbData = rdata
			dWdata = amoCombine(inst.Funct5, rdata, storeData)
			newResvValid = false
		}
	}

	c.pendingRegWrite = regWriteCmd{Addr: inst.Rd, Data: wbData, En: regWrite}

	return []bitvec.BitVec{
		bv(32, dAddr), bv(32, dWdata), bv(1, boolBit(dWe)), bv(1, boolBit(dRe)), bv(3, uint32(inst.Funct3)),
		bv(32, pc), bv(32, instrWord), bv(32, wbData), bv(1, boolBit(regWrite)),
		bv(1, boolBit(newResvValid)), bv(32, newResvAddr),
	}
}

func (c *Core) evalDebug(in []bitvec.BitVec) []bitvec.BitVec {
	pc := in[0].Uint32()
	instr := in[1].Uint32()
	addr := uint8(in[2].Uint32())
	return []bitvec.BitVec{
		bv(32, pc), bv(32, instr),
		bv(32, c.Regs.ReadDebug(1)),
		bv(32, c.Regs.ReadDebug(2)),
		bv(32, c.Regs.ReadDebug(10)),
		bv(32, c.Regs.ReadDebug(11)),
		bv(32, c.Regs.ReadDebug(addr)),
	}
}
