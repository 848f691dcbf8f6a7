// Package pipeline assembles the five-stage RV32IA+Zicsr+Sv32 pipeline
// from the netlist/engine substrate: the IF/ID, ID/EX, EX/MEM and MEM/WB
// pipeline latches are real netlist.Sequential components (spec.md §3
// PipelineLatch, §9 "pipeline-latch input wires"), as are the program
// counter and the combined privilege/atomic-reservation register. The
// register file, CSR file and the two Sv32 TLBs are native Go objects
// driven from inside the stage equations rather than modeled wire-by-wire
// — they are multi-ported, address-keyed stores, not fixed-width signals,
// and spec.md §3 already describes them as such (CSRFile is "addressable
// by 12-bit index" with up to twelve ports in one cycle; forcing that
// through individual wires would not make the simulation any more
// faithful, only harder to read).
package pipeline

import (
	"github.com/rv32pipe/rv32pipe/internal/cpu/csr"
	"github.com/rv32pipe/rv32pipe/internal/cpu/decode"
	"github.com/rv32pipe/rv32pipe/internal/cpu/regfile"
	"github.com/rv32pipe/rv32pipe/internal/cpu/tlb"
	"github.com/rv32pipe/rv32pipe/internal/elaborate"
	"github.com/rv32pipe/rv32pipe/internal/engine"
	"github.com/rv32pipe/rv32pipe/internal/netlist"
)

// wires collects every WireID the stage equations and the host interface
// need, so the rest of the package can refer to named fields instead of
// re-looking up strings at run time.
type wires struct {
	clk, rst netlist.WireID

	irqSoftware, irqTimer, irqExternal netlist.WireID

	instAddr, instData                     netlist.WireID
	instPtwAddr1, instPtwAddr0             netlist.WireID
	instPtwPte1, instPtwPte0               netlist.WireID
	dataAddr, dataWdata, dataWe, dataRe    netlist.WireID
	dataFunct3, dataRdata                  netlist.WireID
	dataPtwAddr1, dataPtwAddr0             netlist.WireID
	dataPtwPte1, dataPtwPte0               netlist.WireID

	debugPC, debugInst                         netlist.WireID
	debugX1, debugX2, debugX10, debugX11       netlist.WireID
	debugRegAddr, debugRegData                 netlist.WireID

	pcOut, pcIn netlist.WireID

	ifidPcOut, ifidPcIn       netlist.WireID
	ifidInstrOut, ifidInstrIn netlist.WireID
	ifidFaultOut, ifidFaultIn netlist.WireID

	idexPcOut, idexPcIn         netlist.WireID
	idexInstrOut, idexInstrIn   netlist.WireID
	idexRs1ValOut, idexRs1ValIn netlist.WireID
	idexRs2ValOut, idexRs2ValIn netlist.WireID
	idexFaultOut, idexFaultIn   netlist.WireID

	exmemPcOut, exmemPcIn             netlist.WireID
	exmemInstrOut, exmemInstrIn       netlist.WireID
	exmemExresultOut, exmemExresultIn netlist.WireID
	exmemMemaddrOut, exmemMemaddrIn   netlist.WireID
	exmemStoredataOut, exmemStoredataIn netlist.WireID
	exmemExflagsOut, exmemExflagsIn   netlist.WireID

	memwbPcOut, memwbPcIn         netlist.WireID
	memwbInstrOut, memwbInstrIn   netlist.WireID
	memwbWbdataOut, memwbWbdataIn netlist.WireID
	memwbRegwriteOut, memwbRegwriteIn netlist.WireID

	privOut, privIn         netlist.WireID
	resvValidOut, resvValidIn netlist.WireID
	resvAddrOut, resvAddrIn   netlist.WireID

	hzStall, hzFlushIfID, hzFlushIdEx netlist.WireID
	exRedirectValid, exRedirectTarget netlist.WireID
}

// Core is the top-level CPU component (spec.md §6), wrapping the
// elaborated netlist plus the native architectural state that sits
// alongside it.
type Core struct {
	net *netlist.Netlist
	eng *engine.Engine
	w   wires

	Regs *regfile.File
	CSRs *csr.File
	ITLB *tlb.TLB
	DTLB *tlb.TLB

	pendingRegWrite  regWriteCmd
	pendingCSRWrites []csr.Write
}

type regWriteCmd struct {
	Addr uint8
	Data uint32
	En   bool
}

// NopDecoded is the architecturally-valid bubble instruction, decoded
// once and reused by every latch's reset value computation.
var NopDecoded = decode.Decode(decode.NopRaw)

// New builds, elaborates, and returns a ready-to-step Core.
func New() (*Core, error) {
	n := netlist.New("rv32pipe.core")
	top := n.AddComponent("rv32pipe.core", netlist.Hierarchical)

	c := &Core{
		net:  n,
		Regs: regfile.New(),
		CSRs: csr.New(),
		ITLB: tlb.New(tlb.DefaultCapacity),
		DTLB: tlb.New(tlb.DefaultCapacity),
	}
	c.w = c.declareWires(n)
	c.buildLatches(n)
	c.buildStageEquations(n, top)

	if _, err := elaborate.Elaborate(n); err != nil {
		return nil, err
	}
	c.eng = engine.New(n)
	c.Reset()
	return c, nil
}

func (c *Core) declareWires(n *netlist.Netlist) wires {
	w := wires{}
	w.clk = n.AddWire("clk", 1)
	w.rst = n.AddWire("rst", 1)
	n.MarkTopInput(w.clk)
	n.MarkTopInput(w.rst)

	w.irqSoftware = n.AddWire("irq_software", 1)
	w.irqTimer = n.AddWire("irq_timer", 1)
	w.irqExternal = n.AddWire("irq_external", 1)
	for _, id := range []netlist.WireID{w.irqSoftware, w.irqTimer, w.irqExternal} {
		n.MarkTopInput(id)
	}

	w.instAddr = n.AddWire("inst_addr", 32)
	w.instData = n.AddWire("inst_data", 32)
	n.MarkTopInput(w.instData)
	w.instPtwAddr1 = n.AddWire("inst_ptw_addr1", 32)
	w.instPtwAddr0 = n.AddWire("inst_ptw_addr0", 32)
	w.instPtwPte1 = n.AddWire("inst_ptw_pte1", 32)
	w.instPtwPte0 = n.AddWire("inst_ptw_pte0", 32)
	n.MarkTopInput(w.instPtwPte1)
	n.MarkTopInput(w.instPtwPte0)

	w.dataAddr = n.AddWire("data_addr", 32)
	w.dataWdata = n.AddWire("data_wdata", 32)
	w.dataWe = n.AddWire("data_we", 1)
	w.dataRe = n.AddWire("data_re", 1)
	w.dataFunct3 = n.AddWire("data_funct3", 3)
	w.dataRdata = n.AddWire("data_rdata", 32)
	n.MarkTopInput(w.dataRdata)
	w.dataPtwAddr1 = n.AddWire("data_ptw_addr1", 32)
	w.dataPtwAddr0 = n.AddWire("data_ptw_addr0", 32)
	w.dataPtwPte1 = n.AddWire("data_ptw_pte1", 32)
	w.dataPtwPte0 = n.AddWire("data_ptw_pte0", 32)
	n.MarkTopInput(w.dataPtwPte1)
	n.MarkTopInput(w.dataPtwPte0)

	w.debugPC = n.AddWire("debug_pc", 32)
	w.debugInst = n.AddWire("debug_inst", 32)
	w.debugX1 = n.AddWire("debug_x1", 32)
	w.debugX2 = n.AddWire("debug_x2", 32)
	w.debugX10 = n.AddWire("debug_x10", 32)
	w.debugX11 = n.AddWire("debug_x11", 32)
	w.debugRegAddr = n.AddWire("debug_reg_addr", 5)
	n.MarkTopInput(w.debugRegAddr)
	w.debugRegData = n.AddWire("debug_reg_data", 32)

	w.pcOut = n.AddWire("pc.out", 32)
	w.pcIn = n.AddWire("pc.in", 32)

	w.ifidPcOut = n.AddWire("ifid.pc.out", 32)
	w.ifidPcIn = n.AddWire("ifid.pc.in", 32)
	w.ifidInstrOut = n.AddWire("ifid.instr.out", 32)
	w.ifidInstrIn = n.AddWire("ifid.instr.in", 32)
	w.ifidFaultOut = n.AddWire("ifid.fault.out", 1)
	w.ifidFaultIn = n.AddWire("ifid.fault.in", 1)

	w.idexPcOut = n.AddWire("idex.pc.out", 32)
	w.idexPcIn = n.AddWire("idex.pc.in", 32)
	w.idexInstrOut = n.AddWire("idex.instr.out", 32)
	w.idexInstrIn = n.AddWire("idex.instr.in", 32)
	w.idexRs1ValOut = n.AddWire("idex.rs1val.out", 32)
	w.idexRs1ValIn = n.AddWire("idex.rs1val.in", 32)
	w.idexRs2ValOut = n.AddWire("idex.rs2val.out", 32)
	w.idexRs2ValIn = n.AddWire("idex.rs2val.in", 32)
	w.idexFaultOut = n.AddWire("idex.fault.out", 1)
	w.idexFaultIn = n.AddWire("idex.fault.in", 1)

	w.exmemPcOut = n.AddWire("exmem.pc.out", 32)
	w.exmemPcIn = n.AddWire("exmem.pc.in", 32)
	w.exmemInstrOut = n.AddWire("exmem.instr.out", 32)
	w.exmemInstrIn = n.AddWire("exmem.instr.in", 32)
	w.exmemExresultOut = n.AddWire("exmem.exresult.out", 32)
	w.exmemExresultIn = n.AddWire("exmem.exresult.in", 32)
	w.exmemMemaddrOut = n.AddWire("exmem.memaddr.out", 32)
	w.exmemMemaddrIn = n.AddWire("exmem.memaddr.in", 32)
	w.exmemStoredataOut = n.AddWire("exmem.storedata.out", 32)
	w.exmemStoredataIn = n.AddWire("exmem.storedata.in", 32)
	w.exmemExflagsOut = n.AddWire("exmem.exflags.out", 8)
	w.exmemExflagsIn = n.AddWire("exmem.exflags.in", 8)

	w.memwbPcOut = n.AddWire("memwb.pc.out", 32)
	w.memwbPcIn = n.AddWire("memwb.pc.in", 32)
	w.memwbInstrOut = n.AddWire("memwb.instr.out", 32)
	w.memwbInstrIn = n.AddWire("memwb.instr.in", 32)
	w.memwbWbdataOut = n.AddWire("memwb.wbdata.out", 32)
	w.memwbWbdataIn = n.AddWire("memwb.wbdata.in", 32)
	w.memwbRegwriteOut = n.AddWire("memwb.regwrite.out", 1)
	w.memwbRegwriteIn = n.AddWire("memwb.regwrite.in", 1)

	w.privOut = n.AddWire("arch.priv.out", 2)
	w.privIn = n.AddWire("arch.priv.in", 2)
	w.resvValidOut = n.AddWire("arch.resv_valid.out", 1)
	w.resvValidIn = n.AddWire("arch.resv_valid.in", 1)
	w.resvAddrOut = n.AddWire("arch.resv_addr.out", 32)
	w.resvAddrIn = n.AddWire("arch.resv_addr.in", 32)

	w.hzStall = n.AddWire("hz.stall", 1)
	w.hzFlushIfID = n.AddWire("hz.flush_if_id", 1)
	w.hzFlushIdEx = n.AddWire("hz.flush_id_ex", 1)
	w.exRedirectValid = n.AddWire("ex.redirect_valid", 1)
	w.exRedirectTarget = n.AddWire("ex.redirect_target", 32)

	return w
}

func (c *Core) buildLatches(n *netlist.Netlist) {
	w := c.w

	pcComp := n.AddComponent("pc_reg", netlist.Sequential)
	n.AddSequential(pcComp, netlist.Sequential{
		Clock: w.clk, Reset: w.rst,
		Fields: []netlist.LatchField{{Name: "pc", Input: w.pcIn, Output: w.pcOut, ResetValue: bv(32, 0)}},
	})

	ifidComp := n.AddComponent("ifid_latch", netlist.Sequential)
	n.AddSequential(ifidComp, netlist.Sequential{
		Clock: w.clk, Reset: w.rst,
		Fields: []netlist.LatchField{
			{Name: "pc", Input: w.ifidPcIn, Output: w.ifidPcOut, ResetValue: bv(32, 0)},
			{Name: "instr", Input: w.ifidInstrIn, Output: w.ifidInstrOut, ResetValue: bv(32, decode.NopRaw)},
			{Name: "fault", Input: w.ifidFaultIn, Output: w.ifidFaultOut, ResetValue: bv(1, 0)},
		},
	})

	idexComp := n.AddComponent("idex_latch", netlist.Sequential)
	n.AddSequential(idexComp, netlist.Sequential{
		Clock: w.clk, Reset: w.rst,
		Fields: []netlist.LatchField{
			{Name: "pc", Input: w.idexPcIn, Output: w.idexPcOut, ResetValue: bv(32, 0)},
			{Name: "instr", Input: w.idexInstrIn, Output: w.idexInstrOut, ResetValue: bv(32, decode.NopRaw)},
			{Name: "rs1val", Input: w.idexRs1ValIn, Output: w.idexRs1ValOut, ResetValue: bv(32, 0)},
			{Name: "rs2val", Input: w.idexRs2ValIn, Output: w.idexRs2ValOut, ResetValue: bv(32, 0)},
			{Name: "fault", Input: w.idexFaultIn, Output: w.idexFaultOut, ResetValue: bv(1, 0)},
		},
	})

	exmemComp := n.AddComponent("exmem_latch", netlist.Sequential)
	n.AddSequential(exmemComp, netlist.Sequential{
		Clock: w.clk, Reset: w.rst,
		Fields: []netlist.LatchField{
			{Name: "pc", Input: w.exmemPcIn, Output: w.exmemPcOut, ResetValue: bv(32, 0)},
			{Name: "instr", Input: w.exmemInstrIn, Output: w.exmemInstrOut, ResetValue: bv(32, decode.NopRaw)},
			{Name: "exresult", Input: w.exmemExresultIn, Output: w.exmemExresultOut, ResetValue: bv(32, 0)},
			{Name: "memaddr", Input: w.exmemMemaddrIn, Output: w.exmemMemaddrOut, ResetValue: bv(32, 0)},
			{Name: "storedata", Input: w.exmemStoredataIn, Output: w.exmemStoredataOut, ResetValue: bv(32, 0)},
			{Name: "exflags", Input: w.exmemExflagsIn, Output: w.exmemExflagsOut, ResetValue: bv(8, 0)},
		},
	})

	memwbComp := n.AddComponent("memwb_latch", netlist.Sequential)
	n.AddSequential(memwbComp, netlist.Sequential{
		Clock: w.clk, Reset: w.rst,
		Fields: []netlist.LatchField{
			{Name: "pc", Input: w.memwbPcIn, Output: w.memwbPcOut, ResetValue: bv(32, 0)},
			{Name: "instr", Input: w.memwbInstrIn, Output: w.memwbInstrOut, ResetValue: bv(32, decode.NopRaw)},
			{Name: "wbdata", Input: w.memwbWbdataIn, Output: w.memwbWbdataOut, ResetValue: bv(32, 0)},
			{Name: "regwrite", Input: w.memwbRegwriteIn, Output: w.memwbRegwriteOut, ResetValue: bv(1, 0)},
		},
	})

	archComp := n.AddComponent("arch_state", netlist.Sequential)
	n.AddSequential(archComp, netlist.Sequential{
		Clock: w.clk, Reset: w.rst,
		Fields: []netlist.LatchField{
			{Name: "priv", Input: w.privIn, Output: w.privOut, ResetValue: bv(2, PrivM)},
			{Name: "resv_valid", Input: w.resvValidIn, Output: w.resvValidOut, ResetValue: bv(1, 0)},
			{Name: "resv_addr", Input: w.resvAddrIn, Output: w.resvAddrOut, ResetValue: bv(32, 0)},
		},
	})
}

// Reset drives rst for one logical cycle, which the Sequential fields'
// reset-value handling (engine.RisingEdge) applies to every latch at
// once — spec.md §7's "reset re-entry is always safe" guarantee.
func (c *Core) Reset() {
	c.eng.SetInput(c.w.rst, bv(1, 1))
	c.eng.Propagate()
	c.eng.RisingEdge()
	c.eng.SetInput(c.w.rst, bv(1, 0))
	c.eng.Propagate()
	c.CSRs.Reset()
	c.Regs.Reset()
	c.ITLB.FlushAll()
	c.DTLB.FlushAll()
}
