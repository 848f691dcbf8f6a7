package pipeline

import "github.com/rv32pipe/rv32pipe/internal/netlist"

// Host is the boundary the core crosses once per cycle to reach memory,
// the page-table walker's backing store and the external interrupt
// lines (spec.md §6's "the host owns memory/MMIO and PTW access; the
// core only ever sees wire values"). internal/hostmem implements this
// against a flat RAM plus CLINT/PLIC/UART models.
type Host interface {
	FetchInstruction(addr uint32) uint32
	FetchPTE(addr uint32) uint32
	ReadData(addr uint32, funct3 uint8) uint32
	WriteData(addr uint32, data uint32, funct3 uint8)
	Interrupts() (software, timer, external bool)
}

func (c *Core) wireVal(id netlist.WireID) uint32 { return c.net.Wire(id).Value.Uint32() }

// Step runs one clock cycle. The host round repeats three times rather
// than once: a 2-level Sv32 walk needs the level-1 PTE before it can even
// name the level-0 PTE's address, and the final round lets the I-side and
// D-side walks finish resolving onto the addresses the prior round
// established, independently of each other. A plain (non-faulting,
// non-walking) access already has a stable address after round one, so
// the host just keeps re-supplying the same value — harmless, since
// Propagate is idempotent for unchanged inputs.
func (c *Core) Step(h Host) error {
	c.eng.Propagate()
	for round := 0; round < 3; round++ {
		c.supplyHost(h)
		c.eng.Propagate()
	}
	if err := c.eng.Reconverge(); err != nil {
		return err
	}
	c.performHostWrite(h)

	// Native architectural state (CSR file, register file) commits here,
	// at the same logical instant as the wire-based Sequential components'
	// RisingEdge, using the decisions the EX/MEM equations latched into
	// c.pendingCSRWrites/c.pendingRegWrite during this cycle's Low phase A.
	c.CSRs.Commit(c.pendingCSRWrites)
	if c.pendingRegWrite.En {
		c.Regs.Write(c.pendingRegWrite.Addr, c.pendingRegWrite.Data, true)
	}

	c.eng.RisingEdge()
	c.eng.Propagate()
	return nil
}

func (c *Core) supplyHost(h Host) {
	w := c.w

	instData := h.FetchInstruction(c.wireVal(w.instAddr))
	instPte1 := h.FetchPTE(c.wireVal(w.instPtwAddr1))
	instPte0 := h.FetchPTE(c.wireVal(w.instPtwAddr0))

	funct3 := uint8(c.wireVal(w.dataFunct3))
	dataRdata := h.ReadData(c.wireVal(w.dataAddr), funct3)
	dataPte1 := h.FetchPTE(c.wireVal(w.dataPtwAddr1))
	dataPte0 := h.FetchPTE(c.wireVal(w.dataPtwAddr0))

	irqS, irqT, irqE := h.Interrupts()

	c.eng.SetInput(w.instData, bv(32, instData))
	c.eng.SetInput(w.instPtwPte1, bv(32, instPte1))
	c.eng.SetInput(w.instPtwPte0, bv(32, instPte0))
	c.eng.SetInput(w.dataRdata, bv(32, dataRdata))
	c.eng.SetInput(w.dataPtwPte1, bv(32, dataPte1))
	c.eng.SetInput(w.dataPtwPte0, bv(32, dataPte0))
	c.eng.SetInput(w.irqSoftware, bv(1, boolBit(irqS)))
	c.eng.SetInput(w.irqTimer, bv(1, boolBit(irqT)))
	c.eng.SetInput(w.irqExternal, bv(1, boolBit(irqE)))
}

func (c *Core) performHostWrite(h Host) {
	w := c.w
	if !c.net.Wire(w.dataWe).Value.IsTrue() {
		return
	}
	funct3 := uint8(c.wireVal(w.dataFunct3))
	h.WriteData(c.wireVal(w.dataAddr), c.wireVal(w.dataWdata), funct3)
}

// PC reports the architectural program counter (the value about to enter
// IF), for debug/trace use.
func (c *Core) PC() uint32 { return c.wireVal(c.w.pcOut) }

// Priv reports the current privilege level.
func (c *Core) Priv() uint8 { return uint8(c.wireVal(c.w.privOut)) }

// DebugState is one debug-port sample (spec.md §6's debug_* wires).
type DebugState struct {
	PC, Inst           uint32
	X1, X2, X10, X11   uint32
	RegAddr, RegData   uint32
}

// SetDebugRegAddr selects which register debug_reg_data exposes.
func (c *Core) SetDebugRegAddr(addr uint8) {
	c.eng.SetInput(c.w.debugRegAddr, bv(5, uint32(addr)))
	c.eng.Propagate()
}

// Debug samples the current debug-port wires.
func (c *Core) Debug() DebugState {
	w := c.w
	return DebugState{
		PC:      c.wireVal(w.debugPC),
		Inst:    c.wireVal(w.debugInst),
		X1:      c.wireVal(w.debugX1),
		X2:      c.wireVal(w.debugX2),
		X10:     c.wireVal(w.debugX10),
		X11:     c.wireVal(w.debugX11),
		RegAddr: c.wireVal(w.debugRegAddr),
		RegData: c.wireVal(w.debugRegData),
	}
}
