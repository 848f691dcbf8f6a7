// Package netlist is the arena-owned graph of wires, components, and
// combinational/sequential behavior that the elaborator (internal/elaborate)
// flattens and orders, and the cycle engine (internal/engine) drives.
//
// Every wire and component is identified by an integer handle (WireID,
// CompID) rather than a pointer, so the whole graph lives in a few slices
// owned by one Netlist value — the "arena-index ownership" design called
// out in the top-level design notes.
package netlist

import "github.com/rv32pipe/rv32pipe/internal/bitvec"

// WireID is a handle into Netlist.Wires.
type WireID int

// CompID is a handle into Netlist.Components.
type CompID int

// Direction tags a Port as consumed or produced by its component.
type Direction uint8

const (
	Input Direction = iota
	Output
)

// Port is a named, width-typed terminal on a Component.
type Port struct {
	Name    string
	Width   uint8
	Dir     Direction
	Default *bitvec.BitVec // used when an input is left unbound
}

// Class distinguishes the three component shapes spec.md §3 allows.
type Class uint8

const (
	Combinational Class = iota
	Sequential
	Hierarchical
)

// DriverKind tags how a Wire's value is produced.
type DriverKind uint8

const (
	DriverNone DriverKind = iota
	DriverEquation
	DriverSubInstancePort
	DriverTopInput
	DriverSequential
)

// Driver identifies the single producer of a Wire's value, per spec.md's
// "every wire has exactly one driver" invariant.
type Driver struct {
	Kind       DriverKind
	Equation   int    // index into Netlist.Equations, valid when Kind==DriverEquation
	FromInst   CompID // valid when Kind==DriverSubInstancePort
	FromPort   string
	Undriven   bool // true until a driver is attached
	MultiCount int  // incremented on each attach; >1 is an elaboration error
}

// Wire is a named, width-typed signal carrier holding a value that is only
// read-valid after its driver has run in the current sub-phase.
type Wire struct {
	Name    string
	Width   uint8
	Value   bitvec.BitVec
	Driver  Driver
	stamped bool // not set anywhere; always false
}

// Equation is a combinational behavior task: a pure function from its
// declared input wires to its declared output wires. The elaborator uses
// Inputs/Outputs to build the dependency graph and topologically order
// the Eval calls; Eval itself may be backed by a behavior-DSL Expr
// (internal/engine) or by a native Go closure for blocks whose control
// logic is simpler to read as code than as an expression tree.
type Equation struct {
	Name    string
	Inputs  []WireID
	Outputs []WireID
	Eval    func(in []bitvec.BitVec) []bitvec.BitVec
}

// LatchField is one (input, output, reset) triple inside a sequential
// component: on the active clock edge, Output samples Input's value
// unless Reset is asserted, in which case it takes ResetValue.
type LatchField struct {
	Name       string
	Input      WireID // the "latch-input" wire driven by the behavior block
	Output     WireID // the registered output wire
	ResetValue bitvec.BitVec
}

// Sequential is a clocked component's set of latch fields, sampled
// atomically on the rising edge.
type Sequential struct {
	Clock  WireID
	Reset  WireID
	Fields []LatchField
}

// Component is a node in the hierarchy: ports plus either a set of
// combinational Equations (Class==Combinational), a Sequential block
// (Class==Sequential), or nothing of its own because it is purely a
// container for SubInstances (Class==Hierarchical).
type Component struct {
	Name         string
	Class        Class
	Ports        map[string]WireID
	SubInstances []CompID
	Equations    []int // indices into Netlist.Equations contributed here
	Seq          *Sequential
}

// Binding records a single port<->wire connection made while building the
// netlist, so the elaborator can re-check width agreement independently of
// the driver-unification step (which only ever sees one merged WireID and
// so cannot by itself detect a width mismatch at the binding site).
type Binding struct {
	Desc      string
	PortWidth uint8
	WireWidth uint8
}

// Netlist is the flattened, elaborated graph: every wire and component
// referenced by fully-qualified name, with exactly one entry per handle.
type Netlist struct {
	Wires      []Wire
	WireIndex  map[string]WireID
	Components []Component
	CompIndex  map[string]CompID
	Equations  []Equation
	Bindings   []Binding
	Order      []int    // topological order over Equations, set by the elaborator
	SeqComps   []CompID // components with a non-nil Seq, in declaration order
	name       string
}

// RecordBinding logs a port<->wire connection for later width validation.
func (n *Netlist) RecordBinding(desc string, portWidth, wireWidth uint8) {
	n.Bindings = append(n.Bindings, Binding{Desc: desc, PortWidth: portWidth, WireWidth: wireWidth})
}

// New creates an empty netlist.
func New(name string) *Netlist {
	return &Netlist{
		name:      name,
		WireIndex: make(map[string]WireID),
		CompIndex: make(map[string]CompID),
	}
}

// AddWire declares a new wire. Panics on duplicate name: this is a builder
// invariant violation (a bug in the blueprint being constructed), not a
// recoverable elaboration error.
func (n *Netlist) AddWire(name string, width uint8) WireID {
	if _, exists := n.WireIndex[name]; exists {
		panic("netlist: duplicate wire " + name)
	}
	id := WireID(len(n.Wires))
	n.Wires = append(n.Wires, Wire{Name: name, Width: width, Value: bitvec.Zero(width), Driver: Driver{Undriven: true}})
	n.WireIndex[name] = id
	return id
}

// Wire returns the wire for id.
func (n *Netlist) Wire(id WireID) *Wire { return &n.Wires[id] }

// Lookup returns the WireID for a fully-qualified wire name.
func (n *Netlist) Lookup(name string) (WireID, bool) {
	id, ok := n.WireIndex[name]
	return id, ok
}

// AddComponent declares a new component.
func (n *Netlist) AddComponent(name string, class Class) CompID {
	if _, exists := n.CompIndex[name]; exists {
		panic("netlist: duplicate component " + name)
	}
	id := CompID(len(n.Components))
	n.Components = append(n.Components, Component{Name: name, Class: class, Ports: make(map[string]WireID)})
	n.CompIndex[name] = id
	return id
}

// Comp returns the component for id.
func (n *Netlist) Comp(id CompID) *Component { return &n.Components[id] }

// AddEquation registers a combinational equation and attaches it as the
// single driver of each of its output wires. attachDriver records the
// multiply-driven condition for the elaborator rather than failing here,
// so that all elaboration errors can be collected and reported together.
func (n *Netlist) AddEquation(comp CompID, eq Equation) int {
	idx := len(n.Equations)
	n.Equations = append(n.Equations, eq)
	n.Components[comp].Equations = append(n.Components[comp].Equations, idx)
	for _, out := range eq.Outputs {
		n.attachDriver(out, Driver{Kind: DriverEquation, Equation: idx})
	}
	return idx
}

// BindSubInstancePort records that a sub-instance's output port drives a
// parent-scope wire (the alias/unification step described in the design
// notes: the child's port and the parent wire are the same WireID, so no
// copy equation is needed).
func (n *Netlist) BindSubInstancePort(wire WireID, fromInst CompID, fromPort string) {
	n.attachDriver(wire, Driver{Kind: DriverSubInstancePort, FromInst: fromInst, FromPort: fromPort})
}

// MarkTopInput marks a wire as externally driven (a top-level CPU port
// written by the host harness between sub-phases).
func (n *Netlist) MarkTopInput(wire WireID) {
	n.attachDriver(wire, Driver{Kind: DriverTopInput})
}

func (n *Netlist) attachDriver(id WireID, d Driver) {
	w := &n.Wires[id]
	if w.Driver.Kind != DriverNone {
		w.Driver.MultiCount++
		return
	}
	d.MultiCount = 1
	w.Driver = d
}

// AddSequential attaches a sequential block to comp and marks its latch
// outputs as driven by the clock edge rather than by an equation.
func (n *Netlist) AddSequential(comp CompID, seq Sequential) {
	n.Components[comp].Seq = &seq
	n.SeqComps = append(n.SeqComps, comp)
	for _, f := range seq.Fields {
		n.attachDriver(f.Output, Driver{Kind: DriverSequential})
	}
}
