// Package regfile implements the 32x32-bit integer register file with
// same-cycle write-to-read forwarding (spec.md §4.3): three read ports
// (rs1, rs2, debug) and one write port, x0 hardwired to zero on both
// read and write.
package regfile

// File is the register file's architectural state.
type File struct {
	regs [32]uint32
}

// New returns a zeroed register file (the reset state).
func New() *File {
	return &File{}
}

// Read1, Read2 and ReadDebug implement the three read ports. Each applies
// same-cycle write-forwarding: if a write is committing this cycle to the
// same nonzero address, the read returns the write data rather than the
// pre-write register contents, and x0 always reads as zero.
func (f *File) Read1(addr uint8, writeEn bool, writeAddr uint8, writeData uint32) uint32 {
	return f.read(addr, writeEn, writeAddr, writeData)
}

func (f *File) Read2(addr uint8, writeEn bool, writeAddr uint8, writeData uint32) uint32 {
	return f.read(addr, writeEn, writeAddr, writeData)
}

// ReadDebug is side-effect free and does not participate in forwarding
// (the debug port samples architectural state, not the in-flight write).
func (f *File) ReadDebug(addr uint8) uint32 {
	if addr == 0 {
		return 0
	}
	return f.regs[addr]
}

func (f *File) read(addr uint8, writeEn bool, writeAddr uint8, writeData uint32) uint32 {
	if addr == 0 {
		return 0
	}
	if writeEn && writeAddr == addr {
		return writeData
	}
	return f.regs[addr]
}

// Write commits the write port. A write to x0 is dropped, matching real
// hardware where x0 is wired, not merely initialized, to zero.
func (f *File) Write(addr uint8, data uint32, writeEn bool) {
	if !writeEn || addr == 0 {
		return
	}
	f.regs[addr] = data
}

// Snapshot returns a copy of all 32 registers, for tests and debug taps,
// without exposing the backing array.
func (f *File) Snapshot() [32]uint32 {
	return f.regs
}

// Reset clears every register to zero.
func (f *File) Reset() {
	f.regs = [32]uint32{}
}
