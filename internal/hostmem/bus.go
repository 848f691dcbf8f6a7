package hostmem

import "github.com/rv32pipe/rv32pipe/internal/cpu/decode"

// Bus implements pipeline.Host by address-range dispatch across a flat
// RAM window and the CLINT/PLIC/UART peripheral models. It is the
// reference host spec.md §6 leaves to the surrounding collaborator —
// not part of the core's correctness surface.
type Bus struct {
	RAM   *Memory
	CLINT *CLINT
	PLIC  *PLIC
	UART  *UART
}

// NewBus wires a RAM window of the given size, based at ramBase, to a
// fresh CLINT/PLIC/UART set.
func NewBus(ramBase, ramSize uint32) *Bus {
	return &Bus{
		RAM:   NewMemory(ramBase, ramSize),
		CLINT: NewCLINT(),
		PLIC:  NewPLIC(),
		UART:  NewUART(),
	}
}

// Tick advances the free-running mtime timer by one cycle. The harness
// calls this once per Core.Step, never from within the Host methods
// below — those are called multiple times per cycle as the core's
// combinational phases re-converge, and mtime must not race ahead of
// wall-clock cycles as a result.
func (b *Bus) Tick() { b.CLINT.Tick() }

func (b *Bus) read32(addr uint32) uint32 {
	switch {
	case b.CLINT.Contains(addr):
		return b.CLINT.Read32(addr)
	case b.PLIC.Contains(addr):
		return b.PLIC.Read32(addr)
	case b.UART.Contains(addr):
		return b.UART.Read32(addr)
	case b.RAM.Contains(addr):
		return b.RAM.Read32(addr)
	default:
		return 0
	}
}

func (b *Bus) write32(addr, v uint32) {
	switch {
	case b.CLINT.Contains(addr):
		b.CLINT.Write32(addr, v)
	case b.PLIC.Contains(addr):
		b.PLIC.Write32(addr, v)
	case b.UART.Contains(addr):
		b.UART.Write32(addr, v)
	case b.RAM.Contains(addr):
		b.RAM.Write32(addr, v)
	}
}

// FetchInstruction reads one aligned 32-bit instruction word.
func (b *Bus) FetchInstruction(addr uint32) uint32 { return b.read32(addr &^ 0x3) }

// FetchPTE reads one aligned 32-bit Sv32 page table entry.
func (b *Bus) FetchPTE(addr uint32) uint32 { return b.read32(addr &^ 0x3) }

// ReadData loads from the effective byte address, sign/zero-extending
// per funct3 — the pipeline presents only the byte-granular address,
// leaving width handling entirely to the host.
func (b *Bus) ReadData(addr uint32, funct3 uint8) uint32 {
	switch funct3 {
	case decode.Funct3Byte:
		v := b.readByte(addr)
		return uint32(int32(int8(v)))
	case decode.Funct3Half:
		v := b.readHalf(addr)
		return uint32(int32(int16(v)))
	case decode.Funct3ByteU:
		return uint32(b.readByte(addr))
	case decode.Funct3HalfU:
		return uint32(b.readHalf(addr))
	default:
		return b.read32(addr &^ 0x3)
	}
}

// WriteData stores to the effective byte address, masking to the width
// funct3 names.
func (b *Bus) WriteData(addr uint32, data uint32, funct3 uint8) {
	switch funct3 {
	case decode.Funct3Byte, decode.Funct3ByteU:
		b.writeByte(addr, uint8(data))
	case decode.Funct3Half, decode.Funct3HalfU:
		b.writeHalf(addr, uint16(data))
	default:
		b.write32(addr&^0x3, data)
	}
}

func (b *Bus) readByte(addr uint32) uint8 {
	word := b.read32(addr &^ 0x3)
	return uint8(word >> (8 * (addr & 0x3)))
}

func (b *Bus) readHalf(addr uint32) uint16 {
	word := b.read32(addr &^ 0x3)
	return uint16(word >> (8 * (addr & 0x2)))
}

func (b *Bus) writeByte(addr uint32, v uint8) {
	aligned := addr &^ 0x3
	shift := 8 * (addr & 0x3)
	word := b.read32(aligned)
	word = word&^(0xFF<<shift) | uint32(v)<<shift
	b.write32(aligned, word)
}

func (b *Bus) writeHalf(addr uint32, v uint16) {
	aligned := addr &^ 0x3
	shift := 8 * (addr & 0x2)
	word := b.read32(aligned)
	word = word&^(0xFFFF<<shift) | uint32(v)<<shift
	b.write32(aligned, word)
}

// Interrupts samples the three IRQ lines: msip/mtime directly from
// CLINT, irq_external from the PLIC after folding in the UART's rx
// interrupt as PLIC source UARTIRQSource.
func (b *Bus) Interrupts() (software, timer, external bool) {
	b.PLIC.SetPending(UARTIRQSource, b.UART.Interrupt())
	return b.CLINT.Software(), b.CLINT.Timer(), b.PLIC.External()
}
