// Package decode implements the RV32 instruction decoder and immediate
// generator (spec.md §4.5): a pure function from the 32-bit instruction
// word to its field breakdown and a control bundle, grounded in the
// conventional RV32 bit-field layout used by the pack's other RISC-V
// emulators (decodeI/decodeU/decodeJ/decodeB/decodeS-style field
// extraction) and structured, field-for-field, like the teacher's
// Instruction type in pkg/inst/instruction.go.
package decode

import "github.com/rv32pipe/rv32pipe/internal/cpu/alu"

// Class classifies an instruction for EX-stage dispatch, per spec.md §4.8.
type Class uint8

const (
	ClassALU Class = iota
	ClassLoad
	ClassStore
	ClassBranch
	ClassJal
	ClassJalr
	ClassLui
	ClassAuipc
	ClassSystem
	ClassAmo
	ClassIllegal
)

// SystemKind further classifies a ClassSystem instruction.
type SystemKind uint8

const (
	SysNone SystemKind = iota
	SysEcall
	SysEbreak
	SysMret
	SysSret
	SysWfi
	SysSfenceVMA
	SysCSR
	SysIllegal
)

// Control is the decoder's control-signal bundle (spec.md §4.5).
type Control struct {
	AluOp     uint8
	AluSrcImm bool // true: ALU B operand is the immediate, false: rs2
	RegWrite  bool
	MemRead   bool
	MemWrite  bool
	MemToReg  bool
	Branch    bool
	Jump      bool // JAL or JALR
	Jalr      bool
}

// Instruction is the decoder's full output: raw fields plus the derived
// Class/Control/Immediate a downstream stage needs, so EX never has to
// re-extract bits from the raw word.
type Instruction struct {
	Raw    uint32
	Opcode uint8
	Funct3 uint8
	Funct7 uint8
	Funct5 uint8 // AMO op (instr[31:27]), meaningful only when Class==ClassAmo
	Rs1    uint8
	Rs2    uint8
	Rd     uint8
	Imm    uint32 // sign-extended per format
	SysImm uint32 // instr[31:20], meaningful only for ClassSystem/CSR addr
	Class  Class
	Sys    SystemKind
	Ctrl   Control
}

// NopRaw is the architecturally-valid bubble (ADDI x0,x0,0) used
// to reset pipeline latches, per spec.md's PipelineLatch type.
const NopRaw uint32 = 0x00000013

func bits(v uint32, hi, lo uint8) uint32 {
	return (v >> lo) & ((1 << (hi - lo + 1)) - 1)
}

func signExtend(v uint32, width uint8) uint32 {
	shift := 32 - width
	return uint32(int32(v<<shift) >> shift)
}

// Decode decodes a raw 32-bit instruction word.
func Decode(raw uint32) Instruction {
	inst := Instruction{
		Raw:    raw,
		Opcode: uint8(bits(raw, 6, 0)),
		Funct3: uint8(bits(raw, 14, 12)),
		Funct7: uint8(bits(raw, 31, 25)),
		Funct5: uint8(bits(raw, 31, 27)),
		Rs1:    uint8(bits(raw, 19, 15)),
		Rs2:    uint8(bits(raw, 24, 20)),
		Rd:     uint8(bits(raw, 11, 7)),
		SysImm: bits(raw, 31, 20),
	}

	switch inst.Opcode {
	case OpLui:
		inst.Class = ClassLui
		inst.Imm = bits(raw, 31, 12) << 12
		inst.Ctrl = Control{RegWrite: true}

	case OpAuipc:
		inst.Class = ClassAuipc
		inst.Imm = bits(raw, 31, 12) << 12
		inst.Ctrl = Control{RegWrite: true}

	case OpJal:
		inst.Class = ClassJal
		inst.Imm = decodeJImm(raw)
		inst.Ctrl = Control{RegWrite: true, Jump: true}

	case OpJalr:
		inst.Class = ClassJalr
		inst.Imm = decodeIImm(raw)
		inst.Ctrl = Control{RegWrite: true, Jump: true, Jalr: true}

	case OpBranch:
		inst.Class = ClassBranch
		inst.Imm = decodeBImm(raw)
		inst.Ctrl = Control{Branch: true}

	case OpLoad:
		inst.Class = ClassLoad
		inst.Imm = decodeIImm(raw)
		inst.Ctrl = Control{AluSrcImm: true, RegWrite: true, MemRead: true, MemToReg: true, AluOp: uint8(alu.Add)}

	case OpStore:
		inst.Class = ClassStore
		inst.Imm = decodeSImm(raw)
		inst.Ctrl = Control{AluSrcImm: true, MemWrite: true, AluOp: uint8(alu.Add)}

	case OpOpImm:
		inst.Class = ClassALU
		inst.Imm = decodeIImm(raw)
		inst.Ctrl = Control{AluSrcImm: true, RegWrite: true, AluOp: uint8(opImmAluOp(inst.Funct3, inst.Funct7))}

	case OpOp:
		inst.Class = ClassALU
		inst.Ctrl = Control{RegWrite: true, AluOp: uint8(opAluOp(inst.Funct3, inst.Funct7))}

	case OpAmo:
		inst.Class = ClassAmo
		inst.Ctrl = Control{RegWrite: true, AluOp: uint8(alu.Add)}

	case OpSystem:
		inst.Class = ClassSystem
		inst.Sys, inst.Ctrl = decodeSystem(inst)

	case OpMiscMem:
		// FENCE: treated as a NOP for a single-hart in-order core.
		inst.Class = ClassALU
		inst.Ctrl = Control{}

	default:
		inst.Class = ClassIllegal
	}

	return inst
}

func decodeSystem(inst Instruction) (SystemKind, Control) {
	if inst.Funct3 != Funct3Priv {
		// Zicsr instruction: CSRRW/CSRRS/CSRRC and their immediate forms.
		return SysCSR, Control{RegWrite: true, AluSrcImm: inst.Funct3 >= Funct3CsrRWI}
	}
	switch inst.SysImm {
	case SysImmEcall:
		return SysEcall, Control{}
	case SysImmEbreak:
		return SysEbreak, Control{}
	case SysImmMret:
		return SysMret, Control{}
	case SysImmSret:
		return SysSret, Control{}
	case SysImmWfi:
		return SysWfi, Control{}
	default:
		if bits(inst.Raw, 31, 25) == 0b0001001 { // SFENCE.VMA funct7
			return SysSfenceVMA, Control{}
		}
		return SysIllegal, Control{}
	}
}

// opAluOp derives the ALU operation for an R-type (OP) instruction from
// funct3/funct7. Bit 5 of funct7 (0x20) distinguishes SUB from ADD and
// SRA from SRL; the M-extension ops are selected by funct7=0x01.
func opAluOp(funct3, funct7 uint8) alu.Op {
	if funct7 == 0x01 {
		switch funct3 {
		case 0b000:
			return alu.Mul
		case 0b001:
			return alu.Mulh
		case 0b010:
			return alu.Mulhsu
		case 0b011:
			return alu.Mulhu
		case 0b100:
			return alu.Div
		case 0b101:
			return alu.Divu
		case 0b110:
			return alu.Rem
		case 0b111:
			return alu.Remu
		}
	}
	switch funct3 {
	case 0b000:
		if funct7 == 0x20 {
			return alu.Sub
		}
		return alu.Add
	case 0b001:
		return alu.Sll
	case 0b010:
		return alu.Slt
	case 0b011:
		return alu.Sltu
	case 0b100:
		return alu.Xor
	case 0b101:
		if funct7 == 0x20 {
			return alu.Sra
		}
		return alu.Srl
	case 0b110:
		return alu.Or
	case 0b111:
		return alu.And
	}
	return alu.Add
}

// opImmAluOp is opAluOp's counterpart for OP-IMM: there is no RV32M
// immediate form, and SRLI/SRAI distinguish via funct7 exactly as their
// register counterparts do.
func opImmAluOp(funct3, funct7 uint8) alu.Op {
	switch funct3 {
	case 0b000:
		return alu.Add
	case 0b001:
		return alu.Sll
	case 0b010:
		return alu.Slt
	case 0b011:
		return alu.Sltu
	case 0b100:
		return alu.Xor
	case 0b101:
		if funct7 == 0x20 {
			return alu.Sra
		}
		return alu.Srl
	case 0b110:
		return alu.Or
	case 0b111:
		return alu.And
	}
	return alu.Add
}

func decodeIImm(raw uint32) uint32 { return signExtend(bits(raw, 31, 20), 12) }

func decodeSImm(raw uint32) uint32 {
	v := (bits(raw, 31, 25) << 5) | bits(raw, 11, 7)
	return signExtend(v, 12)
}

func decodeBImm(raw uint32) uint32 {
	v := (bits(raw, 31, 31) << 12) | (bits(raw, 7, 7) << 11) |
		(bits(raw, 30, 25) << 5) | (bits(raw, 11, 8) << 1)
	return signExtend(v, 13)
}

func decodeJImm(raw uint32) uint32 {
	v := (bits(raw, 31, 31) << 20) | (bits(raw, 19, 12) << 12) |
		(bits(raw, 20, 20) << 11) | (bits(raw, 30, 21) << 1)
	return signExtend(v, 21)
}
