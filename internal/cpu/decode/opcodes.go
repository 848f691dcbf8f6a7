package decode

// RV32 base opcodes (instr[6:0]).
const (
	OpLoad     = 0b0000011
	OpMiscMem  = 0b0001111
	OpOpImm    = 0b0010011
	OpAuipc    = 0b0010111
	OpStore    = 0b0100011
	OpAmo      = 0b0101111
	OpOp       = 0b0110011
	OpLui      = 0b0110111
	OpBranch   = 0b1100011
	OpJalr     = 0b1100111
	OpJal      = 0b1101111
	OpSystem   = 0b1110011
)

// Funct3 encodings for SYSTEM instructions distinguish ECALL/EBREAK/xRET
// from the Zicsr CSR ops.
const (
	Funct3Priv   = 0b000 // ECALL/EBREAK/MRET/SRET/WFI share funct3=0
	Funct3CsrRW  = 0b001
	Funct3CsrRS  = 0b010
	Funct3CsrRC  = 0b011
	Funct3CsrRWI = 0b101
	Funct3CsrRSI = 0b110
	Funct3CsrRCI = 0b111
)

// System-immediate (instr[31:20]) values that select among the
// no-operand privileged instructions sharing opcode=SYSTEM, funct3=0.
const (
	SysImmEcall  = 0x000
	SysImmEbreak = 0x001
	SysImmSret   = 0x102
	SysImmMret   = 0x302
	SysImmWfi    = 0x105
)

// Funct3 for AMO (encodes access width; RV32A only defines word-wide ops,
// funct3=0b010).
const AmoFunct3Word = 0b010

// Funct5 (instr[31:27]) selects the AMO operation.
const (
	AmoLR   = 0b00010
	AmoSC   = 0b00011
	AmoSwap = 0b00001
	AmoAdd  = 0b00000
	AmoXor  = 0b00100
	AmoAnd  = 0b01100
	AmoOr   = 0b01000
	AmoMin  = 0b10000
	AmoMax  = 0b10100
	AmoMinu = 0b11000
	AmoMaxu = 0b11100
)

// Load/store funct3: encodes width and, for loads, signedness.
const (
	Funct3Byte     = 0b000
	Funct3Half     = 0b001
	Funct3Word     = 0b010
	Funct3ByteU    = 0b100
	Funct3HalfU    = 0b101
)
