package pipeline

import (
	"testing"

	"github.com/rv32pipe/rv32pipe/internal/bitvec"
	"github.com/rv32pipe/rv32pipe/internal/cpu/decode"
)

func rType(funct7, rs2, rs1, funct3, rd, opcode uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func iType(imm, rs1, funct3, rd, opcode uint32) uint32 {
	return (imm&0xFFF)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func bType(imm, rs2, rs1, funct3, opcode uint32) uint32 {
	imm12 := (imm >> 12) & 1
	imm11 := (imm >> 11) & 1
	imm10_5 := (imm >> 5) & 0x3F
	imm4_1 := (imm >> 1) & 0xF
	return imm12<<31 | imm10_5<<25 | rs2<<20 | rs1<<15 | funct3<<12 | imm4_1<<8 | imm11<<7 | opcode
}

func uType(imm20, opcode uint32) uint32 { return imm20<<12 | opcode }

func TestAmoCombine(t *testing.T) {
	cases := []struct {
		name     string
		op       uint8
		old, rs2 uint32
		want     uint32
	}{
		{"add", decode.AmoAdd, 10, 5, 15},
		{"swap", decode.AmoSwap, 10, 5, 5},
		{"xor", decode.AmoXor, 0b1100, 0b1010, 0b0110},
		{"and", decode.AmoAnd, 0b1100, 0b1010, 0b1000},
		{"or", decode.AmoOr, 0b1100, 0b1010, 0b1110},
		{"min signed", decode.AmoMin, 0xFFFFFFFB /* -5 */, 3, 0xFFFFFFFB},
		{"max signed", decode.AmoMax, 0xFFFFFFFB /* -5 */, 3, 3},
		{"minu", decode.AmoMinu, 5, 3, 3},
		{"maxu", decode.AmoMaxu, 5, 3, 5},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if got := amoCombine(tt.op, tt.old, tt.rs2); got != tt.want {
				t.Errorf("amoCombine(%s, %#x, %#x) = %#x, want %#x", tt.name, tt.old, tt.rs2, got, tt.want)
			}
		})
	}
}

func TestEvalHazardLoadUseStall(t *testing.T) {
	// ID holds an ADD reading x1/x2, EX holds a LOAD writing x1: load-use
	// hazard, must stall (which also flushes ID/EX to insert a bubble).
	addX3X1X2 := rType(0, 2, 1, 0, 3, 0x33)
	lwX1 := iType(0, 5, 0b010, 1, 0x03)

	out := evalHazard([]bitvec.BitVec{bv(32, addX3X1X2), bv(32, lwX1), bv(1, 0)})
	stall, flushIFID, flushIDEX := out[0].IsTrue(), out[1].IsTrue(), out[2].IsTrue()
	if !stall {
		t.Fatalf("expected a load-use stall, got stall=%v flushIFID=%v flushIDEX=%v", stall, flushIFID, flushIDEX)
	}
}

func TestEvalHazardControlTransferFlushesWithoutStall(t *testing.T) {
	nop := decode.NopRaw
	out := evalHazard([]bitvec.BitVec{bv(32, nop), bv(32, nop), bv(1, 1)})
	stall, flushIFID, flushIDEX := out[0].IsTrue(), out[1].IsTrue(), out[2].IsTrue()
	if stall || !flushIFID || !flushIDEX {
		t.Fatalf("expected flush-only on a control transfer, got stall=%v flushIFID=%v flushIDEX=%v", stall, flushIFID, flushIDEX)
	}
}

func TestOperandUsage(t *testing.T) {
	cases := []struct {
		name             string
		inst             decode.Instruction
		wantRs1, wantRs2 bool
	}{
		{"lui never reads", decode.Decode(uType(1, 0x37)), false, false},
		{"op-imm reads only rs1", decode.Decode(iType(1, 1, 0, 2, 0x13)), true, false},
		{"op reads both", decode.Decode(rType(0, 2, 1, 0, 3, 0x33)), true, true},
		{"load reads only rs1", decode.Decode(iType(0, 1, 0b010, 2, 0x03)), true, false},
		{"branch reads both", decode.Decode(bType(0, 2, 1, 0b001, 0x63)), true, true},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			rs1, rs2 := operandUsage(tt.inst)
			if rs1 != tt.wantRs1 || rs2 != tt.wantRs2 {
				t.Errorf("operandUsage = (%v, %v), want (%v, %v)", rs1, rs2, tt.wantRs1, tt.wantRs2)
			}
		})
	}
}
