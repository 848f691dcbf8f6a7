package pipeline

import "github.com/rv32pipe/rv32pipe/internal/bitvec"

func bv(width uint8, v uint32) bitvec.BitVec { return bitvec.New(width, uint64(v)) }

func boolBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// packFlags folds up to 32 booleans into one word, bit i = flags[i].
func packFlags(flags ...bool) uint32 {
	var v uint32
	for i, f := range flags {
		if f {
			v |= 1 << uint(i)
		}
	}
	return v
}

func flagBit(packed uint32, i int) bool { return packed&(1<<uint(i)) != 0 }
