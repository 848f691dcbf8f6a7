package image

import (
	"testing"

	"github.com/rv32pipe/rv32pipe/internal/hostmem"
	"github.com/spf13/afero"
)

func TestLoadRaw(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/prog.bin", []byte{0x01, 0x02, 0x03, 0x04}, 0o644); err != nil {
		t.Fatal(err)
	}
	mem := hostmem.NewMemory(0x8000_0000, 0x100)
	if err := LoadRaw(fs, "/prog.bin", 0x8000_0000, mem); err != nil {
		t.Fatal(err)
	}
	if got := mem.Read32(0x8000_0000); got != 0x04030201 {
		t.Fatalf("Read32 = %#x, want 0x04030201", got)
	}
}

func TestLoadHexBasicRecord(t *testing.T) {
	// One data record at offset 0x0000: bytes DE AD BE EF.
	hexFile := ":04000000DEADBEEFC4\n:00000001FF\n"
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/prog.hex", []byte(hexFile), 0o644); err != nil {
		t.Fatal(err)
	}
	mem := hostmem.NewMemory(0, 0x100)
	if err := LoadHex(fs, "/prog.hex", mem); err != nil {
		t.Fatal(err)
	}
	if got := mem.Read32(0); got != 0xefbeadde {
		t.Fatalf("Read32 = %#x, want 0xefbeadde", got)
	}
}

func TestLoadHexChecksumMismatch(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/bad.hex", []byte(":04000000DEADBEEF00\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	mem := hostmem.NewMemory(0, 0x100)
	if err := LoadHex(fs, "/bad.hex", mem); err == nil {
		t.Fatal("expected a checksum error for a corrupted record")
	}
}

func TestLoadHexExtendedLinearAddress(t *testing.T) {
	// ELA record sets upper = 0x0001_0000, then a data record at offset
	// 0x0010 lands at absolute address 0x0001_0010.
	hexFile := ":02000004000100F9\n:01001000AA45\n:00000001FF\n"
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/seg.hex", []byte(hexFile), 0o644); err != nil {
		t.Fatal(err)
	}
	mem := hostmem.NewMemory(0, 0x0002_0000)
	if err := LoadHex(fs, "/seg.hex", mem); err != nil {
		t.Fatal(err)
	}
	if got := mem.Read8(0x0001_0010); got != 0xAA {
		t.Fatalf("Read8(0x10010) = %#x, want 0xAA", got)
	}
}
