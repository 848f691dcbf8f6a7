// Package image loads memory images from an afero filesystem — raw
// binaries loaded at a fixed base, or Intel HEX records that carry
// their own addressing — into an internal/hostmem.Memory. Going
// through afero rather than os directly lets tests load images from an
// in-memory fs without a second code path for the runtime case.
package image

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/rv32pipe/rv32pipe/internal/hostmem"
	"github.com/spf13/afero"
)

var (
	// ErrInvalidRecord is returned for a malformed Intel HEX line.
	ErrInvalidRecord = errors.New("image: invalid hex record")
	// ErrChecksum is returned when a record's checksum byte doesn't
	// match its computed value.
	ErrChecksum = errors.New("image: hex record checksum mismatch")
)

// LoadRaw reads the whole file at path and loads it verbatim starting
// at base.
func LoadRaw(fs afero.Fs, path string, base uint32, mem *hostmem.Memory) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("image: reading %s: %w", path, err)
	}
	return mem.Load(base, data)
}

// Intel HEX record types this loader understands. 03/05 (start segment/
// linear address, used only to set the CPU's initial PC on real
// toolchains) are accepted and ignored — rv32pipe always starts
// execution at the PipelineLatch reset PC, not a record-supplied entry
// point.
const (
	recData                  = 0x00
	recEOF                   = 0x01
	recExtendedSegmentAddr   = 0x02
	recExtendedLinearAddr    = 0x04
)

// LoadHex parses an Intel HEX file and loads every data record into mem
// at its encoded address, honoring extended linear/segment address
// records for images larger than the 64 KiB a plain 16-bit offset
// reaches.
func LoadHex(fs afero.Fs, path string, mem *hostmem.Memory) error {
	f, err := fs.Open(path)
	if err != nil {
		return fmt.Errorf("image: opening %s: %w", path, err)
	}
	defer f.Close()

	var upper uint32
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if line[0] != ':' {
			return fmt.Errorf("%w: line %q missing leading ':'", ErrInvalidRecord, line)
		}
		raw, err := hex.DecodeString(string(line[1:]))
		if err != nil || len(raw) < 5 {
			return fmt.Errorf("%w: %q", ErrInvalidRecord, line)
		}
		count := int(raw[0])
		if len(raw) != count+5 {
			return fmt.Errorf("%w: declared count %d doesn't match record length", ErrInvalidRecord, count)
		}
		var sum uint8
		for _, b := range raw[:len(raw)-1] {
			sum += b
		}
		if uint8(-sum) != raw[len(raw)-1] {
			return fmt.Errorf("%w: %q", ErrChecksum, line)
		}

		addr16 := uint32(raw[1])<<8 | uint32(raw[2])
		recType := raw[3]
		payload := raw[4 : 4+count]

		switch recType {
		case recData:
			addr := upper + addr16
			for i, b := range payload {
				mem.Write8(addr+uint32(i), b)
			}
		case recEOF:
			return nil
		case recExtendedLinearAddr:
			if len(payload) != 2 {
				return fmt.Errorf("%w: malformed extended linear address record", ErrInvalidRecord)
			}
			upper = (uint32(payload[0])<<8 | uint32(payload[1])) << 16
		case recExtendedSegmentAddr:
			if len(payload) != 2 {
				return fmt.Errorf("%w: malformed extended segment address record", ErrInvalidRecord)
			}
			upper = (uint32(payload[0])<<8 | uint32(payload[1])) << 4
		default:
			// start segment/linear address records and anything else
			// unrecognized: no memory effect, skip.
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("image: reading %s: %w", path, err)
	}
	return nil
}
