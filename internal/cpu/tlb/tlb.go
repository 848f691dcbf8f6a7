// Package tlb implements the Sv32 translation-lookaside buffers (spec.md
// §3 Sv32TLB, §4.12): one independent instance each for instruction and
// data fetch. The two-level page-table walk itself is performed
// combinationally by the EX stage (internal/cpu/pipeline) using the PTE
// decode helpers here; this package only owns the cache and the PTE bit
// layout (spec.md §6).
//
// Eviction policy is implementation-defined but must be deterministic
// (spec.md §4.12); this uses an LRU cache rather than a hand-rolled ring
// buffer, for the same reason a real TLB does: recently-used translations
// are the ones worth keeping.
package tlb

import lru "github.com/hashicorp/golang-lru/v2"

// PTE bit positions, spec.md §6.
const (
	PTE_V = 1 << 0
	PTE_R = 1 << 1
	PTE_W = 1 << 2
	PTE_X = 1 << 3
	PTE_U = 1 << 4
	PTE_G = 1 << 5
	PTE_A = 1 << 6
	PTE_D = 1 << 7
)

const ptePPNShift = 10

// Perms is the decoded permission bits of a leaf PTE.
type Perms struct {
	R, W, X, U, G, A, D bool
}

// DecodePerms extracts the permission bits from a raw 32-bit PTE word.
func DecodePerms(pte uint32) Perms {
	return Perms{
		R: pte&PTE_R != 0,
		W: pte&PTE_W != 0,
		X: pte&PTE_X != 0,
		U: pte&PTE_U != 0,
		G: pte&PTE_G != 0,
		A: pte&PTE_A != 0,
		D: pte&PTE_D != 0,
	}
}

// IsValid reports the V bit.
func IsValid(pte uint32) bool { return pte&PTE_V != 0 }

// IsLeaf reports V & (R | X) — a PTE that terminates the walk.
func IsLeaf(pte uint32) bool { return IsValid(pte) && pte&(PTE_R|PTE_X) != 0 }

// IsPointer reports V & ~(R | X) — a PTE that continues the walk to the
// next level.
func IsPointer(pte uint32) bool { return IsValid(pte) && pte&(PTE_R|PTE_X) == 0 }

// PPN extracts the physical page number (bits 31:10) from a PTE.
func PPN(pte uint32) uint32 { return pte >> ptePPNShift }

// VPN1, VPN0 split a 32-bit virtual address into its two Sv32 VPN fields.
func VPN1(va uint32) uint32 { return (va >> 22) & 0x3FF }
func VPN0(va uint32) uint32 { return (va >> 12) & 0x3FF }
func PageOffset(va uint32) uint32 { return va & 0xFFF }

// L1Addr computes the level-1 PTE address for root page-table base `root`
// (itself a PPN) and virtual address va.
func L1Addr(root uint32, va uint32) uint32 {
	return (root << 12) + VPN1(va)*4
}

// L0Addr computes the level-0 PTE address given the level-1 PTE's PPN.
func L0Addr(l1PPN uint32, va uint32) uint32 {
	return (l1PPN << 12) + VPN0(va)*4
}

// Translate combines a leaf PTE's PPN with the untranslated low bits of
// the virtual address: for a mega-page (leaf found at level 1) VPN[0] is
// taken from the virtual address itself rather than the PTE.
func Translate(leafPPN uint32, va uint32, megapage bool) uint32 {
	if megapage {
		return (leafPPN&^0x3FF)<<12 | (VPN0(va) << 12) | PageOffset(va)
	}
	return leafPPN<<12 | PageOffset(va)
}

// Entry is a resolved translation, cached by virtual page number and the
// root page-table pointer (so entries from a stale satp don't alias).
type Entry struct {
	PPN      uint32
	Perms    Perms
	Megapage bool
}

type key struct {
	vpn  uint32
	root uint32
}

// DefaultCapacity is the number of entries each TLB instance holds.
const DefaultCapacity = 64

// TLB is one Sv32 translation-lookaside buffer (I-TLB or D-TLB are each
// their own instance).
type TLB struct {
	cache *lru.Cache[key, Entry]
}

// New creates a TLB with the given entry capacity.
func New(capacity int) *TLB {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c, err := lru.New[key, Entry](capacity)
	if err != nil {
		panic(err) // capacity > 0 is the only failure mode; a programming error
	}
	return &TLB{cache: c}
}

// Lookup returns the cached translation for (vpn, root), or ok=false on a
// miss requiring a page-table walk.
func (t *TLB) Lookup(vpn, root uint32) (Entry, bool) {
	return t.cache.Get(key{vpn: vpn, root: root})
}

// Fill installs a translation after a successful walk.
func (t *TLB) Fill(vpn, root uint32, e Entry) {
	t.cache.Add(key{vpn: vpn, root: root}, e)
}

// FlushAll empties every entry — triggered by SFENCE.VMA or any write to
// satp (spec.md §4.12).
func (t *TLB) FlushAll() {
	t.cache.Purge()
}

// Len reports the number of resident entries, for tests and debug taps.
func (t *TLB) Len() int { return t.cache.Len() }
