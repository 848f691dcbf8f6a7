package pipeline

import "github.com/rv32pipe/rv32pipe/internal/cpu/tlb"

// satpModeSv32 is the mode field value (bit 31 of satp) selecting Sv32.
const satpModeSv32 = 1 << 31

// walkResult is what one call to translate produces: the PTW addresses to
// present on the dedicated port pairs (both zero when Sv32 is off or the
// TLB hits; Addr0 is set only once the level-1 PTE is a pointer), whether
// a walk was needed at all, and, once resolved, the outcome.
type walkResult struct {
	Addr1    uint32
	Addr0    uint32
	NeedWalk bool
	Resolved bool
	PA       uint32
	Fault    bool
}

// translate implements spec.md §4.8/§4.12's Sv32 lookup-then-walk: check
// the TLB first; on miss, use the level-1 and (if the level-1 entry is a
// pointer) level-0 PTEs the host has supplied on the PTW ports. pte1Known
// / pte0Known distinguish "the host hasn't responded yet" (first round of
// Core.Step's host interaction) from "this PTE really is zero", since a
// genuinely zero PTE is a valid (if invalid-V) encoding.
func translate(t *tlb.TLB, satp uint32, va uint32, pte1 uint32, pte1Known bool, pte0 uint32, pte0Known bool, write, user, sum, mxr, exec bool) walkResult {
	root := satp & 0x3FFFFF // ppn field, bits 21:0 of satp for Sv32
	if satp&satpModeSv32 == 0 {
		return walkResult{PA: va, Resolved: true}
	}

	vpn := (va >> 12) & 0xFFFFF // full 20-bit VPN used as the TLB key
	if e, ok := t.Lookup(vpn, root); ok {
		if !permitted(e.Perms, write, user, sum, mxr, exec) {
			return walkResult{PA: va, Resolved: true, Fault: true}
		}
		return walkResult{PA: tlb.Translate(e.PPN, va, e.Megapage), Resolved: true}
	}

	addr1 := tlb.L1Addr(root, va)
	r := walkResult{Addr1: addr1, NeedWalk: true}
	if !pte1Known {
		return r
	}
	if !tlb.IsValid(pte1) {
		r.Resolved = true
		r.Fault = true
		return r
	}
	if tlb.IsLeaf(pte1) {
		perms := tlb.DecodePerms(pte1)
		if !permitted(perms, write, user, sum, mxr, exec) {
			r.Resolved = true
			r.Fault = true
			return r
		}
		pa := tlb.Translate(tlb.PPN(pte1), va, true)
		t.Fill(vpn, root, tlb.Entry{PPN: tlb.PPN(pte1), Perms: perms, Megapage: true})
		r.Resolved = true
		r.PA = pa
		return r
	}
	// Pointer: need the level-0 PTE too.
	l1PPN := tlb.PPN(pte1)
	addr0 := tlb.L0Addr(l1PPN, va)
	r.Addr0 = addr0
	if !pte0Known {
		return r
	}
	if !tlb.IsLeaf(pte0) {
		r.Resolved = true
		r.Fault = true
		return r
	}
	perms := tlb.DecodePerms(pte0)
	if !permitted(perms, write, user, sum, mxr, exec) {
		r.Resolved = true
		r.Fault = true
		return r
	}
	pa := tlb.Translate(tlb.PPN(pte0), va, false)
	t.Fill(vpn, root, tlb.Entry{PPN: tlb.PPN(pte0), Perms: perms})
	r.Resolved = true
	r.PA = pa
	return r
}

// permitted enforces the leaf's U/R/W/X bits plus mstatus.SUM/MXR, per
// spec.md §4.8's "report a load/store page fault on any failure of
// leaf/valid/perm/user/SUM/MXR checks".
func permitted(p tlb.Perms, write, user, sum, mxr, exec bool) bool {
	if user && !p.U {
		return false
	}
	if !user && p.U && !sum {
		return false
	}
	if exec {
		return p.X
	}
	if write {
		return p.W
	}
	readable := p.R || (mxr && p.X)
	return readable
}
