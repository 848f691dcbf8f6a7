package pipeline

import "github.com/rv32pipe/rv32pipe/internal/cpu/csr"

// Privilege levels, spec.md §3 PrivModeReg.
const (
	PrivU = 0b00
	PrivS = 0b01
	PrivM = 0b11
)

// Synchronous exception causes, spec.md §7.
const (
	CauseIllegalInstruction = 2
	CauseBreakpoint         = 3
	CauseEcallU             = 8
	CauseEcallS             = 9
	CauseEcallM             = 11
	CauseInstPageFault      = 12
	CauseLoadPageFault      = 13
	CauseStorePageFault     = 15
)

// interrupt cause numbers double as their mip/mie bit position.
const (
	causeSSI = 1
	causeMSI = 3
	causeSTI = 5
	causeMTI = 7
	causeSEI = 9
	causeMEI = 11
)

// interruptPriority lists pending-interrupt cause numbers from highest to
// lowest priority, per the RISC-V privileged spec.
var interruptPriority = [...]uint32{causeMEI, causeMSI, causeMTI, causeSEI, causeSSI, causeSTI}

// trapRequest is a resolved trap or return decision the EX stage acts on.
type trapRequest struct {
	Taken       bool
	IsInterrupt bool
	Cause       uint32
	Tval        uint32
	TargetPriv  uint8
}

// checkInterrupt scans mip&mie in priority order and returns the highest-
// priority interrupt enabled for delivery at the current privilege,
// honoring mideleg.
func checkInterrupt(csrs *csr.File, priv uint8) trapRequest {
	pending := csrs.Raw(csr.Mip) & csrs.Raw(csr.Mie)
	if pending == 0 {
		return trapRequest{}
	}
	mideleg := csrs.Raw(csr.Mideleg)
	mstatus := csrs.Raw(csr.Mstatus)
	mie := mstatus&csr.StatusMIE != 0
	sie := mstatus&csr.StatusSIE != 0

	for _, cause := range interruptPriority {
		bit := uint32(1) << cause
		if pending&bit == 0 {
			continue
		}
		if mideleg&bit != 0 {
			if priv == PrivM {
				continue // M never receives a trap delegated to S
			}
			if priv == PrivU || (priv == PrivS && sie) {
				return trapRequest{Taken: true, IsInterrupt: true, Cause: cause, TargetPriv: PrivS}
			}
			continue
		}
		if priv != PrivM || mie {
			return trapRequest{Taken: true, IsInterrupt: true, Cause: cause, TargetPriv: PrivM}
		}
	}
	return trapRequest{}
}

// resolveException turns a synchronous exception cause into a trapRequest,
// applying medeleg to pick the target privilege. A trap taken while
// already in M is never delegated, matching the interrupt rule above.
func resolveException(csrs *csr.File, priv uint8, cause uint32, tval uint32) trapRequest {
	target := uint8(PrivM)
	if priv != PrivM && csrs.Raw(csr.Medeleg)&(1<<cause) != 0 {
		target = PrivS
	}
	return trapRequest{Taken: true, IsInterrupt: false, Cause: cause, Tval: tval, TargetPriv: target}
}

// csrWritesForTrap computes the CSR write-port assignments and new mstatus
// entering a trap, per spec.md §4.8: MIE→MPIE, MIE←0 (or the S-mode
// equivalents), MPP/SPP←current priv.
func csrWritesForTrap(csrs *csr.File, priv uint8, req trapRequest, pc, tval uint32) []csr.Write {
	cause := req.Cause
	if req.IsInterrupt {
		cause |= 1 << 31
	}
	if req.TargetPriv == PrivM {
		status := csrs.Raw(csr.Mstatus)
		mie := status&csr.StatusMIE != 0
		status = (status &^ (csr.StatusMIE | csr.StatusMPIE | csr.StatusMPPMask))
		if mie {
			status |= csr.StatusMPIE
		}
		status |= uint32(priv) << csr.StatusMPPShift
		return []csr.Write{
			{Addr: csr.Mepc, Data: pc, Enable: true},
			{Addr: csr.Mcause, Data: cause, Enable: true},
			{Addr: csr.Mstatus, Data: status, Enable: true},
			{Addr: csr.Mtval, Data: tval, Enable: true},
		}
	}
	status := csrs.Raw(csr.Mstatus)
	sie := status&csr.StatusSIE != 0
	status = status &^ (csr.StatusSIE | csr.StatusSPIE | csr.StatusSPP)
	if sie {
		status |= csr.StatusSPIE
	}
	if priv == PrivU {
		status &^= csr.StatusSPP
	} else {
		status |= csr.StatusSPP
	}
	return []csr.Write{
		{Addr: csr.Sepc, Data: pc, Enable: true},
		{Addr: csr.Scause, Data: cause, Enable: true},
		{Addr: csr.Mstatus, Data: status, Enable: true},
		{Addr: csr.Stval, Data: tval, Enable: true},
	}
}

// trapVector computes the redirect target for a taken trap: direct mode
// only, per spec.md §6 ("trap vectors use direct mode").
func trapVector(csrs *csr.File, target uint8) uint32 {
	if target == PrivM {
		return csrs.Raw(csr.Mtvec) &^ 0x3
	}
	return csrs.Raw(csr.Stvec) &^ 0x3
}

// xretResult is what MRET/SRET computes: the restored privilege, the
// resume PC, and the mstatus writes.
type xretResult struct {
	NewPriv uint8
	PC      uint32
	Writes  []csr.Write
}

func resolveMret(csrs *csr.File) xretResult {
	status := csrs.Raw(csr.Mstatus)
	mpie := status&csr.StatusMPIE != 0
	mpp := uint8((status & csr.StatusMPPMask) >> csr.StatusMPPShift)
	status = status &^ (csr.StatusMIE | csr.StatusMPPMask)
	if mpie {
		status |= csr.StatusMIE
	}
	status |= csr.StatusMPIE // MRET sets MPIE to 1
	// MRET sets MPP to the least-privileged supported mode (U here).
	return xretResult{
		NewPriv: mpp,
		PC:      csrs.Raw(csr.Mepc),
		Writes:  []csr.Write{{Addr: csr.Mstatus, Data: status, Enable: true}},
	}
}

func resolveSret(csrs *csr.File) xretResult {
	status := csrs.Raw(csr.Mstatus)
	spie := status&csr.StatusSPIE != 0
	spp := uint8(0)
	if status&csr.StatusSPP != 0 {
		spp = PrivS
	}
	status = status &^ (csr.StatusSIE | csr.StatusSPP)
	if spie {
		status |= csr.StatusSIE
	}
	status |= csr.StatusSPIE
	return xretResult{
		NewPriv: spp,
		PC:      csrs.Raw(csr.Sepc),
		Writes:  []csr.Write{{Addr: csr.Mstatus, Data: status, Enable: true}},
	}
}
