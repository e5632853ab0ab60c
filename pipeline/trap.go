package pipeline

import "github.com/rv64sim/rv64sim/cpu"

// deliverTrap performs the privileged-architecture trap-delivery
// sequence: save epc/cause/tval, flip the interrupt-enable/previous-enable
// and previous-privilege bits, switch privilege, and compute the new PC
// from the target mode's trap vector. Delegation follows medeleg/mideleg
// exactly as the privileged spec requires.
func deliverTrap(csr *cpu.CSRFile, cause, tval, epc uint64) (newPC uint64) {
	isInterrupt := cause&cpu.CauseInterruptFlag != 0
	code := cause &^ cpu.CauseInterruptFlag

	delegated := false
	if csr.Priv != cpu.PrivMachine {
		if isInterrupt {
			delegated = csr.Read(cpu.CSRMideleg)&(1<<code) != 0
		} else {
			delegated = csr.Read(cpu.CSRMedeleg)&(1<<code) != 0
		}
	}

	if delegated {
		return deliverToSupervisor(csr, cause, tval, epc)
	}
	return deliverToMachine(csr, cause, tval, epc)
}

const (
	mstatusMIEBit  = 1 << 3
	mstatusMPIEBit = 1 << 7
	mstatusMPPShift = 11
	mstatusMPPMask  = 0x3 << mstatusMPPShift
	sstatusSIEBit  = 1 << 1
	sstatusSPIEBit = 1 << 5
	sstatusSPPBit  = 1 << 8
)

func deliverToMachine(csr *cpu.CSRFile, cause, tval, epc uint64) uint64 {
	csr.Write(cpu.CSRMepc, epc)
	csr.Write(cpu.CSRMcause, cause)
	csr.Write(cpu.CSRMtval, tval)

	status := csr.Read(cpu.CSRMstatus)
	mie := status&mstatusMIEBit != 0
	status &^= mstatusMPIEBit | mstatusMIEBit | mstatusMPPMask
	if mie {
		status |= mstatusMPIEBit
	}
	status |= uint64(csr.Priv) << mstatusMPPShift & mstatusMPPMask
	csr.Write(cpu.CSRMstatus, status)

	csr.Priv = cpu.PrivMachine
	return trapVectorTarget(csr.Read(cpu.CSRMtvec), cause)
}

func deliverToSupervisor(csr *cpu.CSRFile, cause, tval, epc uint64) uint64 {
	csr.Write(cpu.CSRSepc, epc)
	csr.Write(cpu.CSRScause, cause)
	csr.Write(cpu.CSRStval, tval)

	status := csr.Read(cpu.CSRSstatus)
	sie := status&sstatusSIEBit != 0
	status &^= sstatusSPIEBit | sstatusSIEBit | sstatusSPPBit
	if sie {
		status |= sstatusSPIEBit
	}
	if csr.Priv == cpu.PrivSupervisor {
		status |= sstatusSPPBit
	}
	csr.Write(cpu.CSRSstatus, status)

	csr.Priv = cpu.PrivSupervisor
	return trapVectorTarget(csr.Read(cpu.CSRStvec), cause)
}

// trapVectorTarget applies the mode-0 (direct) / mode-1 (vectored) tvec
// encoding: vectored mode adds 4*cause to the base, but only for
// interrupts.
func trapVectorTarget(tvec, cause uint64) uint64 {
	base := tvec &^ 0x3
	mode := tvec & 0x3
	if mode == 1 && cause&cpu.CauseInterruptFlag != 0 {
		return base + 4*(cause&^cpu.CauseInterruptFlag)
	}
	return base
}

// mret restores machine-mode state on an MRET instruction, returning the
// resumption PC.
func mret(csr *cpu.CSRFile) uint64 {
	status := csr.Read(cpu.CSRMstatus)
	mpie := status&mstatusMPIEBit != 0
	mpp := cpu.Privilege(status & mstatusMPPMask >> mstatusMPPShift)

	status &^= mstatusMIEBit
	if mpie {
		status |= mstatusMIEBit
	}
	status |= mstatusMPIEBit
	status &^= mstatusMPPMask // MPP resets to U
	csr.Write(cpu.CSRMstatus, status)
	csr.Priv = mpp
	return csr.Read(cpu.CSRMepc)
}

// sret restores supervisor-mode state on an SRET instruction, returning
// the resumption PC.
func sret(csr *cpu.CSRFile) uint64 {
	status := csr.Read(cpu.CSRSstatus)
	spie := status&sstatusSPIEBit != 0
	var spp cpu.Privilege = cpu.PrivUser
	if status&sstatusSPPBit != 0 {
		spp = cpu.PrivSupervisor
	}

	status &^= sstatusSIEBit
	if spie {
		status |= sstatusSIEBit
	}
	status |= sstatusSPIEBit
	status &^= sstatusSPPBit
	csr.Write(cpu.CSRSstatus, status)
	csr.Priv = spp
	return csr.Read(cpu.CSRSepc)
}

// pendingInterrupt reports the highest-priority enabled-and-pending
// interrupt, per the RISC-V privileged spec's fixed priority order
// (machine external/software/timer, then supervisor external/software/timer).
func pendingInterrupt(csr *cpu.CSRFile) (cause uint64, ok bool) {
	mip := csr.Read(cpu.CSRMip)
	mie := csr.Read(cpu.CSRMie)
	pending := mip & mie

	mstatus := csr.Read(cpu.CSRMstatus)
	globalM := mstatus&mstatusMIEBit != 0 || csr.Priv != cpu.PrivMachine
	globalS := mstatus&sstatusSIEBit != 0 || csr.Priv == cpu.PrivUser

	order := []uint64{
		cpu.CauseMExternalInterrupt, cpu.CauseMSWInterrupt, cpu.CauseMTimerInterrupt,
		cpu.CauseSExternalInterrupt, cpu.CauseSSWInterrupt, cpu.CauseSTimerInterrupt,
	}
	mideleg := csr.Read(cpu.CSRMideleg)
	for _, c := range order {
		bit := uint64(1) << (c &^ cpu.CauseInterruptFlag)
		if pending&bit == 0 {
			continue
		}
		delegatedToS := mideleg&bit != 0
		if delegatedToS {
			if globalS {
				return c, true
			}
			continue
		}
		if globalM {
			return c, true
		}
	}
	return 0, false
}
