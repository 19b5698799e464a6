// Vector table and exception dispatch (C6)
// https://github.com/FynnHer/craybond-os
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package arm64

import (
	"craybond/internal/kfmt"
	"craybond/internal/klog"
	"craybond/internal/reg"
	"craybond/mm"
	"craybond/proc"
)

// defined in exception_arm64.s
//
// set_vbar installs the single vector table covering current-EL sync, IRQ,
// FIQ and SError (each with SP_EL0 and SP_EL1 variants) and lower-EL
// (AArch64) sync, IRQ, FIQ and SError, per §4.5. The IRQ and lower-EL sync
// entries save x0..x30 and ELR_EL1 into the current process record (via
// save_context/save_pc_interrupt) before calling into dispatchIRQ/dispatchSVC;
// FIQ and SError entries call PanicHandler directly.
func set_vbar()
func read_esr_el1() uint64
func read_elr_el1() uint64
func read_far_el1() uint64

// IRQController and IRQTimer are wired by board init; dispatchIRQ reads
// through them rather than hardcoding a GIC/timer instance, since the
// MMIO bases are board-specific.
var (
	IRQController interface {
		GetInterrupt() int
		EOI(id int)
	}
	IRQTimer interface{ Reset() }
)

// SVCPrintf is the raw formatted print PRINTF (#3) calls into; wired by
// board init to the console's RawPuts.
var SVCPrintf func(s string)

// InstallVectorTable points VBAR_EL1 at the table built by
// exception_arm64.s.
func InstallVectorTable() {
	set_vbar()
}

// dispatchIRQ implements §4.4's handler contract: read GICC_IAR, and for
// the timer IRQ, reset it, EOI, then invoke the scheduler with reason
// Interrupt. Called by irqEntry after the interrupted context has been
// saved into the current process record.
func dispatchIRQ() {
	if IRQController == nil {
		return
	}

	id := IRQController.GetInterrupt()

	if id == TimerIRQ && IRQTimer != nil {
		IRQTimer.Reset()
	}

	IRQController.EOI(id)

	proc.SwitchProc(proc.Interrupt)
}

// dispatchSVC implements §4.5's SVC dispatch: x8 selects the syscall,
// currently only #3 PRINTF (x0=fmt ptr, x1=args ptr, x2=arg count) is
// defined; anything else raises UnexpectedEL0Exception.
func dispatchSVC() {
	p := proc.Current()
	if p == nil {
		return
	}

	switch p.Regs[8] {
	case 3:
		handlePrintf(uintptr(p.Regs[0]), uintptr(p.Regs[1]), int(p.Regs[2]))
	default:
		UnexpectedEL0Exception()
	}

	proc.SwitchProc(proc.Yield)
}

// handlePrintf implements PRINTF (#3): fmt is a NUL-terminated C string,
// args points to argc consecutive u64 values, per §4.5.
func handlePrintf(fmtPtr, argsPtr uintptr, argc int) {
	format := mm.CString(fmtPtr)

	args := make([]uint64, argc)
	for i := 0; i < argc; i++ {
		args[i] = reg.Read64(argsPtr + uintptr(i*8))
	}

	s := kfmt.Sprintf(format, args)

	if SVCPrintf != nil {
		SVCPrintf(s)
	}
}

// PanicHandler prints ESR_EL1, ELR_EL1 and FAR_EL1 to the UART console
// through klog and halts. Nothing is drawn to the framebuffer.
func PanicHandler() {
	esr := read_esr_el1()
	elr := read_elr_el1()
	far := read_far_el1()

	klog.Warn("panic: esr=%h elr=%h far=%h", esr, elr, far)

	Halt()
}

// UnexpectedEL0Exception is raised by dispatchSVC for any syscall number
// other than PRINTF (§4.5).
func UnexpectedEL0Exception() {
	klog.Warn("UNEXPECTED EL0 EXCEPTION")

	Halt()
}
