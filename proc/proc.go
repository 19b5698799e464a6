// Process table and round-robin scheduler (C7)
// https://github.com/FynnHer/craybond-os
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package proc implements the fixed-capacity process table, the
// save/restore-context assembly contract and the round-robin scheduler
// described in §4.5.
package proc

import (
	"craybond/internal/klog"
	"craybond/mm"
	"craybond/proc/reloc"
)

// State is a process's scheduling state.
type State int

const (
	Empty State = iota
	Ready
	Running
	Blocked // reserved, unused today per §4.5
)

// MaxProcesses bounds the process table, per §3's fixed-capacity design.
const MaxProcesses = 16

const (
	stackSize = 4096
	spsrEL1h  = 0x3C5 // EL1h, DAIF set; kernel processes run privileged
	spsrEL0t  = 0x0   // EL0t, DAIF clear; IRQs enabled for preemption
)

// Process is the saved-context record the assembly trampolines read and
// write directly; the field order here is load-bearing — save_context and
// restore_context (proc_arm64.s) address these fields by fixed byte offset.
type Process struct {
	Regs [31]uint64 // x0..x30
	SP   uint64      // SP_EL0
	PC   uint64      // ELR_EL1
	SPSR uint64
	ID   uint32
	St   State
}

var (
	processes [MaxProcesses]Process
	count     int
	current   int
)

// Reason identifies why switch_proc was invoked.
type Reason int

const (
	Interrupt Reason = iota
	Yield
	Cold
)

// CreateKernelProcess allocates a 4 KiB stack and installs entry as a kernel
// process executing directly from the kernel image, per §4.5
// create_kernel_process. codeSize is accepted for signature symmetry with
// CreateProcess but otherwise unused: kernel processes run from the kernel
// image, there is no text to copy.
func CreateKernelProcess(entry uintptr, codeSize int) int {
	if count >= MaxProcesses {
		panic("proc: process table full")
	}

	stack := mm.PAlloc(stackSize)

	p := &processes[count]
	*p = Process{
		SP:   uint64(stack + stackSize),
		PC:   uint64(entry),
		SPSR: spsrEL1h,
		ID:   uint32(count),
		St:   Ready,
	}

	count++

	return int(p.ID)
}

// CreateProcess copies data into a fresh data page, relocates
// [entryBase, entryBase+codeSize) into a fresh code region via the
// relocator (§4.6), and installs a new EL0 process, per §4.5
// create_process.
func CreateProcess(entryBase uintptr, codeSize int, data []byte) int {
	if count >= MaxProcesses {
		panic("proc: process table full")
	}

	dataPage := mm.PAlloc(len(data))
	copy(mm.Bytes(dataPage, len(data)), data)

	code := mm.PAlloc(codeSize)
	reloc.Relocate(entryBase, code, codeSize, entryBase, dataPage, uintptr(len(data)))

	stack := mm.PAlloc(stackSize)

	p := &processes[count]
	*p = Process{
		SP:   uint64(stack + stackSize),
		PC:   uint64(code),
		SPSR: spsrEL0t,
		ID:   uint32(count),
		St:   Ready,
	}

	count++

	return int(p.ID)
}

// SwitchProc implements §4.5's three-step round-robin walk: advance one
// process at a time from current, skipping any not Ready, stopping if the
// walk returns to current (nothing else runnable).
func SwitchProc(reason Reason) *Process {
	if count == 0 {
		return nil
	}

	next := (current + 1) % count

	for next != current {
		if processes[next].St == Ready {
			break
		}
		next = (next + 1) % count
	}

	if next == current && processes[current].St != Ready {
		klog.Warn("proc: no runnable process")
		return nil
	}

	current = next

	return &processes[current]
}

// Current returns the presently running process record.
func Current() *Process {
	if count == 0 {
		return nil
	}
	return &processes[current]
}

// defined in proc_arm64.s
func save_context(p *Process)
func save_pc_interrupt(p *Process)
func restore_context(p *Process)
func restore_context_yield(p *Process)

// SaveContext writes x0..x30 and SP_EL0 from the trap frame into the
// current process record. Called by the IRQ and lower-EL sync trampolines
// before any further state is touched.
func SaveContext() {
	if p := Current(); p != nil {
		save_context(p)
	}
}

// SavePCInterrupt records ELR_EL1 as the current process's resume PC.
func SavePCInterrupt() {
	if p := Current(); p != nil {
		save_pc_interrupt(p)
	}
}

// Resume restores the current process's saved context and erets into it.
// Never returns.
func Resume() {
	restore_context(Current())
}

// ResumeAfterYield is Resume's counterpart for the cooperative SVC #3
// yield path (§4.5).
func ResumeAfterYield() {
	restore_context_yield(Current())
}
