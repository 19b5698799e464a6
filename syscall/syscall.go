// SVC dispatch surface for kernel processes (C's "shared/syscalls")
// https://github.com/FynnHer/craybond-os
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package syscall is the process-side half of the SVC boundary described in
// §6: today a single syscall, #3 printf, which a running process issues to
// emit a formatted line to the console via the IRQ-safe raw UART path. Any
// other x8 value is a kernel bug (panics with "UNEXPECTED EL0 EXCEPTION" on
// the EL1 side) and is never emitted from here.
package syscall

import "unsafe"

// defined in syscall_arm64.s: loads x0/x1/x2, sets x8 = 3 and executes
// SVC #3.
func printf(fmtPtr uintptr, argsPtr uintptr, argc uint32)

// Printf hands format and args to the kernel's PRINTF syscall (#3, §6).
// format must be NUL-terminated (the kernel side reads it back with
// mm.CString); args must outlive the call, since the kernel reads them
// synchronously before resuming this process.
func Printf(format string, args []uint64) {
	var fmtPtr uintptr
	if len(format) > 0 {
		fmtPtr = uintptr(unsafe.Pointer(unsafe.StringData(format)))
	}

	var argsPtr uintptr
	if len(args) > 0 {
		argsPtr = uintptr(unsafe.Pointer(unsafe.SliceData(args)))
	}

	printf(fmtPtr, argsPtr, uint32(len(args)))
}
