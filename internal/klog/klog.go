// Non-fatal diagnostic logging
// https://github.com/FynnHer/craybond-os
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package klog prints the non-fatal diagnostic conditions enumerated in the
// error handling design (e.g. "L4 region already mapped", relocator
// encountering an unsupported instruction): one log line, kernel continues.
package klog

import "craybond/internal/kfmt"

// Console is the sink diagnostics are written to; board/virt wires it to the
// PL011 console once the UART collaborator is enabled. Left nil-safe so
// early-boot callers (before the console exists) do not panic.
var Console interface {
	RawPuts(string)
}

func Warn(format string, args ...uint64) {
	if Console == nil {
		return
	}

	Console.RawPuts("[warn] ")
	Console.RawPuts(kfmt.Sprintf(format, args))
	Console.RawPuts("\n")
}

func Info(format string, args ...uint64) {
	if Console == nil {
		return
	}

	Console.RawPuts("[info] ")
	Console.RawPuts(kfmt.Sprintf(format, args))
	Console.RawPuts("\n")
}
