// Default/idle kernel process and boot-splash stub (expansion)
// https://github.com/FynnHer/craybond-os
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package kprocs supplies the process table with more than one runnable
// entry so the round-robin scheduler has something to round-robin: a
// counting idle process (re-expressing default_process.c's proc_func,
// which SVC-printfs an incrementing counter in a loop) and a kernel-mode
// boot-splash process (re-expressing bootscreen.c's clear/redraw loop,
// minus the line/font rasterizer that stays out of scope here).
package kprocs

import (
	"unsafe"

	"craybond/graphics"
	"craybond/proc"
	"craybond/syscall"
)

// entryOf returns a Go function's code entry address, the closest
// equivalent of default_process.c's bare `void (*func)()` passed to
// create_process: Go gives no address-of operator for a func value, so the
// pointer inside the func value (itself a pointer to the runtime's
// closure/code record, stable for a closure with no captured variables) is
// read directly.
func entryOf(fn func()) uintptr {
	return **(**uintptr)(unsafe.Pointer(&fn))
}

var counterFormat = []byte("Process %i\x00")

// counter loops forever, SVC-printfing an incrementing counter — the Go
// re-expression of proc_func in default_process.c.
func counter() {
	var n uint64

	for {
		syscall.Printf(string(counterFormat), []uint64{n})
		n++
	}
}

// StartDefault installs two copies of the counting idle process, matching
// default_processes()'s two create_process calls in default_process.c.
func StartDefault(codeSize int) {
	entry := entryOf(counter)

	proc.CreateProcess(entry, codeSize, counterFormat)
	proc.CreateProcess(entry, codeSize, counterFormat)
}

// gfx is wired by the caller before StartBootscreen runs, since the
// boot-splash process needs the active graphics backend and this package
// carries no reference to board/virt.
var gfx *graphics.Graphics

// palette used for the alternating clear, standing in for the original's
// crayon-sweep animation (out of scope without the line rasterizer).
const (
	colorBackground = 0x000000
	colorAccent     = 0xFF4500 // crayon orange-red, matching bootscreen.c
)

// splash alternates the framebuffer between background and accent color —
// the Go re-expression of bootscreen()'s clear-and-redraw loop, with the
// crayon-C sweep and name rendering left out (they depend on the
// line/rectangle rasterizer and 8x8 font, both out of scope per spec.md).
func splash() {
	color := uint32(colorBackground)

	for {
		if gfx == nil || !gfx.Ready {
			return
		}

		gfx.Clear(color)

		if color == colorBackground {
			color = colorAccent
		} else {
			color = colorBackground
		}
	}
}

// StartBootscreen installs the boot-splash kernel process, matching
// start_bootscreen() in bootscreen.c.
func StartBootscreen(g *graphics.Graphics, codeSize int) {
	gfx = g
	proc.CreateKernelProcess(entryOf(splash), codeSize)
}
