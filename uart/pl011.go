// PL011 UART line driver (external collaborator)
// https://github.com/FynnHer/craybond-os
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package uart is the minimal PL011 line driver the core subsystems treat as
// an external collaborator (§6 of the design): it is deliberately kept thin
// (no FIFO tuning, no baud negotiation — QEMU's virt PL011 model comes up
// ready to use) so that the interesting, reusable systems work stays in the
// packages that own it.
package uart

import (
	"craybond/internal/kfmt"
	"craybond/internal/reg"
)

const (
	drOffset = 0x00
	frOffset = 0x18
	frTxFull = 5
)

// PL011 represents a single UART instance at a fixed MMIO base.
type PL011 struct {
	Base uintptr
}

// Default is the board's primary console, wired by board/virt.
var Default *PL011

func (u *PL011) Enable() {
	// QEMU's virt PL011 is already enabled by firmware; nothing to
	// negotiate, kept as a named step to match the collaborator contract.
}

// RawPutc writes a single byte with interrupts masked for the duration of
// the transfer, per the "UART raw put... disable IRQs around their entire
// transfer" ordering guarantee.
func (u *PL011) RawPutc(c byte) {
	disableIRQ()
	defer restoreIRQ()

	for reg.Get(u.Base+frOffset, frTxFull, 1) == 1 {
	}

	reg.Write8(u.Base+drOffset, c)
}

// RawPuts writes a string a byte at a time, with interrupts masked for the
// whole string.
func (u *PL011) RawPuts(s string) {
	disableIRQ()
	defer restoreIRQ()

	for i := 0; i < len(s); i++ {
		for reg.Get(u.Base+frOffset, frTxFull, 1) == 1 {
		}

		reg.Write8(u.Base+drOffset, s[i])
	}
}

// Puthex writes a 64-bit value in hexadecimal.
func (u *PL011) Puthex(v uint64) {
	u.RawPuts(kfmt.Sprintf("%h", []uint64{v}))
}

// defined in irq_arm64.s — these mask/restore DAIF.IRQ, they do not touch
// the GIC, and are only used to bound MMIO transfers per §5.
func disableIRQ()
func restoreIRQ()
