// ARM64 Generic Interrupt Controller (GICv2) driver (C4)
// https://github.com/FynnHer/craybond-os
//
// IP: ARM Generic Interrupt Controller version 2.0
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package gic implements a driver for the ARM Generic Interrupt Controller
// (GICv2), as exposed by QEMU's virt machine at its fixed distributor and
// CPU interface MMIO bases.
//
// Unlike GICv3 this IP has no redistributor or system-register interface:
// both the distributor and CPU interface are plain MMIO register banks, so
// this driver (adapted from the GICv3 driver of the same lineage) drops the
// wake/affinity-routing dance entirely.
package gic

import (
	"craybond/internal/reg"
)

// GIC Distributor register map (ARM IHI 0048B, GICv2).
const (
	GICD_CTLR       = 0x000
	GICD_TYPER      = 0x004
	GICD_ISENABLER  = 0x100
	GICD_ICENABLER  = 0x180
	GICD_ICPENDR    = 0x280
	GICD_IPRIORITYR = 0x400
	GICD_ITARGETSR  = 0x800
)

// GIC CPU interface register map.
const (
	GICC_CTLR = 0x000
	GICC_PMR  = 0x004
	GICC_IAR  = 0x00C
	GICC_EOIR = 0x010
)

const (
	priorityMask = 0xF0 // §4.4 GICC_PMR = 0xF0
	cpu0Target   = 0x01 // route to CPU0

	spuriousID = 1023
)

// GIC represents a GICv2 instance at its fixed distributor/CPU-interface
// MMIO bases.
type GIC struct {
	GICD uintptr
	GICC uintptr
}

// Init brings up the distributor and CPU interface per §4.4: both
// controllers start disabled, the EL1 physical timer line (IRQ 30) is
// enabled, routed to CPU0 at priority 0, the priority mask is opened to
// 0xF0, then both controllers are enabled.
func (hw *GIC) Init() {
	if hw.GICD == 0 || hw.GICC == 0 {
		panic("gic: invalid instance")
	}

	reg.Write32(hw.GICD+GICD_CTLR, 0)
	reg.Write32(hw.GICC+GICC_CTLR, 0)

	hw.EnableInterrupt(TimerIRQ)
	hw.setTarget(TimerIRQ, cpu0Target)
	hw.setPriority(TimerIRQ, 0)

	reg.Write32(hw.GICC+GICC_PMR, priorityMask)

	reg.Write32(hw.GICC+GICC_CTLR, 1)
	reg.Write32(hw.GICD+GICD_CTLR, 1)
}

// TimerIRQ is the EL1 physical timer's interrupt ID (§4.4).
const TimerIRQ = 30

func (hw *GIC) setTarget(id int, mask uint8) {
	addr := hw.GICD + GICD_ITARGETSR + uintptr(id)
	reg.Write8(addr, mask)
}

func (hw *GIC) setPriority(id int, pri uint8) {
	addr := hw.GICD + GICD_IPRIORITYR + uintptr(id)
	reg.Write8(addr, pri)
}

// EnableInterrupt sets the distributor's set-enable bit for the given
// interrupt ID.
func (hw *GIC) EnableInterrupt(id int) {
	n := id / 32
	i := id % 32
	reg.Set(hw.GICD+GICD_ISENABLER+uintptr(4*n), i)
}

// DisableInterrupt clears the distributor's enable bit for the given
// interrupt ID.
func (hw *GIC) DisableInterrupt(id int) {
	n := id / 32
	i := id % 32
	reg.Write32(hw.GICD+GICD_ICENABLER+uintptr(4*n), 1<<uint(i))
}

// GetInterrupt reads GICC_IAR, returning the pending interrupt ID. Callers
// must EOI the same ID once the IRQ has been serviced.
func (hw *GIC) GetInterrupt() int {
	return int(reg.Read32(hw.GICC+GICC_IAR) & 0x3FF)
}

// EOI writes the interrupt ID to GICC_EOIR, per §4.4's IRQ handler contract.
func (hw *GIC) EOI(id int) {
	if id >= spuriousID {
		return
	}
	reg.Write32(hw.GICC+GICC_EOIR, uint32(id))
}
