// AArch64 core bring-up
// https://github.com/FynnHer/craybond-os
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package arm64 provides the AArch64 core-level primitives this kernel is
// built on: the MMU page table builder (§4.3), the EL1 physical timer and
// IRQ masking (§4.4; the GICv2 driver itself is package arm64/gic), and the
// exception vector table and panic path (§4.5).
//
// Targets a single Cortex-A53-class core, as exposed by QEMU's virt
// machine. Multicore, floating point and demand paging are out of scope.
package arm64

// defined in arm64_arm64.s
func halt()

// Halt parks the core permanently; used once a panic has been reported and
// there is nothing further the kernel can do.
func Halt() {
	halt()
}
