// QEMU virt (AArch64) board support
// https://github.com/FynnHer/craybond-os
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package virt provides hardware initialization for QEMU's aarch64 "virt"
// machine: the MMIO memory map, peripheral instances, and kernel_main, the
// boot entry point that wires every core subsystem together, adapted from
// board/qemu/microvm's const-block/var-block/Init() layout (there written
// for a single amd64 core with a LAPIC/IOAPIC/RTC/COM1 map; here rewritten
// for a single AArch64 core with a GICv2/PL011/ECAM/fw_cfg map).
package virt

import (
	"craybond/arm64"
	"craybond/arm64/gic"
	"craybond/dtb"
	"craybond/fwcfg"
	"craybond/graphics"
	"craybond/internal/klog"
	"craybond/kernel/kprocs"
	"craybond/mm"
	"craybond/proc"
	"craybond/uart"
)

// Peripheral registers, per §6's QEMU virt memory map.
const (
	UART0Base = 0x0900_0000
	GICDBase  = 0x0800_0000
	GICCBase  = 0x0801_0000

	FwCfgBase = 0x0902_0000

	PCIECAMBase = 0x4010_0000_00

	// DTB is loaded by QEMU at a fixed well-known address on virt.
	DTBBase = 0x4000_0000

	// PCI_CFG BAR assignment base for virtio-gpu-pci's capability-walk
	// BARs that come up unassigned, per §4.7 vgp_setup_bars.
	PCICfgBarBase = 0x1000_0000

	timerIntervalMs = 10
)

// Peripheral instances.
var (
	UART0 = &uart.PL011{Base: UART0Base}

	GIC = &gic.GIC{GICD: GICDBase, GICC: GICCBase}

	Timer = &arm64.Timer{}

	FwCfg *fwcfg.FwCfg

	Graphics *graphics.Graphics
)

// mapPeripherals identity-maps every MMIO window this board touches as
// Device-nGnRnE memory: the UART, GIC and fw_cfg windows as 4 KiB pages and
// the PCI ECAM window as 2 MiB blocks.
func mapPeripherals(mmu *arm64.MMU) {
	bases := []uintptr{UART0Base, GICDBase, GICCBase, FwCfgBase}

	for _, base := range bases {
		mmu.Map4KB(base, base, arm64.AttrDeviceNGnRnE, arm64.LevelEL1)
	}

	// The ECAM window spans many megabytes; map it in 2 MiB blocks.
	const ecamSpan = 256 * 1 << 20 // 256 MiB, enough for bus 0
	for off := uintptr(0); off < ecamSpan; off += 2 << 20 {
		mmu.Map2MB(uintptr(PCIECAMBase)+off, uintptr(PCIECAMBase)+off, arm64.AttrDeviceNGnRnE)
	}
}

// KernelMain is the kernel's single entry point, reached with interrupts
// masked, the MMU off and SP already pointed into .bss/.stack, per §6's
// boot contract.
func KernelMain() {
	mm.Init(heapBottom(), heapLimit())

	mmu := arm64.Init()

	mapPeripherals(mmu)

	UART0.Enable()
	uart.Default = UART0
	klog.Console = UART0
	arm64.SVCPrintf = UART0.RawPuts

	ramBase, ramSize, ok := dtb.MemoryRegion(DTBBase)
	if !ok {
		klog.Warn("virt: no memory node in DTB, halting")
		arm64.Halt()
	}
	klog.Info("virt: ram base=%h size=%h", ramBase, ramSize)

	mmu.Enable()

	GIC.Init()

	Timer.Init(timerIntervalMs)
	Timer.Enable()
	Timer.Reset()

	arm64.IRQController = GIC
	arm64.IRQTimer = Timer

	FwCfg = fwcfg.New(FwCfgBase)
	if !FwCfg.Probe() {
		klog.Warn("virt: fw_cfg signature mismatch")
	}

	// Framebuffer sized for the largest resolution virtio-gpu's QEMU model
	// typically negotiates; RESOURCE_CREATE_2D's actual width/height (from
	// GET_DISPLAY_INFO) must fit inside it.
	const maxFBSize = 1920 * 1080 * 4
	fbAddr := mm.PAlloc(maxFBSize)

	Graphics = graphics.Init(PCIECAMBase, PCICfgBarBase, fbAddr, maxFBSize)

	kprocs.StartDefault(int(proc1End()) - int(proc1Start()))
	kprocs.StartBootscreen(Graphics, int(kbootscreenEnd())-int(kbootscreenStart()))

	arm64.EnableInterrupts()

	proc.SwitchProc(proc.Cold)
	proc.Resume()
}

// defined in symbols_arm64.s
func kernelStart() uintptr
func kcodeEnd() uintptr
func kfullEnd() uintptr
func heapBottom() uintptr
func heapLimit() uintptr
func sharedStart() uintptr
func sharedEnd() uintptr
func kbootscreenStart() uintptr
func kbootscreenEnd() uintptr
func proc1Start() uintptr
func proc1End() uintptr
func proc1RodataStart() uintptr
func proc1RodataEnd() uintptr
