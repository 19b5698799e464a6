// AArch64 MMU page table builder (C5)
// https://github.com/FynnHer/craybond-os
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package arm64

import (
	"craybond/internal/klog"
	"craybond/internal/reg"
	"craybond/mm"
)

// Lower attribute field positions within a table/page/block descriptor.
const (
	bitAF      = 10
	shIndex    = 8
	apIndex    = 6
	attrIdxPos = 2

	bitUXN = 54
	bitPXN = 53

	descValidTable = 0b11 // table descriptor / L4 page descriptor
	descValidBlock = 0b01 // L3 2 MiB block descriptor

	shInnerShareable = 0b11

	apEL0RW = 0b01
	apEL1RW = 0b00
	apEL1RO = 0b10
)

// MAIR_EL1 indices (§4.3).
const (
	AttrDeviceNGnRnE  = 0
	AttrNormalNoCache = 1
)

// Level selects UXN and the AP encoding chosen for a 4 KiB page mapping.
type Level int

const (
	LevelEL0 Level = iota
	LevelEL1
	LevelShared
)

const entriesPerTable = 512
const tableSize = entriesPerTable * 8

// MMU owns the single L1 root table used for every mapping this kernel
// installs, per §3 "A single L1 table page_table_l1[512]".
type MMU struct {
	L1 uintptr
}

// NewMMU allocates and zeroes the L1 root table from the permanent bump
// region — page tables are created once at boot and never destroyed.
func NewMMU() *MMU {
	root := mm.PAlloc(tableSize)
	reg.Memset(root, 0, tableSize)

	return &MMU{L1: root}
}

func l1Index(va uintptr) int { return int((va >> 37) & 0x1FF) }
func l2Index(va uintptr) int { return int((va >> 30) & 0x1FF) }
func l3Index(va uintptr) int { return int((va >> 21) & 0x1FF) }
func l4Index(va uintptr) int { return int((va >> 12) & 0x1FF) }

func entryAddr(table uintptr, index int) uintptr {
	return table + uintptr(index)*8
}

// descTableBase extracts the physical base address a table/page descriptor
// points to, masking off the attribute bits.
func descTableBase(entry uint64) uintptr {
	return uintptr(entry &^ 0xFFF &^ (1 << bitUXN) &^ (1 << bitPXN))
}

// walkCreate reads the entry at table[index]; if invalid, it allocates a new
// 4 KiB table from the permanent region and installs it as a table
// descriptor, then returns the (possibly newly created) next-level table's
// physical base.
func (m *MMU) walkCreate(table uintptr, index int) uintptr {
	addr := entryAddr(table, index)
	entry := reg.Read64(addr)

	if entry&0b11 == 0 {
		next := mm.PAlloc(tableSize)
		reg.Memset(next, 0, tableSize)
		reg.Write64(addr, uint64(next)|descValidTable)
		return next
	}

	return descTableBase(entry)
}

// Map2MB installs a 2 MiB block mapping at the L3 level (§4.3 map_2mb).
func (m *MMU) Map2MB(va, pa uintptr, attrIdx int) {
	l2 := m.walkCreate(m.L1, l1Index(va))
	l3 := m.walkCreate(l2, l2Index(va))

	entry := uint64(pa&^0xFFF) |
		(1 << bitUXN) |
		(1 << bitAF) |
		(shInnerShareable << shIndex) |
		(uint64(apEL1RW) << apIndex) |
		(uint64(attrIdx) << attrIdxPos) |
		descValidBlock

	reg.Write64(entryAddr(l3, l3Index(va)), entry)
}

// Map4KB installs a 4 KiB page mapping at the L4 level (§4.3 map_4kb). It
// refuses to remap a VA region already covered by a 2 MiB block, logging a
// diagnostic and aborting that one mapping (§7 "diagnostic conditions").
func (m *MMU) Map4KB(va, pa uintptr, attrIdx int, level Level) {
	l2 := m.walkCreate(m.L1, l1Index(va))
	l3 := m.walkCreate(l2, l2Index(va))

	l3Entry := reg.Read64(entryAddr(l3, l3Index(va)))
	if l3Entry&0b11 == descValidBlock {
		klog.Warn("mmu: 2 MiB region blocks 4 KiB mapping at %h", uint64(va))
		return
	}

	l4 := m.walkCreate(l3, l3Index(va))

	l4Addr := entryAddr(l4, l4Index(va))
	if reg.Read64(l4Addr) != 0 {
		klog.Warn("mmu: L4 region already mapped at %h", uint64(va))
		return
	}

	var ap, uxn uint64

	switch level {
	case LevelEL0:
		ap, uxn = apEL0RW, 0
	case LevelEL1:
		ap, uxn = apEL1RW, 1
	case LevelShared:
		ap, uxn = apEL1RO, 0
	}

	entry := uint64(pa&^0xFFF) |
		(uxn << bitUXN) |
		(1 << bitAF) |
		(0b11 << shIndex) |
		(ap << apIndex) |
		(uint64(attrIdx) << attrIdxPos) |
		descValidTable

	reg.Write64(l4Addr, entry)
}

// defined in mmu_arm64.s
func write_mair_el1(val uint64)
func write_tcr_el1(val uint64)
func write_ttbr0_el1(val uintptr)
func enable_mmu()

// mairValue encodes MAIR_EL1 with Device-nGnRnE at index 0 and
// Normal-NoCache at index 1 (§4.3).
const mairValue = 0x00<<(AttrDeviceNGnRnE*8) | 0x44<<(AttrNormalNoCache*8)

// tcrValue selects a 48-bit VA space with a 4 KiB granule in both TTBR0 and
// TTBR1 halves.
const tcrValue = 16 /* T0SZ=16 -> 48-bit */ | 16<<16 /* T1SZ */

// Enable writes MAIR_EL1, TCR_EL1 and TTBR0_EL1, then turns on the MMU via
// SCTLR_EL1's M bit and clears the I-cache enable bit (matching the source), per
// §4.3 mmu_init's final sequence.
func (m *MMU) Enable() {
	write_mair_el1(mairValue)
	write_tcr_el1(tcrValue)
	write_ttbr0_el1(m.L1)

	enable_mmu()
}

// RegisterProcMemory maps a freshly allocated 4 KiB page and performs the
// full TLB/I-cache maintenance sequence required before code placed there
// can be executed, per §4.3 register_proc_memory.
func (m *MMU) RegisterProcMemory(va, pa uintptr, kernel bool) {
	level := LevelEL0
	if kernel {
		level = LevelEL1
	}

	m.Map4KB(va, pa, AttrNormalNoCache, level)

	FlushTLBs()
}
