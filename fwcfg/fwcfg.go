// QEMU fw_cfg client (C11)
// https://github.com/FynnHer/craybond-os
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package fwcfg implements the selector-based read and DMA paths of QEMU's
// fw_cfg device, plus the directory scan fw_find_file needs to locate
// ramfb and ACPI tables by name. It has no TamaGo ancestor in this lineage;
// it is built on the same MMIO-plus-byte-slice idiom as this kernel's other
// device drivers (see DESIGN.md).
package fwcfg

import (
	"encoding/binary"

	"craybond/internal/reg"
	"craybond/mm"
)

// Selector register values with special meaning.
const (
	SelectorSignature = 0x00
	SelectorFileDir   = 0x19
)

const signature = "QEMU"

// DMA control bits.
const (
	dmaError   = 1 << 0
	dmaRead    = 1 << 1
	dmaSkip    = 1 << 2
	dmaSelect  = 1 << 3
	dmaWrite   = 1 << 4
)

// FwCfg drives the data/selector/DMA register triplet at a fixed MMIO
// base, per §4.8 and §6's memory map (data/ctl/dma at base/+0x8/+0x10).
type FwCfg struct {
	base uintptr
}

func New(base uintptr) *FwCfg {
	return &FwCfg{base: base}
}

func (f *FwCfg) selectorAddr() uintptr { return f.base + 0x8 }
func (f *FwCfg) dataAddr() uintptr     { return f.base }
func (f *FwCfg) dmaAddr() uintptr      { return f.base + 0x10 }

// dmaAccess is the big-endian {control, length, address} block fw_cfg's
// DMA register expects, per §4.8.
type dmaAccess struct {
	control uint32
	length  uint32
	address uint64
}

func (a *dmaAccess) marshal() []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint32(buf[0:], a.control)
	binary.BigEndian.PutUint32(buf[4:], a.length)
	binary.BigEndian.PutUint64(buf[8:], a.address)
	return buf
}

// Probe checks the fw_cfg signature register against "QEMU", per §4.8's
// signature check.
func (f *FwCfg) Probe() bool {
	sig := reg.Read64(f.dataAddr())
	return sig == binary.LittleEndian.Uint64([]byte(signature+"\x00\x00\x00\x00"))
}

// dmaTransfer writes a populated access block's physical address to the
// DMA register, then spins until the control word's completion bit (the
// low bit persisting after the in-flight bits clear) settles, per §4.8.
func (f *FwCfg) dmaTransfer(selector uint16, control uint32, buf uintptr, length uint32) bool {
	access := &dmaAccess{
		control: control | uint32(selector)<<16,
		length:  length,
		address: uint64(buf),
	}

	accessAddr := mm.TAlloc(16)
	copy(mm.Bytes(accessAddr, 16), access.marshal())

	reg.Write64(f.dmaAddr(), uint64(accessAddr))

	for {
		status := binary.BigEndian.Uint32(mm.Bytes(accessAddr, 4))
		if status&^dmaError == 0 {
			break
		}
	}

	ok := binary.BigEndian.Uint32(mm.Bytes(accessAddr, 4))&dmaError == 0
	mm.TFree(accessAddr, 16)

	return ok
}

// ReadSelector performs a selector+read DMA transfer into dst, per §4.8.
func (f *FwCfg) ReadSelector(selector uint16, dst uintptr, length uint32) bool {
	return f.dmaTransfer(selector, dmaSelect|dmaRead, dst, length)
}

// File is one entry of the fw_cfg directory: a selector plus its
// null-padded name, per §4.8's {size, selector, name[56]} record layout.
type File struct {
	Size     uint32
	Selector uint16
	Name     string
}

const dirEntrySize = 4 + 2 + 2 + 56 // size, select, reserved, name

// Directory reads the 32-bit big-endian entry count from selector 0x19,
// then decodes that many {size, selector, name[56]} records, per §4.8's
// directory scan.
func (f *FwCfg) Directory() []File {
	reg.Write16(f.selectorAddr(), SelectorFileDir)

	countBuf := mm.TAlloc(4)
	if !f.dmaTransfer(SelectorFileDir, dmaSelect|dmaRead, countBuf, 4) {
		mm.TFree(countBuf, 4)
		return nil
	}

	count := binary.BigEndian.Uint32(mm.Bytes(countBuf, 4))
	mm.TFree(countBuf, 4)

	if count == 0 {
		return nil
	}

	bufSize := int(count) * dirEntrySize
	dirBuf := mm.TAlloc(bufSize)
	defer mm.TFree(dirBuf, bufSize)

	if !f.dmaTransfer(SelectorFileDir, dmaRead, dirBuf, uint32(bufSize)) {
		return nil
	}

	raw := mm.Bytes(dirBuf, bufSize)

	files := make([]File, 0, count)
	for i := uint32(0); i < count; i++ {
		off := int(i) * dirEntrySize
		size := binary.BigEndian.Uint32(raw[off:])
		selector := binary.BigEndian.Uint16(raw[off+4:])
		name := raw[off+8 : off+8+56]

		nul := 0
		for nul < len(name) && name[nul] != 0 {
			nul++
		}

		files = append(files, File{Size: size, Selector: selector, Name: string(name[:nul])})
	}

	return files
}

// Find compares each directory entry's null-padded name against needle and
// returns the first exact match, per §4.8 fw_find_file.
func (f *FwCfg) Find(needle string) (File, bool) {
	for _, file := range f.Directory() {
		if file.Name == needle {
			return file, true
		}
	}

	return File{}, false
}
