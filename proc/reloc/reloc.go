// Code relocator (C8)
// https://github.com/FynnHer/craybond-os
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package reloc copies a compiled-in process text blob to a new location,
// rewriting PC-relative branches and ADRP data references so the copy
// behaves identically at its new address, per §4.6.
package reloc

import (
	"craybond/internal/bits"
	"craybond/internal/klog"
	"craybond/mm"
)

const wordSize = 4

// Relocate copies size bytes from src to dst, rewriting every 32-bit
// instruction in place per §4.6's table: unconditional B/BL, B.cond and
// ADRP. A B/BL/B.cond whose target falls inside [src, src+size) — the
// copied blob itself — is left unchanged, since its relative offset is
// identical at the new location; only a target outside that range is
// rewritten against newPC. ADRP whose current target falls inside
// [srcData, srcData+dataSize) is rewritten to point at the equivalent
// offset into dstData; any other ADRP target is left unchanged with a
// diagnostic.
func Relocate(src, dst uintptr, size int, srcData, dstData uintptr, dataSize uintptr) {
	srcBytes := mm.Bytes(src, size)
	dstBytes := mm.Bytes(dst, size)

	for i := 0; i+wordSize <= size; i += wordSize {
		instr := le32(srcBytes[i:])
		pc := src + uintptr(i)
		newPC := dst + uintptr(i)

		instr = rewrite(instr, pc, newPC, src, size, srcData, dstData, dataSize)

		putLE32(dstBytes[i:], instr)
	}
}

func rewrite(instr uint32, pc, newPC, src uintptr, size int, srcData, dstData, dataSize uintptr) uint32 {
	switch {
	case isBranch(instr):
		return rewriteBranch(instr, pc, newPC, src, size)
	case isBCond(instr):
		return rewriteBCond(instr, pc, newPC, src, size)
	case isADRP(instr):
		return rewriteADRP(instr, pc, newPC, srcData, dstData, dataSize)
	default:
		return instr
	}
}

// isInternal reports whether target falls inside the copied blob
// [src, src+size) — such a branch keeps an identical relative offset after
// the copy, so it must be left unchanged rather than rewritten for newPC.
func isInternal(target int64, src uintptr, size int) bool {
	return target >= int64(src) && target < int64(src)+int64(size)
}

// isBranch matches unconditional B/BL: top 6 bits 0b000101 (B) or 0b100101
// (BL).
func isBranch(instr uint32) bool {
	top6 := bits.Get(&instr, 26, 0x3F)
	return top6 == 0b000101 || top6 == 0b100101
}

func rewriteBranch(instr uint32, pc, newPC, src uintptr, size int) uint32 {
	imm26 := bits.Get(&instr, 0, 0x03FFFFFF)
	offset := bits.SignExtend(uint64(imm26), 26) * 4

	target := int64(pc) + offset

	if isInternal(target, src, size) {
		return instr
	}

	newOffset := target - int64(newPC)
	newImm26 := uint32((newOffset/4)&0x03FFFFFF)

	return (instr &^ 0x03FFFFFF) | newImm26
}

// isBCond matches B.cond: top 8 bits 0b01010100.
func isBCond(instr uint32) bool {
	return bits.Get(&instr, 24, 0xFF) == 0b01010100
}

func rewriteBCond(instr uint32, pc, newPC, src uintptr, size int) uint32 {
	imm19 := bits.Get(&instr, 5, 0x7FFFF)
	offset := bits.SignExtend(uint64(imm19), 19) * 4

	target := int64(pc) + offset

	if isInternal(target, src, size) {
		return instr
	}

	newOffset := target - int64(newPC)
	newImm19 := uint32((newOffset/4)&0x7FFFF) << 5

	return (instr &^ (0x7FFFF << 5)) | newImm19
}

// isADRP matches (instr & 0x9F000000) == 0x90000000.
func isADRP(instr uint32) bool {
	return instr&0x9F000000 == 0x90000000
}

func rewriteADRP(instr uint32, pc, newPC, srcData, dstData, dataSize uintptr) uint32 {
	immlo := bits.Get(&instr, 29, 0x3)
	immhi := bits.Get(&instr, 5, 0x7FFFF)
	imm21 := (immhi << 2) | immlo

	offset := bits.SignExtend(uint64(imm21), 21) << 12

	pageBase := int64(pc) &^ 0xFFF
	target := uintptr(pageBase + offset)

	if target < srcData || target >= srcData+dataSize {
		klog.Warn("reloc: ADRP target %h outside data region, left unchanged", uint64(target))
		return instr
	}

	newTarget := dstData + (target - srcData)
	newPageBase := int64(newPC) &^ 0xFFF
	newOffset := int64(newTarget&^0xFFF) - newPageBase

	newImm21 := uint32((newOffset >> 12) & 0x1FFFFF)
	newImmlo := newImm21 & 0x3
	newImmhi := (newImm21 >> 2) & 0x7FFFF

	instr = instr &^ (0x3 << 29)
	instr = instr &^ (0x7FFFF << 5)
	instr |= newImmlo << 29
	instr |= newImmhi << 5

	return instr
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
