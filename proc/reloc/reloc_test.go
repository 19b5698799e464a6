package reloc

import "testing"

func TestRewriteBranchExternalTarget(t *testing.T) {
	// BL with imm26 encoding a target 16 bytes ahead of pc=0x1000, outside
	// the 8-byte copied blob [0x1000, 0x1008) -> external, must be rewritten.
	const pc = 0x1000
	const target = 0x1010
	const src = 0x1000
	const blobSize = 8

	imm26 := uint32((int64(target-pc) / 4) & 0x03FFFFFF)
	instr := uint32(0b100101)<<26 | imm26

	if !isBranch(instr) {
		t.Fatal("expected BL to be classified as branch")
	}

	const newPC = 0x9000
	out := rewriteBranch(instr, pc, newPC, src, blobSize)

	gotImm := int64(out & 0x03FFFFFF)
	// sign extend 26 bits
	gotImm = (gotImm << 38) >> 38
	gotOffset := gotImm * 4

	if newPC+uintptr(gotOffset) != target {
		t.Fatalf("relocated branch resolves to %#x, want %#x", newPC+uintptr(gotOffset), target)
	}
}

func TestRewriteBranchInternalTargetUnchanged(t *testing.T) {
	const pc = 0x1000
	const target = 0x1008 // +8, inside the copied blob [0x1000, 0x2000)
	const src = 0x1000
	const blobSize = 0x1000

	imm26 := uint32((int64(target-pc) / 4) & 0x03FFFFFF)
	instr := uint32(0b000101)<<26 | imm26

	const newPC = 0x2000
	out := rewriteBranch(instr, pc, newPC, src, blobSize)

	gotImm := int64(out & 0x03FFFFFF)
	gotImm = (gotImm << 38) >> 38

	if gotImm != 2 { // +8 bytes == +2 words, identical relative offset
		t.Fatalf("got imm26=%d, want 2 (offset preserved for internal target)", gotImm)
	}
}

func TestIsADRP(t *testing.T) {
	// ADRP x0, #0 encodes as 0x90000000 with immhi/immlo == 0.
	instr := uint32(0x90000000)

	if !isADRP(instr) {
		t.Fatal("expected instr to be classified as ADRP")
	}

	if isBranch(instr) || isBCond(instr) {
		t.Fatal("ADRP must not also match branch/B.cond classification")
	}
}

func TestRewriteADRPInsideDataRegion(t *testing.T) {
	const pc = 0x1000
	const srcData = 0x2000
	const dataSize = 0x1000
	const target = 0x2000 // page-aligned, inside [srcData, srcData+dataSize)

	offset := int64(target) - int64(pc)&^0xFFF
	imm21 := uint32((offset >> 12) & 0x1FFFFF)
	instr := uint32(0x90000000) | (imm21&0x3)<<29 | (imm21>>2)<<5

	const newPC = 0x8000
	const dstData = 0x9000

	out := rewriteADRP(instr, pc, newPC, srcData, dstData, dataSize)

	immlo := (out >> 29) & 0x3
	immhi := (out >> 5) & 0x7FFFF
	gotImm21 := int64((immhi << 2) | immlo)
	gotImm21 = (gotImm21 << 43) >> 43 // sign extend 21 bits

	gotPageBase := int64(newPC)&^0xFFF + gotImm21<<12
	wantPageBase := int64(dstData) // target - srcData == 0, so dstData + 0

	if gotPageBase != wantPageBase {
		t.Fatalf("relocated ADRP resolves to page %#x, want %#x", gotPageBase, wantPageBase)
	}
}

func TestRewriteADRPOutsideDataRegionUnchanged(t *testing.T) {
	const pc = 0x1000
	const srcData = 0x5000
	const dataSize = 0x1000

	instr := uint32(0x90000000) // ADRP x0, #0 -> targets pc's own page, not srcData

	out := rewriteADRP(instr, pc, pc, srcData, 0x6000, dataSize)

	if out != instr {
		t.Fatalf("expected out-of-region ADRP to be left unchanged, got %#x want %#x", out, instr)
	}
}
