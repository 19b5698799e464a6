package dtb

import (
	"encoding/binary"
	"testing"
)

// buildFDT assembles a minimal synthetic DTB containing a single node with
// one property, enough to exercise ScanBytes without a real DTB compiler.
func buildFDT(nodeName, propName string, propVal []byte) []byte {
	var structure []byte

	be32 := func(v uint32) []byte {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, v)
		return b
	}

	pad4 := func(b []byte) []byte {
		for len(b)%4 != 0 {
			b = append(b, 0)
		}
		return b
	}

	strings := []byte(propName + "\x00")

	structure = append(structure, be32(tokenBeginNode)...)
	structure = append(structure, pad4(append([]byte(nodeName), 0))...)

	structure = append(structure, be32(tokenProp)...)
	structure = append(structure, be32(uint32(len(propVal)))...)
	structure = append(structure, be32(0)...) // nameoff into strings block
	structure = append(structure, pad4(propVal)...)

	structure = append(structure, be32(tokenEndNode)...)
	structure = append(structure, be32(tokenEnd)...)

	const hdrSize = 40
	structOff := uint32(hdrSize)
	stringsOff := structOff + uint32(len(structure))

	hdr := make([]byte, hdrSize)
	binary.BigEndian.PutUint32(hdr[offMagic:], FDTMagic)
	binary.BigEndian.PutUint32(hdr[4:], hdrSize+uint32(len(structure))+uint32(len(strings)))
	binary.BigEndian.PutUint32(hdr[offOffDTStruct:], structOff)
	binary.BigEndian.PutUint32(hdr[offOffDTStrings:], stringsOff)

	blob := append(hdr, structure...)
	blob = append(blob, strings...)

	return blob
}

func TestScanBytesMemoryNode(t *testing.T) {
	reg := make([]byte, 16)
	binary.BigEndian.PutUint64(reg[0:], 0x40000000)
	binary.BigEndian.PutUint64(reg[8:], 0x40000000)

	blob := buildFDT("memory", "reg", reg)

	var gotBase, gotSize uint64
	found := ScanBytes(blob, "memory", func(node, prop string, raw []byte, ctx any) bool {
		if prop != "reg" {
			return false
		}
		gotBase = binary.BigEndian.Uint64(raw[0:8])
		gotSize = binary.BigEndian.Uint64(raw[8:16])
		return true
	}, nil)

	if !found {
		t.Fatal("expected scan to find memory node")
	}

	if gotBase != 0x40000000 || gotSize != 0x40000000 {
		t.Fatalf("got base=%#x size=%#x, want 0x40000000/0x40000000", gotBase, gotSize)
	}
}

func TestScanBytesNoMatch(t *testing.T) {
	blob := buildFDT("cpus", "reg", []byte{0, 0, 0, 0})

	found := ScanBytes(blob, "memory", func(node, prop string, raw []byte, ctx any) bool {
		return true
	}, nil)

	if found {
		t.Fatal("expected no match for unrelated node prefix")
	}
}
