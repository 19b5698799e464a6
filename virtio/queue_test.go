// https://github.com/FynnHer/craybond-os
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package virtio

import (
	"encoding/binary"
	"testing"
	"unsafe"
)

// fakeQueue backs a Queue with plain Go byte slices standing in for the
// three 4 KiB physical pages New() would otherwise allocate via mm.PAlloc,
// so the ring encoding can be exercised on the host.
func fakeQueue() (*Queue, []byte, []byte, []byte) {
	descBuf := make([]byte, 4096)
	availBuf := make([]byte, 4096)
	deviceBuf := make([]byte, 4096)

	q := &Queue{
		Desc:   uintptr(unsafe.Pointer(&descBuf[0])),
		Avail:  uintptr(unsafe.Pointer(&availBuf[0])),
		Device: uintptr(unsafe.Pointer(&deviceBuf[0])),
	}

	return q, descBuf, availBuf, deviceBuf
}

func TestWriteDesc(t *testing.T) {
	q, descBuf, _, _ := fakeQueue()

	q.writeDesc(1, 0x1000, 64, FlagWrite, 0)

	got := descBuf[descSize : descSize*2]
	if addr := binary.LittleEndian.Uint64(got[0:]); addr != 0x1000 {
		t.Fatalf("desc addr = %#x, want 0x1000", addr)
	}
	if length := binary.LittleEndian.Uint32(got[8:]); length != 64 {
		t.Fatalf("desc len = %d, want 64", length)
	}
	if flags := binary.LittleEndian.Uint16(got[12:]); flags != FlagWrite {
		t.Fatalf("desc flags = %#x, want %#x", flags, FlagWrite)
	}
}

func TestAvailIdxRoundTrip(t *testing.T) {
	q, _, _, _ := fakeQueue()

	if q.availIdx() != 0 {
		t.Fatalf("initial availIdx = %d, want 0", q.availIdx())
	}

	q.setAvailRing(0, 5)
	q.bumpAvailIdx()

	if q.availIdx() != 1 {
		t.Fatalf("availIdx after bump = %d, want 1", q.availIdx())
	}
}

func TestUsedIdxReadsDeviceRing(t *testing.T) {
	q, _, _, deviceBuf := fakeQueue()

	binary.LittleEndian.PutUint16(deviceBuf[2:], 7)

	if got := q.usedIdx(); got != 7 {
		t.Fatalf("usedIdx() = %d, want 7", got)
	}
}
