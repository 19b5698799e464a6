// VirtIO split virtqueue (C10)
// https://github.com/FynnHer/craybond-os
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package virtio implements the single-queue, two-descriptor command
// engine this kernel's virtio-gpu-pci driver runs its command/response
// protocol over, adapted from a general-purpose multi-descriptor
// virtqueue of the same lineage down to the ring layout this spec
// actually exercises.
package virtio

import (
	"craybond/internal/reg"
	"craybond/mm"
)

// Descriptor flags.
const (
	FlagNext  = 1
	FlagWrite = 2
)

const ringSize = 128

// Queue is a split virtqueue with exactly 2 descriptors (command, response)
// and a 128-entry avail/used ring, per §4.7's command engine. Each of the
// three areas (descriptor table, avail ring, used ring) gets its own 4 KiB
// page, matching §4.7 device bring-up's "descriptor/avail/used rings
// allocated (4 KiB each)".
type Queue struct {
	Desc   uintptr
	Avail  uintptr
	Device uintptr

	NotifyBase uintptr
	NotifyMult uint32

	lastUsed uint16
}

const (
	descSize  = 16 // {addr u64, len u32, flags u16, next u16}
	availHdr  = 4  // {flags u16, idx u16}
	usedHdr   = 4
	usedElem  = 8 // {id u32, len u32}
)

// New allocates the three 4 KiB regions backing a fresh queue.
func New() *Queue {
	return &Queue{
		Desc:   mm.PAlloc(mm.PageSize),
		Avail:  mm.PAlloc(mm.PageSize),
		Device: mm.PAlloc(mm.PageSize),
	}
}

func (q *Queue) writeDesc(i int, addr uint64, length uint32, flags uint16, next uint16) {
	base := q.Desc + uintptr(i*descSize)
	reg.Write64(base, addr)
	reg.Write32(base+8, length)
	reg.Write16(base+12, flags)
	reg.Write16(base+14, next)
}

func (q *Queue) availIdx() uint16 {
	return uint16(reg.Read16(q.Avail + 2))
}

func (q *Queue) setAvailRing(slot uint16, descIndex uint16) {
	reg.Write16(q.Avail+uintptr(availHdr+int(slot)*2), descIndex)
}

func (q *Queue) bumpAvailIdx() {
	reg.Write16(q.Avail+2, q.availIdx()+1)
}

func (q *Queue) usedIdx() uint16 {
	return uint16(reg.Read16(q.Device + 2))
}

// SendCommand implements §4.7's synchronous command engine: a 2-descriptor
// chain (command buffer, response buffer), one avail ring publish, one
// 16-bit notify write, then a spin-wait on the used ring advancing.
func (q *Queue) SendCommand(cmdBuf uintptr, cmdLen uint32, respBuf uintptr, respLen uint32) {
	q.writeDesc(0, uint64(cmdBuf), cmdLen, FlagNext, 1)
	q.writeDesc(1, uint64(respBuf), respLen, FlagWrite, 0)

	slot := q.availIdx() % ringSize
	q.setAvailRing(slot, 0)
	q.bumpAvailIdx()

	reg.Write16(q.NotifyBase+uintptr(q.NotifyMult)*0, 0)

	for q.usedIdx() == q.lastUsed {
	}

	q.lastUsed++
}
