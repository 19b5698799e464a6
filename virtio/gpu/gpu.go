// virtio-gpu-pci driver (C10)
// https://github.com/FynnHer/craybond-os
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package gpu implements the virtio-gpu-pci command/response protocol:
// display discovery, a single 2D resource backing the framebuffer, and the
// transfer/flush cycle that pushes pixel data to the host, per §4.7.
package gpu

import (
	"encoding/binary"

	"craybond/internal/reg"
	"craybond/mm"
	"craybond/pci"
	"craybond/virtio"
)

// virtio-gpu PCI vendor/device ID (QEMU's virtio-gpu-pci).
const (
	VendorID = 0x1AF4
	DeviceID = 0x1050
)

// Command types.
const (
	cmdGetDisplayInfo       = 0x0100
	cmdResourceCreate2D     = 0x0101
	cmdSetScanout           = 0x0102
	cmdResourceFlush        = 0x0103
	cmdTransferToHost2D     = 0x0104
	cmdResourceAttachBacking = 0x0106
)

const respOKNoData = 0x1100

const formatB8G8R8A8 = 1

const maxScanouts = 16

// GPU drives a single virtio-gpu-pci device's resource 1, the only
// resource this kernel ever creates.
type GPU struct {
	dev   *virtio.Device
	queue *virtio.Queue

	Width, Height uint32

	fbAddr      uintptr
	cmdBuf      uintptr
	rspBuf      uintptr
	dispRespBuf uintptr
}

const cmdBufSize = 256

// dispRespSize is the worst-case GET_DISPLAY_INFO response: a 24-byte
// control header followed by maxScanouts pmodes of 24 bytes each
// ({x,y,w,h}=16, enabled=4, flags=4). The fixed-size cmdBufSize response
// buffer used for every other command is far too small for this one.
const dispRespSize = ctrlHdrSize + maxScanouts*24

// Init probes the PCI device, walks its virtio capabilities, brings the
// device up, then runs GET_DISPLAY_INFO, RESOURCE_CREATE_2D and
// RESOURCE_ATTACH_BACKING in order, skipping SET_SCANOUT if no scanout
// reports enabled, per §4.7 vgp_init.
func Init(ecamBase uint64, barCfgBase uint32, fbAddr uintptr, fbSize int) (*GPU, bool) {
	d := pci.Probe(ecamBase, VendorID, DeviceID)
	if d == nil {
		return nil, false
	}

	vd, ok := virtio.Probe(d, barCfgBase)
	if !ok {
		return nil, false
	}

	q := virtio.New()
	if !vd.BringUp(q) {
		return nil, false
	}

	g := &GPU{
		dev:         vd,
		queue:       q,
		fbAddr:      fbAddr,
		cmdBuf:      mm.PAlloc(cmdBufSize),
		rspBuf:      mm.PAlloc(cmdBufSize),
		dispRespBuf: mm.PAlloc(dispRespSize),
	}

	scanoutID, width, height, enabled := g.getDisplayInfo()
	if width == 0 || height == 0 {
		width, height = 1024, 768
	}

	g.Width, g.Height = width, height

	if !g.resourceCreate2D(1, width, height) {
		return nil, false
	}

	if !g.resourceAttachBacking(1, fbAddr, uint32(fbSize)) {
		return nil, false
	}

	if enabled {
		g.setScanout(scanoutID, width, height)
	}

	return g, true
}

// send posts req and waits for the device's reply, which lands in respBuf —
// the caller must size respBuf (and pass the matching respLen) for the
// largest response the command type can produce.
func (g *GPU) send(cmdType uint32, req []byte, respBuf uintptr, respLen uint32) []byte {
	binary.LittleEndian.PutUint32(req[0:], cmdType)

	cmdBytes := mm.Bytes(g.cmdBuf, len(req))
	copy(cmdBytes, req)

	g.queue.SendCommand(g.cmdBuf, uint32(len(req)), respBuf, respLen)

	return mm.Bytes(respBuf, int(respLen))
}

// ctrlHdr is the 24-byte virtio-gpu control header every request/response
// begins with: {type, flags, fence_id, ctx_id, ring_idx, padding}.
const ctrlHdrSize = 24

func newHdr(size int) []byte {
	return make([]byte, ctrlHdrSize+size)
}

// getDisplayInfo runs GET_DISPLAY_INFO and returns the first enabled
// scanout's id/width/height, or ok=false if none are enabled.
func (g *GPU) getDisplayInfo() (scanoutID, width, height uint32, ok bool) {
	req := newHdr(0)
	resp := g.send(cmdGetDisplayInfo, req, g.dispRespBuf, dispRespSize)

	for i := 0; i < maxScanouts; i++ {
		off := ctrlHdrSize + i*24 // pmod{x,y,w,h}=16, enabled=4, flags=4
		w := binary.LittleEndian.Uint32(resp[off+8:])
		h := binary.LittleEndian.Uint32(resp[off+12:])
		en := binary.LittleEndian.Uint32(resp[off+16:])

		if en != 0 {
			return uint32(i), w, h, true
		}
	}

	return 0, 0, 0, false
}

func (g *GPU) resourceCreate2D(id, width, height uint32) bool {
	req := newHdr(16)
	binary.LittleEndian.PutUint32(req[ctrlHdrSize:], id)
	binary.LittleEndian.PutUint32(req[ctrlHdrSize+4:], formatB8G8R8A8)
	binary.LittleEndian.PutUint32(req[ctrlHdrSize+8:], width)
	binary.LittleEndian.PutUint32(req[ctrlHdrSize+12:], height)

	resp := g.send(cmdResourceCreate2D, req, g.rspBuf, cmdBufSize)

	return binary.LittleEndian.Uint32(resp[0:]) == respOKNoData
}

func (g *GPU) resourceAttachBacking(id uint32, addr uintptr, length uint32) bool {
	req := newHdr(8 + 16)
	binary.LittleEndian.PutUint32(req[ctrlHdrSize:], id)
	binary.LittleEndian.PutUint32(req[ctrlHdrSize+4:], 1) // nr_entries
	binary.LittleEndian.PutUint64(req[ctrlHdrSize+8:], uint64(addr))
	binary.LittleEndian.PutUint32(req[ctrlHdrSize+16:], length)

	resp := g.send(cmdResourceAttachBacking, req, g.rspBuf, cmdBufSize)

	return binary.LittleEndian.Uint32(resp[0:]) == respOKNoData
}

func (g *GPU) setScanout(scanoutID, width, height uint32) bool {
	req := newHdr(16 + 8)
	// rect(0,0,w,h)
	binary.LittleEndian.PutUint32(req[ctrlHdrSize+8:], width)
	binary.LittleEndian.PutUint32(req[ctrlHdrSize+12:], height)
	binary.LittleEndian.PutUint32(req[ctrlHdrSize+16:], scanoutID)
	binary.LittleEndian.PutUint32(req[ctrlHdrSize+20:], 1) // resource_id

	resp := g.send(cmdSetScanout, req, g.rspBuf, cmdBufSize)

	return binary.LittleEndian.Uint32(resp[0:]) == respOKNoData
}

func (g *GPU) transferToHost2D() bool {
	// rect(0,0,w,h)=16, offset=8, resource_id=4, padding=4.
	req := newHdr(32)
	binary.LittleEndian.PutUint32(req[ctrlHdrSize+8:], g.Width)
	binary.LittleEndian.PutUint32(req[ctrlHdrSize+12:], g.Height)
	binary.LittleEndian.PutUint64(req[ctrlHdrSize+16:], 0) // offset
	binary.LittleEndian.PutUint32(req[ctrlHdrSize+24:], 1) // resource_id

	resp := g.send(cmdTransferToHost2D, req, g.rspBuf, cmdBufSize)

	return binary.LittleEndian.Uint32(resp[0:]) == respOKNoData
}

func (g *GPU) resourceFlush() bool {
	req := newHdr(16 + 4)
	binary.LittleEndian.PutUint32(req[ctrlHdrSize+8:], g.Width)
	binary.LittleEndian.PutUint32(req[ctrlHdrSize+12:], g.Height)
	binary.LittleEndian.PutUint32(req[ctrlHdrSize+16:], 1) // resource_id

	resp := g.send(cmdResourceFlush, req, g.rspBuf, cmdBufSize)

	return binary.LittleEndian.Uint32(resp[0:]) == respOKNoData
}

// Flush runs TRANSFER_TO_HOST_2D followed by RESOURCE_FLUSH, per §4.7
// vgp_flush.
func (g *GPU) Flush() bool {
	return g.transferToHost2D() && g.resourceFlush()
}

// Clear writes color into every framebuffer pixel then flushes, per §4.7
// vgp_clear.
func (g *GPU) Clear(color uint32) {
	for i := uint32(0); i < g.Width*g.Height; i++ {
		reg.Write32(g.fbAddr+uintptr(i*4), color)
	}

	g.Flush()
}
