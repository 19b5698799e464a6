// PCI capability list walk
// https://github.com/FynnHer/craybond-os
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pci

import (
	"encoding/binary"
)

// Capability IDs (PCI Code and ID Assignment Specification Revision 1.11).
const (
	Null    = 0x00
	MSI     = 0x05
	PCIe    = 0x10
	MSIX    = 0x11
	Vendor  = 0x09 // virtio_pci_cap uses the vendor-specific capability ID
)

// CapabilityHeader represents the common fields of a PCI capability entry:
// cap_vndr (vendor ID) and cap_next (offset of the next entry).
type CapabilityHeader struct {
	Vendor uint8
	Next   uint8
}

// Unmarshal decodes a capability header at the given configuration space
// offset.
func (hdr *CapabilityHeader) Unmarshal(d *Device, off uint32) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, d.Read(off))
	hdr.Vendor = buf[0]
	hdr.Next = buf[1]
}

// Capabilities iterates the device's capability list starting at
// CapabilitiesOffset, per §4.7's "capability walk".
func (d *Device) Capabilities(yield func(off uint32, hdr *CapabilityHeader) bool) {
	off := d.Read(CapabilitiesOffset) & 0xFF

	for off != 0 {
		hdr := &CapabilityHeader{}
		hdr.Unmarshal(d, off)

		if !yield(off, hdr) {
			return
		}

		off = uint32(hdr.Next)
	}
}
