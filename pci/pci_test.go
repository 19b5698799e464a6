// https://github.com/FynnHer/craybond-os
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package pci

import (
	"encoding/binary"
	"testing"
	"unsafe"
)

// fakeConfigSpace backs a Device with a plain Go byte slice standing in for
// a device's 4 KiB ECAM configuration space, so Read/Write/probe/capability
// parsing can run on the host without real MMIO.
func fakeConfigSpace() (*Device, []byte) {
	buf := make([]byte, 4096)
	base := uintptr(unsafe.Pointer(&buf[0]))
	return &Device{Base: uint64(base)}, buf
}

func TestDeviceBase(t *testing.T) {
	got := deviceBase(0x4010000000, 1, 2, 3)
	want := uint64(0x4010000000) | 1<<20 | 2<<15 | 3<<12
	if got != want {
		t.Fatalf("deviceBase() = %#x, want %#x", got, want)
	}
}

func TestProbeVendorMismatch(t *testing.T) {
	d, buf := fakeConfigSpace()
	binary.LittleEndian.PutUint32(buf[VendorID:], 0xFFFFFFFF)

	if d.probe(uint64(d.Base)) {
		t.Fatal("expected probe to reject an all-ones vendor/device ID")
	}
}

func TestProbeMatch(t *testing.T) {
	d, buf := fakeConfigSpace()
	binary.LittleEndian.PutUint32(buf[VendorID:], 0x1050<<16|0x1AF4)

	if !d.probe(uint64(d.Base)) {
		t.Fatal("expected probe to accept a valid vendor/device ID")
	}
	if d.Vendor != 0x1AF4 || d.Device != 0x1050 {
		t.Fatalf("got vendor=%#x device=%#x, want 0x1af4/0x1050", d.Vendor, d.Device)
	}
}

func TestBaseAddress32Bit(t *testing.T) {
	d, buf := fakeConfigSpace()
	binary.LittleEndian.PutUint32(buf[Bar0:], 0xFE000000) // memory, 32-bit, non-prefetch

	if got, want := d.BaseAddress(0), uint64(0xFE000000); got != want {
		t.Fatalf("BaseAddress(0) = %#x, want %#x", got, want)
	}
}

func TestBaseAddress64Bit(t *testing.T) {
	d, buf := fakeConfigSpace()
	binary.LittleEndian.PutUint32(buf[Bar0:], 0x10000004) // type=10 (64-bit)
	binary.LittleEndian.PutUint32(buf[Bar0+4:], 0x00000002)

	got := d.BaseAddress(0)
	want := uint64(0x0000000210000000)
	if got != want {
		t.Fatalf("BaseAddress(0) = %#x, want %#x", got, want)
	}
}

func TestCapabilitiesWalk(t *testing.T) {
	d, buf := fakeConfigSpace()

	// Capability pointer at 0x34 -> first cap at 0x40.
	binary.LittleEndian.PutUint32(buf[CapabilitiesOffset:], 0x40)

	// First capability: vendor 0x09 (virtio), next at 0x50.
	buf[0x40] = Vendor
	buf[0x41] = 0x50

	// Second capability: vendor 0x11 (MSI-X), next 0 (end of list).
	buf[0x50] = MSIX
	buf[0x51] = 0x00

	var got []uint8
	d.Capabilities(func(off uint32, hdr *CapabilityHeader) bool {
		got = append(got, hdr.Vendor)
		return true
	})

	if len(got) != 2 || got[0] != Vendor || got[1] != MSIX {
		t.Fatalf("got capability vendors %v, want [%d %d]", got, Vendor, MSIX)
	}
}

func TestCapabilitiesWalkStopsEarly(t *testing.T) {
	d, buf := fakeConfigSpace()

	binary.LittleEndian.PutUint32(buf[CapabilitiesOffset:], 0x40)
	buf[0x40] = Vendor
	buf[0x41] = 0x50
	buf[0x50] = MSIX
	buf[0x51] = 0x00

	count := 0
	d.Capabilities(func(off uint32, hdr *CapabilityHeader) bool {
		count++
		return false
	})

	if count != 1 {
		t.Fatalf("got %d capabilities visited, want 1 (yield returned false)", count)
	}
}
