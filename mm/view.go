// Physical memory views
// https://github.com/FynnHer/craybond-os
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mm

import "unsafe"

// Bytes materializes a []byte over a physical address without copying,
// exactly as a DMA region's block.read/block.write treat an allocation's
// backing memory: the slice aliases the real memory, so writes through it
// are writes to the device/process-visible location.
func Bytes(addr uintptr, size int) []byte {
	if addr == 0 || size == 0 {
		return nil
	}

	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
}

// CString reads a NUL-terminated string starting at a physical address.
func CString(addr uintptr) string {
	if addr == 0 {
		return ""
	}

	n := 0
	for *(*byte)(unsafe.Pointer(addr + uintptr(n))) != 0 {
		n++
	}

	return string(Bytes(addr, n))
}
