// Core early init
// https://github.com/FynnHer/craybond-os
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package arm64

// Init brings up the core in the order the boot sequence (§9) requires:
// caches on, MMU root table allocated, vector table installed. The MMU is
// not enabled here; the returned MMU is enabled by the caller once its
// mappings are in place.
//
// The caller is responsible for mapping the kernel's VA range, UART/GICD
// MMIO windows and the shared region via mmu.Map2MB/Map4KB before calling
// mmu.Enable — board init knows those addresses, this package does not.
func Init() *MMU {
	EnableCache()

	mmu := NewMMU()

	InstallVectorTable()

	return mmu
}
