// Cache and TLB maintenance
// https://github.com/FynnHer/craybond-os
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package arm64

// defined in cache_arm64.s
func cache_enable()
func cache_disable()
func flush_tlb()

// EnableCache activates the instruction and data caches.
func EnableCache() {
	cache_enable()
}

// DisableCache disables the instruction and data caches.
func DisableCache() {
	cache_disable()
}

// FlushTLBs invalidates the Translation Lookaside Buffers (tlbi vmalle1is)
// and synchronizes the pipeline, per the maintenance sequence
// RegisterProcMemory runs after mapping a page: dsb ish; tlbi vmalle1is;
// dsb ish; isb; ic iallu; isb.
func FlushTLBs() {
	flush_tlb()
}
