// IRQ masking (C4)
// https://github.com/FynnHer/craybond-os
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package arm64

// defined in irq_arm64.s
func irq_enable()
func irq_disable()
func wfi()

// EnableInterrupts unmasks IRQ interrupts (msr daifclr, #2; isb).
func EnableInterrupts() {
	irq_enable()
}

// DisableInterrupts masks IRQ interrupts (msr daifset, #2; isb).
func DisableInterrupts() {
	irq_disable()
}

// WaitForInterrupt suspends the core until an interrupt arrives.
func WaitForInterrupt() {
	wfi()
}
