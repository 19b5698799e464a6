// EL1 physical timer (C4)
// https://github.com/FynnHer/craybond-os
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package arm64

const (
	cntpCtlEnable   = 1
	cntkctlPL0PCTEN = 1
)

// TimerIRQ is the EL1 physical timer's interrupt ID (§4.4).
const TimerIRQ = 30

// defined in timer_arm64.s
func read_cntfrq() uint32
func write_cntp_tval(val uint32)
func write_cntp_ctl(val uint32)
func write_cntkctl(val uint32)

// Timer wraps the EL1 physical timer, cached at a fixed millisecond
// interval per §4.4 timer_init/timer_reset.
type Timer struct {
	intervalMs uint32
	freq       uint32
}

// Init caches the timer interval and latches CNTFRQ_EL0.
func (t *Timer) Init(intervalMs uint32) {
	t.intervalMs = intervalMs
	t.freq = read_cntfrq()
}

// Reset computes ticks = freq*intervalMs/1000 and writes it to
// CNTP_TVAL_EL0, rearming the countdown for the next period.
func (t *Timer) Reset() {
	ticks := uint64(t.freq) * uint64(t.intervalMs) / 1000
	write_cntp_tval(uint32(ticks))
}

// Enable starts the countdown and grants EL0 access to the physical
// counter.
func (t *Timer) Enable() {
	write_cntp_ctl(cntpCtlEnable)
	write_cntkctl(cntkctlPL0PCTEN)
}
