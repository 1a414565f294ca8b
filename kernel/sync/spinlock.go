// Package sync provides the synchronization primitive used to guard the
// kernel's process-wide singletons (PMM bitmaps, MLFQ queues, responder
// stack, PID counter) against concurrent access from task context and the
// timer IRQ.
//
// This kernel targets a single logical CPU (see spec Non-goals: no SMP), so
// the only real contention is between a task and an interrupt handler that
// preempts it. Guarding a critical section is therefore "mask interrupts,
// do the work, restore the previous interrupt state" rather than a classic
// multiprocessor busy-wait. Spinlock keeps the familiar Acquire/Release API
// so call sites read the same as a traditional spinlock, but the underlying
// implementation is interrupt masking plus a reentrancy guard so a second,
// nested Acquire from the same context (e.g. a handler that runs inside an
// already-locked section) does not deadlock against itself.
package sync

import "nanokernel/kernel/cpu"

// Spinlock guards a critical section that may be entered from task context
// or from the timer IRQ.
type Spinlock struct {
	depth       int
	savedEnable bool
}

// Acquire masks interrupts for the duration of the critical section. Nested
// calls (e.g. the tick handler acquiring a lock already held by the task it
// preempted would be a bug, but re-entrant acquisition from the same
// uninterruptible context is safe) are reference counted.
func (l *Spinlock) Acquire() {
	archAcquireSpinlock(l)
}

// TryToAcquire behaves like Acquire but never blocks; on a uniprocessor
// kernel with interrupts as the only source of contention, acquisition
// always succeeds once interrupts are masked.
func (l *Spinlock) TryToAcquire() bool {
	archAcquireSpinlock(l)
	return true
}

// Release restores the interrupt state that was active before the
// outermost Acquire.
func (l *Spinlock) Release() {
	l.depth--
	if l.depth < 0 {
		l.depth = 0
		return
	}
	if l.depth == 0 && l.savedEnable {
		cpuEnableInterruptsHook()
	}
}

// archAcquireSpinlock and cpuEnableInterruptsHook are overridden in tests to
// avoid toggling the real interrupt flag.
var archAcquireSpinlock = func(l *Spinlock) {
	if l.depth == 0 {
		l.savedEnable = true
		cpu.DisableInterrupts()
	}
	l.depth++
}

var cpuEnableInterruptsHook = cpu.EnableInterrupts
