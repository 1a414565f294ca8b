package task

import (
	"reflect"
	"unsafe"
)

// stackFrame is the layout switchContext expects to find on top of a
// stack it is about to switch to: the four callee-saved registers it
// pops, immediately under the return address it RETs into. newTaskStack
// builds exactly this frame for a task that has never been scheduled, so
// its first switchContext call works identically to resuming a task that
// was merely preempted.
type stackFrame struct {
	di, si, bx, bp uintptr
	returnAddr     uintptr
}

// newTaskStack writes a synthetic switchContext frame at the top of
// [stackBase, stackTop) whose return address is taskTrampoline, and
// returns the resulting stack pointer. The saved registers are zero:
// taskTrampoline never reads them, it only uses the current TCB pointer
// the scheduler maintains.
func newTaskStack(stackTop uintptr) uintptr {
	frameAddr := stackTop - unsafe.Sizeof(stackFrame{})
	frame := (*stackFrame)(unsafe.Pointer(frameAddr))
	*frame = stackFrame{returnAddr: taskTrampolineAddr()}
	return frameAddr
}

// taskTrampolineAddr resolves taskTrampoline's code address the same way
// irq.setGate resolves an interrupt stub's address: there is no other way
// to get a bare function pointer onto a hand-built stack frame from pure
// Go without assembly-level symbol references.
func taskTrampolineAddr() uintptr {
	return uintptr(reflect.ValueOf(taskTrampoline).Pointer())
}

// taskTrampoline is the landing site for a task's very first
// switchContext call. It runs on the new task's own stack, with
// scheduler.current already pointing at its TCB (set by the scheduler
// immediately before the switch), invokes the task's entry closure and,
// if the closure ever returns normally, exits the task with code 0.
//
// A task resuming after a preempt or a Yield lands back inside that
// call's own stack frame and runs its deferred lock.Release, but a task
// entering here for the first time has no such pending deferred call
// even though switchTo was reached with lock held. Release it here first,
// the way xv6's forkret releases ptable.lock before calling the first
// user function, or interrupts stay masked for the rest of this task's
// life and every task scheduled after it.
func taskTrampoline() {
	lock.Release()

	t := current
	t.entry()
	Exit(0)
}
