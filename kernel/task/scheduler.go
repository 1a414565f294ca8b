package task

import (
	"nanokernel/kernel"
	"nanokernel/kernel/gdt"
	"nanokernel/kernel/kfmt"
	"nanokernel/kernel/mem"
	"nanokernel/kernel/mem/vmm"
	"nanokernel/kernel/pit"
	"nanokernel/kernel/sync"
)

// stackPages is the size, in 4KiB pages, of every task's kernel stack.
const stackPages = 4

// stackVirtBase is the fixed virtual address every task's stack is mapped
// at in its own page directory. Every task has a distinct directory, so
// reusing the same virtual range across tasks causes no collision.
const stackVirtBase = uintptr(0x00400000)

var (
	cfg     Config
	lock    sync.Spinlock
	rings   []ring
	current *TCB

	kernelRoot *TCB
	tasksByPID map[uint32]*TCB
	nextPID    uint32

	tickCount     uint64
	lastBoostTick uint64

	responders responderStack

	frameAllocator vmm.FrameAllocatorFn

	// the following are package vars so tests can intercept hardware
	// and cross-package side effects without touching real state.
	switchContextFn     = switchContext
	activateFn          = (*vmm.Directory).Activate
	setKernelStackFn    = gdt.SetKernelStack
	setTickHandlerFn    = pit.SetTickHandler
	registerCurrentPID  = vmm.SetCurrentTaskIDFunc
	registerPanicDumper = kernel.SetCurrentTaskDumper
	cloneDirectoryFn    = vmm.CloneDirectory
	kernelDirectoryFn   = vmm.KernelDirectory
	mapPageFn           = (*vmm.Directory).Map
)

// SetFrameAllocator registers the allocator Init, Spawn and Fork use to
// back new page tables, directories and stacks.
func SetFrameAllocator(fn vmm.FrameAllocatorFn) {
	frameAllocator = fn
}

// Init constructs the kernel-root task (PID 0, never schedulable away
// from without an explicit switch, owner of every orphaned child), wires
// the scheduler's tick handler into the PIT, and registers the
// cross-package accessors vmm and kernel use to report which task was
// running during a fault or panic. SetFrameAllocator must be called
// first.
func Init(c Config) *kernel.Error {
	cfg = c
	rings = make([]ring, cfg.Rings)
	tasksByPID = make(map[uint32]*TCB)
	nextPID = 0

	kernelRoot = &TCB{
		PID:   0,
		Name:  "kernel",
		State: Runnable,
		Dir:   kernelDirectoryFn(),
	}
	idleBase, idleTop, err := allocateStack(kernelRoot.Dir)
	if err != nil {
		return err
	}
	kernelRoot.stackBase, kernelRoot.stackTop = idleBase, idleTop

	tasksByPID[0] = kernelRoot
	nextPID = 1
	current = kernelRoot

	setTickHandlerFn(tick)
	registerCurrentPID(func() (uint32, string) { return current.PID, current.Name })
	registerPanicDumper(func() {
		kfmt.Printf("running task: pid %d (%s) state %s\n", current.PID, current.Name, current.State)
	})

	return nil
}

// CurrentTask returns the TCB of the task presently executing.
func CurrentTask() *TCB {
	return current
}

// addProcess inserts t into ring 0, the entry point for every new or
// freshly-woken task.
func addProcess(t *TCB) {
	t.Ring = 0
	t.State = Runnable
	rings[0].pushBack(t)
}

// enqueueAtRing inserts t into whichever ring t.Ring already names,
// preserving the priority a preempted (but not newly-created or woken)
// task already holds.
func enqueueAtRing(t *TCB) {
	t.State = Runnable
	rings[t.Ring].pushBack(t)
}

// pickNext scans the rings in ascending index order and returns the first
// schedulable task found, or nil if every ring is empty.
func pickNext() *TCB {
	for i := range rings {
		if t := rings[i].pickNext(); t != nil {
			return t
		}
	}
	return nil
}

// tick is the PIT's timer-interrupt handler: it advances the tick
// counter, reaps wake conditions, accounts CPU time to the running task
// and performs a preemptive context switch once the task has exhausted
// its quantum. All MLFQ/responder state is guarded against the
// interrupt's own re-entrancy by lock, matching spec's "all such accesses
// mask interrupts" requirement.
func tick() {
	lock.Acquire()
	defer lock.Release()

	tickCount++
	current.AccumulatedLifespan++

	updateBlockedTasksLocked()

	if tickCount-lastBoostTick >= cfg.BoostIntervalTicks {
		boostLocked()
		lastBoostTick = tickCount
	}

	if current.State == Runnable && tickCount-current.lastScheduledTick >= cfg.Quantum(current.Ring) {
		preemptLocked()
	}
}

// preemptLocked demotes the running task by one ring (capped at the
// lowest-priority ring), requeues it, and switches to whatever pick-next
// selects. lock must already be held; it is released across the switch
// exactly as it was on entry, since the task resuming on the other side
// of switchContextFn re-acquires nothing (it is the same critical
// section, just resumed on a different stack).
func preemptLocked() {
	outgoing := current
	rings[outgoing.Ring].remove(outgoing)
	if outgoing.Ring < uint8(len(rings)-1) {
		outgoing.Ring++
	}
	enqueueAtRing(outgoing)

	switchTo(pickNext())
}

// boostLocked restores every RUNNABLE task (including the one currently
// running) to ring 0, preventing starvation of a task that has been
// repeatedly demoted.
func boostLocked() {
	for i := 1; i < len(rings); i++ {
		for {
			t := rings[i].pickNext()
			if t == nil {
				break
			}
			rings[i].remove(t)
			t.Ring = 0
			rings[0].pushBack(t)
		}
	}
	current.Ring = 0
}

// Yield voluntarily relinquishes the CPU before the current task's
// quantum expires, without demotion: it stays in its current ring, per
// spec's "voluntarily yields ... stays in its current queue".
func Yield() {
	lock.Acquire()
	defer lock.Release()

	outgoing := current
	outgoing.LastRelinquishTick = tickCount
	if outgoing.State == Runnable {
		enqueueAtRing(outgoing)
	}
	switchTo(pickNext())
}

// switchTo performs the actual context switch to next, falling back to
// the kernel-root task if next is nil (every ring is empty; nothing else
// is schedulable right now). Idle time is accounted to the kernel-root
// task, not left unaccounted for.
func switchTo(next *TCB) {
	if next == nil {
		next = kernelRoot
	}
	if next == current {
		current.lastScheduledTick = tickCount
		return
	}

	outgoing := current
	current = next
	current.lastScheduledTick = tickCount

	if outgoing.Dir != next.Dir {
		activateFn(next.Dir)
	}
	setKernelStackFn(next.stackTop)

	switchContextFn(&outgoing.SavedESP, next.SavedESP)
}

// allocateStack maps stackPages pages at stackVirtBase in dir and returns
// the resulting [base, top) range.
func allocateStack(dir *vmm.Directory) (base, top uintptr, err *kernel.Error) {
	base = stackVirtBase
	for i := 0; i < stackPages; i++ {
		frame, allocErr := frameAllocator()
		if allocErr != nil {
			return 0, 0, allocErr
		}
		page := vmm.PageFromAddress(base + uintptr(i)*uintptr(mem.PageSize))
		if mapErr := mapPageFn(dir, page, frame, vmm.FlagRW, frameAllocator); mapErr != nil {
			return 0, 0, mapErr
		}
	}
	top = base + uintptr(stackPages)*uintptr(mem.PageSize)
	return base, top, nil
}
