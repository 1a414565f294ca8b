package task

import "nanokernel/kernel"

var errNotParent = &kernel.Error{Module: "task", Message: "pid is not a child of the calling task"}

// Spawn creates a new task running entry on its own stack and address
// space (a kernel-half link-clone of the active kernel directory, empty
// user half) and inserts it into ring 0. This is create_process followed
// by add_process for a task with no parent-supplied state to inherit; use
// Fork to derive a task from the currently running one.
func Spawn(name string, entry func()) (*TCB, *kernel.Error) {
	dir, err := cloneDirectoryFn(kernelDirectoryFn(), frameAllocator)
	if err != nil {
		return nil, err
	}

	base, top, err := allocateStack(dir)
	if err != nil {
		return nil, err
	}

	lock.Acquire()
	defer lock.Release()

	t := &TCB{
		PID:         nextPID,
		Name:        name,
		Dir:         dir,
		stackBase:   base,
		stackTop:    top,
		SavedESP:    newTaskStack(top),
		entry:       entry,
		CreatedTick: tickCount,
	}
	nextPID++
	tasksByPID[t.PID] = t

	addProcess(t)
	return t, nil
}

// Fork derives a new task from the currently running one: its address
// space is a copy-on-write snapshot of the parent's (spec §4.3's "clone
// the page directory", made lazy per the copy-on-write resolution in
// DESIGN.md), it is linked into the parent's Children, and it starts in
// ring 0.
//
// A real fork() resumes the child at the parent's own call site, with the
// child observing a 0 return and the parent observing the child's PID.
// This kernel's tasks are not raw machine threads with freely
// relocatable/duplicable native stacks — they are Go execution contexts
// switched by swapping a designated stack region underneath a live Go
// runtime, and Go's own stack-management machinery does not support
// forking a live call stack into a second one that resumes mid-function.
// Fork here instead takes the continuation the child should run as an
// explicit parameter: calling childBody is this kernel's equivalent of
// "the child observes fork returning 0". Every other fork invariant
// (address-space clone, queue placement, parent/child linkage, PID
// allocation) is implemented exactly as spec.md describes.
func Fork(childBody func()) (uint32, *kernel.Error) {
	parent := current

	dir, err := cloneDirectoryFn(parent.Dir, frameAllocator)
	if err != nil {
		return 0, err
	}

	base, top, err := allocateStack(dir)
	if err != nil {
		return 0, err
	}

	lock.Acquire()
	defer lock.Release()

	child := &TCB{
		PID:         nextPID,
		Name:        parent.Name,
		Dir:         dir,
		stackBase:   base,
		stackTop:    top,
		SavedESP:    newTaskStack(top),
		entry:       childBody,
		CreatedTick: tickCount,
		Parent:      parent,
	}
	nextPID++
	tasksByPID[child.PID] = child
	parent.Children = append(parent.Children, child)

	addProcess(child)
	return child.PID, nil
}

// Exit implements exit/kill for t: marks it Zombie, records its exit
// code, removes it from its MLFQ ring and the responder stack, reparents
// its children to the kernel-root task and wakes its parent if the parent
// is waiting on it. If t is the currently running task, exit causes an
// immediate context switch and does not return.
func Exit(code int32) {
	lock.Acquire()

	t := current
	exitLocked(t, code)

	lock.Release()

	switchTo(pickNext())
}

// Kill marks another task Zombie without switching away from the caller.
// Returns false if pid names no task or a task that has already exited.
func Kill(pid uint32, code int32) bool {
	lock.Acquire()
	defer lock.Release()

	t, ok := tasksByPID[pid]
	if !ok || t.State == Zombie {
		return false
	}
	exitLocked(t, code)
	return true
}

// exitLocked performs the state transition shared by Exit and Kill. lock
// must already be held.
func exitLocked(t *TCB, code int32) {
	t.State = Zombie
	t.ExitCode = code
	t.EndTick = tickCount

	rings[t.Ring].remove(t)
	responders.removeAll(t)

	for _, c := range t.Children {
		c.Parent = kernelRoot
		kernelRoot.Children = append(kernelRoot.Children, c)
	}
	t.Children = nil

	if p := t.Parent; p != nil && p.State == ChildWait {
		wakeLocked(p)
	}
}

// Wait blocks the calling task until any child becomes a Zombie, then
// reaps and returns it. Returns false if the calling task has no
// children at all.
func Wait() (pid uint32, exitCode int32, ok bool) {
	for {
		lock.Acquire()
		t := current
		if len(t.Children) == 0 {
			lock.Release()
			return 0, 0, false
		}
		for _, c := range t.Children {
			if c.State == Zombie {
				reapLocked(t, c)
				lock.Release()
				return c.PID, c.ExitCode, true
			}
		}
		blockLocked(t, ChildWait, nil)
		lock.Release()
	}
}

// Waitpid blocks the calling task until the specific child pid becomes a
// Zombie, then reaps and returns its exit code. Returns an error if pid
// does not name one of the calling task's children.
func Waitpid(pid uint32) (exitCode int32, kerr *kernel.Error) {
	for {
		lock.Acquire()
		t := current
		child, isChild := findChild(t, pid)
		if !isChild {
			lock.Release()
			return 0, errNotParent
		}
		if child.State == Zombie {
			reapLocked(t, child)
			lock.Release()
			return child.ExitCode, nil
		}
		blockLocked(t, ChildWait, nil)
		lock.Release()
	}
}

func findChild(parent *TCB, pid uint32) (*TCB, bool) {
	for _, c := range parent.Children {
		if c.PID == pid {
			return c, true
		}
	}
	return nil, false
}

// reapLocked removes the Zombie child c from t's Children list and the
// PID table, destroying its TCB. lock must already be held.
func reapLocked(t *TCB, c *TCB) {
	for i, ch := range t.Children {
		if ch == c {
			t.Children = append(t.Children[:i], t.Children[i+1:]...)
			break
		}
	}
	delete(tasksByPID, c.PID)
}

// BlockTask sets the calling task's state to reason and removes it from
// its MLFQ ring, then switches away. If reason is PITWait, t.WakeTick
// must already be set. blockCtx is stashed on the TCB uninterpreted; the
// caller that eventually wakes the task is the only code that reads it
// back.
func BlockTask(reason State, blockCtx interface{}) {
	lock.Acquire()
	blockLocked(current, reason, blockCtx)
	next := pickNext()
	lock.Release()

	switchTo(next)
}

func blockLocked(t *TCB, reason State, blockCtx interface{}) {
	t.State = reason
	t.BlockCtx = blockCtx
	rings[t.Ring].remove(t)
}

// wakeLocked re-admits a blocked task to ring 0. lock must already be
// held.
func wakeLocked(t *TCB) {
	t.BlockCtx = nil
	addProcess(t)
}

// updateBlockedTasksLocked scans every task for an expired or satisfied
// block condition and wakes it. Called once per tick; lock must already
// be held. A linear scan over the PID table is the spec-sanctioned
// approach here (spec describes "lazily reaped" tombstones and a single
// global sweep, not a separate per-reason wait queue).
func updateBlockedTasksLocked() {
	for _, t := range tasksByPID {
		if t.State == PITWait && tickCount >= t.WakeTick {
			wakeLocked(t)
		}
	}
}

// WakeFirstResponder wakes the task at the top of the responder stack if
// it is blocked on the given input reason (KBWait or MouseWait); a no-op
// if the stack is empty or the top task is not waiting on that reason.
// The keyboard/mouse drivers are this function's only caller (spec §1:
// drivers are sources of wake events, nothing more).
func WakeFirstResponder(reason State) {
	lock.Acquire()
	defer lock.Release()

	t := responders.top()
	if t == nil || t.State != reason {
		return
	}
	wakeLocked(t)
}

// BecomeFirstResponder pushes the calling task onto the responder stack.
func BecomeFirstResponder() {
	lock.Acquire()
	defer lock.Release()
	responders.becomeFirstResponder(current)
}

// ResignFirstResponder pops the calling task off the responder stack if
// it is currently on top; a silent no-op otherwise.
func ResignFirstResponder() {
	lock.Acquire()
	defer lock.Release()
	responders.resignFirstResponder(current)
}

// Sleep blocks the calling task until at least durationTicks ticks have
// elapsed.
func Sleep(durationTicks uint64) {
	lock.Acquire()
	current.WakeTick = tickCount + durationTicks
	blockLocked(current, PITWait, nil)
	next := pickNext()
	lock.Release()

	switchTo(next)
}

// TaskByPID looks up a task by PID, for callers (panic dumps, diagnostic
// commands) that need to inspect a task without going through the
// parent/child graph. Returns nil if pid names no live or zombie task.
func TaskByPID(pid uint32) *TCB {
	lock.Acquire()
	defer lock.Release()
	return tasksByPID[pid]
}
