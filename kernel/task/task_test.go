package task

import "testing"

func TestSpawnInsertsIntoRingZero(t *testing.T) {
	testInit(t, DefaultConfig)

	child, err := Spawn("worker", func() {})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	if child.State != Runnable || child.Ring != 0 {
		t.Fatalf("expected a freshly spawned task to be RUNNABLE in ring 0; got state=%s ring=%d", child.State, child.Ring)
	}
	if !child.enqueued {
		t.Fatal("expected the spawned task to be enqueued")
	}
	if got := TaskByPID(child.PID); got != child {
		t.Fatal("expected TaskByPID to find the spawned task")
	}
}

func TestForkLinksParentAndChild(t *testing.T) {
	testInit(t, DefaultConfig)

	parent, _ := Spawn("parent", func() {})
	switchTo(parent)

	childPID, err := Fork(func() {})
	if err != nil {
		t.Fatalf("Fork failed: %v", err)
	}

	child := TaskByPID(childPID)
	if child == nil {
		t.Fatal("expected the forked child to be registered")
	}
	if child.Parent != parent {
		t.Fatal("expected the child's Parent to be the forking task")
	}
	if len(parent.Children) != 1 || parent.Children[0] != child {
		t.Fatalf("expected the child to appear in the parent's Children; got %v", parent.Children)
	}
	if child.Ring != 0 || !child.enqueued {
		t.Fatal("expected the forked child to start in ring 0, enqueued")
	}
}

func TestExitMarksZombieAndWakesWaitingParent(t *testing.T) {
	testInit(t, DefaultConfig)

	parent, _ := Spawn("parent", func() {})
	switchTo(parent)
	childPID, _ := Fork(func() {})
	child := TaskByPID(childPID)

	lock.Acquire()
	blockLocked(parent, ChildWait, nil)
	lock.Release()

	switchTo(child)
	Exit(7)

	if child.State != Zombie || child.ExitCode != 7 {
		t.Fatalf("expected the exiting task to become a zombie with exit code 7; got state=%s code=%d", child.State, child.ExitCode)
	}
	if child.enqueued {
		t.Fatal("expected the zombie task to be removed from its ring")
	}
	if parent.State != Runnable {
		t.Fatalf("expected exit to wake the waiting parent; parent state=%s", parent.State)
	}
}

func TestExitReparentsChildrenToKernelRoot(t *testing.T) {
	testInit(t, DefaultConfig)

	grandparent, _ := Spawn("gp", func() {})
	switchTo(grandparent)
	parentPID, _ := Fork(func() {})
	parent := TaskByPID(parentPID)

	switchTo(parent)
	childPID, _ := Fork(func() {})
	child := TaskByPID(childPID)

	lock.Acquire()
	exitLocked(parent, 0)
	lock.Release()

	if child.Parent != kernelRoot {
		t.Fatalf("expected the orphaned child to be reparented to kernel-root; got %v", child.Parent)
	}
	found := false
	for _, c := range kernelRoot.Children {
		if c == child {
			found = true
		}
	}
	if !found {
		t.Fatal("expected kernel-root's Children to include the orphan")
	}
}

func TestKillReturnsFalseForUnknownOrZombiePID(t *testing.T) {
	testInit(t, DefaultConfig)

	if Kill(999, 0) {
		t.Fatal("expected Kill to fail for an unknown pid")
	}

	a, _ := Spawn("a", func() {})
	if !Kill(a.PID, 1) {
		t.Fatal("expected the first Kill of a live task to succeed")
	}
	if Kill(a.PID, 1) {
		t.Fatal("expected a second Kill of an already-zombie task to fail")
	}
}

func TestWaitpidRejectsNonChildPID(t *testing.T) {
	testInit(t, DefaultConfig)

	parent, _ := Spawn("parent", func() {})
	switchTo(parent)

	stranger, _ := Spawn("stranger", func() {})

	_, err := Waitpid(stranger.PID)
	if err == nil {
		t.Fatal("expected Waitpid to reject a pid that is not the caller's child")
	}
}

func TestWaitpidReapsAnAlreadyExitedChild(t *testing.T) {
	testInit(t, DefaultConfig)

	parent, _ := Spawn("parent", func() {})
	switchTo(parent)
	childPID, _ := Fork(func() {})

	lock.Acquire()
	exitLocked(TaskByPID(childPID), 42)
	lock.Release()

	code, err := Waitpid(childPID)
	if err != nil {
		t.Fatalf("Waitpid failed: %v", err)
	}
	if code != 42 {
		t.Fatalf("expected exit code 42; got %d", code)
	}
	if len(parent.Children) != 0 {
		t.Fatal("expected the reaped child to be removed from Children")
	}
	if TaskByPID(childPID) != nil {
		t.Fatal("expected the reaped child's TCB to be gone from the PID table")
	}
}

func TestResponderWakeOnlyWakesTopOfStackOnMatchingReason(t *testing.T) {
	testInit(t, DefaultConfig)

	a, _ := Spawn("a", func() {})
	b, _ := Spawn("b", func() {})

	switchTo(a)
	BecomeFirstResponder()
	switchTo(b)
	BecomeFirstResponder()

	lock.Acquire()
	blockLocked(a, KBWait, nil)
	blockLocked(b, MouseWait, nil)
	lock.Release()

	WakeFirstResponder(KBWait)
	if a.State != KBWait {
		t.Fatal("expected WakeFirstResponder(KBWait) to ignore a, which is not on top of the responder stack")
	}

	WakeFirstResponder(MouseWait)
	if b.State != Runnable {
		t.Fatal("expected WakeFirstResponder(MouseWait) to wake b, the top of the responder stack")
	}
}

func TestSleepBlocksUntilWakeTick(t *testing.T) {
	testInit(t, DefaultConfig)

	a, _ := Spawn("a", func() {})
	switchTo(a)

	lock.Acquire()
	tickCount = 100
	lock.Release()

	Sleep(5)

	if a.State != PITWait || a.WakeTick != 105 {
		t.Fatalf("expected the task blocked on PITWait with WakeTick 105; got state=%s wake=%d", a.State, a.WakeTick)
	}

	lock.Acquire()
	tickCount = 104
	updateBlockedTasksLocked()
	lock.Release()
	if a.State != PITWait {
		t.Fatal("did not expect the task to wake before its WakeTick")
	}

	lock.Acquire()
	tickCount = 105
	updateBlockedTasksLocked()
	lock.Release()
	if a.State != Runnable {
		t.Fatal("expected the task to wake once tickCount reached WakeTick")
	}
}
