package task

// ring is one MLFQ priority level: a circular, doubly-linked list of
// RUNNABLE TCBs plus the cursor pick-next resumes round-robin from.
type ring struct {
	head, cursor *TCB
	count        int
}

// pushBack inserts t at the end of the ring, becoming the task that
// pick-next visits last among tasks already present.
func (r *ring) pushBack(t *TCB) {
	if t.enqueued {
		return
	}
	t.enqueued = true

	if r.head == nil {
		r.head = t
		t.next, t.prev = t, t
		r.cursor = t
	} else {
		last := r.head.prev
		last.next = t
		t.prev = last
		t.next = r.head
		r.head.prev = t
	}
	r.count++
}

// remove unlinks t from the ring, a no-op if t is not currently in it.
// Tombstones (a task removed asynchronously by a blocking call while the
// scheduler's cursor still pointed at it) are handled by pick-next
// skipping any non-RUNNABLE entry it encounters rather than by remove
// eagerly chasing the cursor.
func (r *ring) remove(t *TCB) {
	if !t.enqueued {
		return
	}
	t.enqueued = false
	r.count--

	if r.count == 0 {
		r.head, r.cursor = nil, nil
		t.next, t.prev = nil, nil
		return
	}

	t.prev.next = t.next
	t.next.prev = t.prev
	if r.head == t {
		r.head = t.next
	}
	if r.cursor == t {
		r.cursor = t.next
	}
	t.next, t.prev = nil, nil
}

// pickNext scans starting at the cursor (round-robin within the ring) and
// returns the first RUNNABLE task found, leaving the cursor on the task
// after it. It lazily drops any non-RUNNABLE tombstone it passes over. Returns nil if the ring is empty or every entry is a tombstone.
func (r *ring) pickNext() *TCB {
	if r.head == nil {
		return nil
	}

	start := r.cursor
	t := start
	n := r.count
	for i := 0; i < n; i++ {
		next := t.next
		if t.State != Runnable {
			r.remove(t)
			if r.head == nil {
				return nil
			}
			t = next
			continue
		}
		r.cursor = t.next
		return t
	}
	return nil
}
