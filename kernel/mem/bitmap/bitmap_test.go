package bitmap

import "testing"

func TestSetClearTest(t *testing.T) {
	b := New(200)

	if b.Len() != 200 {
		t.Fatalf("expected length 200; got %d", b.Len())
	}

	specs := []uint32{0, 1, 63, 64, 65, 127, 199}
	for _, index := range specs {
		if b.Test(index) {
			t.Errorf("[index %d] expected bit to start clear", index)
		}

		b.Set(index)
		if !b.Test(index) {
			t.Errorf("[index %d] expected bit to be set", index)
		}

		b.Clear(index)
		if b.Test(index) {
			t.Errorf("[index %d] expected bit to be clear again", index)
		}
	}
}

func TestOutOfRangeIsNoop(t *testing.T) {
	b := New(64)

	b.Set(64)
	b.Set(1000)
	if b.Test(64) || b.Test(1000) {
		t.Fatal("expected out-of-range Set to be a no-op")
	}

	// must not panic
	b.Clear(1000)
}

func TestScanFirstSet(t *testing.T) {
	accessible := New(10)
	allocated := New(10)

	if _, ok := accessible.ScanFirstSet(allocated, 0); ok {
		t.Fatal("expected scan over an all-clear accessible bitmap to fail")
	}

	accessible.SetRange(2, 6) // accessible: 2,3,4,5

	index, ok := accessible.ScanFirstSet(allocated, 0)
	if !ok || index != 2 {
		t.Fatalf("expected first accessible-and-free frame to be 2; got %d (ok=%t)", index, ok)
	}

	allocated.Set(2)
	allocated.Set(3)

	index, ok = accessible.ScanFirstSet(allocated, 0)
	if !ok || index != 4 {
		t.Fatalf("expected first accessible-and-free frame to be 4; got %d (ok=%t)", index, ok)
	}

	allocated.SetRange(4, 6)
	if _, ok = accessible.ScanFirstSet(allocated, 0); ok {
		t.Fatal("expected scan to fail once every accessible frame is allocated")
	}
}

func TestSetRangeClearRange(t *testing.T) {
	b := New(130)
	b.SetRange(60, 70)

	for i := uint32(60); i < 70; i++ {
		if !b.Test(i) {
			t.Errorf("expected bit %d to be set", i)
		}
	}
	if b.Test(59) || b.Test(70) {
		t.Fatal("expected SetRange to only affect [from, to)")
	}

	b.ClearRange(60, 70)
	for i := uint32(60); i < 70; i++ {
		if b.Test(i) {
			t.Errorf("expected bit %d to be cleared", i)
		}
	}
}

func TestClearAll(t *testing.T) {
	b := New(128)
	b.SetRange(0, 128)
	b.ClearAll()

	if _, ok := b.ScanFirstSet(New(128), 0); ok {
		t.Fatal("expected ClearAll to clear every bit")
	}
}

func TestVisitRuns(t *testing.T) {
	b := New(20)
	b.SetRange(2, 5)
	b.SetRange(10, 12)
	b.Set(19)

	var got [][2]uint32
	b.VisitRuns(func(from, to uint32) {
		got = append(got, [2]uint32{from, to})
	})

	exp := [][2]uint32{{2, 5}, {10, 12}, {19, 20}}
	if len(got) != len(exp) {
		t.Fatalf("expected %d runs; got %d (%v)", len(exp), len(got), got)
	}
	for i := range exp {
		if got[i] != exp[i] {
			t.Errorf("[run %d] expected %v; got %v", i, exp[i], got[i])
		}
	}
}

func TestFromSlice(t *testing.T) {
	backing := make([]uint64, 2)
	b := FromSlice(backing, 100)

	b.Set(5)
	if backing[0] == 0 {
		t.Fatal("expected FromSlice bitmap to write through to the backing slice")
	}
}
