package store

import (
	"fmt"
	"testing"
)

func TestSeenSet_AddHas(t *testing.T) {
	ss := NewSeenSet(100, 0.01)

	if ss.Has("t1") {
		t.Error("empty set should not contain t1")
	}

	ss.Add("t1")
	if !ss.Has("t1") {
		t.Error("set should contain t1 after Add")
	}
	if ss.Has("t2") {
		t.Error("set should not contain t2")
	}
}

func TestSeenSet_DuplicateAdd(t *testing.T) {
	ss := NewSeenSet(100, 0.01)

	ss.Add("t1")
	ss.Add("t1")

	if ss.Size() != 1 {
		t.Errorf("Size() = %d, want 1", ss.Size())
	}
}

func TestSeenSet_EvictsOldestAtCapacity(t *testing.T) {
	ss := NewSeenSet(3, 0.01)

	for i := 0; i < 4; i++ {
		ss.Add(fmt.Sprintf("t%d", i))
	}

	if ss.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", ss.Size())
	}
	if ss.Has("t0") {
		t.Error("oldest entry t0 should be evicted")
	}
	for i := 1; i < 4; i++ {
		id := fmt.Sprintf("t%d", i)
		if !ss.Has(id) {
			t.Errorf("%s should be retained", id)
		}
	}
}

func TestSeenSet_Clear(t *testing.T) {
	ss := NewSeenSet(100, 0.01)

	ss.Add("t1")
	ss.Add("t2")
	ss.Clear()

	if ss.Size() != 0 {
		t.Errorf("Size() after Clear = %d, want 0", ss.Size())
	}
	if ss.Has("t1") {
		t.Error("cleared set should not contain t1")
	}

	ss.Add("t3")
	if !ss.Has("t3") {
		t.Error("set should accept adds after Clear")
	}
}
