package repository

import "testing"

func TestExplorationBuckets_Move(t *testing.T) {
	b := newExplorationBuckets()
	b.add("a", 0)
	b.add("b", 0)
	b.add("c", 0)

	if got := b.sizes(); got[0] != 3 {
		t.Fatalf("sizes = %v", got)
	}

	b.move("a", 1)
	b.move("b", 1)
	sizes := b.sizes()
	if sizes[0] != 1 || sizes[1] != 2 {
		t.Fatalf("sizes after move = %v", sizes)
	}
	if id, _ := b.at(0, 0); id != "c" {
		t.Fatalf("bucket 0 holds %s, want c", id)
	}

	// 1 -> 1 stays in bucket 1; 1 -> 2 crosses into bucket 2
	b.move("a", 1)
	b.move("b", 2)
	sizes = b.sizes()
	if sizes[1] != 1 || sizes[2] != 1 {
		t.Fatalf("sizes after second move = %v", sizes)
	}

	b.remove("c")
	b.remove("missing")
	if b.sizes()[0] != 0 {
		t.Fatalf("c not removed: %v", b.sizes())
	}
	for id, s := range b.pos {
		got, ok := b.at(s.bucket, s.index)
		if !ok || got != id {
			t.Fatalf("position map out of sync for %s", id)
		}
	}
	if _, ok := b.at(9, 0); ok {
		t.Fatal("at on missing bucket should fail")
	}
}

func TestStripedLocks(t *testing.T) {
	l := newStripedLocks(4)
	unlock := l.lockPair("x", "y")
	unlock()
	unlock = l.lockPair("x", "x")
	unlock()
	unlock = l.lockOne("z")
	unlock()

	one := newStripedLocks(0)
	if len(one.stripes) != 1 {
		t.Fatalf("stripes = %d, want 1", len(one.stripes))
	}
	unlock = one.lockPair("a", "b")
	unlock()
}
