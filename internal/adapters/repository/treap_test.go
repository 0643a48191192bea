package repository

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"
)

type key struct {
	id     string
	rating float64
}

func sortedKeys(keys []key) []key {
	out := append([]key(nil), keys...)
	sort.Slice(out, func(i, j int) bool { return less(out[i].rating, out[i].id, out[j].rating, out[j].id) })
	return out
}

func checkTreap(t *testing.T, n *node) {
	t.Helper()
	var rec func(n *node) int
	rec = func(n *node) int {
		if n == nil {
			return 0
		}
		if n.left != nil && n.left.prio > n.prio {
			t.Fatalf("heap order broken at %s", n.id)
		}
		if n.right != nil && n.right.prio > n.prio {
			t.Fatalf("heap order broken at %s", n.id)
		}
		size := 1 + rec(n.left) + rec(n.right)
		if size != n.size {
			t.Fatalf("size at %s = %d, want %d", n.id, n.size, size)
		}
		return size
	}
	rec(n)
}

func TestTreap_OrderStatistics(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	var root *node
	keys := make([]key, 0, 500)
	for i := 0; i < 500; i++ {
		k := key{id: fmt.Sprintf("item-%03d", i), rating: float64(1400 + r.Intn(200))}
		keys = append(keys, k)
		root = insert(root, k.id, k.rating)
	}
	checkTreap(t, root)

	want := sortedKeys(keys)
	for rank, k := range want {
		n := selectRank(root, rank)
		if n == nil || n.id != k.id {
			t.Fatalf("selectRank(%d) = %v, want %s", rank, n, k.id)
		}
		if got := rankOf(root, k.id, k.rating); got != rank {
			t.Fatalf("rankOf(%s) = %d, want %d", k.id, got, rank)
		}
	}
	if selectRank(root, len(keys)) != nil {
		t.Fatal("selectRank past the end should be nil")
	}

	// delete every other key and re-check
	kept := keys[:0:0]
	for i, k := range keys {
		if i%2 == 0 {
			root = deleteNode(root, k.id, k.rating)
			continue
		}
		kept = append(kept, k)
	}
	checkTreap(t, root)
	if nsize(root) != len(kept) {
		t.Fatalf("size after delete = %d, want %d", nsize(root), len(kept))
	}
	want = sortedKeys(kept)
	i := 0
	walk(root, 0, func(n *node) bool {
		if n.id != want[i].id {
			t.Fatalf("walk[%d] = %s, want %s", i, n.id, want[i].id)
		}
		i++
		return true
	})
}

func TestTreap_WalkOffset(t *testing.T) {
	var root *node
	for i := 0; i < 20; i++ {
		root = insert(root, fmt.Sprintf("id-%02d", i), float64(i))
	}
	// rating DESC: id-19 first
	var got []string
	walk(root, 5, func(n *node) bool {
		got = append(got, n.id)
		return len(got) < 3
	})
	want := []string{"id-14", "id-13", "id-12"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("walk offset 5 = %v, want %v", got, want)
		}
	}

	var none []string
	walk(root, 20, func(n *node) bool { none = append(none, n.id); return true })
	if len(none) != 0 {
		t.Fatalf("walk past end returned %v", none)
	}
}

func TestTreap_TieBreakByID(t *testing.T) {
	var root *node
	for _, id := range []string{"c", "a", "b"} {
		root = insert(root, id, 1500)
	}
	for rank, id := range []string{"a", "b", "c"} {
		if n := selectRank(root, rank); n.id != id {
			t.Fatalf("rank %d = %s, want %s", rank, n.id, id)
		}
	}
}

func TestTreap_SortedInsertStaysShallow(t *testing.T) {
	var root *node
	const n = 4096
	for i := 0; i < n; i++ {
		root = insert(root, fmt.Sprintf("id-%05d", i), float64(i))
	}
	var depth func(*node) int
	depth = func(x *node) int {
		if x == nil {
			return 0
		}
		return 1 + max(depth(x.left), depth(x.right))
	}
	// expected depth is ~3 log2 n; a degenerate tree would be n deep
	if d := depth(root); d > 100 {
		t.Fatalf("depth %d after sorted inserts", d)
	}
}
