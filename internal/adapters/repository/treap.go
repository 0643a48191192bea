package repository

import (
	"math/rand/v2"
)

// Treap ordered by (rating DESC, id ASC). "less" means ranks earlier, so an
// in-order walk yields the leaderboard from best to worst. Subtree sizes give
// select-by-rank and rank-of in O(log n) expected time.

type node struct {
	id     string
	rating float64
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aRating, aID) should appear before (bRating, bID).
func less(aRating float64, aID string, bRating float64, bID string) bool {
	if aRating != bRating {
		return aRating > bRating
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

// insert adds (id, rating) with a random heap priority. Priorities must not
// depend on the key or the tree degenerates into a list.
func insert(n *node, id string, rating float64) *node {
	if n == nil {
		return &node{id: id, rating: rating, prio: rand.Uint64(), size: 1}
	}
	if less(rating, id, n.rating, n.id) {
		n.left = insert(n.left, id, rating)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, rating)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, rating float64) *node {
	if n == nil {
		return nil
	}
	switch {
	case rating == n.rating && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, rating)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, rating)
		}
	case less(rating, id, n.rating, n.id):
		n.left = deleteNode(n.left, id, rating)
	default:
		n.right = deleteNode(n.right, id, rating)
	}
	fix(n)
	return n
}

// selectRank returns the node at 0-based position k in canonical order.
func selectRank(n *node, k int) *node {
	for n != nil {
		ls := nsize(n.left)
		switch {
		case k < ls:
			n = n.left
		case k == ls:
			return n
		default:
			k -= ls + 1
			n = n.right
		}
	}
	return nil
}

// rankOf returns the number of keys ordered before (rating, id).
func rankOf(n *node, id string, rating float64) int {
	r := 0
	for n != nil {
		if less(rating, id, n.rating, n.id) {
			n = n.left
			continue
		}
		if n.id == id && n.rating == rating {
			return r + nsize(n.left)
		}
		r += nsize(n.left) + 1
		n = n.right
	}
	return r
}

// walk visits nodes in canonical order starting at 0-based position offset
// until fn returns false.
func walk(n *node, offset int, fn func(*node) bool) bool {
	if n == nil {
		return true
	}
	ls := nsize(n.left)
	if offset < ls {
		if !walk(n.left, offset, fn) {
			return false
		}
		offset = 0
	} else {
		offset -= ls
	}
	if offset == 0 {
		if !fn(n) {
			return false
		}
	} else {
		offset--
	}
	return walk(n.right, offset, fn)
}
