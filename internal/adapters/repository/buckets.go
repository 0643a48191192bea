package repository

import "github.com/okian/duel/internal/domain/model"

// explorationBuckets groups item ids by model.ExplorationBucket. Membership
// moves are O(1) swap-removes.
type explorationBuckets struct {
	slots [][]string
	pos   map[string]slot
}

type slot struct {
	bucket int
	index  int
}

func newExplorationBuckets() *explorationBuckets {
	return &explorationBuckets{pos: make(map[string]slot)}
}

func (b *explorationBuckets) add(id string, comparisons int) {
	k := model.ExplorationBucket(comparisons)
	for len(b.slots) <= k {
		b.slots = append(b.slots, nil)
	}
	b.slots[k] = append(b.slots[k], id)
	b.pos[id] = slot{bucket: k, index: len(b.slots[k]) - 1}
}

func (b *explorationBuckets) remove(id string) {
	s, ok := b.pos[id]
	if !ok {
		return
	}
	ids := b.slots[s.bucket]
	last := len(ids) - 1
	if s.index != last {
		moved := ids[last]
		ids[s.index] = moved
		b.pos[moved] = slot{bucket: s.bucket, index: s.index}
	}
	b.slots[s.bucket] = ids[:last]
	delete(b.pos, id)
}

// move re-buckets id when its comparison count crosses a power of two.
func (b *explorationBuckets) move(id string, comparisons int) {
	s, ok := b.pos[id]
	if ok && s.bucket == model.ExplorationBucket(comparisons) {
		return
	}
	b.remove(id)
	b.add(id, comparisons)
}

func (b *explorationBuckets) sizes() []int {
	out := make([]int, len(b.slots))
	for i, ids := range b.slots {
		out[i] = len(ids)
	}
	return out
}

func (b *explorationBuckets) at(bucket, i int) (string, bool) {
	if bucket < 0 || bucket >= len(b.slots) || i < 0 || i >= len(b.slots[bucket]) {
		return "", false
	}
	return b.slots[bucket][i], true
}
