package model

import "math/bits"

// ExplorationBucket returns the exploration bucket of a comparison count: its
// bit length, so bucket 0 holds never-compared items and bucket b holds
// counts in [2^(b-1), 2^b).
func ExplorationBucket(comparisons int) int {
	if comparisons <= 0 {
		return 0
	}
	return bits.Len64(uint64(comparisons))
}

// RankedView is a read-only view of the ranked item set, valid only for the
// duration of the callback that received it. Positions are 0-based in
// canonical order: rating DESC, id ASC.
type RankedView interface {
	Len() int
	// At returns the item at position rank.
	At(rank int) (Item, bool)
	// RankOf returns the position of id.
	RankOf(id string) (int, bool)
	Item(id string) (Item, bool)
	// BucketSizes returns the number of items per ExplorationBucket.
	BucketSizes() []int
	// BucketAt returns the i-th item of an exploration bucket.
	BucketAt(bucket, i int) (Item, bool)
	// Each walks items in canonical order until fn returns false.
	Each(fn func(rank int, it Item) bool)
}
