package repository

import (
	"hash/fnv"
	"sync"
)

// stripedLocks serializes read-modify-write of individual items without a
// lock per item. Two items hashing to the same stripe share a mutex.
type stripedLocks struct {
	stripes []sync.Mutex
}

func newStripedLocks(n int) *stripedLocks {
	if n <= 0 {
		n = 1
	}
	return &stripedLocks{stripes: make([]sync.Mutex, n)}
}

func (l *stripedLocks) index(id string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return int(h.Sum32() % uint32(len(l.stripes)))
}

// lockOne locks the stripe of id and returns its unlock.
func (l *stripedLocks) lockOne(id string) func() {
	i := l.index(id)
	l.stripes[i].Lock()
	return l.stripes[i].Unlock
}

// lockPair locks the stripes of a and b in ascending stripe order so two
// votes sharing items cannot deadlock.
func (l *stripedLocks) lockPair(a, b string) func() {
	i, j := l.index(a), l.index(b)
	if i == j {
		l.stripes[i].Lock()
		return l.stripes[i].Unlock
	}
	if i > j {
		i, j = j, i
	}
	l.stripes[i].Lock()
	l.stripes[j].Lock()
	return func() {
		l.stripes[j].Unlock()
		l.stripes[i].Unlock()
	}
}
