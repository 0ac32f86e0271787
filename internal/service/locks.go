package service

import (
	"sort"
	"sync"
)

// lockSet hands out one mutex per username. Entries are dropped once no
// caller holds or waits on them.
type lockSet struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newLockSet() *lockSet {
	return &lockSet{locks: make(map[string]*keyLock)}
}

// Lock acquires the locks for keys in ascending order, so callers locking
// overlapping sets cannot deadlock. The returned func releases all of them.
func (s *lockSet) Lock(keys ...string) func() {
	keys = uniqueSorted(keys)

	held := make([]*keyLock, 0, len(keys))
	for _, k := range keys {
		l := s.acquire(k)
		l.mu.Lock()
		held = append(held, l)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			s.release(keys[i])
		}
	}
}

func (s *lockSet) acquire(key string) *keyLock {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{}
		s.locks[key] = l
	}
	l.refs++
	return l
}

func (s *lockSet) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.locks[key]
	l.refs--
	if l.refs == 0 {
		delete(s.locks, key)
	}
}

func uniqueSorted(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
