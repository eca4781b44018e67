package service

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ProductLocks serializes mutations per product inside this process. The
// database row lock (SELECT ... FOR UPDATE) is what guarantees no-oversell
// across processes; this keyed mutex gives the same guarantee to in-memory
// repositories and keeps two goroutines of the same process from queueing on
// the database lock at all.
//
// Acquisition is bounded: a holder that cannot get every lock within the
// timeout fails with ErrProductoOcupado instead of waiting indefinitely.
type ProductLocks struct {
	mu    sync.Mutex
	slots map[uuid.UUID]chan struct{}
}

func NewProductLocks() *ProductLocks {
	return &ProductLocks{slots: make(map[uuid.UUID]chan struct{})}
}

func (pl *ProductLocks) slot(id uuid.UUID) chan struct{} {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	s, ok := pl.slots[id]
	if !ok {
		s = make(chan struct{}, 1)
		pl.slots[id] = s
	}
	return s
}

// Acquire takes the locks for every id, in sorted order so that two sales
// touching overlapping product sets cannot deadlock. On timeout it releases
// whatever it already holds and returns ErrProductoOcupado.
func (pl *ProductLocks) Acquire(ids []uuid.UUID, timeout time.Duration) error {
	sorted := dedupSorted(ids)
	deadline := time.Now().Add(timeout)
	for i, id := range sorted {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			pl.releaseAll(sorted[:i])
			return ErrProductoOcupado
		}
		timer := time.NewTimer(remaining)
		select {
		case pl.slot(id) <- struct{}{}:
			timer.Stop()
		case <-timer.C:
			pl.releaseAll(sorted[:i])
			return ErrProductoOcupado
		}
	}
	return nil
}

// Release frees the locks taken by a successful Acquire with the same ids.
func (pl *ProductLocks) Release(ids []uuid.UUID) {
	pl.releaseAll(dedupSorted(ids))
}

func (pl *ProductLocks) releaseAll(sorted []uuid.UUID) {
	for _, id := range sorted {
		<-pl.slot(id)
	}
}

func dedupSorted(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
