package store

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// SeenSet tracks candidate track IDs already offered to a listening session
// so successive refills do not repeat them. A Bloom filter front-ends the
// exact set for cheap negative checks; an LRU ring bounds memory and decides
// eviction order once the capacity is reached.
type SeenSet struct {
	ids      map[string]struct{}
	bloom    *bloom.BloomFilter
	lru      *lru.Cache[string, struct{}]
	mutex    sync.RWMutex
	capacity int
}

// NewSeenSet creates a seen-set bounded to capacity entries with the given
// Bloom false-positive rate.
func NewSeenSet(capacity int, falsePositiveRate float64) *SeenSet {
	if capacity <= 0 {
		panic("seen-set capacity must be positive")
	}
	lruCache, _ := lru.New[string, struct{}](capacity)

	return &SeenSet{
		ids:      make(map[string]struct{}),
		bloom:    bloom.NewWithEstimates(uint(capacity), falsePositiveRate),
		lru:      lruCache,
		capacity: capacity,
	}
}

// Has reports whether a track ID has been offered before.
func (ss *SeenSet) Has(trackID string) bool {
	ss.mutex.RLock()
	defer ss.mutex.RUnlock()

	if !ss.bloom.TestString(trackID) {
		return false
	}

	_, exists := ss.ids[trackID]
	return exists
}

// Add records a track ID, evicting the least recently added entry when the
// set is full.
func (ss *SeenSet) Add(trackID string) {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	if _, exists := ss.ids[trackID]; exists {
		return
	}

	ss.ids[trackID] = struct{}{}
	ss.bloom.AddString(trackID)
	ss.lru.Add(trackID, struct{}{})

	if len(ss.ids) > ss.capacity {
		ss.evictOldest()
	}
}

// Size returns the number of tracked IDs.
func (ss *SeenSet) Size() int {
	ss.mutex.RLock()
	defer ss.mutex.RUnlock()
	return len(ss.ids)
}

// Clear drops all tracked IDs, e.g. when the listener switches vibes.
func (ss *SeenSet) Clear() {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	ss.ids = make(map[string]struct{})
	ss.bloom.ClearAll()
	ss.lru.Purge()
}

func (ss *SeenSet) evictOldest() {
	oldest, _, ok := ss.lru.RemoveOldest()
	if !ok {
		return
	}
	delete(ss.ids, oldest)
	// The Bloom filter keeps the evicted entry; a stale positive only costs
	// one map lookup in Has.
}
