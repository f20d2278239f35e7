package store

import "github.com/pkg/errors"

// CacheEviction elects victims among the unpinned frames of a BufferPool.
// Implementations are not safe for concurrent use; the BufferPool serializes calls.
type CacheEviction interface {
	// Victim elects a victim to evict and removes it from the election. Returns nil if there is no candidate.
	Victim() *FrameID
	// Remove a frame from eviction election.
	Remove(FrameID)
	// Add a frame for eviction election.
	Add(FrameID)
	// Forget drops all history of a frame whose page left the cache.
	Forget(FrameID)
}

// Eviction policy names accepted by NewCacheEviction.
const (
	EvictionLRU  = "lru"
	EvictionFIFO = "fifo"
)

// NewCacheEviction creates the eviction policy with the given name.
func NewCacheEviction(policy string, size uint) (CacheEviction, error) {
	switch policy {
	case EvictionLRU, "":
		return NewLRUCache(size), nil
	case EvictionFIFO:
		return NewFIFOCache(size), nil
	default:
		return nil, errors.Errorf("unknown eviction policy %q", policy)
	}
}

// oldest returns the frame with the smallest tick. Ticks are unique, so the result is deterministic.
func oldest(items map[FrameID]uint64) (FrameID, bool) {
	var (
		oldestID   FrameID
		oldestTick uint64
		found      bool
	)
	for id, tick := range items {
		if !found || tick < oldestTick {
			oldestID, oldestTick, found = id, tick, true
		}
	}
	return oldestID, found
}
