package store

/*
LRUCache is a Least Recently Used cache algorithm.

Frames are ordered by the moment they were last unpinned; the frame unpinned the
longest time ago is the victim.
*/
type LRUCache struct {
	tick  uint64
	items map[FrameID]uint64
}

func NewLRUCache(size uint) *LRUCache {
	return &LRUCache{
		items: make(map[FrameID]uint64, size),
	}
}

func (c *LRUCache) Victim() *FrameID {
	oldestID, ok := oldest(c.items)
	if !ok {
		return nil
	}

	delete(c.items, oldestID)

	return &oldestID
}

func (c *LRUCache) Remove(frameID FrameID) {
	delete(c.items, frameID)
}

func (c *LRUCache) Add(frameID FrameID) {
	c.tick++
	c.items[frameID] = c.tick
}

func (c *LRUCache) Forget(frameID FrameID) {
	delete(c.items, frameID)
}
