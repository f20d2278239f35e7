package store

/*
FIFOCache evicts frames in the order they first became evictable after their page was
loaded. Later pins and unpins do not change a frame's position.
*/
type FIFOCache struct {
	tick       uint64
	loaded     map[FrameID]uint64
	candidates map[FrameID]uint64
}

func NewFIFOCache(size uint) *FIFOCache {
	return &FIFOCache{
		loaded:     make(map[FrameID]uint64, size),
		candidates: make(map[FrameID]uint64, size),
	}
}

func (c *FIFOCache) Victim() *FrameID {
	oldestID, ok := oldest(c.candidates)
	if !ok {
		return nil
	}

	delete(c.candidates, oldestID)
	delete(c.loaded, oldestID)

	return &oldestID
}

func (c *FIFOCache) Remove(frameID FrameID) {
	delete(c.candidates, frameID)
}

func (c *FIFOCache) Add(frameID FrameID) {
	tick, ok := c.loaded[frameID]
	if !ok {
		c.tick++
		tick = c.tick
		c.loaded[frameID] = tick
	}
	c.candidates[frameID] = tick
}

func (c *FIFOCache) Forget(frameID FrameID) {
	delete(c.candidates, frameID)
	delete(c.loaded, frameID)
}
