package store

import (
	"fmt"
	"sync/atomic"
)

/*
CachedPage is a pinned view of a resident page.

The page cannot be evicted until Release is called, which must happen exactly once,
typically with defer right after GetAndPin succeeded:

	page, err := pool.GetAndPin(id)
	if err != nil {
		return err
	}
	defer page.Release()

If the page was modified through the handle, Release marks it dirty.
*/
type CachedPage struct {
	pool     *BufferPool
	frame    *frame
	id       PageID
	mutated  bool
	released atomic.Bool
}

// ID is the ID of the pinned page.
func (c *CachedPage) ID() PageID {
	return c.id
}

// PutRecord stores a record on the page. See Page.PutRecord.
func (c *CachedPage) PutRecord(data []byte, slotHint SlotID) PutResult {
	c.mustBePinned()
	c.frame.latch.Lock()
	defer c.frame.latch.Unlock()

	result := NewPage(c.frame.data).PutRecord(data, slotHint)
	if result.IsOK() {
		c.mutated = true
	}
	return result
}

// GetRecord returns a copy of a record. See Page.GetRecord.
func (c *CachedPage) GetRecord(slot SlotID) ([]byte, error) {
	c.mustBePinned()
	c.frame.latch.RLock()
	defer c.frame.latch.RUnlock()

	return NewPage(c.frame.data).GetRecord(slot)
}

// DeleteRecord tombstones a record. See Page.DeleteRecord.
func (c *CachedPage) DeleteRecord(slot SlotID) error {
	c.mustBePinned()
	c.frame.latch.Lock()
	defer c.frame.latch.Unlock()

	if err := NewPage(c.frame.data).DeleteRecord(slot); err != nil {
		return err
	}
	c.mutated = true
	return nil
}

// ForEachRecord iterates over all slots. See Page.ForEachRecord.
func (c *CachedPage) ForEachRecord(fn func(slot SlotID, data []byte, deleted bool) bool) {
	c.mustBePinned()
	c.frame.latch.RLock()
	defer c.frame.latch.RUnlock()

	NewPage(c.frame.data).ForEachRecord(fn)
}

func (c *CachedPage) FreeSpace() int {
	c.mustBePinned()
	c.frame.latch.RLock()
	defer c.frame.latch.RUnlock()

	return NewPage(c.frame.data).FreeSpace()
}

func (c *CachedPage) SlotCount() int {
	c.mustBePinned()
	c.frame.latch.RLock()
	defer c.frame.latch.RUnlock()

	return NewPage(c.frame.data).SlotCount()
}

// Bytes returns a copy of the raw page.
func (c *CachedPage) Bytes() []byte {
	c.mustBePinned()
	c.frame.latch.RLock()
	defer c.frame.latch.RUnlock()

	data := make([]byte, len(c.frame.data))
	copy(data, c.frame.data)
	return data
}

// IsMutated reports whether the page was modified through this handle.
func (c *CachedPage) IsMutated() bool {
	return c.mutated
}

// Release unpins the page. Releasing twice panics.
func (c *CachedPage) Release() {
	if !c.released.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("page %d released twice", c.id))
	}
	c.pool.unpin(c.frame, c.mutated)
}

func (c *CachedPage) mustBePinned() {
	if c.released.Load() {
		panic(fmt.Sprintf("page %d used after release", c.id))
	}
}
