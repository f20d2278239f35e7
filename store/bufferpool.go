package store

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tobiasfamos/PageStore/logger"
)

// FrameID is the cache frame ID (index) associated with a Page.
type FrameID uint32

type frameState uint8

const (
	frameFree frameState = iota
	// frameLoading frames are reserved for a page while the cache lock is released for
	// I/O: the write back of the evicted page and the read of the new one.
	frameLoading
	frameResident
)

type frame struct {
	id     FrameID
	pageID PageID
	// evictedID is the page written back while the frame is loading pageID.
	evictedID PageID
	evicting  bool
	state     frameState
	pinCount  int
	isDirty   bool
	data      []byte
	// latch guards data against flushes copying it while a pinned handle mutates it.
	latch sync.RWMutex
}

// CacheStats counts cache activity.
type CacheStats struct {
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64
}

/*
BufferPool is a cache-like structure that buffers Pages from a Disk.

At most size pages are resident. Pinned pages are never evicted; unpinned pages are
evicted in the order chosen by the CacheEviction policy, and dirty ones are written
back first. A single mutex guards the frame table, pin counts and dirty flags; disk
I/O happens outside of it on frames reserved in the frameLoading state.
*/
type BufferPool struct {
	mu         sync.Mutex
	cond       *sync.Cond
	allocMu    sync.Mutex
	disk       Disk
	frames     []*frame
	pageLookup map[PageID]FrameID
	eviction   CacheEviction
	freeFrames []FrameID
	stats      CacheStats
}

/*
NewBufferPool creates a new buffer pool with a given size (number of pages).
*/
func NewBufferPool(size uint, disk Disk, eviction CacheEviction) *BufferPool {
	b := &BufferPool{
		disk:       disk,
		frames:     make([]*frame, size),
		pageLookup: make(map[PageID]FrameID, size),
		eviction:   eviction,
		freeFrames: make([]FrameID, size),
	}
	b.cond = sync.NewCond(&b.mu)
	for i := range b.frames {
		b.frames[i] = &frame{id: FrameID(i)}
		b.freeFrames[i] = FrameID(i)
	}
	return b
}

// Capacity is the maximum number of resident pages.
func (b *BufferPool) Capacity() int {
	return len(b.frames)
}

// PageSize is the page size of the underlying disk.
func (b *BufferPool) PageSize() int {
	return b.disk.PageSize()
}

// Resident is the number of frames holding a page.
func (b *BufferPool) Resident() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.frames) - len(b.freeFrames)
}

func (b *BufferPool) Stats() CacheStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.stats
}

// PinCount returns the pin count of a resident page, or 0 if it is not resident.
func (b *BufferPool) PinCount(pageID PageID) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if f := b.residentLocked(pageID); f != nil {
		return f.pinCount
	}
	return 0
}

// IsDirty reports whether a resident page has changes not yet written to disk.
func (b *BufferPool) IsDirty(pageID PageID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if f := b.residentLocked(pageID); f != nil {
		return f.isDirty
	}
	return false
}

/*
AllocatePages allocates count contiguous pages on the disk and returns the first ID.
The pages are not brought into the cache.

This method returns an error if the disk cannot allocate all pages. Pages allocated
before the failure are lost: IDs are never reused.
*/
func (b *BufferPool) AllocatePages(count int) (PageID, error) {
	if count <= 0 {
		return 0, errors.Wrapf(ErrInvalidCount, "allocate %d pages", count)
	}

	b.allocMu.Lock()
	defer b.allocMu.Unlock()

	var first PageID
	for i := 0; i < count; i++ {
		id, err := b.disk.AllocatePage()
		if err != nil {
			return 0, errors.Wrapf(err, "allocate page %d of %d", i+1, count)
		}
		if i == 0 {
			first = id
		} else if id != first+PageID(i) {
			return 0, errors.Errorf("disk allocated page %d, expected %d", id, first+PageID(i))
		}
	}

	logger.Debugf("allocated pages [%d, %d)", first, first+PageID(count))

	return first, nil
}

/*
GetAndPin fetches a page from buffer cache or disk and pins it.

The caller must Release the returned CachedPage. This method returns an error if
- there are no free frames and all resident pages are pinned (ErrCacheExhausted), or
- the page cannot be read from disk.
*/
func (b *BufferPool) GetAndPin(pageID PageID) (*CachedPage, error) {
	f, err := b.fetch(pageID, true, true)
	if err != nil {
		return nil, newOpError("pin", pageID, err)
	}

	return &CachedPage{pool: b, frame: f, id: pageID}, nil
}

/*
Load reads count pages starting at startPageID into the cache without pinning them,
e.g. for read-ahead. Pages already resident are left alone and not counted as hits.
*/
func (b *BufferPool) Load(startPageID PageID, count int) error {
	for i := 0; i < count; i++ {
		id := startPageID + PageID(i)
		if _, err := b.fetch(id, false, false); err != nil {
			return newOpError("load", id, err)
		}
	}
	return nil
}

// fetch returns the resident frame of pageID, reading it from disk on a miss.
func (b *BufferPool) fetch(pageID PageID, pin bool, count bool) (*frame, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// try fetch from cache
	for {
		frameID, ok := b.pageLookup[pageID]
		if !ok {
			break
		}
		f := b.frames[frameID]
		if f.state != frameResident || f.pageID != pageID {
			// I/O in flight on this page, either its read or its write back.
			b.cond.Wait()
			continue
		}
		if count {
			b.stats.Hits++
		}
		if pin {
			b.pinLocked(f)
		}
		return f, nil
	}

	if count {
		b.stats.Misses++
	}

	f, err := b.reserveFrameLocked(pageID)
	if err != nil {
		return nil, err
	}

	b.mu.Unlock()
	data, writebackErr, readErr := b.load(f)
	b.mu.Lock()

	if err := b.completeLoadLocked(f, data, writebackErr, readErr); err != nil {
		return nil, err
	}
	if pin {
		b.pinLocked(f)
	} else {
		b.eviction.Add(f.id)
	}

	return f, nil
}

/*
reserveFrameLocked returns a frame for pageID in the frameLoading state.
The frame may either be from the
- free frames list, or from
- cache eviction
An evicted frame keeps its old page mapped until the write back finished, so
concurrent requests for that page wait instead of reading a stale copy from disk.
*/
func (b *BufferPool) reserveFrameLocked(pageID PageID) (*frame, error) {
	var frameID FrameID

	// get next free frame or evict from cache
	if len(b.freeFrames) > 0 {
		frameID = b.freeFrames[0]
		b.freeFrames = b.freeFrames[1:]
	} else {
		victim := b.eviction.Victim()
		if victim == nil {
			return nil, ErrCacheExhausted
		}
		frameID = *victim
	}

	f := b.frames[frameID]
	if f.state == frameResident {
		if f.pinCount != 0 {
			panic(errors.Errorf("eviction elected frame %d holding pinned page %d", f.id, f.pageID))
		}
		f.evicting = true
		f.evictedID = f.pageID
		b.stats.Evictions++
		logger.WithFields(logrus.Fields{"frame": f.id, "page": f.pageID, "dirty": f.isDirty}).Debug("evicting page")
	}

	f.state = frameLoading
	f.pageID = pageID
	b.pageLookup[pageID] = frameID

	return f, nil
}

// load writes back the evicted page if it is dirty, then reads the new page. Runs without the cache lock.
func (b *BufferPool) load(f *frame) (data []byte, writebackErr, readErr error) {
	if f.evicting && f.isDirty {
		if err := b.disk.WritePage(f.evictedID, f.data); err != nil {
			return nil, err, nil
		}
	}

	data, err := b.disk.ReadPage(f.pageID)
	if err == nil && len(data) != b.disk.PageSize() {
		err = errors.Wrapf(ErrSizeMismatch, "disk returned %d bytes for page %d", len(data), f.pageID)
	}
	return data, nil, err
}

func (b *BufferPool) completeLoadLocked(f *frame, data []byte, writebackErr, readErr error) error {
	defer b.cond.Broadcast()

	if writebackErr != nil {
		// Keep the dirty page resident; the frame goes back to the election.
		logger.Warnf("write back of page %d failed, keeping it resident: %v", f.evictedID, writebackErr)
		delete(b.pageLookup, f.pageID)
		f.pageID = f.evictedID
		f.evicting = false
		f.state = frameResident
		b.stats.Evictions--
		b.eviction.Add(f.id)
		return writebackErr
	}

	if f.evicting {
		if f.isDirty {
			b.stats.Writebacks++
		}
		delete(b.pageLookup, f.evictedID)
		b.eviction.Forget(f.id)
		f.evicting = false
		f.isDirty = false
	}

	if readErr != nil {
		delete(b.pageLookup, f.pageID)
		f.state = frameFree
		f.data = nil
		b.freeFrames = append(b.freeFrames, f.id)
		return readErr
	}

	f.data = data
	f.state = frameResident
	f.pinCount = 0
	f.isDirty = false

	return nil
}

/*
Flush writes every dirty resident page to disk and clears its dirty flag. Pages stay resident.

All pages are attempted; the first error is returned.
*/
func (b *BufferPool) Flush() error {
	b.mu.Lock()
	var batch []*frame
	for _, f := range b.frames {
		if f.state == frameResident && f.isDirty {
			// Pinned for the duration of the write so the frame cannot be evicted.
			b.pinLocked(f)
			batch = append(batch, f)
		}
	}
	b.mu.Unlock()

	var firstErr error
	for _, f := range batch {
		err := b.writeFrame(f)
		b.unpin(f, false)
		if err != nil {
			logger.Warnf("flush of page %d failed: %v", f.pageID, err)
			if firstErr == nil {
				firstErr = newOpError("flush", f.pageID, err)
			}
		}
	}

	if len(batch) > 0 {
		logger.Debugf("flushed %d pages", len(batch))
	}

	return firstErr
}

/*
FlushPage flushes a resident page to disk.
If the pageID is not resident, an error is returned.
*/
func (b *BufferPool) FlushPage(pageID PageID) error {
	b.mu.Lock()
	f := b.residentLocked(pageID)
	if f == nil {
		b.mu.Unlock()
		return newOpError("flush", pageID, errors.Wrap(ErrPageNotFound, "page is not resident"))
	}
	b.pinLocked(f)
	b.mu.Unlock()

	err := b.writeFrame(f)
	b.unpin(f, false)
	if err != nil {
		return newOpError("flush", pageID, err)
	}
	return nil
}

/*
writeFrame writes a pinned frame to disk.
If writing to disk fails, the page is flagged dirty again and the error is returned.
*/
func (b *BufferPool) writeFrame(f *frame) error {
	b.mu.Lock()
	wasDirty := f.isDirty
	f.isDirty = false
	b.mu.Unlock()

	f.latch.RLock()
	data := make([]byte, len(f.data))
	copy(data, f.data)
	f.latch.RUnlock()

	if err := b.disk.WritePage(f.pageID, data); err != nil {
		b.mu.Lock()
		f.isDirty = f.isDirty || wasDirty
		b.mu.Unlock()
		return err
	}

	return nil
}

func (b *BufferPool) residentLocked(pageID PageID) *frame {
	if frameID, ok := b.pageLookup[pageID]; ok {
		if f := b.frames[frameID]; f.state == frameResident && f.pageID == pageID {
			return f
		}
	}
	return nil
}

func (b *BufferPool) pinLocked(f *frame) {
	f.pinCount++
	if f.pinCount == 1 {
		b.eviction.Remove(f.id)
	}
}

/*
unpin decrements the pin count of a frame, potentially flagging the page as dirty.
If there are no more references to the page, the page is eligible for cache eviction.

Unpinning a frame that is not pinned is a broken contract and panics.
*/
func (b *BufferPool) unpin(f *frame, isDirty bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if f.state != frameResident || f.pinCount <= 0 {
		panic(errors.Errorf("unpin of page %d with pin count %d", f.pageID, f.pinCount))
	}

	f.pinCount--
	f.isDirty = f.isDirty || isDirty

	if f.pinCount == 0 {
		b.eviction.Add(f.id)
	}
}
