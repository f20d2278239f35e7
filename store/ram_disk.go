package store

import (
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// randomAccessCost is the emulated cost in milliseconds of positioning the head for one page.
const randomAccessCost = 5.0

/*
RAMDisk is a memory emulation of a hard disk.

Pages are kept in a map; allocated pages that were never written are absent from the
map and read as zeros. With compression enabled, stored pages are snappy encoded.
*/
type RAMDisk struct {
	mu         sync.Mutex
	pageSize   int
	capacity   uint32
	nextPageID PageID
	pages      map[PageID][]byte
	compress   bool
	latency    time.Duration
	stats      DiskStats
}

// RAMDiskOption configures a RAMDisk.
type RAMDiskOption func(*RAMDisk)

// WithLatency makes every read and write sleep for d.
func WithLatency(d time.Duration) RAMDiskOption {
	return func(r *RAMDisk) {
		r.latency = d
	}
}

// WithCompression stores pages snappy compressed.
func WithCompression() RAMDiskOption {
	return func(r *RAMDisk) {
		r.compress = true
	}
}

func NewRAMDisk(pageSize int, capacity uint32, opts ...RAMDiskOption) *RAMDisk {
	r := &RAMDisk{
		pageSize: pageSize,
		capacity: capacity,
		pages:    make(map[PageID][]byte),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RAMDisk) AllocatePage() (PageID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// cannot allocate more pages
	if uint32(r.nextPageID-FirstPageID) >= r.capacity {
		return 0, errors.Wrapf(ErrDiskFull, "RAM disk holds %d pages", r.capacity)
	}

	id := r.nextPageID
	r.nextPageID++

	return id, nil
}

func (r *RAMDisk) ReadPage(id PageID) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.allocated(id) {
		return nil, errors.Wrapf(ErrPageNotFound, "read page %d", id)
	}
	r.access()
	r.stats.Reads++

	stored, ok := r.pages[id]
	if !ok {
		return make([]byte, r.pageSize), nil
	}
	if r.compress {
		data, err := snappy.Decode(nil, stored)
		if err != nil {
			return nil, errors.Wrapf(ErrCorruptPage, "decompress page %d: %v", id, err)
		}
		return data, nil
	}

	data := make([]byte, r.pageSize)
	copy(data, stored)
	return data, nil
}

func (r *RAMDisk) WritePage(id PageID, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.allocated(id) {
		return errors.Wrapf(ErrPageNotFound, "write page %d", id)
	}
	if len(data) != r.pageSize {
		return errors.Wrapf(ErrSizeMismatch, "write page %d: %d bytes, expected %d", id, len(data), r.pageSize)
	}
	r.access()
	r.stats.Writes++

	if r.compress {
		r.pages[id] = snappy.Encode(nil, data)
	} else {
		stored := make([]byte, r.pageSize)
		copy(stored, data)
		r.pages[id] = stored
	}

	return nil
}

func (r *RAMDisk) PageSize() int {
	return r.pageSize
}

func (r *RAMDisk) Occupied() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return uint32(r.nextPageID - FirstPageID)
}

func (r *RAMDisk) Capacity() uint32 {
	return r.capacity
}

// Stats returns the access counters of this disk.
func (r *RAMDisk) Stats() DiskStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.stats
}

func (r *RAMDisk) Close() error {
	return nil
}

func (r *RAMDisk) allocated(id PageID) bool {
	return id < r.nextPageID
}

// access emulates the positioning cost of a random access. Called with r.mu held.
func (r *RAMDisk) access() {
	r.stats.AccessCost += randomAccessCost
	if r.latency > 0 {
		time.Sleep(r.latency)
	}
}
