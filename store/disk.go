package store

import "strconv"

// PageID identifies a page on a Disk. Ids are dense and allocated in increasing order.
type PageID uint32

func (id PageID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// FirstPageID is the id of the first page allocated on an empty Disk.
const FirstPageID PageID = 0

// DefaultMaxPages is the default device capacity in pages.
const DefaultMaxPages = 65536

/*
Disk is a page-granular block device. It is the only persistence boundary: every call
is a synchronous I/O without caching.
*/
type Disk interface {
	/*
		AllocatePage allocates a new page and returns its ID.

		IDs returned by successive calls are contiguous increasing integers starting at
		FirstPageID. A freshly allocated page reads as zeros. Fails with ErrDiskFull if
		the device is exhausted.
	*/
	AllocatePage() (PageID, error)
	// ReadPage returns a copy of the page bytes. Fails with ErrPageNotFound if the ID was never allocated.
	ReadPage(PageID) ([]byte, error)
	// WritePage persists exactly PageSize bytes. Fails with ErrPageNotFound or ErrSizeMismatch.
	WritePage(PageID, []byte) error
	// PageSize is the fixed page size C of this device.
	PageSize() int
	// Occupied is the number of allocated pages.
	Occupied() uint32
	// Capacity is the maximum number of pages the device can allocate.
	Capacity() uint32
	// Close releases the device.
	Close() error
}

// DiskStats counts device accesses. AccessCost is the emulated time spent on them.
type DiskStats struct {
	Reads      uint64
	Writes     uint64
	AccessCost float64
}
