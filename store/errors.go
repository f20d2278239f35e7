package store

import (
	"github.com/pkg/errors"
)

var (
	// Storage errors.
	ErrPageNotFound     = errors.New("page not found")
	ErrSizeMismatch     = errors.New("page size mismatch")
	ErrDiskFull         = errors.New("unable to allocate page on disk")
	ErrCorruptPage      = errors.New("page checksum mismatch")
	ErrPageSizeMismatch = errors.New("configured page size differs from device page size")

	// Cache errors.
	ErrCacheExhausted = errors.New("unable to reserve buffer frame: all frames are pinned")

	// Page errors.
	ErrDeletedSlot    = errors.New("slot is deleted")
	ErrSlotOutOfRange = errors.New("slot out of range")

	// Catalog errors.
	ErrUnknownTable     = errors.New("unknown table")
	ErrDuplicateTable   = errors.New("table already exists")
	ErrInvalidCount     = errors.New("page count must be positive")
	ErrInvalidTableName = errors.New("invalid table name")
	ErrCatalogCorrupt   = errors.New("catalog is corrupt")
)

// OpError records the buffer pool operation that failed.
type OpError struct {
	Op     string
	PageID PageID
	Err    error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return "<nil>"
	}
	return e.Op + " page " + e.PageID.String() + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func newOpError(op string, id PageID, err error) error {
	return &OpError{Op: op, PageID: id, Err: err}
}

// IsNotFound reports whether err is caused by an unknown page id.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPageNotFound)
}

// IsCacheExhausted reports whether err is caused by a cache without evictable frames.
func IsCacheExhausted(err error) bool {
	return errors.Is(err, ErrCacheExhausted)
}

// IsCorrupt reports whether err is caused by damaged page or catalog content.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorruptPage) || errors.Is(err, ErrCatalogCorrupt)
}
