package store

import (
	"time"

	"github.com/pkg/errors"

	"github.com/tobiasfamos/PageStore/logger"
)

// Storage kinds accepted in Options.Kind.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
)

// Options configures a Database.
type Options struct {
	// Kind selects the device: StorageMemory or StorageFile.
	Kind string
	// Directory holds the files of a StorageFile device.
	Directory string
	// PageSize is the page size C shared by the device, the cache and the pages.
	PageSize int
	// MaxPages is the device capacity.
	MaxPages uint32
	// Latency is slept on every I/O of a StorageMemory device.
	Latency time.Duration
	// Compress stores the pages of a StorageMemory device snappy compressed.
	Compress bool
	// CacheCapacity is the number of resident frames K.
	CacheCapacity uint
	// Eviction names the eviction policy.
	Eviction string
}

// DefaultOptions returns the options of an in-memory database.
func DefaultOptions() Options {
	return Options{
		Kind:          StorageMemory,
		PageSize:      DefaultPageSize,
		MaxPages:      DefaultMaxPages,
		CacheCapacity: 20,
		Eviction:      EvictionLRU,
	}
}

// Database bundles a device, its page cache and the table catalog.
type Database struct {
	Disk   Disk
	Pool   *BufferPool
	Tables *AccessMethodManager
}

// Open creates the device described by opts and opens the database on it.
func Open(opts Options) (*Database, error) {
	if err := ValidatePageSize(opts.PageSize); err != nil {
		return nil, err
	}

	var disk Disk
	switch opts.Kind {
	case StorageMemory, "":
		var ramOpts []RAMDiskOption
		if opts.Latency > 0 {
			ramOpts = append(ramOpts, WithLatency(opts.Latency))
		}
		if opts.Compress {
			ramOpts = append(ramOpts, WithCompression())
		}
		disk = NewRAMDisk(opts.PageSize, opts.MaxPages, ramOpts...)
	case StorageFile:
		d, err := NewPersistentDisk(opts.Directory, opts.PageSize, opts.MaxPages)
		if err != nil {
			return nil, err
		}
		disk = d
	default:
		return nil, errors.Errorf("unknown storage kind %q", opts.Kind)
	}

	db, err := OpenWithDisk(disk, opts)
	if err != nil {
		_ = disk.Close()
		return nil, err
	}
	return db, nil
}

// OpenWithDisk opens the database on an existing device. The device page size must
// equal opts.PageSize.
func OpenWithDisk(disk Disk, opts Options) (*Database, error) {
	if disk.PageSize() != opts.PageSize {
		return nil, errors.Wrapf(ErrPageSizeMismatch, "device %d, configured %d", disk.PageSize(), opts.PageSize)
	}
	if opts.CacheCapacity == 0 {
		return nil, errors.New("cache capacity must be positive")
	}

	policy := opts.Eviction
	if policy == "" {
		policy = EvictionLRU
	}
	eviction, err := NewCacheEviction(policy, opts.CacheCapacity)
	if err != nil {
		return nil, err
	}
	pool := NewBufferPool(opts.CacheCapacity, disk, eviction)

	tables, err := NewAccessMethodManager(pool)
	if err != nil {
		return nil, err
	}

	logger.Infof("database open: %d pages on device, cache of %d frames (%s)", disk.Occupied(), opts.CacheCapacity, policy)

	return &Database{Disk: disk, Pool: pool, Tables: tables}, nil
}

// Close flushes the cache and closes the device.
func (db *Database) Close() error {
	flushErr := db.Pool.Flush()
	closeErr := db.Disk.Close()
	if flushErr != nil {
		return flushErr
	}
	if closeErr != nil {
		return errors.Wrap(closeErr, "close device")
	}

	logger.Infof("database closed")

	return nil
}
