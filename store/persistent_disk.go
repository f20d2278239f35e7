package store

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"
	"github.com/pkg/errors"

	"github.com/tobiasfamos/PageStore/logger"
)

const (
	metaStoreFile = "pages.meta"
	pageStoreFile = "pages.dat"
	metaMagic     = 0x50475354 // "PGST"
	metaDataSize  = 4 + 4 + 4 + 4 + 4
)

/*
PersistentDisk is a Disk backed by a directory.

The pages live in a PageFile. The meta data file records the page size and the next
page ID; it is replaced atomically whenever a page is allocated, so an allocation
survives a crash once AllocatePage returned.
*/
type PersistentDisk struct {
	Directory string

	mu         sync.Mutex
	pageSize   int
	capacity   uint32
	nextPageID PageID
	file       *PageFile
}

// NewPersistentDisk opens the device in directory, initializing it if it holds no store yet.
//
// Opening an existing store with a different page size fails with ErrPageSizeMismatch.
func NewPersistentDisk(directory string, pageSize int, capacity uint32) (*PersistentDisk, error) {
	d := &PersistentDisk{
		Directory:  directory,
		pageSize:   pageSize,
		capacity:   capacity,
		nextPageID: FirstPageID,
	}

	if err := d.initialize(); err != nil {
		return nil, err
	}

	file, err := OpenPageFile(filepath.Join(directory, pageStoreFile), pageSize)
	if err != nil {
		return nil, err
	}
	d.file = file

	return d, nil
}

func (d *PersistentDisk) initialize() error {
	data, err := os.ReadFile(d.metaFilePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Initializing new store in this directory.
			logger.Infof("initializing page store in %s (page size %d)", d.Directory, d.pageSize)
			return d.storeMetaData()
		}
		return errors.Wrap(err, "unexpected IO error while reading meta data")
	}

	return d.decodeMetaData(data)
}

func (d *PersistentDisk) AllocatePage() (PageID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if uint32(d.nextPageID-FirstPageID) >= d.capacity {
		return 0, errors.Wrapf(ErrDiskFull, "disk in %s holds %d pages", d.Directory, d.capacity)
	}

	id := d.nextPageID
	d.nextPageID++
	if err := d.storeMetaData(); err != nil {
		d.nextPageID--
		return 0, err
	}

	return id, nil
}

func (d *PersistentDisk) ReadPage(id PageID) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if id >= d.nextPageID {
		return nil, errors.Wrapf(ErrPageNotFound, "read page %d", id)
	}

	return d.file.ReadPage(id)
}

func (d *PersistentDisk) WritePage(id PageID, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if id >= d.nextPageID {
		return errors.Wrapf(ErrPageNotFound, "write page %d", id)
	}

	return d.file.WritePage(id, data)
}

func (d *PersistentDisk) PageSize() int {
	return d.pageSize
}

func (d *PersistentDisk) Occupied() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return uint32(d.nextPageID - FirstPageID)
}

func (d *PersistentDisk) Capacity() uint32 {
	return d.capacity
}

// Close syncs the page file and stores the meta data.
func (d *PersistentDisk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.file.Sync(); err != nil {
		return errors.Wrap(err, "sync page file")
	}
	if err := d.storeMetaData(); err != nil {
		return err
	}

	return d.file.Close()
}

// storeMetaData atomically replaces the meta data file.
func (d *PersistentDisk) storeMetaData() error {
	err := atomic.WriteFile(d.metaFilePath(), bytes.NewReader(d.encodeMetaData()))
	if err != nil {
		return errors.Wrap(err, "IO error while trying to write meta data")
	}

	return nil
}

// encodeMetaData encodes the disk's meta data into a byte slice.
func (d *PersistentDisk) encodeMetaData() []byte {
	// 4 bytes magic
	// 4 bytes page size
	// 4 bytes nextPageID
	// 4 bytes reserved
	// 4 bytes checksum
	data := make([]byte, metaDataSize)

	binary.BigEndian.PutUint32(data[0:4], metaMagic)
	binary.BigEndian.PutUint32(data[4:8], uint32(d.pageSize))
	binary.BigEndian.PutUint32(data[8:12], uint32(d.nextPageID))

	// Take care not to include the 4 0x00 bytes where the checksum will be
	// placed *in* the checksum.
	checksum := crc32.ChecksumIEEE(data[:metaDataSize-4])
	binary.BigEndian.PutUint32(data[metaDataSize-4:], checksum)

	return data
}

// decodeMetaData decodes meta data and sets the disk's meta data to it.
//
// If the provided binary data is not a valid encoding, an error is returned.
// The disk's meta data is not affected if this is the case.
func (d *PersistentDisk) decodeMetaData(data []byte) error {
	if len(data) != metaDataSize {
		return errors.Wrapf(ErrCorruptPage, "meta data has %d bytes, expected %d", len(data), metaDataSize)
	}

	checksum := binary.BigEndian.Uint32(data[metaDataSize-4:])
	if sum := crc32.ChecksumIEEE(data[:metaDataSize-4]); sum != checksum {
		return errors.Wrapf(ErrCorruptPage, "meta data checksum %x != %x", checksum, sum)
	}
	if magic := binary.BigEndian.Uint32(data[0:4]); magic != metaMagic {
		return errors.Wrapf(ErrCorruptPage, "meta data magic %x", magic)
	}

	pageSize := int(binary.BigEndian.Uint32(data[4:8]))
	if pageSize != d.pageSize {
		return errors.Wrapf(ErrPageSizeMismatch, "store in %s uses %d byte pages, configured %d", d.Directory, pageSize, d.pageSize)
	}

	// Now we were able to load it all, so we can overwrite it
	d.nextPageID = PageID(binary.BigEndian.Uint32(data[8:12]))

	return nil
}

func (d *PersistentDisk) metaFilePath() string {
	return filepath.Join(d.Directory, metaStoreFile)
}
