package store

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/OneOfOne/xxhash"
	"github.com/pkg/errors"
)

// checksumSize is the size of the xxhash64 trailer stored after every page.
const checksumSize = 8

// PageFile is a file on disk containing multiple pages.
//
// Page i lives in the frame at offset i*(PageSize+8): the page bytes followed by their
// xxhash64. A frame that is entirely zero was never written and reads as an empty page.
type PageFile struct {
	// Path is the path to the page file's location on disk.
	Path string
	// PageSize is the size of a page without its checksum.
	PageSize int

	file *os.File
}

// OpenPageFile opens or creates the page file at path.
func OpenPageFile(path string, pageSize int) (*PageFile, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0660)
	if err != nil {
		return nil, errors.Wrapf(err, "open page file %s", path)
	}

	return &PageFile{Path: path, PageSize: pageSize, file: file}, nil
}

func (pf *PageFile) frameSize() int64 {
	return int64(pf.PageSize + checksumSize)
}

// WritePage writes the page bytes and their checksum to the page's frame.
func (pf *PageFile) WritePage(id PageID, data []byte) error {
	if len(data) != pf.PageSize {
		return errors.Wrapf(ErrSizeMismatch, "write page %d: %d bytes, expected %d", id, len(data), pf.PageSize)
	}

	frame := make([]byte, pf.PageSize+checksumSize)
	copy(frame, data)
	binary.BigEndian.PutUint64(frame[pf.PageSize:], xxhash.Checksum64(data))

	if _, err := pf.file.WriteAt(frame, int64(id)*pf.frameSize()); err != nil {
		return errors.Wrapf(err, "write page %d to %s", id, pf.Path)
	}

	return nil
}

// ReadPage reads the page with the given ID and verifies its checksum.
//
// Pages beyond the end of the file, or never written, read as zeros.
func (pf *PageFile) ReadPage(id PageID) ([]byte, error) {
	frame := make([]byte, pf.PageSize+checksumSize)

	n, err := pf.file.ReadAt(frame, int64(id)*pf.frameSize())
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrapf(err, "read page %d from %s", id, pf.Path)
	}
	if n < len(frame) && n > 0 {
		return nil, errors.Wrapf(ErrCorruptPage, "page %d: short frame of %d bytes", id, n)
	}

	data := frame[:pf.PageSize]
	stored := binary.BigEndian.Uint64(frame[pf.PageSize:])
	if stored == 0 && isZero(data) {
		return data, nil
	}
	if sum := xxhash.Checksum64(data); sum != stored {
		return nil, errors.Wrapf(ErrCorruptPage, "page %d: checksum %x != %x", id, stored, sum)
	}

	return data, nil
}

// Sync commits the file contents to stable storage.
func (pf *PageFile) Sync() error {
	return pf.file.Sync()
}

func (pf *PageFile) Close() error {
	return pf.file.Close()
}

func isZero(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}
