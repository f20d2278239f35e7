package store

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/tobiasfamos/PageStore/util"
)

const (
	// DefaultPageSize is the default size C of a whole page.
	DefaultPageSize = 4096
	// MinPageSize and MaxPageSize bound the configurable page size. Offsets inside a
	// page are stored as uint16.
	MinPageSize = 256
	MaxPageSize = 1 << 16

	// PageHeaderSize is the size of the page header. Equivalent to the start of the slot directory.
	PageHeaderSize = 8
	// SlotSize is the size of one slot directory entry (the record header).
	SlotSize = 6
)

const (
	slotCountOffset = 0
	freeEndOffset   = 2

	slotFlagDeleted = 1
)

// SlotID addresses a record inside a page. Slot IDs are stable for the lifetime of a page.
type SlotID int

// AppendSlot asks PutRecord to append a new slot.
const AppendSlot SlotID = -1

// ValidatePageSize checks that size is a usable page size.
func ValidatePageSize(size int) error {
	if size < MinPageSize || size > MaxPageSize {
		return errors.Errorf("page size %d outside [%d, %d]", size, MinPageSize, MaxPageSize)
	}
	return nil
}

// PutStatus tells whether a PutRecord succeeded.
type PutStatus uint8

const (
	PutOK PutStatus = iota
	PutOutOfSpace
	PutOutOfRange
)

// PutResult is the outcome of Page.PutRecord. Running out of space is an expected
// result, not an error.
type PutResult struct {
	Slot   SlotID
	Status PutStatus
}

func (r PutResult) IsOK() bool {
	return r.Status == PutOK
}

func (r PutResult) IsOutOfSpace() bool {
	return r.Status == PutOutOfSpace
}

func (r PutResult) IsOutOfRange() bool {
	return r.Status == PutOutOfRange
}

/*
Page is a slotted page over a fixed-length byte buffer.

	+--------+-----------------+ - - - - - - +-----------------------+
	| header | slot directory ->    free       <- record data        |
	+--------+-----------------+ - - - - - - +-----------------------+

The header stores the slot count and the start of the record data (the free space
end); both are zero on a freshly allocated page, which is therefore a valid empty
page. Each slot holds (offset, length, flags). Deleted slots are tombstoned and their
bytes are never reclaimed: there is no compaction.
*/
type Page struct {
	data []byte
}

// NewPage wraps data without copying it.
func NewPage(data []byte) *Page {
	return &Page{data: data}
}

// Bytes returns the underlying buffer.
func (p *Page) Bytes() []byte {
	return p.data
}

func (p *Page) SlotCount() int {
	return int(binary.BigEndian.Uint16(p.data[slotCountOffset:]))
}

// FreeSpace is the number of bytes between the slot directory and the record data.
// A new record needs its length plus SlotSize.
func (p *Page) FreeSpace() int {
	return util.Max(p.freeEnd()-p.freeStart(), 0)
}

// PutRecord stores data in the slot given by slotHint.
//
// AppendSlot or the current slot count appends a new slot. An existing slot, deleted
// or not, is overwritten and keeps its ID. A hint beyond the slot count is out of range.
func (p *Page) PutRecord(data []byte, slotHint SlotID) PutResult {
	n := p.SlotCount()
	slot := slotHint
	if slot == AppendSlot {
		slot = SlotID(n)
	}
	if slot < 0 || int(slot) > n {
		return PutResult{Slot: slotHint, Status: PutOutOfRange}
	}

	if int(slot) == n {
		if len(data)+SlotSize > p.FreeSpace() {
			return PutResult{Slot: slot, Status: PutOutOfSpace}
		}
		offset := p.place(data)
		p.setSlotCount(n + 1)
		p.setSlot(slot, offset, len(data), 0)
		return PutResult{Slot: slot, Status: PutOK}
	}

	offset, length, _ := p.slot(slot)
	if offset+length > len(p.data) {
		length = 0
	}
	if len(data) <= length {
		copy(p.data[offset:], data)
		p.setSlot(slot, offset, len(data), 0)
		return PutResult{Slot: slot, Status: PutOK}
	}
	if len(data) > p.FreeSpace() {
		return PutResult{Slot: slot, Status: PutOutOfSpace}
	}
	p.setSlot(slot, p.place(data), len(data), 0)

	return PutResult{Slot: slot, Status: PutOK}
}

// GetRecord returns a copy of the record in slot.
func (p *Page) GetRecord(slot SlotID) ([]byte, error) {
	if slot < 0 || int(slot) >= p.SlotCount() {
		return nil, errors.Wrapf(ErrSlotOutOfRange, "slot %d of %d", slot, p.SlotCount())
	}

	offset, length, flags := p.slot(slot)
	if flags&slotFlagDeleted != 0 {
		return nil, errors.Wrapf(ErrDeletedSlot, "slot %d", slot)
	}
	if offset+length > len(p.data) {
		return nil, errors.Wrapf(ErrCorruptPage, "slot %d points past the page end", slot)
	}

	record := make([]byte, length)
	copy(record, p.data[offset:offset+length])
	return record, nil
}

// DeleteRecord tombstones slot. Deleting a deleted slot is a no-op.
func (p *Page) DeleteRecord(slot SlotID) error {
	if slot < 0 || int(slot) >= p.SlotCount() {
		return errors.Wrapf(ErrSlotOutOfRange, "slot %d of %d", slot, p.SlotCount())
	}

	offset, length, flags := p.slot(slot)
	p.setSlot(slot, offset, length, flags|slotFlagDeleted)

	return nil
}

// ForEachRecord calls fn for every slot in order, including deleted ones, until fn returns false.
// The data passed to fn aliases the page and must not be retained.
func (p *Page) ForEachRecord(fn func(slot SlotID, data []byte, deleted bool) bool) {
	n := p.SlotCount()
	for i := 0; i < n; i++ {
		offset, length, flags := p.slot(SlotID(i))
		end := util.Min(offset+length, len(p.data))
		if !fn(SlotID(i), p.data[util.Clamp(offset, 0, end):end], flags&slotFlagDeleted != 0) {
			return
		}
	}
}

func (p *Page) freeStart() int {
	return PageHeaderSize + p.SlotCount()*SlotSize
}

func (p *Page) freeEnd() int {
	end := int(binary.BigEndian.Uint16(p.data[freeEndOffset:]))
	if end == 0 {
		// An empty page, or a full 64 KiB one whose data region is untouched.
		return len(p.data)
	}
	return end
}

func (p *Page) setSlotCount(n int) {
	binary.BigEndian.PutUint16(p.data[slotCountOffset:], uint16(n))
}

func (p *Page) setFreeEnd(end int) {
	if end == len(p.data) {
		end = 0
	}
	binary.BigEndian.PutUint16(p.data[freeEndOffset:], uint16(end))
}

// place copies data in front of the record data region and returns its offset.
func (p *Page) place(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	offset := p.freeEnd() - len(data)
	copy(p.data[offset:], data)
	p.setFreeEnd(offset)
	return offset
}

func (p *Page) slot(slot SlotID) (offset, length int, flags uint16) {
	e := p.data[PageHeaderSize+int(slot)*SlotSize:]
	return int(binary.BigEndian.Uint16(e[0:2])), int(binary.BigEndian.Uint16(e[2:4])), binary.BigEndian.Uint16(e[4:6])
}

func (p *Page) setSlot(slot SlotID, offset, length int, flags uint16) {
	e := p.data[PageHeaderSize+int(slot)*SlotSize:]
	binary.BigEndian.PutUint16(e[0:2], uint16(offset))
	binary.BigEndian.PutUint16(e[2:4], uint16(length))
	binary.BigEndian.PutUint16(e[4:6], flags)
}
