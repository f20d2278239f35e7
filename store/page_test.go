package store

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emptyPage() *Page {
	return NewPage(make([]byte, testPageSize))
}

func TestPage_Empty(t *testing.T) {
	page := emptyPage()

	assert.Equal(t, 0, page.SlotCount())
	assert.Equal(t, testPageSize-PageHeaderSize, page.FreeSpace())

	_, err := page.GetRecord(0)
	assert.ErrorIs(t, err, ErrSlotOutOfRange)
}

func TestPage_PutGet(t *testing.T) {
	page := emptyPage()

	records := [][]byte{[]byte("first"), []byte("second record"), {}, []byte("4")}
	for i, record := range records {
		result := page.PutRecord(record, AppendSlot)
		require.True(t, result.IsOK())
		if result.Slot != SlotID(i) {
			t.Errorf("Actual slot = %d, Expected == %d", result.Slot, i)
		}
	}

	assert.Equal(t, len(records), page.SlotCount())
	for i, record := range records {
		data, err := page.GetRecord(SlotID(i))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(record, data), "slot %d: %q != %q", i, data, record)
	}

	used := PageHeaderSize + len(records)*SlotSize + len("first") + len("second record") + len("4")
	assert.Equal(t, testPageSize-used, page.FreeSpace())
}

func TestPage_PutExplicitAppend(t *testing.T) {
	page := emptyPage()

	result := page.PutRecord([]byte("a"), 0)
	require.True(t, result.IsOK())
	result = page.PutRecord([]byte("b"), 1)
	require.True(t, result.IsOK())

	assert.Equal(t, 2, page.SlotCount())
}

func TestPage_OutOfRange(t *testing.T) {
	page := emptyPage()
	require.True(t, page.PutRecord([]byte("a"), AppendSlot).IsOK())

	assert.True(t, page.PutRecord([]byte("b"), 2).IsOutOfRange())
	assert.True(t, page.PutRecord([]byte("b"), -2).IsOutOfRange())
	assert.Equal(t, 1, page.SlotCount())

	assert.ErrorIs(t, page.DeleteRecord(1), ErrSlotOutOfRange)
	_, err := page.GetRecord(-1)
	assert.ErrorIs(t, err, ErrSlotOutOfRange)
}

func TestPage_OutOfSpace(t *testing.T) {
	page := emptyPage()
	record := bytes.Repeat([]byte{1}, 30)

	puts := 0
	for {
		result := page.PutRecord(record, AppendSlot)
		if result.IsOutOfSpace() {
			break
		}
		require.True(t, result.IsOK())
		puts++
	}

	expected := (testPageSize - PageHeaderSize) / (len(record) + SlotSize)
	assert.Equal(t, expected, puts)
	assert.Equal(t, expected, page.SlotCount())
	assert.Less(t, page.FreeSpace(), len(record)+SlotSize)

	// a smaller record still fits
	assert.True(t, page.PutRecord([]byte{2}, AppendSlot).IsOK())

	// the page content is untouched by the failed put
	for i := 0; i < expected; i++ {
		data, err := page.GetRecord(SlotID(i))
		require.NoError(t, err)
		assert.Equal(t, record, data)
	}
}

func TestPage_Overwrite(t *testing.T) {
	page := emptyPage()
	require.True(t, page.PutRecord([]byte("0000000000"), AppendSlot).IsOK())
	require.True(t, page.PutRecord([]byte("neighbour"), AppendSlot).IsOK())
	free := page.FreeSpace()

	// shorter record stays in place
	result := page.PutRecord([]byte("short"), 0)
	require.True(t, result.IsOK())
	assert.Equal(t, SlotID(0), result.Slot)
	assert.Equal(t, free, page.FreeSpace())

	// longer record is relocated, slot ID is stable
	result = page.PutRecord([]byte("a much longer record"), 0)
	require.True(t, result.IsOK())
	assert.Equal(t, SlotID(0), result.Slot)
	assert.Equal(t, free-len("a much longer record"), page.FreeSpace())
	assert.Equal(t, 2, page.SlotCount())

	data, err := page.GetRecord(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("a much longer record"), data)
	data, err = page.GetRecord(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("neighbour"), data)
}

func TestPage_OverwriteOutOfSpace(t *testing.T) {
	page := emptyPage()
	require.True(t, page.PutRecord([]byte("x"), AppendSlot).IsOK())

	result := page.PutRecord(make([]byte, testPageSize), 0)
	assert.True(t, result.IsOutOfSpace())

	data, err := page.GetRecord(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}

func TestPage_Delete(t *testing.T) {
	page := emptyPage()
	for _, s := range []string{"a", "b", "c"} {
		require.True(t, page.PutRecord([]byte(s), AppendSlot).IsOK())
	}
	free := page.FreeSpace()

	require.NoError(t, page.DeleteRecord(1))
	require.NoError(t, page.DeleteRecord(1))

	_, err := page.GetRecord(1)
	assert.ErrorIs(t, err, ErrDeletedSlot)
	assert.Equal(t, 3, page.SlotCount(), "slots are tombstoned, not removed")
	assert.Equal(t, free, page.FreeSpace(), "deleted bytes are not reclaimed")

	data, err := page.GetRecord(2)
	require.NoError(t, err)
	assert.Equal(t, []byte("c"), data)

	// a deleted slot can be reused explicitly
	result := page.PutRecord([]byte("B"), 1)
	require.True(t, result.IsOK())
	data, err = page.GetRecord(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("B"), data)
}

func TestPage_ForEachRecord(t *testing.T) {
	page := emptyPage()
	for _, s := range []string{"a", "b", "c"} {
		require.True(t, page.PutRecord([]byte(s), AppendSlot).IsOK())
	}
	require.NoError(t, page.DeleteRecord(1))

	var visited []string
	var deleted []SlotID
	page.ForEachRecord(func(slot SlotID, data []byte, isDeleted bool) bool {
		if isDeleted {
			deleted = append(deleted, slot)
			return true
		}
		visited = append(visited, string(data))
		return true
	})

	assert.Equal(t, []string{"a", "c"}, visited)
	assert.Equal(t, []SlotID{1}, deleted)

	count := 0
	page.ForEachRecord(func(SlotID, []byte, bool) bool {
		count++
		return false
	})
	assert.Equal(t, 1, count)
}

func TestPage_LargestPage(t *testing.T) {
	page := NewPage(make([]byte, MaxPageSize))
	record := bytes.Repeat([]byte{5}, 1000)

	for i := 0; i < 10; i++ {
		require.True(t, page.PutRecord(record, AppendSlot).IsOK())
	}

	data, err := page.GetRecord(9)
	require.NoError(t, err)
	assert.Equal(t, record, data)
	assert.Equal(t, MaxPageSize-PageHeaderSize-10*(len(record)+SlotSize), page.FreeSpace())
}

func TestValidatePageSize(t *testing.T) {
	assert.NoError(t, ValidatePageSize(DefaultPageSize))
	assert.NoError(t, ValidatePageSize(MinPageSize))
	assert.NoError(t, ValidatePageSize(MaxPageSize))
	assert.Error(t, ValidatePageSize(MinPageSize-1))
	assert.Error(t, ValidatePageSize(MaxPageSize+1))
}
