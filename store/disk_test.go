package store

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const diskSize = 8

func emptyDisks(t *testing.T) map[string]Disk {
	t.Helper()

	persistent, err := NewPersistentDisk(t.TempDir(), testPageSize, diskSize)
	if err != nil {
		t.Fatalf("Error creating persistent disk: %v", err)
	}
	t.Cleanup(func() { _ = persistent.Close() })

	return map[string]Disk{
		"ram":        NewRAMDisk(testPageSize, diskSize),
		"compressed": NewRAMDisk(testPageSize, diskSize, WithCompression()),
		"persistent": persistent,
	}
}

func TestDisk_AllocatePage(t *testing.T) {
	for name, disk := range emptyDisks(t) {
		t.Run(name, func(t *testing.T) {
			for i := uint32(0); i < disk.Capacity(); i++ {
				id, err := disk.AllocatePage()

				if err != nil {
					t.Errorf("Actual error = %s, Expected == nil", err)
				}
				if id != FirstPageID+PageID(i) {
					t.Errorf("Actual PageID = %d, Expected == %d", id, i)
				}
				if disk.Occupied() != i+1 {
					t.Errorf("Actual occupied = %d, Expected == %d", disk.Occupied(), i+1)
				}
			}

			for i := 0; i < 4; i++ {
				_, err := disk.AllocatePage()

				if !assert.ErrorIs(t, err, ErrDiskFull) {
					continue
				}
				if disk.Occupied() != disk.Capacity() {
					t.Errorf("Actual occupied = %d, Expected == %d", disk.Occupied(), disk.Capacity())
				}
			}
		})
	}
}

func TestDisk_ReadFreshPage(t *testing.T) {
	for name, disk := range emptyDisks(t) {
		t.Run(name, func(t *testing.T) {
			id, err := disk.AllocatePage()
			require.NoError(t, err)

			data, err := disk.ReadPage(id)
			require.NoError(t, err)

			if !bytes.Equal(data, make([]byte, testPageSize)) {
				t.Errorf("fresh page should be zeroed")
			}
		})
	}
}

func TestDisk_UnallocatedPage(t *testing.T) {
	for name, disk := range emptyDisks(t) {
		t.Run(name, func(t *testing.T) {
			_, err := disk.AllocatePage()
			require.NoError(t, err)

			_, err = disk.ReadPage(1)
			assert.ErrorIs(t, err, ErrPageNotFound)

			err = disk.WritePage(1, make([]byte, testPageSize))
			assert.ErrorIs(t, err, ErrPageNotFound)
		})
	}
}

func TestDisk_SizeMismatch(t *testing.T) {
	for name, disk := range emptyDisks(t) {
		t.Run(name, func(t *testing.T) {
			id, err := disk.AllocatePage()
			require.NoError(t, err)

			err = disk.WritePage(id, make([]byte, testPageSize-1))
			assert.ErrorIs(t, err, ErrSizeMismatch)

			err = disk.WritePage(id, make([]byte, testPageSize+1))
			assert.ErrorIs(t, err, ErrSizeMismatch)
		})
	}
}

func TestDisk_ReadReturnsCopy(t *testing.T) {
	for name, disk := range emptyDisks(t) {
		t.Run(name, func(t *testing.T) {
			id, err := disk.AllocatePage()
			require.NoError(t, err)

			data := bytes.Repeat([]byte{7}, testPageSize)
			require.NoError(t, disk.WritePage(id, data))
			data[0] = 0

			read, err := disk.ReadPage(id)
			require.NoError(t, err)
			read[1] = 0

			again, err := disk.ReadPage(id)
			require.NoError(t, err)
			assert.Equal(t, bytes.Repeat([]byte{7}, testPageSize), again)
		})
	}
}

func FuzzDisk_WritePage(f *testing.F) {
	f.Add([]byte{42, 69})
	f.Add(bytes.Repeat([]byte{0xff}, testPageSize))
	f.Fuzz(func(t *testing.T, in []byte) {
		for name, disk := range emptyDisks(t) {
			id, _ := disk.AllocatePage()
			data := make([]byte, testPageSize)
			copy(data, in)

			if err := disk.WritePage(id, data); err != nil {
				t.Errorf("%s: Actual error = %s, Expected == nil", name, err)
			}

			page, _ := disk.ReadPage(id)
			if !bytes.Equal(page, data) {
				t.Errorf("%s: Actual data = %x, Expected == %x", name, page, data)
			}
		}
	})
}

func TestRAMDisk_Stats(t *testing.T) {
	disk := NewRAMDisk(testPageSize, diskSize)
	id, err := disk.AllocatePage()
	require.NoError(t, err)

	require.NoError(t, disk.WritePage(id, make([]byte, testPageSize)))
	_, err = disk.ReadPage(id)
	require.NoError(t, err)
	_, err = disk.ReadPage(id)
	require.NoError(t, err)

	// failed accesses are not counted
	_, _ = disk.ReadPage(id + 1)

	assert.Equal(t, DiskStats{Reads: 2, Writes: 1, AccessCost: 15}, disk.Stats())
}
