package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/ini.v1"

	"github.com/tobiasfamos/PageStore/store"
)

func TestNewCfg_Defaults(t *testing.T) {
	cfg := NewCfg()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, store.StorageMemory, cfg.StorageKind)
	assert.Equal(t, 4096, cfg.PageSize)
	assert.Equal(t, 20, cfg.CacheCapacity)
	assert.Equal(t, store.EvictionLRU, cfg.Eviction)
}

func TestCfg_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagestore.ini")
	content := `
[storage]
kind      = FILE
dir       = /tmp/pages
page_size = 8192
max_pages = 1024
latency   = 2ms
compress  = true

[cache]
capacity = 64
eviction = fifo

[log]
level = debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg := NewCfg()
	require.NoError(t, cfg.Load(path))

	assert.Equal(t, store.StorageFile, cfg.StorageKind)
	assert.Equal(t, "/tmp/pages", cfg.DataDir)
	assert.Equal(t, 8192, cfg.PageSize)
	assert.Equal(t, uint32(1024), cfg.MaxPages)
	assert.Equal(t, 2*time.Millisecond, cfg.Latency)
	assert.True(t, cfg.Compress)
	assert.Equal(t, 64, cfg.CacheCapacity)
	assert.Equal(t, store.EvictionFIFO, cfg.Eviction)
	assert.Equal(t, "debug", cfg.LogLevel)

	opts := cfg.StoreOptions()
	assert.Equal(t, uint(64), opts.CacheCapacity)
	assert.Equal(t, 8192, opts.PageSize)
}

func TestCfg_PartialFileKeepsDefaults(t *testing.T) {
	f, err := ini.Load([]byte("[cache]\ncapacity = 3\n"))
	require.NoError(t, err)

	cfg := NewCfg()
	require.NoError(t, cfg.Parse(f))

	assert.Equal(t, 3, cfg.CacheCapacity)
	assert.Equal(t, store.DefaultPageSize, cfg.PageSize)
	assert.Equal(t, store.StorageMemory, cfg.StorageKind)
}

func TestCfg_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"page size too small", "[storage]\npage_size = 100\n"},
		{"page size not a number", "[storage]\npage_size = big\n"},
		{"unknown kind", "[storage]\nkind = tape\n"},
		{"zero capacity", "[cache]\ncapacity = 0\n"},
		{"unknown eviction", "[cache]\neviction = random\n"},
		{"bad latency", "[storage]\nlatency = soon\n"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f, err := ini.Load([]byte(test.content))
			require.NoError(t, err)

			assert.Error(t, NewCfg().Parse(f))
		})
	}
}
