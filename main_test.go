package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobiasfamos/PageStore/conf"
	"github.com/tobiasfamos/PageStore/record"
	"github.com/tobiasfamos/PageStore/store"
)

func newTestCLI(t *testing.T) *CLI {
	t.Helper()

	cfg := conf.NewCfg()
	cfg.PageSize = store.MinPageSize
	cfg.CacheCapacity = 4
	cli, err := NewCLI(cfg)
	require.NoError(t, err)
	return cli
}

func TestCLI_Session(t *testing.T) {
	cli := newTestCLI(t)

	steps := []struct {
		cmd      string
		contains string
	}{
		{"create people", "oid 1"},
		{"create people", "already exists"},
		{"grow people 2", "[1, 3)"},
		{"grow nobody 2", "unknown table"},
		{"put people 1 i:42 s:ada d:1815-12-10", "slot 0"},
		{"put people 2 s:grace", "page 2 slot 0"},
		{"put people 0 s:catalog", "does not belong"},
		{"put people 1 x:1", "Invalid record"},
		{"scan people", "2 records"},
		{"tables", "people"},
		{"flush", "Flushed"},
		{"stats", "write backs"},
		{"bogus", "Valid commands"},
	}

	for _, step := range steps {
		response, cont := cli.Handle(step.cmd)
		assert.True(t, cont, step.cmd)
		assert.Contains(t, response, step.contains, step.cmd)
	}

	response, cont := cli.Handle("exit")
	assert.False(t, cont)
	assert.Contains(t, response, "closed")
}

func TestCLI_ScanOutput(t *testing.T) {
	cli := newTestCLI(t)
	defer cli.Close()

	cli.Handle("create t")
	cli.Handle("grow t 1")
	cli.Handle("put t 1 i:7 s:x")

	response := cli.scan("t")
	lines := strings.Split(response, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "1/0\t(7, \"x\")", lines[0])
}

func TestParseRecord(t *testing.T) {
	r, err := parseRecord([]string{"i:-5", "s:a:b", "d:2024-02-29"})
	require.NoError(t, err)

	expected := record.Of(
		record.Int(-5),
		record.String("a:b"),
		record.Date(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)),
	)
	assert.True(t, expected.Equal(r))

	for _, bad := range []string{"42", "i:x", "d:2024-13-01", "f:1.5"} {
		_, err := parseRecord([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig([]string{"--capacity", "7", "--eviction", "FIFO", "--page-size", "512"})
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.CacheCapacity)
	assert.Equal(t, store.EvictionFIFO, cfg.Eviction)
	assert.Equal(t, 512, cfg.PageSize)
	assert.Equal(t, store.StorageMemory, cfg.StorageKind)

	cfg, err = loadConfig([]string{"--dir", t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, store.StorageFile, cfg.StorageKind)

	_, err = loadConfig([]string{"--capacity", "0"})
	assert.Error(t, err)
}
