// Package conf loads the page store configuration from an ini file.
package conf

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"

	"github.com/tobiasfamos/PageStore/store"
)

/*
Cfg is the page store configuration.

	[storage]
	kind      = memory
	dir       = data
	page_size = 4096
	max_pages = 65536
	latency   = 0s
	compress  = false

	[cache]
	capacity = 20
	eviction = lru

	[log]
	level = info
*/
type Cfg struct {
	Raw *ini.File

	// storage
	StorageKind string
	DataDir     string
	PageSize    int
	MaxPages    uint32
	Latency     time.Duration
	Compress    bool

	// cache
	CacheCapacity int
	Eviction      string

	// log
	LogLevel string
}

func NewCfg() *Cfg {
	return &Cfg{
		Raw:           ini.Empty(),
		StorageKind:   store.StorageMemory,
		DataDir:       "data",
		PageSize:      store.DefaultPageSize,
		MaxPages:      store.DefaultMaxPages,
		CacheCapacity: 20,
		Eviction:      store.EvictionLRU,
		LogLevel:      "info",
	}
}

// Load overlays the settings of the ini file at path onto cfg and validates the result.
func (cfg *Cfg) Load(path string) error {
	iniFile, err := ini.Load(path)
	if err != nil {
		return errors.Wrapf(err, "load configuration %s", path)
	}
	return cfg.Parse(iniFile)
}

// Parse overlays the settings of an ini file onto cfg and validates the result.
func (cfg *Cfg) Parse(iniFile *ini.File) error {
	cfg.Raw = iniFile

	if err := cfg.parseStorageCfg(iniFile.Section("storage")); err != nil {
		return err
	}
	if err := cfg.parseCacheCfg(iniFile.Section("cache")); err != nil {
		return err
	}
	cfg.parseLogCfg(iniFile.Section("log"))

	return cfg.Validate()
}

func (cfg *Cfg) parseStorageCfg(section *ini.Section) error {
	var err error

	cfg.StorageKind = strings.ToLower(section.Key("kind").MustString(cfg.StorageKind))
	cfg.DataDir = section.Key("dir").MustString(cfg.DataDir)
	cfg.Compress = section.Key("compress").MustBool(cfg.Compress)

	if key := section.Key("page_size"); key.String() != "" {
		if cfg.PageSize, err = key.Int(); err != nil {
			return errors.Wrap(err, "storage.page_size")
		}
	}
	if key := section.Key("max_pages"); key.String() != "" {
		maxPages, err := key.Uint()
		if err != nil {
			return errors.Wrap(err, "storage.max_pages")
		}
		cfg.MaxPages = uint32(maxPages)
	}
	if key := section.Key("latency"); key.String() != "" {
		if cfg.Latency, err = key.Duration(); err != nil {
			return errors.Wrap(err, "storage.latency")
		}
	}

	return nil
}

func (cfg *Cfg) parseCacheCfg(section *ini.Section) error {
	var err error

	if key := section.Key("capacity"); key.String() != "" {
		if cfg.CacheCapacity, err = key.Int(); err != nil {
			return errors.Wrap(err, "cache.capacity")
		}
	}
	cfg.Eviction = strings.ToLower(section.Key("eviction").MustString(cfg.Eviction))

	return nil
}

func (cfg *Cfg) parseLogCfg(section *ini.Section) {
	cfg.LogLevel = section.Key("level").MustString(cfg.LogLevel)
}

// Validate rejects settings the store cannot run with.
func (cfg *Cfg) Validate() error {
	if err := store.ValidatePageSize(cfg.PageSize); err != nil {
		return errors.Wrap(err, "storage.page_size")
	}
	switch cfg.StorageKind {
	case store.StorageMemory:
	case store.StorageFile:
		if cfg.DataDir == "" {
			return errors.New("storage.dir is required for file storage")
		}
	default:
		return errors.Errorf("storage.kind: unknown kind %q", cfg.StorageKind)
	}
	if cfg.MaxPages == 0 {
		return errors.New("storage.max_pages must be positive")
	}
	if cfg.Latency < 0 {
		return errors.New("storage.latency must not be negative")
	}
	if cfg.CacheCapacity < 1 {
		return errors.Errorf("cache.capacity must be at least 1, got %d", cfg.CacheCapacity)
	}
	switch cfg.Eviction {
	case store.EvictionLRU, store.EvictionFIFO:
	default:
		return errors.Errorf("cache.eviction: unknown policy %q", cfg.Eviction)
	}
	return nil
}

// StoreOptions converts the configuration into store options.
func (cfg *Cfg) StoreOptions() store.Options {
	return store.Options{
		Kind:          cfg.StorageKind,
		Directory:     cfg.DataDir,
		PageSize:      cfg.PageSize,
		MaxPages:      cfg.MaxPages,
		Latency:       cfg.Latency,
		Compress:      cfg.Compress,
		CacheCapacity: uint(cfg.CacheCapacity),
		Eviction:      cfg.Eviction,
	}
}
