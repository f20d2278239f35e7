package store

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/tobiasfamos/PageStore/logger"
	"github.com/tobiasfamos/PageStore/search"
)

// Oid identifies a table. User tables get oids 1, 2, ... in creation order.
type Oid int32

// CatalogOid is the oid of the catalog itself.
const CatalogOid Oid = 0

// MaxTableNameLength bounds table names so a table record always fits a catalog page.
const MaxTableNameLength = 128

// TableInfo describes a table.
type TableInfo struct {
	Oid   Oid
	Name  string
	Pages int
}

type table struct {
	oid   Oid
	name  string
	pages []PageID
}

// extent is a contiguous range of pages owned by one table.
type extent struct {
	first PageID
	count int
	oid   Oid
}

/*
AccessMethodManager maintains the table catalog and allocates pages to tables.

The catalog is stored in catalog pages, starting at FirstPageID, as records
(see catalog.go). Catalog pages form a chain through a link record in slot 0, and a
new catalog page is allocated when the last one is full. The in-memory maps mirror the
catalog and are rebuilt from it when a manager is opened on a non-empty disk.
*/
type AccessMethodManager struct {
	pool *BufferPool

	mu           sync.Mutex
	catalogPages []PageID
	tables       map[Oid]*table
	byName       map[string]Oid
	// extents is sorted by first page; extentStarts holds the first pages for searching.
	extents      []extent
	extentStarts []PageID
	nextOid      Oid
}

// NewAccessMethodManager opens the catalog on the pool's disk, creating it on an empty disk.
func NewAccessMethodManager(pool *BufferPool) (*AccessMethodManager, error) {
	m := &AccessMethodManager{
		pool:    pool,
		tables:  make(map[Oid]*table),
		byName:  make(map[string]Oid),
		nextOid: CatalogOid + 1,
	}

	root, err := pool.GetAndPin(FirstPageID)
	if IsNotFound(err) {
		if err := m.bootstrap(); err != nil {
			return nil, err
		}
		return m, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "open catalog")
	}
	root.Release()

	if err := m.load(); err != nil {
		return nil, err
	}

	logger.Infof("catalog loaded: %d tables in %d catalog pages", len(m.tables), len(m.catalogPages))

	return m, nil
}

func (m *AccessMethodManager) bootstrap() error {
	id, err := m.pool.AllocatePages(1)
	if err != nil {
		return errors.Wrap(err, "allocate catalog root")
	}
	if id != FirstPageID {
		return errors.Wrapf(ErrCatalogCorrupt, "catalog root allocated at page %d", id)
	}

	root, err := m.pool.GetAndPin(id)
	if err != nil {
		return errors.Wrap(err, "pin catalog root")
	}
	defer root.Release()

	if !root.PutRecord(linkRecord(noPage), AppendSlot).IsOK() {
		return errors.New("catalog root cannot hold its link record")
	}
	m.addCatalogPage(id)

	logger.Debugf("created catalog root at page %d", id)

	return nil
}

func (m *AccessMethodManager) load() error {
	seen := make(map[PageID]bool)
	for id := FirstPageID; ; {
		if seen[id] {
			return errors.Wrapf(ErrCatalogCorrupt, "catalog page chain loops at page %d", id)
		}
		seen[id] = true
		m.addCatalogPage(id)

		next, err := m.loadCatalogPage(id)
		if err != nil {
			return err
		}
		if next == noPage {
			return nil
		}
		id = next
	}
}

// loadCatalogPage registers the catalog records of one page and returns the next catalog page.
func (m *AccessMethodManager) loadCatalogPage(id PageID) (PageID, error) {
	page, err := m.pool.GetAndPin(id)
	if err != nil {
		return noPage, errors.Wrapf(err, "read catalog page %d", id)
	}
	defer page.Release()

	if page.SlotCount() == 0 && id == FirstPageID {
		// Root allocated but never formatted.
		if !page.PutRecord(linkRecord(noPage), AppendSlot).IsOK() {
			return noPage, errors.New("catalog root cannot hold its link record")
		}
		return noPage, nil
	}

	next := noPage
	var loadErr error
	page.ForEachRecord(func(slot SlotID, data []byte, deleted bool) bool {
		if deleted {
			return true
		}
		entry, err := decodeCatalogEntry(data)
		if err != nil {
			loadErr = errors.Wrapf(err, "page %d slot %d", id, slot)
			return false
		}
		if (slot == 0) != (entry.kind == catalogLink) {
			loadErr = errors.Wrapf(ErrCatalogCorrupt, "page %d slot %d: link record misplaced", id, slot)
			return false
		}

		switch entry.kind {
		case catalogLink:
			next = entry.next
		case catalogTable:
			loadErr = m.registerTable(entry.oid, entry.name)
		case catalogExtent:
			loadErr = m.registerExtent(entry.oid, entry.first, entry.count)
		}
		if loadErr != nil {
			loadErr = errors.Wrapf(loadErr, "page %d slot %d", id, slot)
			return false
		}
		return true
	})

	return next, loadErr
}

func (m *AccessMethodManager) registerTable(oid Oid, name string) error {
	if oid <= CatalogOid {
		return errors.Wrapf(ErrCatalogCorrupt, "table %q has invalid oid %d", name, oid)
	}
	if _, ok := m.byName[name]; ok {
		return errors.Wrapf(ErrCatalogCorrupt, "table %q registered twice", name)
	}
	if _, ok := m.tables[oid]; ok {
		return errors.Wrapf(ErrCatalogCorrupt, "oid %d registered twice", oid)
	}

	m.tables[oid] = &table{oid: oid, name: name}
	m.byName[name] = oid
	if oid >= m.nextOid {
		m.nextOid = oid + 1
	}
	return nil
}

func (m *AccessMethodManager) registerExtent(oid Oid, first PageID, count int) error {
	t, ok := m.tables[oid]
	if !ok || count <= 0 {
		return errors.Wrapf(ErrCatalogCorrupt, "extent of %d pages at %d for oid %d", count, first, oid)
	}
	for i := 0; i < count; i++ {
		t.pages = append(t.pages, first+PageID(i))
	}
	m.insertExtent(extent{first: first, count: count, oid: oid})
	return nil
}

func (m *AccessMethodManager) addCatalogPage(id PageID) {
	m.catalogPages = append(m.catalogPages, id)
	m.insertExtent(extent{first: id, count: 1, oid: CatalogOid})
}

func (m *AccessMethodManager) insertExtent(e extent) {
	idx, _ := search.Binary(e.first, m.extentStarts)
	m.extents = slices.Insert(m.extents, int(idx), e)
	m.extentStarts = slices.Insert(m.extentStarts, int(idx), e.first)
}

// appendCatalog stores a catalog record in the last catalog page, growing the chain if it is full.
// At most one catalog page is pinned at a time, so a single frame cache can grow the catalog.
func (m *AccessMethodManager) appendCatalog(data []byte) error {
	last := m.catalogPages[len(m.catalogPages)-1]
	stored, err := m.putCatalog(last, data, AppendSlot)
	if err != nil || stored {
		return err
	}

	next, err := m.pool.AllocatePages(1)
	if err != nil {
		return errors.Wrap(err, "grow catalog")
	}
	if err := m.formatCatalogPage(next, data); err != nil {
		return err
	}
	// Same size as the old link, so it is overwritten in place.
	relinked, err := m.putCatalog(last, linkRecord(next), 0)
	if err != nil {
		return err
	}
	if !relinked {
		return errors.Wrapf(ErrCatalogCorrupt, "cannot relink catalog page %d", last)
	}
	m.addCatalogPage(next)

	logger.Debugf("catalog grew to page %d", next)

	return nil
}

// putCatalog puts data into a catalog page and reports whether it fit.
func (m *AccessMethodManager) putCatalog(id PageID, data []byte, slot SlotID) (bool, error) {
	page, err := m.pool.GetAndPin(id)
	if err != nil {
		return false, errors.Wrapf(err, "pin catalog page %d", id)
	}
	defer page.Release()

	return page.PutRecord(data, slot).IsOK(), nil
}

// formatCatalogPage writes the terminating link record and the first catalog record to a new page.
func (m *AccessMethodManager) formatCatalogPage(id PageID, data []byte) error {
	page, err := m.pool.GetAndPin(id)
	if err != nil {
		return errors.Wrapf(err, "pin catalog page %d", id)
	}
	defer page.Release()

	if !page.PutRecord(linkRecord(noPage), AppendSlot).IsOK() || !page.PutRecord(data, AppendSlot).IsOK() {
		return errors.Errorf("catalog record of %d bytes does not fit an empty page", len(data))
	}
	return nil
}

/*
CreateTable registers a new empty table and returns its oid.

Fails with ErrDuplicateTable if the name is taken and with ErrInvalidTableName for an
empty or too long name.
*/
func (m *AccessMethodManager) CreateTable(name string) (Oid, error) {
	if name == "" || len(name) > MaxTableNameLength {
		return 0, errors.Wrapf(ErrInvalidTableName, "%q", name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byName[name]; ok {
		return 0, errors.Wrapf(ErrDuplicateTable, "%q", name)
	}

	oid := m.nextOid
	if err := m.appendCatalog(tableRecord(oid, name)); err != nil {
		return 0, errors.Wrapf(err, "create table %q", name)
	}
	if err := m.registerTable(oid, name); err != nil {
		return 0, err
	}

	logger.Debugf("created table %q with oid %d", name, oid)

	return oid, nil
}

/*
AddPage allocates count contiguous pages to a table and returns the first page ID.
The table's page list gains first, first+1, ..., first+count-1.

Fails with ErrUnknownTable for an invalid oid and ErrInvalidCount for count <= 0.
*/
func (m *AccessMethodManager) AddPage(oid Oid, count int) (PageID, error) {
	if count <= 0 {
		return 0, errors.Wrapf(ErrInvalidCount, "add %d pages", count)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.tableLocked(oid); err != nil {
		return 0, err
	}

	first, err := m.pool.AllocatePages(count)
	if err != nil {
		return 0, errors.Wrapf(err, "add %d pages to table %d", count, oid)
	}
	if err := m.appendCatalog(extentRecord(oid, first, count)); err != nil {
		return 0, errors.Wrapf(err, "add %d pages to table %d", count, oid)
	}
	if err := m.registerExtent(oid, first, count); err != nil {
		return 0, err
	}

	return first, nil
}

// PagesOf returns the pages of a table in allocation order.
func (m *AccessMethodManager) PagesOf(oid Oid) ([]PageID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.tableLocked(oid)
	if err != nil {
		return nil, err
	}
	return slices.Clone(t.pages), nil
}

// TableOid looks up a table by name.
func (m *AccessMethodManager) TableOid(name string) (Oid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	oid, ok := m.byName[name]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownTable, "%q", name)
	}
	return oid, nil
}

// PageCount returns the number of pages of the named table.
func (m *AccessMethodManager) PageCount(name string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	oid, ok := m.byName[name]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownTable, "%q", name)
	}
	return len(m.tables[oid].pages), nil
}

// Tables lists all tables ordered by oid.
func (m *AccessMethodManager) Tables() []TableInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	infos := make([]TableInfo, 0, len(m.tables))
	for _, t := range m.tables {
		infos = append(infos, TableInfo{Oid: t.oid, Name: t.name, Pages: len(t.pages)})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Oid < infos[j].Oid })
	return infos
}

// TableOf returns the owner of a page: a table oid, or CatalogOid for catalog pages.
func (m *AccessMethodManager) TableOf(pageID PageID) (Oid, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := search.Floor(pageID, m.extentStarts)
	if !ok {
		return 0, false
	}
	e := m.extents[idx]
	if pageID >= e.first+PageID(e.count) {
		return 0, false
	}
	return e.oid, true
}

/*
Scan calls fn for every live record of a table, page by page in allocation order and
slot by slot within a page. Each page is pinned while its records are visited; data
aliases the page and must not be retained, and fn must not modify the scanned page.
Scan stops at the first error returned by fn.
*/
func (m *AccessMethodManager) Scan(oid Oid, fn func(pageID PageID, slot SlotID, data []byte) error) error {
	pages, err := m.PagesOf(oid)
	if err != nil {
		return err
	}

	for _, id := range pages {
		if err := m.scanPage(id, fn); err != nil {
			return err
		}
	}
	return nil
}

func (m *AccessMethodManager) scanPage(id PageID, fn func(pageID PageID, slot SlotID, data []byte) error) error {
	page, err := m.pool.GetAndPin(id)
	if err != nil {
		return err
	}
	defer page.Release()

	var fnErr error
	page.ForEachRecord(func(slot SlotID, data []byte, deleted bool) bool {
		if deleted {
			return true
		}
		fnErr = fn(id, slot, data)
		return fnErr == nil
	})
	return fnErr
}

func (m *AccessMethodManager) tableLocked(oid Oid) (*table, error) {
	if oid <= CatalogOid {
		return nil, errors.Wrapf(ErrUnknownTable, "invalid oid %d", oid)
	}
	t, ok := m.tables[oid]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownTable, "oid %d", oid)
	}
	return t, nil
}
