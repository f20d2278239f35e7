package store

import (
	"github.com/pkg/errors"

	"github.com/tobiasfamos/PageStore/record"
)

// Catalog record kinds. Every catalog page starts with a link record in slot 0.
const (
	catalogLink   = 1
	catalogTable  = 2
	catalogExtent = 3
)

// noPage terminates the catalog page chain. The root catalog page is FirstPageID, so
// no link ever points to it.
const noPage = FirstPageID

func linkRecord(next PageID) []byte {
	return record.Encode(record.Of(record.Int(catalogLink), record.Int(int64(next))))
}

func tableRecord(oid Oid, name string) []byte {
	return record.Encode(record.Of(record.Int(catalogTable), record.Int(int64(oid)), record.String(name)))
}

func extentRecord(oid Oid, first PageID, count int) []byte {
	return record.Encode(record.Of(
		record.Int(catalogExtent),
		record.Int(int64(oid)),
		record.Int(int64(first)),
		record.Int(int64(count)),
	))
}

// catalogEntry is a decoded catalog record.
type catalogEntry struct {
	kind  int64
	oid   Oid
	name  string
	first PageID
	count int
	next  PageID
}

func decodeCatalogEntry(data []byte) (catalogEntry, error) {
	r, err := record.Decode(data)
	if err != nil {
		return catalogEntry{}, errors.Wrapf(ErrCatalogCorrupt, "%v", err)
	}
	if len(r) == 0 || r[0].Kind() != record.KindInt {
		return catalogEntry{}, errors.Wrap(ErrCatalogCorrupt, "record without kind")
	}

	switch kind := r[0].AsInt(); kind {
	case catalogLink:
		if !r.Matches(record.KindInt, record.KindInt) {
			return catalogEntry{}, errors.Wrap(ErrCatalogCorrupt, "malformed link record")
		}
		return catalogEntry{kind: kind, next: PageID(r[1].AsInt())}, nil
	case catalogTable:
		if !r.Matches(record.KindInt, record.KindInt, record.KindString) {
			return catalogEntry{}, errors.Wrap(ErrCatalogCorrupt, "malformed table record")
		}
		return catalogEntry{kind: kind, oid: Oid(r[1].AsInt()), name: r[2].AsString()}, nil
	case catalogExtent:
		if !r.Matches(record.KindInt, record.KindInt, record.KindInt, record.KindInt) {
			return catalogEntry{}, errors.Wrap(ErrCatalogCorrupt, "malformed extent record")
		}
		return catalogEntry{
			kind:  kind,
			oid:   Oid(r[1].AsInt()),
			first: PageID(r[2].AsInt()),
			count: int(r[3].AsInt()),
		}, nil
	default:
		return catalogEntry{}, errors.Wrapf(ErrCatalogCorrupt, "unknown catalog record kind %d", kind)
	}
}
