package record

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// ErrCorruptRecord is returned when a byte slice is not a valid record encoding.
var ErrCorruptRecord = errors.New("corrupt record")

const (
	countSize  = 2
	tagSize    = 1
	intSize    = 8
	dateSize   = 8
	lengthSize = 4
)

// MaxFields is the maximum number of fields in one record.
const MaxFields = math.MaxUint16

// Size returns the number of bytes Encode produces for r.
func Size(r Record) int {
	size := countSize
	for _, v := range r {
		size += tagSize
		switch v.kind {
		case KindInt:
			size += intSize
		case KindDate:
			size += dateSize
		case KindString:
			size += lengthSize + len(v.str)
		}
	}
	return size
}

// Encode serializes a record.
//
// Layout (big endian):
//
//	field count   uint16
//	per field     kind uint8, then
//	              int:    int64
//	              date:   int64 days since 1970-01-01
//	              string: uint32 length + bytes
//
// Encode panics on a zero Value or on more than MaxFields fields.
func Encode(r Record) []byte {
	return Append(make([]byte, 0, Size(r)), r)
}

// Append appends the encoding of r to buf.
func Append(buf []byte, r Record) []byte {
	if len(r) > MaxFields {
		panic("record: too many fields")
	}
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(r)))
	for _, v := range r {
		buf = append(buf, byte(v.kind))
		switch v.kind {
		case KindInt, KindDate:
			buf = binary.BigEndian.AppendUint64(buf, uint64(v.num))
		case KindString:
			buf = binary.BigEndian.AppendUint32(buf, uint32(len(v.str)))
			buf = append(buf, v.str...)
		default:
			panic("record: encoding a field without kind")
		}
	}
	return buf
}

// Decode deserializes a record produced by Encode.
//
// It fails with ErrCorruptRecord if data is empty, truncated, carries an unknown
// kind tag or has trailing bytes.
func Decode(data []byte) (Record, error) {
	if len(data) < countSize {
		return nil, errors.Wrapf(ErrCorruptRecord, "%d bytes is too short for a field count", len(data))
	}
	count := int(binary.BigEndian.Uint16(data))
	pos := countSize

	r := make(Record, 0, count)
	for i := 0; i < count; i++ {
		if pos+tagSize > len(data) {
			return nil, errors.Wrapf(ErrCorruptRecord, "field %d: missing kind", i)
		}
		kind := Kind(data[pos])
		pos += tagSize

		switch kind {
		case KindInt, KindDate:
			if pos+intSize > len(data) {
				return nil, errors.Wrapf(ErrCorruptRecord, "field %d: truncated %s", i, kind)
			}
			r = append(r, Value{kind: kind, num: int64(binary.BigEndian.Uint64(data[pos:]))})
			pos += intSize
		case KindString:
			if pos+lengthSize > len(data) {
				return nil, errors.Wrapf(ErrCorruptRecord, "field %d: truncated string length", i)
			}
			n := int(binary.BigEndian.Uint32(data[pos:]))
			pos += lengthSize
			if n < 0 || n > len(data)-pos {
				return nil, errors.Wrapf(ErrCorruptRecord, "field %d: string of %d bytes exceeds record", i, n)
			}
			r = append(r, Value{kind: KindString, str: string(data[pos : pos+n])})
			pos += n
		default:
			return nil, errors.Wrapf(ErrCorruptRecord, "field %d: unknown kind tag %d", i, uint8(kind))
		}
	}

	if pos != len(data) {
		return nil, errors.Wrapf(ErrCorruptRecord, "%d trailing bytes", len(data)-pos)
	}

	return r, nil
}
