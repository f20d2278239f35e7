// Package record serializes typed tuples into self-describing byte slices.
//
// A record is an ordered sequence of fields. Every field carries its kind, so a
// record can be decoded without an external schema.
package record

import (
	"fmt"
	"time"
)

// Kind is the type tag of a field.
type Kind uint8

const (
	KindInt    Kind = 1
	KindString Kind = 2
	KindDate   Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

const day = 24 * time.Hour

// Value is a single typed field. Values are comparable with ==.
type Value struct {
	kind Kind
	// num holds the integer, or the date as days since the Unix epoch.
	num int64
	str string
}

// Int creates a signed integer field.
func Int(v int64) Value {
	return Value{kind: KindInt, num: v}
}

// String creates a UTF-8 string field.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Date creates a calendar date field. The time of day and location of t are
// dropped: the field holds the year, month and day of t.
func Date(t time.Time) Value {
	y, m, d := t.Date()
	days := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / int64(day/time.Second)
	return Value{kind: KindDate, num: days}
}

func (v Value) Kind() Kind {
	return v.kind
}

// AsInt returns the integer of an int field. It panics for other kinds.
func (v Value) AsInt() int64 {
	v.mustBe(KindInt)
	return v.num
}

// AsString returns the string of a string field. It panics for other kinds.
func (v Value) AsString() string {
	v.mustBe(KindString)
	return v.str
}

// AsDate returns the date of a date field as midnight UTC. It panics for other kinds.
func (v Value) AsDate() time.Time {
	v.mustBe(KindDate)
	return time.Unix(v.num*int64(day/time.Second), 0).UTC()
}

// Equal reports whether both values have the same kind and content.
func (v Value) Equal(o Value) bool {
	return v == o
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return fmt.Sprintf("%d", v.num)
	case KindString:
		return fmt.Sprintf("%q", v.str)
	case KindDate:
		return v.AsDate().Format("2006-01-02")
	default:
		return "<invalid>"
	}
}

func (v Value) mustBe(k Kind) {
	if v.kind != k {
		panic(fmt.Sprintf("record: %s field accessed as %s", v.kind, k))
	}
}

// Record is an ordered sequence of fields.
type Record []Value

// Of builds a record from its fields.
func Of(fields ...Value) Record {
	return Record(fields)
}

// Matches reports whether the record has exactly the given field kinds.
func (r Record) Matches(kinds ...Kind) bool {
	if len(r) != len(kinds) {
		return false
	}
	for i, v := range r {
		if v.kind != kinds[i] {
			return false
		}
	}
	return true
}

// Equal reports whether both records hold equal fields in the same order.
func (r Record) Equal(o Record) bool {
	if len(r) != len(o) {
		return false
	}
	for i := range r {
		if r[i] != o[i] {
			return false
		}
	}
	return true
}
