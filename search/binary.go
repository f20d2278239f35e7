package search

import (
	"golang.org/x/exp/constraints"
)

// Binary searches key in the ascending slice values.
//
// If key is present, Binary returns its index and true. Otherwise the index is the
// position key would be inserted at to keep values sorted, in [0, len(values)].
func Binary[T constraints.Ordered](key T, values []T) (uint, bool) {
	lo, hi := 0, len(values)

	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		switch {
		case values[mid] == key:
			return uint(mid), true
		case values[mid] < key:
			lo = mid + 1
		default:
			hi = mid
		}
	}

	return uint(lo), false
}

// Floor returns the index of the greatest element of the ascending slice values that
// is less than or equal to key. The second return value is false if there is none.
func Floor[T constraints.Ordered](key T, values []T) (uint, bool) {
	idx, found := Binary(key, values)
	if found {
		return idx, true
	}
	if idx == 0 {
		return 0, false
	}
	return idx - 1, true
}
