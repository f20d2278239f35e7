package record

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		record Record
	}{
		{"empty", Of()},
		{"single int", Of(Int(42))},
		{"negative int", Of(Int(-1 << 62))},
		{"empty string", Of(String(""))},
		{"unicode string", Of(String("Grüße, 世界"))},
		{"date", Of(Date(time.Date(2022, time.March, 14, 15, 9, 26, 0, time.UTC)))},
		{"pre-epoch date", Of(Date(time.Date(1899, time.December, 31, 0, 0, 0, 0, time.UTC)))},
		{"mixed", Of(Int(1), String("10 Downing Street, London"), String("light rain"))},
		{"long string", Of(Int(7), String(strings.Repeat("x", 5000)), Date(time.Unix(0, 0)))},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			data := Encode(test.record)
			assert.Equal(t, Size(test.record), len(data))

			decoded, err := Decode(data)
			require.NoError(t, err)
			if diff := cmp.Diff(test.record, decoded); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCodec_DecodeCorrupt(t *testing.T) {
	valid := Encode(Of(Int(5), String("abc"), Date(time.Now())))

	tests := []struct {
		name string
		data []byte
	}{
		{"nil", nil},
		{"one byte", []byte{0}},
		{"missing kind", []byte{0, 1}},
		{"unknown kind", []byte{0, 1, 9, 0, 0, 0, 0, 0, 0, 0, 0}},
		{"truncated int", []byte{0, 1, byte(KindInt), 0, 0}},
		{"truncated string length", []byte{0, 1, byte(KindString), 0}},
		{"string past end", []byte{0, 1, byte(KindString), 0, 0, 0, 9, 'a'}},
		{"truncated tail", valid[:len(valid)-1]},
		{"trailing bytes", append(append([]byte{}, valid...), 0)},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Decode(test.data)
			assert.True(t, errors.Is(err, ErrCorruptRecord), "Actual err = %v, Expected == ErrCorruptRecord", err)
		})
	}
}

func TestValue_Date(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	v := Date(time.Date(2024, time.February, 29, 23, 59, 0, 0, loc))

	assert.Equal(t, KindDate, v.Kind())
	assert.Equal(t, time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), v.AsDate())
	assert.Equal(t, "2024-02-29", v.String())
	assert.True(t, v.Equal(Date(time.Date(2024, time.February, 29, 1, 0, 0, 0, time.UTC))))
}

func TestValue_AccessorPanicsOnKindMismatch(t *testing.T) {
	assert.Panics(t, func() { String("x").AsInt() })
	assert.Panics(t, func() { Int(1).AsDate() })
	assert.NotPanics(t, func() { Int(1).AsInt() })
}

func TestRecord_Matches(t *testing.T) {
	r := Of(Int(1), String("t1"))

	assert.True(t, r.Matches(KindInt, KindString))
	assert.False(t, r.Matches(KindInt))
	assert.False(t, r.Matches(KindString, KindInt))
}

func TestEncode_PanicsOnZeroValue(t *testing.T) {
	assert.Panics(t, func() { Encode(Of(Value{})) })
}

func FuzzCodec_RoundTrip(f *testing.F) {
	f.Add(int64(42), "10 Downing Street", int64(19000))
	f.Add(int64(-1), "", int64(-25567))
	f.Add(int64(1<<62), "Grüße, 世界", int64(0))
	f.Fuzz(func(t *testing.T, n int64, s string, days int64) {
		// keep the date within the range time.Time handles
		days %= 3_000_000
		date := time.Unix(days*24*60*60, 0).UTC()
		r := Of(Int(n), String(s), Date(date), String(s+s), Int(-n))

		data := Encode(r)
		if len(data) != Size(r) {
			t.Errorf("Actual size = %d, Expected == %d", len(data), Size(r))
		}

		decoded, err := Decode(data)
		if err != nil {
			t.Fatalf("Actual Decode err = %s, Expected == nil", err)
		}
		if !r.Equal(decoded) {
			t.Errorf("Actual decoded = %v, Expected == %v", decoded, r)
		}
		if !decoded[2].AsDate().Equal(date) {
			t.Errorf("Actual date = %s, Expected == %s", decoded[2].AsDate(), date)
		}
	})
}
