package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodes(t *testing.T) {
	require.Equal(t, []byte("156789"), Codes())
	_, ok := Lookup('2')
	require.False(t, ok)
}

// 布局表区间合法、有序、覆盖到 94。
func TestValidate(t *testing.T) {
	require.NoError(t, Validate())
	for _, c := range Codes() {
		s, _ := Lookup(c)
		require.Equal(t, "record_type_code", s.Fields[0].Name, "schema %c", c)
		last := s.Fields[len(s.Fields)-1]
		require.Equal(t, RecordLength, last.End, "schema %c 应覆盖到记录末尾", c)
	}
}

// 关键字段区间逐一核对。
func TestFieldRanges(t *testing.T) {
	cases := []struct {
		code       byte
		name       string
		start, end int
		kind       Kind
	}{
		{'1', "immediate_destination", 3, 13, KindText},
		{'1', "reference_code", 86, 94, KindText},
		{'5', "company_name", 4, 20, KindText},
		{'5', "settlement_date_julian", 75, 78, KindText},
		{'6', "amount", 29, 39, KindAmount},
		{'6', "trace_number", 79, 94, KindText},
		{'7', "payment_related_information", 3, 83, KindText},
		{'7', "entry_detail_sequence_number", 87, 94, KindText},
		{'8', "entry_hash", 10, 20, KindHash},
		{'8', "total_credit_entry_dollar_amount", 32, 44, KindAmount},
		{'9', "batch_count", 1, 7, KindCount},
		{'9', "reserved", 55, 94, KindText},
	}
	for _, c := range cases {
		s, ok := Lookup(c.code)
		require.True(t, ok)
		f, ok := s.Field(c.name)
		require.True(t, ok, "%c.%s 缺失", c.code, c.name)
		require.Equal(t, c.start, f.Start, "%c.%s", c.code, c.name)
		require.Equal(t, c.end, f.End, "%c.%s", c.code, c.name)
		require.Equal(t, c.kind, f.Kind, "%c.%s", c.code, c.name)
	}
}

func TestKindNumeric(t *testing.T) {
	if KindText.Numeric() {
		t.Fatalf("text 不应参与数值转换")
	}
	for _, k := range []Kind{KindAmount, KindHash, KindCount} {
		if !k.Numeric() {
			t.Fatalf("%s 应参与数值转换", k)
		}
	}
}

func TestIsFiller(t *testing.T) {
	if !IsFiller("999") || IsFiller("") || IsFiller("99 9") || IsFiller("9998") {
		t.Fatalf("IsFiller 判定错误")
	}
}
