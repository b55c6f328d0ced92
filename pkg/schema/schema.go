// Package schema 定义六种定长记录的字段布局（94 字符，半开区间，0 起始）。
// 表在包初始化时构建，之后只读；可被任意 goroutine 并发查询。
package schema

import (
	"fmt"
	"sort"
)

// RecordLength: 每条物理记录的字符数。
const RecordLength = 94

// Kind: 字段值类别。数值类别在解码时尝试十进制转换。
type Kind uint8

const (
	KindText Kind = iota
	KindAmount
	KindHash
	KindCount
)

// Numeric 报告该类别是否参与数值转换。
func (k Kind) Numeric() bool { return k != KindText }

func (k Kind) String() string {
	switch k {
	case KindAmount:
		return "amount"
	case KindHash:
		return "hash"
	case KindCount:
		return "count"
	default:
		return "text"
	}
}

// FieldSpec: 单个字段的名称与 [Start,End) 区间。
type FieldSpec struct {
	Name  string
	Start int
	End   int
	Kind  Kind
}

// Width 返回字段宽度。
func (f FieldSpec) Width() int { return f.End - f.Start }

// Schema: 一种记录类型的有序字段表。
type Schema struct {
	Code   byte
	Name   string
	Fields []FieldSpec
}

// Field 按名称查找字段。
func (s Schema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

func text(name string, start, end int) FieldSpec { return FieldSpec{name, start, end, KindText} }
func num(name string, start, end int, k Kind) FieldSpec {
	return FieldSpec{name, start, end, k}
}

var recordType = text("record_type_code", 0, 1)

var table = map[byte]Schema{
	'1': {Code: '1', Name: "File Header", Fields: []FieldSpec{
		recordType,
		text("priority_code", 1, 3),
		text("immediate_destination", 3, 13),
		text("immediate_origin", 13, 23),
		text("file_creation_date", 23, 29),
		text("file_creation_time", 29, 33),
		text("file_id_modifier", 33, 34),
		text("record_size", 34, 37),
		text("blocking_factor", 37, 39),
		text("format_code", 39, 40),
		text("immediate_destination_name", 40, 63),
		text("immediate_origin_name", 63, 86),
		text("reference_code", 86, 94),
	}},
	'5': {Code: '5', Name: "Batch Header", Fields: []FieldSpec{
		recordType,
		text("service_class_code", 1, 4),
		text("company_name", 4, 20),
		text("company_discretionary_data", 20, 40),
		text("company_identification", 40, 50),
		text("standard_entry_class_code", 50, 53),
		text("company_entry_description", 53, 63),
		text("company_descriptive_date", 63, 69),
		text("effective_entry_date", 69, 75),
		text("settlement_date_julian", 75, 78),
		text("originator_status_code", 78, 79),
		text("originating_dfi_identification", 79, 87),
		text("batch_number", 87, 94),
	}},
	'6': {Code: '6', Name: "Entry Detail", Fields: []FieldSpec{
		recordType,
		text("transaction_code", 1, 3),
		text("receiving_dfi_identification", 3, 11),
		text("check_digit", 11, 12),
		text("dfi_account_number", 12, 29),
		num("amount", 29, 39, KindAmount),
		text("individual_identification_number", 39, 54),
		text("individual_name", 54, 76),
		text("discretionary_data", 76, 78),
		text("addenda_record_indicator", 78, 79),
		text("trace_number", 79, 94),
	}},
	'7': {Code: '7', Name: "Addenda", Fields: []FieldSpec{
		recordType,
		text("addenda_type_code", 1, 3),
		text("payment_related_information", 3, 83),
		text("addenda_sequence_number", 83, 87),
		text("entry_detail_sequence_number", 87, 94),
	}},
	'8': {Code: '8', Name: "Batch Control", Fields: []FieldSpec{
		recordType,
		text("service_class_code", 1, 4),
		num("entry_addenda_count", 4, 10, KindCount),
		num("entry_hash", 10, 20, KindHash),
		num("total_debit_entry_dollar_amount", 20, 32, KindAmount),
		num("total_credit_entry_dollar_amount", 32, 44, KindAmount),
		text("company_identification", 44, 54),
		text("message_authentication_code", 54, 73),
		text("reserved", 73, 79),
		text("originating_dfi_identification", 79, 87),
		text("batch_number", 87, 94),
	}},
	'9': {Code: '9', Name: "File Control", Fields: []FieldSpec{
		recordType,
		num("batch_count", 1, 7, KindCount),
		num("block_count", 7, 13, KindCount),
		num("entry_addenda_count", 13, 21, KindCount),
		num("entry_hash", 21, 31, KindHash),
		num("total_debit_entry_dollar_amount_in_file", 31, 43, KindAmount),
		num("total_credit_entry_dollar_amount_in_file", 43, 55, KindAmount),
		text("reserved", 55, 94),
	}},
}

// Lookup 按记录类型码查找布局。
func Lookup(code byte) (Schema, bool) {
	s, ok := table[code]
	return s, ok
}

// Codes 返回已注册的类型码（升序）。
func Codes() []byte {
	out := make([]byte, 0, len(table))
	for c := range table {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsFiller 报告 s 是否非空且全部由字符 '9' 组成（块填充行）。
func IsFiller(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] != '9' {
			return false
		}
	}
	return true
}

// Validate 检查布局表自洽：区间合法、落在记录长度内、彼此不重叠且按序排列。
func Validate() error {
	for _, c := range Codes() {
		s := table[c]
		prev := 0
		for _, f := range s.Fields {
			if f.Start < prev || f.End <= f.Start || f.End > RecordLength {
				return fmt.Errorf("schema %c: field %s [%d,%d) out of order or range", c, f.Name, f.Start, f.End)
			}
			prev = f.End
		}
	}
	return nil
}
