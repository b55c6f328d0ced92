// Package nacha 将单条定长记录解码为带标签的类型化记录。
// 解码是纯函数：不记录日志、不返回错误，未知类型仅通过标签表达。
package nacha

import (
	"strconv"
	"strings"

	"achparse/pkg/contract"
	"achparse/pkg/schema"
)

// Decoder 实现 contract.Decoder；零值可用且无状态。
type Decoder struct{}

// New 创建解码器。
func New() *Decoder { return &Decoder{} }

var _ contract.Decoder = (*Decoder)(nil)

// Decode 解码一行。
// 约束：
//  1. 仅空行返回 (nil,false)；
//  2. 标签取首字符；未注册时去空白后全 '9' => filler，否则 unknown；
//  3. 字段按字符切片 [start, min(end,len))，越界得空串，绝不 panic；
//  4. 数值字段转换失败时保留原文（Numeric.Valid=false）。
func (*Decoder) Decode(raw string) (contract.Record, bool) {
	return Decode(raw)
}

// Decode 为包级便捷函数，语义同 (*Decoder).Decode。
func Decode(raw string) (contract.Record, bool) {
	if raw == "" {
		return nil, false
	}
	rs := []rune(raw)
	code := rs[0]
	var sc schema.Schema
	ok := false
	if code < 0x80 {
		sc, ok = schema.Lookup(byte(code))
	}
	if !ok {
		kind := contract.TagUnknown
		trimmed := strings.TrimSpace(raw)
		if schema.IsFiller(trimmed) {
			kind = contract.TagFiller
		}
		return &contract.Other{Kind: kind, RawLine: trimmed}, true
	}
	f := fields{s: sc, rs: rs}
	switch sc.Code {
	case '1':
		return &contract.FileHeader{
			RecordTypeCode:           f.text("record_type_code"),
			PriorityCode:             f.text("priority_code"),
			ImmediateDestination:     f.text("immediate_destination"),
			ImmediateOrigin:          f.text("immediate_origin"),
			FileCreationDate:         f.text("file_creation_date"),
			FileCreationTime:         f.text("file_creation_time"),
			FileIDModifier:           f.text("file_id_modifier"),
			RecordSize:               f.text("record_size"),
			BlockingFactor:           f.text("blocking_factor"),
			FormatCode:               f.text("format_code"),
			ImmediateDestinationName: f.text("immediate_destination_name"),
			ImmediateOriginName:      f.text("immediate_origin_name"),
			ReferenceCode:            f.text("reference_code"),
			RawLine:                  raw,
		}, true
	case '5':
		return &contract.BatchHeader{
			RecordTypeCode:               f.text("record_type_code"),
			ServiceClassCode:             f.text("service_class_code"),
			CompanyName:                  f.text("company_name"),
			CompanyDiscretionaryData:     f.text("company_discretionary_data"),
			CompanyIdentification:        f.text("company_identification"),
			StandardEntryClassCode:       f.text("standard_entry_class_code"),
			CompanyEntryDescription:      f.text("company_entry_description"),
			CompanyDescriptiveDate:       f.text("company_descriptive_date"),
			EffectiveEntryDate:           f.text("effective_entry_date"),
			SettlementDateJulian:         f.text("settlement_date_julian"),
			OriginatorStatusCode:         f.text("originator_status_code"),
			OriginatingDFIIdentification: f.text("originating_dfi_identification"),
			BatchNumber:                  f.text("batch_number"),
			RawLine:                      raw,
		}, true
	case '6':
		return &contract.EntryDetail{
			RecordTypeCode:                 f.text("record_type_code"),
			TransactionCode:                f.text("transaction_code"),
			ReceivingDFIIdentification:     f.text("receiving_dfi_identification"),
			CheckDigit:                     f.text("check_digit"),
			DFIAccountNumber:               f.text("dfi_account_number"),
			Amount:                         f.num("amount"),
			IndividualIdentificationNumber: f.text("individual_identification_number"),
			IndividualName:                 f.text("individual_name"),
			DiscretionaryData:              f.text("discretionary_data"),
			AddendaRecordIndicator:         f.text("addenda_record_indicator"),
			TraceNumber:                    f.text("trace_number"),
			RawLine:                        raw,
		}, true
	case '7':
		return &contract.Addenda{
			RecordTypeCode:            f.text("record_type_code"),
			AddendaTypeCode:           f.text("addenda_type_code"),
			PaymentRelatedInformation: f.text("payment_related_information"),
			AddendaSequenceNumber:     f.text("addenda_sequence_number"),
			EntryDetailSequenceNumber: f.text("entry_detail_sequence_number"),
			RawLine:                   raw,
		}, true
	case '8':
		return &contract.BatchControl{
			RecordTypeCode:               f.text("record_type_code"),
			ServiceClassCode:             f.text("service_class_code"),
			EntryAddendaCount:            f.num("entry_addenda_count"),
			EntryHash:                    f.num("entry_hash"),
			TotalDebitEntryDollarAmount:  f.num("total_debit_entry_dollar_amount"),
			TotalCreditEntryDollarAmount: f.num("total_credit_entry_dollar_amount"),
			CompanyIdentification:        f.text("company_identification"),
			MessageAuthenticationCode:    f.text("message_authentication_code"),
			Reserved:                     f.text("reserved"),
			OriginatingDFIIdentification: f.text("originating_dfi_identification"),
			BatchNumber:                  f.text("batch_number"),
			RawLine:                      raw,
		}, true
	default: // '9'
		return &contract.FileControl{
			RecordTypeCode:                     f.text("record_type_code"),
			BatchCount:                         f.num("batch_count"),
			BlockCount:                         f.num("block_count"),
			EntryAddendaCount:                  f.num("entry_addenda_count"),
			EntryHash:                          f.num("entry_hash"),
			TotalDebitEntryDollarAmountInFile:  f.num("total_debit_entry_dollar_amount_in_file"),
			TotalCreditEntryDollarAmountInFile: f.num("total_credit_entry_dollar_amount_in_file"),
			Reserved:                           f.text("reserved"),
			RawLine:                            raw,
		}, true
	}
}

// fields 按布局表从字符切片中取值。
type fields struct {
	s  schema.Schema
	rs []rune
}

func (f fields) text(name string) string {
	spec, ok := f.s.Field(name)
	if !ok {
		return ""
	}
	return Slice(f.rs, spec.Start, spec.End)
}

func (f fields) num(name string) contract.Numeric {
	return Coerce(f.text(name))
}

// Slice 取 rs[start:min(end,len)] 并去除两端空白；start 越界返回空串。
func Slice(rs []rune, start, end int) string {
	if end > len(rs) {
		end = len(rs)
	}
	if start >= end {
		return ""
	}
	return strings.TrimSpace(string(rs[start:end]))
}

// Coerce 对已去空白的文本做十进制转换；空串为 0，失败保留原文。
func Coerce(s string) contract.Numeric {
	if s == "" {
		return contract.Numeric{Value: 0, Text: s, Valid: true}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return contract.Numeric{Text: s, Valid: false}
	}
	return contract.Numeric{Value: v, Text: s, Valid: true}
}
