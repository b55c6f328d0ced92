package contract

import (
	"encoding/json"
	"strconv"
)

// FileID: 逻辑文档ID（通常为路径，需规范化，跨平台一致）。
type FileID string

// Line: 物理行（1 起始行号 + 原始文本）。
// 约束：Number 严格递增；空白行不产出 Line，但仍占用行号。
type Line struct {
	Number int
	Text   string
}

// TypeTag: 解码后记录的类型标签。
// 取值为记录类型码（"1" "5" "6" "7" "8" "9"）或 "filler"/"unknown"。
type TypeTag string

const (
	TagFileHeader   TypeTag = "1"
	TagBatchHeader  TypeTag = "5"
	TagEntryDetail  TypeTag = "6"
	TagAddenda      TypeTag = "7"
	TagBatchControl TypeTag = "8"
	TagFileControl  TypeTag = "9"
	TagFiller       TypeTag = "filler"
	TagUnknown      TypeTag = "unknown"
)

// Record: 单行解码结果（带标签的变体）。
// 解码后不可变；由吸收它的树节点持有。
type Record interface {
	Tag() TypeTag
	Raw() string
}

// Numeric: 数值字段的显式转换结果。
// Valid=true 表示按十进制解析成功（空串视为 0）；
// Valid=false 表示解析失败，Text 保留去空白后的原文（不丢数据）。
type Numeric struct {
	Value int64
	Text  string
	Valid bool
}

// MarshalJSON: 成功时输出数字，回退时输出原文字符串。
func (n Numeric) MarshalJSON() ([]byte, error) {
	if n.Valid {
		return []byte(strconv.FormatInt(n.Value, 10)), nil
	}
	return json.Marshal(n.Text)
}

// String 返回便于展示的文本形式。
func (n Numeric) String() string {
	if n.Valid {
		return strconv.FormatInt(n.Value, 10)
	}
	return n.Text
}

// FileHeader: 类型 '1'。
type FileHeader struct {
	RecordTypeCode           string `json:"record_type_code"`
	PriorityCode             string `json:"priority_code"`
	ImmediateDestination     string `json:"immediate_destination"`
	ImmediateOrigin          string `json:"immediate_origin"`
	FileCreationDate         string `json:"file_creation_date"`
	FileCreationTime         string `json:"file_creation_time"`
	FileIDModifier           string `json:"file_id_modifier"`
	RecordSize               string `json:"record_size"`
	BlockingFactor           string `json:"blocking_factor"`
	FormatCode               string `json:"format_code"`
	ImmediateDestinationName string `json:"immediate_destination_name"`
	ImmediateOriginName      string `json:"immediate_origin_name"`
	ReferenceCode            string `json:"reference_code"`
	RawLine                  string `json:"-"`
}

// BatchHeader: 类型 '5'。
type BatchHeader struct {
	RecordTypeCode               string `json:"record_type_code"`
	ServiceClassCode             string `json:"service_class_code"`
	CompanyName                  string `json:"company_name"`
	CompanyDiscretionaryData     string `json:"company_discretionary_data"`
	CompanyIdentification        string `json:"company_identification"`
	StandardEntryClassCode       string `json:"standard_entry_class_code"`
	CompanyEntryDescription      string `json:"company_entry_description"`
	CompanyDescriptiveDate       string `json:"company_descriptive_date"`
	EffectiveEntryDate           string `json:"effective_entry_date"`
	SettlementDateJulian         string `json:"settlement_date_julian"`
	OriginatorStatusCode         string `json:"originator_status_code"`
	OriginatingDFIIdentification string `json:"originating_dfi_identification"`
	BatchNumber                  string `json:"batch_number"`
	RawLine                      string `json:"-"`
}

// EntryDetail: 类型 '6'。Amount 单位为分。
type EntryDetail struct {
	RecordTypeCode                 string  `json:"record_type_code"`
	TransactionCode                string  `json:"transaction_code"`
	ReceivingDFIIdentification     string  `json:"receiving_dfi_identification"`
	CheckDigit                     string  `json:"check_digit"`
	DFIAccountNumber               string  `json:"dfi_account_number"`
	Amount                         Numeric `json:"amount"`
	IndividualIdentificationNumber string  `json:"individual_identification_number"`
	IndividualName                 string  `json:"individual_name"`
	DiscretionaryData              string  `json:"discretionary_data"`
	AddendaRecordIndicator         string  `json:"addenda_record_indicator"`
	TraceNumber                    string  `json:"trace_number"`
	RawLine                        string  `json:"-"`
}

// Addenda: 类型 '7'。
type Addenda struct {
	RecordTypeCode            string `json:"record_type_code"`
	AddendaTypeCode           string `json:"addenda_type_code"`
	PaymentRelatedInformation string `json:"payment_related_information"`
	AddendaSequenceNumber     string `json:"addenda_sequence_number"`
	EntryDetailSequenceNumber string `json:"entry_detail_sequence_number"`
	RawLine                   string `json:"-"`
}

// BatchControl: 类型 '8'。
type BatchControl struct {
	RecordTypeCode               string  `json:"record_type_code"`
	ServiceClassCode             string  `json:"service_class_code"`
	EntryAddendaCount            Numeric `json:"entry_addenda_count"`
	EntryHash                    Numeric `json:"entry_hash"`
	TotalDebitEntryDollarAmount  Numeric `json:"total_debit_entry_dollar_amount"`
	TotalCreditEntryDollarAmount Numeric `json:"total_credit_entry_dollar_amount"`
	CompanyIdentification        string  `json:"company_identification"`
	MessageAuthenticationCode    string  `json:"message_authentication_code"`
	Reserved                     string  `json:"reserved"`
	OriginatingDFIIdentification string  `json:"originating_dfi_identification"`
	BatchNumber                  string  `json:"batch_number"`
	RawLine                      string  `json:"-"`
}

// FileControl: 类型 '9'（非全 '9' 填充行）。
type FileControl struct {
	RecordTypeCode                     string  `json:"record_type_code"`
	BatchCount                         Numeric `json:"batch_count"`
	BlockCount                         Numeric `json:"block_count"`
	EntryAddendaCount                  Numeric `json:"entry_addenda_count"`
	EntryHash                          Numeric `json:"entry_hash"`
	TotalDebitEntryDollarAmountInFile  Numeric `json:"total_debit_entry_dollar_amount_in_file"`
	TotalCreditEntryDollarAmountInFile Numeric `json:"total_credit_entry_dollar_amount_in_file"`
	Reserved                           string  `json:"reserved"`
	RawLine                            string  `json:"-"`
}

// Other: 填充行或未知类型行；仅保留去空白后的原文。
type Other struct {
	Kind    TypeTag `json:"-"`
	RawLine string  `json:"raw_line"`
}

func (*FileHeader) Tag() TypeTag   { return TagFileHeader }
func (*BatchHeader) Tag() TypeTag  { return TagBatchHeader }
func (*EntryDetail) Tag() TypeTag  { return TagEntryDetail }
func (*Addenda) Tag() TypeTag      { return TagAddenda }
func (*BatchControl) Tag() TypeTag { return TagBatchControl }
func (*FileControl) Tag() TypeTag  { return TagFileControl }
func (o *Other) Tag() TypeTag      { return o.Kind }

func (r *FileHeader) Raw() string   { return r.RawLine }
func (r *BatchHeader) Raw() string  { return r.RawLine }
func (r *EntryDetail) Raw() string  { return r.RawLine }
func (r *Addenda) Raw() string      { return r.RawLine }
func (r *BatchControl) Raw() string { return r.RawLine }
func (r *FileControl) Raw() string  { return r.RawLine }
func (o *Other) Raw() string        { return o.RawLine }

// Entry: 明细记录 + 按文件顺序追加的附加记录。
type Entry struct {
	EntryDetail
	Addenda []*Addenda `json:"addenda"`
}

// Batch: 批头 + 明细 + 可选批控制（nil 表示批未关闭）。
type Batch struct {
	BatchHeader
	Entries      []*Entry      `json:"entries"`
	BatchControl *BatchControl `json:"batch_control"`
}

// OtherRecord: 填充/未知记录的外部形状。
type OtherRecord struct {
	Kind TypeTag `json:"kind"`
	Data Other   `json:"data"`
}

// ParseResult: 解析的唯一对外产物。
// FileHeader/FileControl 为单例槽位（后者覆盖前者）；其余列表保持文件顺序。
type ParseResult struct {
	FileHeader   *FileHeader   `json:"file_header"`
	Batches      []*Batch      `json:"batches"`
	FileControl  *FileControl  `json:"file_control"`
	Errors       []Diagnostic  `json:"errors"`
	OtherRecords []OtherRecord `json:"other_records"`
}

// NewParseResult 返回列表均已初始化（非 nil）的空结果，保证 JSON 输出为 [] 而非 null。
func NewParseResult() *ParseResult {
	return &ParseResult{
		Batches:      []*Batch{},
		Errors:       []Diagnostic{},
		OtherRecords: []OtherRecord{},
	}
}

// EntryCount 返回全部批内明细条数。
func (r *ParseResult) EntryCount() int {
	n := 0
	for _, b := range r.Batches {
		n += len(b.Entries)
	}
	return n
}

// ErrorStrings 以字符串形式返回诊断列表。
func (r *ParseResult) ErrorStrings() []string {
	out := make([]string, 0, len(r.Errors))
	for _, d := range r.Errors {
		out = append(out, d.String())
	}
	return out
}
