// Package xlsx 将解析结果渲染为 Excel 工作簿（批、明细、附加记录、诊断四张表）。
package xlsx

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"achparse/pkg/contract"
)

// Options: 工作簿渲染选项。
type Options struct {
	// SkipEmpty: 为 true 时不生成无数据行的附加记录/诊断表。
	SkipEmpty bool `json:"skip_empty"`
}

// Renderer 实现 contract.Renderer。
type Renderer struct{ skipEmpty bool }

// New 创建工作簿渲染器。
func New(opts *Options) *Renderer {
	r := &Renderer{}
	if opts != nil {
		r.skipEmpty = opts.SkipEmpty
	}
	return r
}

var _ contract.Renderer = (*Renderer)(nil)

func (*Renderer) Ext() string { return ".xlsx" }

const (
	SheetBatches = "Batches"
	SheetEntries = "Entries"
	SheetAddenda = "Addenda"
	SheetErrors  = "Errors"
)

var (
	batchHeader   = []string{"batch", "batch_number", "company_name", "standard_entry_class_code", "effective_entry_date", "entry_count", "addenda_count", "controlled"}
	entryHeader   = []string{"batch", "batch_number", "company_name", "transaction_code", "receiving_dfi_identification", "dfi_account_number", "amount", "individual_name", "trace_number", "addenda_count"}
	addendaHeader = []string{"batch", "trace_number", "addenda_type_code", "addenda_sequence_number", "entry_detail_sequence_number", "payment_related_information"}
	errorHeader   = []string{"line", "category", "detail"}
)

// Render 生成 .xlsx 字节流。金额在转换成功时写为数值，否则写原文。
func (r *Renderer) Render(ctx context.Context, doc contract.Document) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := doc.Result
	if res == nil {
		res = contract.NewParseResult()
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetBatches); err != nil {
		return nil, fmt.Errorf("%w: xlsx: %v", contract.ErrRender, err)
	}
	var batches, entries, addenda [][]any
	for bi, b := range res.Batches {
		n := 0
		for _, e := range b.Entries {
			n += len(e.Addenda)
		}
		// 未收到批控制记录（含被下一个批头打断）的批标记为 no
		controlled := "no"
		if b.BatchControl != nil {
			controlled = "yes"
		}
		batches = append(batches, []any{bi + 1, b.BatchNumber, b.CompanyName, b.StandardEntryClassCode,
			b.EffectiveEntryDate, len(b.Entries), n, controlled})
		for _, e := range b.Entries {
			var amount any = e.Amount.Text
			if e.Amount.Valid {
				amount = e.Amount.Value
			}
			entries = append(entries, []any{bi + 1, b.BatchNumber, b.CompanyName, e.TransactionCode,
				e.ReceivingDFIIdentification, e.DFIAccountNumber, amount, e.IndividualName, e.TraceNumber, len(e.Addenda)})
			for _, a := range e.Addenda {
				addenda = append(addenda, []any{bi + 1, e.TraceNumber, a.AddendaTypeCode, a.AddendaSequenceNumber,
					a.EntryDetailSequenceNumber, a.PaymentRelatedInformation})
			}
		}
	}
	errs := make([][]any, 0, len(res.Errors))
	for _, d := range res.Errors {
		errs = append(errs, []any{d.Line, string(d.Category), d.Detail})
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("%w: xlsx style: %v", contract.ErrRender, err)
	}
	if err := writeSheet(f, SheetBatches, batchHeader, batches, style); err != nil {
		return nil, err
	}
	if err := writeSheet(f, SheetEntries, entryHeader, entries, style); err != nil {
		return nil, err
	}
	if !r.skipEmpty || len(addenda) > 0 {
		if err := writeSheet(f, SheetAddenda, addendaHeader, addenda, style); err != nil {
			return nil, err
		}
	}
	if !r.skipEmpty || len(errs) > 0 {
		if err := writeSheet(f, SheetErrors, errorHeader, errs, style); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("%w: failed to write xlsx: %v", contract.ErrRender, err)
	}
	return &buf, nil
}

// writeSheet 写表头（加粗）与数据行，并按表头估算列宽。
func writeSheet(f *excelize.File, sheet string, header []string, rows [][]any, style int) error {
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("%w: xlsx sheet %s: %v", contract.ErrRender, sheet, err)
		}
	}
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("%w: xlsx: %v", contract.ErrRender, err)
		}
	}
	first, _ := excelize.CoordinatesToCellName(1, 1)
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	_ = f.SetCellStyle(sheet, first, last, style)
	for ri, row := range rows {
		for ci, v := range row {
			cell, _ := excelize.CoordinatesToCellName(ci+1, ri+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("%w: xlsx: %v", contract.ErrRender, err)
			}
		}
	}
	for i, h := range header {
		col, _ := excelize.ColumnNumberToName(i + 1)
		width := float64(len(h) + 4)
		if width < 12 {
			width = 12
		}
		_ = f.SetColWidth(sheet, col, col, width)
	}
	return nil
}
