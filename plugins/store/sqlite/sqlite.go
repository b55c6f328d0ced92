// Package sqlite 将解析结果写入 SQLite（纯 Go 驱动 modernc.org/sqlite）。
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"achparse/pkg/contract"
)

// Options: 存储选项。
type Options struct {
	// Path: 数据库文件路径（必需）；":memory:" 为内存库。
	Path string `json:"path"`
	// Replace: 为 true 时先删除同指纹（blake3）的历史记录，保证重复解析幂等。
	Replace bool `json:"replace"`
}

// Store 实现 contract.Store。
type Store struct {
	db      *sql.DB
	replace bool
	now     func() time.Time
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file_id TEXT NOT NULL,
	blake3 TEXT NOT NULL,
	encoding TEXT NOT NULL,
	size INTEGER NOT NULL,
	parsed_at TEXT NOT NULL,
	immediate_origin_name TEXT,
	immediate_destination_name TEXT,
	has_file_control INTEGER NOT NULL,
	batch_count INTEGER NOT NULL,
	error_count INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS files_blake3 ON files(blake3);
CREATE TABLE IF NOT EXISTS batches (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file_ref INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	batch_number TEXT,
	company_name TEXT,
	company_identification TEXT,
	standard_entry_class_code TEXT,
	effective_entry_date TEXT,
	controlled INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	batch_ref INTEGER NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	transaction_code TEXT,
	receiving_dfi_identification TEXT,
	dfi_account_number TEXT,
	amount INTEGER,
	amount_text TEXT NOT NULL,
	individual_name TEXT,
	trace_number TEXT
);
CREATE TABLE IF NOT EXISTS addenda (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	entry_ref INTEGER NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	addenda_type_code TEXT,
	payment_related_information TEXT,
	addenda_sequence_number TEXT,
	entry_detail_sequence_number TEXT
);
CREATE TABLE IF NOT EXISTS diagnostics (
	file_ref INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	line INTEGER NOT NULL,
	category TEXT NOT NULL,
	detail TEXT NOT NULL
);`

// Open 打开（必要时创建）数据库并建表。
func Open(ctx context.Context, opts *Options) (*Store, error) {
	if opts == nil || strings.TrimSpace(opts.Path) == "" {
		return nil, fmt.Errorf("%w: store path required", contract.ErrConfig)
	}
	db, err := sql.Open("sqlite", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", contract.ErrStore, opts.Path, err)
	}
	// 单连接：串行化写入，并让 :memory: 库在调用间保持同一实例。
	db.SetMaxOpenConns(1)
	for _, stmt := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000", schemaDDL} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: init schema: %v", contract.ErrStore, err)
		}
	}
	return &Store{db: db, replace: opts.Replace, now: time.Now}, nil
}

var _ contract.Store = (*Store)(nil)

// DB 暴露底层连接（只读查询、测试）。
func (s *Store) DB() *sql.DB { return s.db }

// Save 在单个事务内写入文件、批、明细、附加记录与诊断。
func (s *Store) Save(ctx context.Context, doc contract.Document) (err error) {
	res := doc.Result
	if res == nil {
		res = contract.NewParseResult()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", contract.ErrStore, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("%w: %s: %v", contract.ErrStore, doc.Source.FileID, err)
		}
	}()
	if s.replace {
		if _, err = tx.ExecContext(ctx, `DELETE FROM files WHERE blake3 = ?`, doc.Source.Digest); err != nil {
			return err
		}
	}
	var origin, dest any
	if fh := res.FileHeader; fh != nil {
		origin, dest = fh.ImmediateOriginName, fh.ImmediateDestinationName
	}
	r, err := tx.ExecContext(ctx, `INSERT INTO files
		(file_id, blake3, encoding, size, parsed_at, immediate_origin_name, immediate_destination_name, has_file_control, batch_count, error_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(doc.Source.FileID), doc.Source.Digest, doc.Source.Encoding, doc.Source.Size,
		s.now().UTC().Format(time.RFC3339), origin, dest, res.FileControl != nil, len(res.Batches), len(res.Errors))
	if err != nil {
		return err
	}
	fileRef, err := r.LastInsertId()
	if err != nil {
		return err
	}
	for bi, b := range res.Batches {
		r, err = tx.ExecContext(ctx, `INSERT INTO batches
			(file_ref, seq, batch_number, company_name, company_identification, standard_entry_class_code, effective_entry_date, controlled)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			fileRef, bi+1, b.BatchNumber, b.CompanyName, b.CompanyIdentification, b.StandardEntryClassCode, b.EffectiveEntryDate, b.BatchControl != nil)
		if err != nil {
			return err
		}
		batchRef, err := r.LastInsertId()
		if err != nil {
			return err
		}
		for ei, e := range b.Entries {
			var amount any
			if e.Amount.Valid {
				amount = e.Amount.Value
			}
			r, err = tx.ExecContext(ctx, `INSERT INTO entries
				(batch_ref, seq, transaction_code, receiving_dfi_identification, dfi_account_number, amount, amount_text, individual_name, trace_number)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				batchRef, ei+1, e.TransactionCode, e.ReceivingDFIIdentification, e.DFIAccountNumber, amount, e.Amount.String(), e.IndividualName, e.TraceNumber)
			if err != nil {
				return err
			}
			entryRef, err := r.LastInsertId()
			if err != nil {
				return err
			}
			for ai, a := range e.Addenda {
				if _, err = tx.ExecContext(ctx, `INSERT INTO addenda
					(entry_ref, seq, addenda_type_code, payment_related_information, addenda_sequence_number, entry_detail_sequence_number)
					VALUES (?, ?, ?, ?, ?, ?)`,
					entryRef, ai+1, a.AddendaTypeCode, a.PaymentRelatedInformation, a.AddendaSequenceNumber, a.EntryDetailSequenceNumber); err != nil {
					return err
				}
			}
		}
	}
	for i, d := range res.Errors {
		if _, err = tx.ExecContext(ctx, `INSERT INTO diagnostics (file_ref, seq, line, category, detail) VALUES (?, ?, ?, ?, ?)`,
			fileRef, i+1, d.Line, string(d.Category), d.Detail); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Close 关闭数据库。
func (s *Store) Close() error { return s.db.Close() }
