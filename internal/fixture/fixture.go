// Package fixture 生成定长 ACH 记录，供各包测试与压测使用。
// 所有构造函数保证返回恰好 94 字符的行（超长截断，不足补空格）。
package fixture

import (
	"fmt"
	"strings"
)

// ODFI: 示例发起行路由号前 8 位。
const ODFI = "12345678"

func pad(s string) string {
	if len(s) >= 94 {
		return s[:94]
	}
	return s + strings.Repeat(" ", 94-len(s))
}

// FileHeader 构造 '1' 记录。
func FileHeader(destName, originName string) string {
	return pad(fmt.Sprintf("101%10s%10s24052912001094101%-23s%-23s%-8s",
		" 091000019", "1234567890", destName, originName, "REF"))
}

// BatchHeader 构造 '5' 记录。
func BatchHeader(company string, batch int) string {
	return pad(fmt.Sprintf("5200%-16s%-20s%-10sPPD%-10s2405292405301501%-8s%07d",
		company, "DISCRETIONARY", "1234567890", "PAYROLL", ODFI, batch))
}

// Trace 由批号与序号生成 15 位跟踪号（ODFI + 7 位序号）。
func Trace(seq int) string { return fmt.Sprintf("%s%07d", ODFI, seq) }

// Entry 构造 '6' 记录；amount 单位为分。
func Entry(amount int64, name, trace string) string {
	return pad(fmt.Sprintf("622%-8s1%-17s%010d%-15s%-22s  1%-15s",
		"09100001", "ACCT"+trace[len(trace)-4:], amount, "ID"+trace[len(trace)-4:], name, trace))
}

// Addenda 构造 '7' 记录；entrySeq 为 7 位，通常取跟踪号末 7 位。
func Addenda(info string, seq int, entrySeq string) string {
	return pad(fmt.Sprintf("705%-80s%04d%7s", info, seq, entrySeq))
}

// BatchControl 构造 '8' 记录。
func BatchControl(count int, hash, debit, credit int64, batch int) string {
	return pad(fmt.Sprintf("8200%06d%010d%012d%012d%-10s%-19s%-6s%-8s%07d",
		count, hash, debit, credit, "1234567890", "", "", ODFI, batch))
}

// FileControl 构造 '9' 记录。
func FileControl(batches, blocks, count int, hash, debit, credit int64) string {
	return pad(fmt.Sprintf("9%06d%06d%08d%010d%012d%012d", batches, blocks, count, hash, debit, credit))
}

// Filler 返回全 '9' 填充行。
func Filler() string { return strings.Repeat("9", 94) }

// File 生成结构良好的文件：batches 个批，每批 entries 条明细，每条 addenda 条附加记录。
// 明细金额为 100*序号 分；跟踪号全局递增。
func File(batches, entries, addenda int) []string {
	out := []string{FileHeader("DEST BANK", "ORIGIN CO")}
	seq := 0
	var total int64
	count := 0
	for b := 1; b <= batches; b++ {
		out = append(out, BatchHeader(fmt.Sprintf("COMPANY %d", b), b))
		var credit int64
		n := 0
		for e := 0; e < entries; e++ {
			seq++
			tr := Trace(seq)
			amt := int64(100 * seq)
			credit += amt
			out = append(out, Entry(amt, fmt.Sprintf("RECEIVER %d", seq), tr))
			n++
			for a := 1; a <= addenda; a++ {
				out = append(out, Addenda(fmt.Sprintf("INFO %d/%d", seq, a), a, tr[8:]))
				n++
			}
		}
		total += credit
		count += n
		out = append(out, BatchControl(n, 0, 0, credit, b))
	}
	lines := len(out) + 1
	blocks := (lines + 9) / 10
	out = append(out, FileControl(batches, blocks, count, 0, 0, total))
	for len(out)%10 != 0 {
		out = append(out, Filler())
	}
	return out
}
