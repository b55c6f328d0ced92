// Package source 将读取到的原始字节转换为可解析文本，并计算内容指纹。
package source

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/text/encoding/charmap"

	"achparse/pkg/contract"
)

// Encoding: 源文本编码选择。
type Encoding string

const (
	Auto   Encoding = "auto"
	ASCII  Encoding = "ascii"
	EBCDIC Encoding = "ebcdic"
)

// ParseEncoding 校验编码名；空串视为 auto。
func ParseEncoding(s string) (Encoding, error) {
	switch e := Encoding(strings.ToLower(strings.TrimSpace(s))); e {
	case "":
		return Auto, nil
	case Auto, ASCII, EBCDIC:
		return e, nil
	default:
		return "", fmt.Errorf("%w: unknown encoding %q", contract.ErrConfig, s)
	}
}

// Digest 返回 BLAKE3-256 十六进制指纹。
func Digest(b []byte) string {
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Detect 在 auto 模式下判定编码：首个非空白字节为 EBCDIC 数字（0xF0-0xF9）时为 EBCDIC，否则 ASCII。
func Detect(b []byte) Encoding {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\r', '\n', 0x40, 0x05, 0x15, 0x25:
			continue
		}
		if c >= 0xF0 && c <= 0xF9 {
			return EBCDIC
		}
		return ASCII
	}
	return ASCII
}

// Text 按编码将字节转换为文本，返回实际使用的编码。
// ascii: 丢弃非 ASCII 字节；ebcdic: CP037，NEL(U+0085) 视为换行。
func Text(b []byte, enc Encoding) (string, Encoding, error) {
	if enc == Auto || enc == "" {
		enc = Detect(b)
	}
	switch enc {
	case ASCII:
		return asciiOnly(b), ASCII, nil
	case EBCDIC:
		out, err := charmap.CodePage037.NewDecoder().Bytes(b)
		if err != nil {
			return "", EBCDIC, fmt.Errorf("%w: ebcdic: %v", contract.ErrEncoding, err)
		}
		return strings.ReplaceAll(string(out), "\u0085", "\n"), EBCDIC, nil
	default:
		return "", enc, fmt.Errorf("%w: unknown encoding %q", contract.ErrEncoding, enc)
	}
}

func asciiOnly(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		if c < 0x80 {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// Load 组合指纹与解码，返回源描述与文本。
func Load(id contract.FileID, b []byte, enc Encoding) (contract.Source, string, error) {
	text, used, err := Text(b, enc)
	src := contract.Source{FileID: id, Digest: Digest(b), Encoding: string(used), Size: int64(len(b))}
	return src, text, err
}
