package document

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	applog "docsearch/internal/platform/log"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// ── Parser 接口 ───────────────────────────────────────────────

// ParseResult 文档解析结果
type ParseResult struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Pages    int               `json:"pages,omitempty"`
}

// Parser 文档解析器接口
type Parser interface {
	// Parse 解析文档，返回纯文本内容
	Parse(reader io.Reader, filename string) (*ParseResult, error)
	// SupportedTypes 支持的文件扩展名
	SupportedTypes() []string
}

// ── Plain Text Parser ────────────────────────────────────────

// PlainTextParser 纯文本解析：按 BOM 识别 UTF-16，非法 UTF-8 序列替换为 U+FFFD，去掉 NUL 等控制字符
type PlainTextParser struct{}

func (p *PlainTextParser) SupportedTypes() []string {
	return []string{".txt"}
}

func (p *PlainTextParser) Parse(reader io.Reader, filename string) (*ParseResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}

	text, err := decodeText(data)
	if err != nil {
		return nil, fmt.Errorf("decode text: %w", err)
	}

	return &ParseResult{
		Content:  strings.TrimSpace(text),
		Metadata: map[string]string{"format": strings.ToLower(filepath.Ext(filename))},
	}, nil
}

// ── Legacy Word Parser ───────────────────────────────────────

// WordParser 旧版 .doc 按文本尽力解码，丢弃无法解码的字节和控制字符
type WordParser struct{}

func (p *WordParser) SupportedTypes() []string {
	return []string{".doc"}
}

func (p *WordParser) Parse(reader io.Reader, filename string) (*ParseResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read doc: %w", err)
	}

	text, err := decodeBestEffort(data)
	if err != nil {
		return nil, fmt.Errorf("decode doc: %w", err)
	}

	return &ParseResult{
		Content:  strings.TrimSpace(cleanExtraNewlines(text)),
		Metadata: map[string]string{"format": "doc"},
	}, nil
}

// ── PDF Parser ───────────────────────────────────────────────

// PDFParser 逐页提取 PDF 文本
type PDFParser struct{}

func (p *PDFParser) SupportedTypes() []string {
	return []string{".pdf"}
}

func (p *PDFParser) Parse(reader io.Reader, filename string) (*ParseResult, error) {
	// pdf 库需要 io.ReaderAt + size，先读到内存
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read pdf data: %w", err)
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	pages := r.NumPage()
	texts := make([]string, 0, pages)

	for i := 1; i <= pages; i++ {
		texts = append(texts, pageText(r, i, filename))
	}

	return &ParseResult{
		Content: strings.TrimSpace(strings.Join(texts, "\n")),
		Pages:   pages,
		Metadata: map[string]string{
			"format": "pdf",
			"pages":  fmt.Sprintf("%d", pages),
		},
	}, nil
}

// pageText 提取单页文本；失败的页贡献空串，不影响整篇文档
func pageText(r *pdf.Reader, i int, filename string) (text string) {
	defer func() {
		if rec := recover(); rec != nil {
			applog.Warn("[Extract/PDF] Page extraction panicked", "filename", filename, "page", i, "panic", rec)
			text = ""
		}
	}()

	page := r.Page(i)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		applog.Warn("[Extract/PDF] Failed to extract page text", "filename", filename, "page", i, "error", err)
		return ""
	}
	return text
}

// ── DOCX Parser ──────────────────────────────────────────────

// DOCXParser 提取 Word 文档文本
type DOCXParser struct{}

func (p *DOCXParser) SupportedTypes() []string {
	return []string{".docx"}
}

func (p *DOCXParser) Parse(reader io.Reader, filename string) (*ParseResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read docx data: %w", err)
	}

	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer r.Close()

	// GetContent 返回 word/document.xml 原文
	text, err := docxText(r.Editable().GetContent())
	if err != nil {
		return nil, fmt.Errorf("read docx xml: %w", err)
	}

	return &ParseResult{
		Content:  strings.TrimSpace(cleanExtraNewlines(text)),
		Metadata: map[string]string{"format": "docx"},
	}, nil
}

// docxText 从 document.xml 中提取 <w:t> 文本，段落之间换行
func docxText(content string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(content))
	var sb strings.Builder
	inText := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

// ── 辅助函数 ─────────────────────────────────────────────────

// decodeText 带 BOM 时按对应的 UTF-8/UTF-16 解码，否则按 UTF-8；保留 U+FFFD，去掉控制字符
func decodeText(data []byte) (string, error) {
	t := transform.Chain(
		xunicode.BOMOverride(transform.Nop),
		runes.ReplaceIllFormed(),
		runes.Remove(runes.Predicate(isControl)),
	)
	out, _, err := transform.Bytes(t, data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// decodeBestEffort 按 UTF-8 尽力解码，丢弃无法解码的字节和控制字符
func decodeBestEffort(data []byte) (string, error) {
	t := transform.Chain(runes.ReplaceIllFormed(), runes.Remove(runes.Predicate(isNoise)))
	out, _, err := transform.Bytes(t, data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func isNoise(r rune) bool {
	return r == utf8.RuneError || isControl(r)
}

// isControl 控制字符（含 NUL，PostgreSQL TEXT 不接受），换行和制表符除外
func isControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}

func cleanExtraNewlines(text string) string {
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return text
}
