package document

import (
	"bytes"
	"fmt"
	"strings"
)

// Extractor 将上传文件内容转换为纯文本，无副作用
type Extractor struct {
	parsers *ParserRegistry
}

// NewExtractor 创建文本提取器，registry 为空时使用内置解析器
func NewExtractor(registry *ParserRegistry) *Extractor {
	if registry == nil {
		registry = NewParserRegistry()
	}
	return &Extractor{parsers: registry}
}

// Parsers 返回解析器注册表
func (e *Extractor) Parsers() *ParserRegistry {
	return e.parsers
}

// Extract 提取文本。
// 不支持的格式返回 KindUnsupported；解析失败、panic 或结果为空返回 KindExtraction。
func (e *Extractor) Extract(data []byte, filename string) (text string, err error) {
	const op = "extract"

	parser, perr := e.parsers.Get(filename)
	if perr != nil {
		return "", newError(KindUnsupported, op, "unsupported file type", perr)
	}

	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = newError(KindExtraction, op, ReasonNoText, fmt.Errorf("parser panic: %v", rec))
		}
	}()

	result, perr := parser.Parse(bytes.NewReader(data), filename)
	if perr != nil {
		return "", newError(KindExtraction, op, ReasonNoText, perr)
	}

	// PostgreSQL TEXT 不接受 NUL
	text = strings.TrimSpace(strings.ReplaceAll(result.Content, "\x00", ""))
	if text == "" {
		return "", newError(KindExtraction, op, ReasonNoText, fmt.Errorf("no text content in %s", filename))
	}
	return text, nil
}
