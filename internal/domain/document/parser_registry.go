package document

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// AllowedExtensions 允许上传的文件扩展名
var AllowedExtensions = []string{".txt", ".pdf", ".doc", ".docx"}

// ParserRegistry 文档解析器注册表（仅接受白名单内的扩展名）
type ParserRegistry struct {
	mu      sync.RWMutex
	allowed map[string]bool
	parsers map[string]Parser // key = ".ext"
}

// NewParserRegistry 创建解析器注册表并注册内置解析器
func NewParserRegistry() *ParserRegistry {
	r := &ParserRegistry{
		allowed: make(map[string]bool, len(AllowedExtensions)),
		parsers: make(map[string]Parser),
	}
	for _, ext := range AllowedExtensions {
		r.allowed[ext] = true
	}

	r.Register(&PlainTextParser{})
	r.Register(&WordParser{})
	r.Register(&PDFParser{})
	r.Register(&DOCXParser{})

	return r
}

// Register 注册解析器，白名单外的扩展名被忽略
func (r *ParserRegistry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range p.SupportedTypes() {
		ext = strings.ToLower(ext)
		if r.allowed[ext] {
			r.parsers[ext] = p
		}
	}
}

// Allowed 文件名扩展名是否在白名单内（大小写不敏感）
func (r *ParserRegistry) Allowed(filename string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.allowed[extOf(filename)]
}

// Get 根据文件名获取解析器
func (r *ParserRegistry) Get(filename string) (Parser, error) {
	ext := extOf(filename)
	if ext == "" {
		return nil, fmt.Errorf("no file extension in filename: %s", filename)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.parsers[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported file type: %s (supported: %s)", ext, r.supportedLocked())
	}
	return p, nil
}

// SupportedTypes 返回所有支持的文件扩展名
func (r *ParserRegistry) SupportedTypes() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.supportedLocked()
}

func (r *ParserRegistry) supportedLocked() string {
	types := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		types = append(types, ext)
	}
	sort.Strings(types)
	return strings.Join(types, ", ")
}

func extOf(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}
