package document

import "time"

// Document 文档存储与检索的基本单元（主存储与检索索引共用同一 id）
type Document struct {
	ID              string `json:"id"`
	UserID          string `json:"userId"`
	Filename        string `json:"filename"`
	Content         string `json:"content"`
	UploadTimestamp string `json:"uploadTimestamp"`
}

// NewTimestamp 生成上传时间戳（UTC，RFC3339Nano）
func NewTimestamp(now time.Time) string {
	return now.UTC().Format(time.RFC3339Nano)
}

// ── 索引 Schema ──────────────────────────────────────────────

// FieldType 索引字段类型
type FieldType string

const (
	FieldTypeKeyword FieldType = "keyword"
	FieldTypeText    FieldType = "text"
)

// IndexField 索引字段定义
type IndexField struct {
	Name       string    `json:"name"`
	Type       FieldType `json:"type"`
	Key        bool      `json:"key,omitempty"`
	Filterable bool      `json:"filterable,omitempty"`
	Sortable   bool      `json:"sortable,omitempty"`
	Searchable bool      `json:"searchable,omitempty"`
	Analyzer   string    `json:"analyzer,omitempty"`
}

// IndexSchema 检索索引 Schema（固定字段集，只增不改）
type IndexSchema struct {
	Name   string       `json:"name"`
	Fields []IndexField `json:"fields"`
}

// Field 按名称查找字段
func (s *IndexSchema) Field(name string) (IndexField, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return IndexField{}, false
}

// DefaultAnalyzer content 字段默认分析器
const DefaultAnalyzer = "english"

// NewIndexSchema 构建固定的文档索引 Schema
func NewIndexSchema(name, analyzer string) *IndexSchema {
	if analyzer == "" {
		analyzer = DefaultAnalyzer
	}
	return &IndexSchema{
		Name: name,
		Fields: []IndexField{
			{Name: "id", Type: FieldTypeKeyword, Key: true, Filterable: true},
			{Name: "userId", Type: FieldTypeKeyword, Filterable: true},
			{Name: "filename", Type: FieldTypeKeyword, Filterable: true},
			{Name: "content", Type: FieldTypeText, Searchable: true, Analyzer: analyzer},
			{Name: "uploadTimestamp", Type: FieldTypeKeyword, Filterable: true, Sortable: true},
		},
	}
}

// ── 检索 ─────────────────────────────────────────────────────

// RankingMode 排序模式
type RankingMode string

const (
	RankingSimple   RankingMode = "simple"
	RankingSemantic RankingMode = "semantic"
)

// SearchQuery 检索请求（排序完全交给检索后端）
type SearchQuery struct {
	Text          string      `json:"text"`
	Mode          RankingMode `json:"mode"`
	Configuration string      `json:"configuration,omitempty"` // 语义排序配置名
	Top           int         `json:"top,omitempty"`
}

// Excerpt 带来源的检索片段
type Excerpt struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// ── 入库 / 检索结果 ──────────────────────────────────────────

// IngestStatus 入库结果状态
type IngestStatus string

const (
	IngestAccepted IngestStatus = "accepted"
	IngestRejected IngestStatus = "rejected"
)

// IngestRequest 单次上传入库请求
type IngestRequest struct {
	Data     []byte
	Filename string
	UserID   string
	// Cleanup 清理上传临时文件（可选），无论结果如何都会执行
	Cleanup func() error
}

// IngestResult 入库结果
type IngestResult struct {
	Status     IngestStatus `json:"status"`
	DocumentID string       `json:"document_id,omitempty"`
	Indexed    bool         `json:"indexed"`
	Message    string       `json:"message"`
	Err        error        `json:"-"`
}

// Accepted 是否已持久化
func (r *IngestResult) Accepted() bool {
	return r.Status == IngestAccepted
}

// Kind 失败类型（Accepted 且已索引时为空）
func (r *IngestResult) Kind() Kind {
	return KindOf(r.Err)
}

// SearchStatus 检索结果状态
type SearchStatus string

const (
	SearchOK       SearchStatus = "ok"
	SearchEmpty    SearchStatus = "empty"
	SearchPrompt   SearchStatus = "prompt"
	SearchDegraded SearchStatus = "degraded"
)

// SearchOutcome 检索结果
type SearchOutcome struct {
	Status   SearchStatus `json:"status"`
	Excerpts []Excerpt    `json:"excerpts,omitempty"`
	Result   string       `json:"result,omitempty"`
	Message  string       `json:"message,omitempty"`
	Cached   bool         `json:"cached,omitempty"`
	Err      error        `json:"-"`
}
