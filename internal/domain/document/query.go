package document

import (
	"context"
	"fmt"
	"strings"
	"time"

	applog "docsearch/internal/platform/log"
)

const (
	// ExcerptDivider 片段之间的分隔
	ExcerptDivider = "\n\n---\n\n"

	msgEnterQuery = "Please enter a search query"
	msgNoResults  = "No results found for your query."
)

// Searcher 检索流程：确保索引 → 语义检索 → 字段回退解码 → 拼接结果
type Searcher struct {
	schema   IndexEnsurer
	index    IndexSearcher
	cache    QueryCache // 可选
	mode     RankingMode
	semantic string // 语义排序配置名
	top      int
}

// NewSearcher 创建检索流程
func NewSearcher(schema IndexEnsurer, index IndexSearcher, cfg *Config) *Searcher {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	mode := cfg.RankingMode
	if mode == "" {
		mode = RankingSemantic
	}
	return &Searcher{
		schema:   schema,
		index:    index,
		mode:     mode,
		semantic: cfg.SemanticConfiguration,
		top:      cfg.TopK,
	}
}

// SetCache 设置检索缓存
func (s *Searcher) SetCache(c QueryCache) {
	s.cache = c
}

// Search 执行检索。后端错误转为 Degraded，不向上抛出。
func (s *Searcher) Search(ctx context.Context, text string) *SearchOutcome {
	start := time.Now()

	// 去空白只用于判空，后端收到原始查询
	if strings.TrimSpace(text) == "" {
		return &SearchOutcome{Status: SearchPrompt, Message: msgEnterQuery}
	}

	if err := s.schema.EnsureIndex(ctx); err != nil {
		return degraded(err)
	}

	q := SearchQuery{
		Text:          text,
		Mode:          s.mode,
		Configuration: s.semantic,
		Top:           s.top,
	}

	if s.cache != nil {
		if excerpts, ok := s.cache.Get(ctx, q); ok {
			out := compose(excerpts)
			out.Cached = true
			return out
		}
	}

	records, err := s.index.Search(ctx, q)
	if err != nil {
		applog.Error("[Search] Search backend failed", "query", text, "error", err)
		return degraded(newError(KindBackendUnavailable, "search", fmt.Sprintf("search error: %s", shortCause(err)), err))
	}

	excerpts := make([]Excerpt, 0, len(records))
	for _, rec := range records {
		if ex, ok := rec.Excerpt(); ok {
			excerpts = append(excerpts, ex)
		}
	}

	applog.Info("[Search] Query executed",
		"query", text,
		"mode", q.Mode,
		"hits", len(records),
		"excerpts", len(excerpts),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if s.cache != nil {
		s.cache.Set(ctx, q, excerpts)
	}

	return compose(excerpts)
}

// FormatExcerpts 按后端排序拼接片段，每段以来源文件名开头
func FormatExcerpts(excerpts []Excerpt) string {
	blocks := make([]string, 0, len(excerpts))
	for _, ex := range excerpts {
		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", ex.Filename, ex.Content))
	}
	return strings.Join(blocks, ExcerptDivider)
}

func compose(excerpts []Excerpt) *SearchOutcome {
	if len(excerpts) == 0 {
		return &SearchOutcome{Status: SearchEmpty, Message: msgNoResults}
	}
	return &SearchOutcome{
		Status:   SearchOK,
		Excerpts: excerpts,
		Result:   FormatExcerpts(excerpts),
	}
}

func degraded(err error) *SearchOutcome {
	return &SearchOutcome{
		Status:  SearchDegraded,
		Message: ReasonOf(err),
		Err:     err,
	}
}

// shortCause 截断后端错误，避免泄露过多内部细节
func shortCause(err error) string {
	const limit = 120
	msg := err.Error()
	if idx := strings.IndexByte(msg, '\n'); idx >= 0 {
		msg = msg[:idx]
	}
	if len(msg) > limit {
		msg = msg[:limit] + "..."
	}
	return msg
}
