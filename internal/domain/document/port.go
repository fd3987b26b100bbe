package document

import "context"

// Store 主文档存储（以 id 为键的 upsert 语义）
type Store interface {
	Upsert(ctx context.Context, doc *Document) error
	// Get 不存在时返回 nil, nil
	Get(ctx context.Context, id string) (*Document, error)
}

// IndexAdmin 检索索引管理
type IndexAdmin interface {
	// GetIndex 不存在时返回 ErrIndexNotFound
	GetIndex(ctx context.Context, name string) (*IndexSchema, error)
	// CreateIndex 并发创建的败者返回 ErrIndexExists
	CreateIndex(ctx context.Context, schema *IndexSchema) error
}

// IndexWriter 检索索引写入
type IndexWriter interface {
	UploadDocuments(ctx context.Context, docs []Document) error
}

// IndexSearcher 检索索引查询，按后端排序返回原始结果记录
type IndexSearcher interface {
	Search(ctx context.Context, q SearchQuery) ([]Record, error)
}

// IndexLock 跨进程索引创建锁（可选）
type IndexLock interface {
	Acquire(ctx context.Context, name string) (bool, error)
	Release(ctx context.Context, name string) error
}

// QueryCache 检索结果缓存（可选）
type QueryCache interface {
	Get(ctx context.Context, q SearchQuery) ([]Excerpt, bool)
	Set(ctx context.Context, q SearchQuery, excerpts []Excerpt)
	Invalidate(ctx context.Context)
}
