package document

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
)

// memStore 内存主存储
type memStore struct {
	mu   sync.Mutex
	docs map[string]Document
	err  error
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[string]Document)}
}

func (s *memStore) Upsert(_ context.Context, doc *Document) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = *doc
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// memIndex 内存检索索引：实现 IndexAdmin / IndexWriter / IndexSearcher
type memIndex struct {
	mu      sync.Mutex
	exists  bool
	docs    []Document
	records []Record // 非空时 Search 直接返回

	getErr    error // GetIndex 返回的非 NotFound 错误
	createErr error
	uploadErr error
	searchErr error

	gets     atomic.Int32
	creates  atomic.Int32
	searches atomic.Int32
	lastQ    SearchQuery
}

func (m *memIndex) GetIndex(_ context.Context, name string) (*IndexSchema, error) {
	m.gets.Add(1)
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.exists {
		return nil, ErrIndexNotFound
	}
	return NewIndexSchema(name, ""), nil
}

func (m *memIndex) CreateIndex(_ context.Context, _ *IndexSchema) error {
	m.creates.Add(1)
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exists {
		return ErrIndexExists
	}
	m.exists = true
	return nil
}

func (m *memIndex) UploadDocuments(_ context.Context, docs []Document) error {
	if m.uploadErr != nil {
		return m.uploadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = append(m.docs, docs...)
	return nil
}

func (m *memIndex) Search(_ context.Context, q SearchQuery) ([]Record, error) {
	m.searches.Add(1)
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQ = q
	if m.records != nil {
		return m.records, nil
	}
	var out []Record
	for _, d := range m.docs {
		if containsFold(d.Content, q.Text) {
			out = append(out, Record{"id": d.ID, "filename": d.Filename, "content": d.Content})
		}
	}
	return out, nil
}

func (m *memIndex) indexed() []Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Document(nil), m.docs...)
}

// memCache 内存检索缓存
type memCache struct {
	mu          sync.Mutex
	entries     map[SearchQuery][]Excerpt
	invalidated int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[SearchQuery][]Excerpt)}
}

func (c *memCache) Get(_ context.Context, q SearchQuery) ([]Excerpt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ex, ok := c.entries[q]
	return ex, ok
}

func (c *memCache) Set(_ context.Context, q SearchQuery, excerpts []Excerpt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[q] = excerpts
}

func (c *memCache) Invalidate(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[SearchQuery][]Excerpt)
	c.invalidated++
}

// stubEnsurer 固定返回的 IndexEnsurer
type stubEnsurer struct {
	err   error
	calls atomic.Int32
}

func (s *stubEnsurer) EnsureIndex(context.Context) error {
	s.calls.Add(1)
	return s.err
}

// stubLock 可控的 IndexLock
type stubLock struct {
	acquire  bool
	err      error
	released atomic.Int32
}

func (l *stubLock) Acquire(context.Context, string) (bool, error) {
	return l.acquire, l.err
}

func (l *stubLock) Release(context.Context, string) error {
	l.released.Add(1)
	return nil
}

var errBackend = errors.New("connection refused")

func containsFold(s, substr string) bool {
	return substr != "" && strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
