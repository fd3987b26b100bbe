package document

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchEmptyQueryNeverCallsBackend(t *testing.T) {
	idx := &memIndex{}
	ensurer := &stubEnsurer{}
	s := NewSearcher(ensurer, idx, nil)

	for _, q := range []string{"", "   ", "\n\t"} {
		out := s.Search(context.Background(), q)
		assert.Equal(t, SearchPrompt, out.Status)
		assert.Equal(t, "Please enter a search query", out.Message)
	}
	assert.Equal(t, int32(0), ensurer.calls.Load())
	assert.Equal(t, int32(0), idx.searches.Load())
}

func TestSearchRoundTrip(t *testing.T) {
	store := newMemStore()
	idx := &memIndex{}
	schema := NewSchemaManager(idx, "docs-index", "")
	in := NewIngestor(nil, schema, store, idx)
	s := NewSearcher(schema, idx, nil)
	ctx := context.Background()

	res := in.Ingest(ctx, &IngestRequest{Data: []byte("hello world"), Filename: "notes.txt"})
	require.True(t, res.Indexed)

	out := s.Search(ctx, "hello")
	require.Equal(t, SearchOK, out.Status)
	require.Len(t, out.Excerpts, 1)
	assert.Equal(t, Excerpt{Filename: "notes.txt", Content: "hello world"}, out.Excerpts[0])
	assert.Contains(t, out.Result, "notes.txt")
	assert.Contains(t, out.Result, "hello world")
}

func TestSearchUsesConfiguredRanking(t *testing.T) {
	idx := &memIndex{records: []Record{}}
	cfg := DefaultConfig()
	cfg.TopK = 3
	s := NewSearcher(&stubEnsurer{}, idx, cfg)

	s.Search(context.Background(), "  q  ")

	// 原始查询原样发给后端
	assert.Equal(t, SearchQuery{Text: "  q  ", Mode: RankingSemantic, Configuration: "docs-semantic", Top: 3}, idx.lastQ)
}

func TestSearchPreservesBackendOrderAndSkipsBodiless(t *testing.T) {
	idx := &memIndex{records: []Record{
		{"content": "A", "filename": "f1"},
		{"nofield": "x"},
		{"text": "B"},
	}}
	s := NewSearcher(&stubEnsurer{}, idx, nil)

	out := s.Search(context.Background(), "anything")

	require.Equal(t, SearchOK, out.Status)
	assert.Equal(t, []Excerpt{
		{Filename: "f1", Content: "A"},
		{Filename: UnknownFilename, Content: "B"},
	}, out.Excerpts)
	assert.Equal(t, "[f1]\nA"+ExcerptDivider+"[Unknown]\nB", out.Result)
	assert.Less(t, strings.Index(out.Result, "A"), strings.Index(out.Result, "B"))
}

func TestSearchNoResults(t *testing.T) {
	s := NewSearcher(&stubEnsurer{}, &memIndex{records: []Record{{"nofield": "x"}}}, nil)

	out := s.Search(context.Background(), "hello")
	assert.Equal(t, SearchEmpty, out.Status)
	assert.Equal(t, "No results found for your query.", out.Message)
	assert.NoError(t, out.Err)
}

func TestSearchDegradedWhenIndexUnavailable(t *testing.T) {
	idx := &memIndex{}
	ensurer := &stubEnsurer{err: newError(KindBackendUnavailable, "ensure index", "index unavailable", errBackend)}
	s := NewSearcher(ensurer, idx, nil)

	out := s.Search(context.Background(), "hello")

	assert.Equal(t, SearchDegraded, out.Status)
	assert.Equal(t, "index unavailable", out.Message)
	assert.Equal(t, int32(0), idx.searches.Load())
}

func TestSearchDegradedOnBackendError(t *testing.T) {
	s := NewSearcher(&stubEnsurer{}, &memIndex{searchErr: errBackend}, nil)

	out := s.Search(context.Background(), "hello")

	assert.Equal(t, SearchDegraded, out.Status)
	assert.Equal(t, "search error: connection refused", out.Message)
	assert.ErrorIs(t, out.Err, errBackend)
}

func TestSearchCache(t *testing.T) {
	idx := &memIndex{records: []Record{{"content": "cached body", "filename": "c.txt"}}}
	cache := newMemCache()
	s := NewSearcher(&stubEnsurer{}, idx, nil)
	s.SetCache(cache)
	ctx := context.Background()

	first := s.Search(ctx, "hello")
	require.Equal(t, SearchOK, first.Status)
	assert.False(t, first.Cached)

	second := s.Search(ctx, "hello")
	require.Equal(t, SearchOK, second.Status)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Result, second.Result)
	assert.Equal(t, int32(1), idx.searches.Load())
}

func TestShortCauseTruncates(t *testing.T) {
	long := strings.Repeat("x", 300)
	got := shortCause(errString(long + "\nsecond line"))
	assert.Len(t, got, 123)
	assert.True(t, strings.HasSuffix(got, "..."))
}

type errString string

func (e errString) Error() string { return string(e) }
