package redisdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"docsearch/internal/domain/document"
)

func TestCacheKeyStable(t *testing.T) {
	c := NewSearchCache(nil, 0)
	q := document.SearchQuery{Text: "hello", Mode: document.RankingSemantic, Configuration: "cfg", Top: 10}

	assert.Equal(t, c.cacheKey(q), c.cacheKey(q))
	assert.Equal(t, c.cacheKey(q), c.cacheKey(document.SearchQuery{Text: "  hello ", Mode: document.RankingSemantic, Configuration: "cfg", Top: 10}))
	assert.NotEqual(t, c.cacheKey(q), c.cacheKey(document.SearchQuery{Text: "hello", Mode: document.RankingSimple, Configuration: "cfg", Top: 10}))
	assert.NotEqual(t, c.cacheKey(q), c.cacheKey(document.SearchQuery{Text: "hello", Mode: document.RankingSemantic, Configuration: "cfg", Top: 5}))
	assert.Contains(t, c.cacheKey(q), "docsearch:cache:")
}

func TestNewSearchCacheTTL(t *testing.T) {
	assert.Equal(t, "5m0s", NewSearchCache(nil, 0).ttl.String())
	assert.Equal(t, "30s", NewSearchCache(nil, 30).ttl.String())
}

func TestIndexLockReleaseWithoutAcquireIsNoop(t *testing.T) {
	l := NewIndexLock(nil)

	assert.NoError(t, l.Release(context.Background(), "docs-index"))
	assert.Equal(t, "docsearch:lock:index:docs-index", lockKey("docs-index"))
}
