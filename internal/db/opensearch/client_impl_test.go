package opensearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsearch/internal/domain/document"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := document.DefaultConfig()
	cfg.OpenSearchURL = srv.URL
	cfg.IndexName = "docs-index"
	return NewClient(cfg)
}

func TestGetIndexNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/docs-index/_mapping", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":{"type":"index_not_found_exception"},"status":404}`)
	})

	_, err := client.GetIndex(context.Background(), "docs-index")
	assert.ErrorIs(t, err, document.ErrIndexNotFound)
}

func TestGetIndexOtherFailureIsNotNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.GetIndex(context.Background(), "docs-index")
	require.Error(t, err)
	assert.NotErrorIs(t, err, document.ErrIndexNotFound)
}

func TestGetIndexParsesMapping(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"docs-index":{"mappings":{"properties":{
			"id":{"type":"keyword"},
			"content":{"type":"text","analyzer":"english"},
			"filename":{"type":"keyword"}
		}}}}`)
	})

	schema, err := client.GetIndex(context.Background(), "docs-index")
	require.NoError(t, err)
	require.Len(t, schema.Fields, 3)

	content, ok := schema.Field("content")
	require.True(t, ok)
	assert.Equal(t, document.FieldTypeText, content.Type)
	assert.Equal(t, "english", content.Analyzer)
	assert.True(t, content.Searchable)

	id, ok := schema.Field("id")
	require.True(t, ok)
	assert.True(t, id.Key)
}

func TestCreateIndexSendsFixedMapping(t *testing.T) {
	var got map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/docs-index", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		io.WriteString(w, `{"acknowledged":true}`)
	})

	err := client.CreateIndex(context.Background(), document.NewIndexSchema("docs-index", "english"))
	require.NoError(t, err)

	props := got["mappings"].(map[string]interface{})["properties"].(map[string]interface{})
	assert.Len(t, props, 5)
	content := props["content"].(map[string]interface{})
	assert.Equal(t, "text", content["type"])
	assert.Equal(t, "english", content["analyzer"])
	assert.Equal(t, "keyword", props["uploadTimestamp"].(map[string]interface{})["type"])
}

func TestCreateIndexAlreadyExists(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"type":"resource_already_exists_exception","reason":"index [docs-index] already exists"},"status":400}`)
	})

	err := client.CreateIndex(context.Background(), document.NewIndexSchema("docs-index", ""))
	assert.ErrorIs(t, err, document.ErrIndexExists)
}

func TestUploadDocumentsBulkBody(t *testing.T) {
	var body string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_bulk", r.URL.Path)
		assert.Equal(t, "wait_for", r.URL.Query().Get("refresh"))
		assert.Equal(t, "application/x-ndjson", r.Header.Get("Content-Type"))
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		io.WriteString(w, `{"errors":false,"items":[{"index":{"_id":"doc-1","status":201}}]}`)
	})

	err := client.UploadDocuments(context.Background(), []document.Document{{
		ID:       "doc-1",
		UserID:   "u1",
		Filename: "notes.txt",
		Content:  "hello world",
	}})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"_id":"doc-1"`)
	assert.Contains(t, lines[1], `"content":"hello world"`)
	assert.Contains(t, lines[1], `"userId":"u1"`)
}

func TestUploadDocumentsItemFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"errors":true,"items":[{"index":{"_id":"doc-1","status":400,"error":{"type":"mapper_parsing_exception","reason":"bad field"}}}]}`)
	})

	err := client.UploadDocuments(context.Background(), []document.Document{{ID: "doc-1", Content: "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapper_parsing_exception")
}

func TestSearchSemanticUsesPipeline(t *testing.T) {
	var pipeline string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		pipeline = r.URL.Query().Get("search_pipeline")
		assert.Equal(t, "/docs-index/_search", r.URL.Path)
		io.WriteString(w, `{"hits":{"hits":[
			{"_id":"1","_score":2.0,"_source":{"content":"A","filename":"a.txt"}},
			{"_id":"2","_score":1.0,"_source":{"text":"B"}}
		]}}`)
	})

	records, err := client.Search(context.Background(), document.SearchQuery{
		Text:          "hello",
		Mode:          document.RankingSemantic,
		Configuration: "docs-semantic",
		Top:           5,
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "A", records[0].Body())
	assert.Equal(t, "a.txt", records[0].Filename())
	assert.Equal(t, "B", records[1].Body())
	assert.Equal(t, document.UnknownFilename, records[1].Filename())

	assert.Equal(t, "docs-semantic", pipeline)
}

func TestSearchSimpleModeOmitsPipeline(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("search_pipeline"))
		io.WriteString(w, `{"hits":{"hits":[]}}`)
	})

	records, err := client.Search(context.Background(), document.SearchQuery{
		Text:          "hello",
		Mode:          document.RankingSimple,
		Configuration: "docs-semantic",
	})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSearchBackendError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":"boom"}`)
	})

	_, err := client.Search(context.Background(), document.SearchQuery{Text: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
