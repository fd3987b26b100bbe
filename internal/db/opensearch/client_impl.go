package opensearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"docsearch/internal/domain/document"
	applog "docsearch/internal/platform/log"
)

var (
	_ document.IndexAdmin    = (*Client)(nil)
	_ document.IndexWriter   = (*Client)(nil)
	_ document.IndexSearcher = (*Client)(nil)
)

// Client OpenSearch HTTP 客户端（索引管理 / 写入 / 检索）
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	indexName  string
	refresh    string // bulk 写入的 refresh 策略
}

// NewClient 创建 OpenSearch 客户端
func NewClient(cfg *document.Config) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // 仅用于自签名开发集群
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.OpenSearchURL, "/"),
		username: cfg.OpenSearchUsername,
		password: cfg.OpenSearchPassword,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		indexName: cfg.IndexName,
		refresh:   "wait_for",
	}
}

// Close 释放空闲连接
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// Ping 检查 OpenSearch 连通性
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return fmt.Errorf("ping opensearch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("opensearch returned status %d", resp.StatusCode)
	}
	return nil
}

// ── 索引管理 ─────────────────────────────────────────────────

// GetIndex 读取索引映射；404 返回 ErrIndexNotFound，其他失败原样返回
func (c *Client) GetIndex(ctx context.Context, name string) (*document.IndexSchema, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/"+url.PathEscape(name)+"/_mapping", nil)
	if err != nil {
		return nil, fmt.Errorf("get index: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, document.ErrIndexNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("get index failed (%d): %s", resp.StatusCode, truncate(respBody))
	}

	var mappings map[string]struct {
		Mappings struct {
			Properties map[string]struct {
				Type     string `json:"type"`
				Analyzer string `json:"analyzer"`
			} `json:"properties"`
		} `json:"mappings"`
	}
	if err := json.Unmarshal(respBody, &mappings); err != nil {
		return nil, fmt.Errorf("parse mapping: %w", err)
	}

	schema := &document.IndexSchema{Name: name}
	for _, m := range mappings {
		for field, prop := range m.Mappings.Properties {
			f := document.IndexField{
				Name:     field,
				Type:     document.FieldType(prop.Type),
				Key:      field == "id",
				Analyzer: prop.Analyzer,
			}
			if f.Type == document.FieldTypeText {
				f.Searchable = true
			} else {
				f.Filterable = true
				f.Sortable = true
			}
			schema.Fields = append(schema.Fields, f)
		}
	}
	sort.Slice(schema.Fields, func(i, j int) bool { return schema.Fields[i].Name < schema.Fields[j].Name })
	return schema, nil
}

// CreateIndex 按 Schema 创建索引；已存在时返回 ErrIndexExists
func (c *Client) CreateIndex(ctx context.Context, schema *document.IndexSchema) error {
	body, err := json.Marshal(indexMapping(schema))
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPut, "/"+url.PathEscape(schema.Name), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusBadRequest && bytes.Contains(respBody, []byte("resource_already_exists_exception")) {
		return document.ErrIndexExists
	}
	return fmt.Errorf("create index failed (%d): %s", resp.StatusCode, truncate(respBody))
}

// indexMapping 将固定 Schema 转换为 OpenSearch settings + mappings
func indexMapping(schema *document.IndexSchema) map[string]interface{} {
	properties := make(map[string]interface{}, len(schema.Fields))
	for _, f := range schema.Fields {
		prop := map[string]interface{}{"type": string(f.Type)}
		if f.Type == document.FieldTypeText && f.Analyzer != "" {
			prop["analyzer"] = f.Analyzer
		}
		if f.Type == document.FieldTypeKeyword && !f.Filterable && !f.Key {
			prop["index"] = false
		}
		properties[f.Name] = prop
	}

	return map[string]interface{}{
		"settings": map[string]interface{}{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
		"mappings": map[string]interface{}{
			"dynamic":    false,
			"properties": properties,
		},
	}
}

// ── 写入 ─────────────────────────────────────────────────────

// UploadDocuments 批量写入文档（以文档 id 作为 _id，重复写入即覆盖）
func (c *Client) UploadDocuments(ctx context.Context, docs []document.Document) error {
	if len(docs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, doc := range docs {
		action := map[string]interface{}{
			"index": map[string]interface{}{
				"_index": c.indexName,
				"_id":    doc.ID,
			},
		}
		actionLine, _ := json.Marshal(action)
		buf.Write(actionLine)
		buf.WriteByte('\n')

		docLine, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal document %s: %w", doc.ID, err)
		}
		buf.Write(docLine)
		buf.WriteByte('\n')
	}

	path := "/_bulk"
	if c.refresh != "" {
		path += "?refresh=" + c.refresh
	}

	resp, err := c.doRequest(ctx, http.MethodPost, path, &buf)
	if err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bulk index failed (%d): %s", resp.StatusCode, truncate(respBody))
	}

	// _bulk 整体 200 时仍可能有单条失败
	var bulkResp struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  *struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.Unmarshal(respBody, &bulkResp); err != nil {
		return fmt.Errorf("parse bulk response: %w", err)
	}
	if bulkResp.Errors {
		for _, item := range bulkResp.Items {
			for _, res := range item {
				if res.Error != nil {
					return fmt.Errorf("bulk item %s failed (%d): %s: %s", res.ID, res.Status, res.Error.Type, res.Error.Reason)
				}
			}
		}
		return fmt.Errorf("bulk index reported errors")
	}

	applog.Debug("[OpenSearch] Bulk indexed", "index", c.indexName, "count", len(docs))
	return nil
}

// ── 检索 ─────────────────────────────────────────────────────

// Search 全文检索。语义模式下通过 search_pipeline 交给集群上配置的重排管道。
func (c *Client) Search(ctx context.Context, q document.SearchQuery) ([]document.Record, error) {
	top := q.Top
	if top <= 0 {
		top = 10
	}

	query := map[string]interface{}{
		"size": top,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":   q.Text,
				"fields":  []string{"content", "text", "body"},
				"lenient": true,
			},
		},
	}

	path := "/" + url.PathEscape(c.indexName) + "/_search"
	if q.Mode == document.RankingSemantic && q.Configuration != "" {
		path += "?search_pipeline=" + url.QueryEscape(q.Configuration)
	}

	body, _ := json.Marshal(query)
	resp, err := c.doRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search failed (%d): %s", resp.StatusCode, truncate(respBody))
	}

	var osResp struct {
		Hits struct {
			Hits []struct {
				ID     string          `json:"_id"`
				Score  float64         `json:"_score"`
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(respBody, &osResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	records := make([]document.Record, 0, len(osResp.Hits.Hits))
	for _, hit := range osResp.Hits.Hits {
		rec := document.Record{}
		dec := json.NewDecoder(bytes.NewReader(hit.Source))
		dec.UseNumber()
		if err := dec.Decode(&rec); err != nil {
			applog.Warn("[OpenSearch] Failed to parse hit source", "id", hit.ID, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// doRequest 执行 HTTP 请求
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}

	if strings.HasPrefix(path, "/_bulk") {
		req.Header.Set("Content-Type", "application/x-ndjson")
	} else {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	return c.httpClient.Do(req)
}

func truncate(b []byte) string {
	const limit = 512
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
