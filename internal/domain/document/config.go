package document

// Config 文档检索模块配置
type Config struct {
	// OpenSearch 连接
	OpenSearchURL      string `json:"opensearch_url" yaml:"opensearch_url"`
	OpenSearchUsername string `json:"opensearch_username" yaml:"opensearch_username"`
	OpenSearchPassword string `json:"opensearch_password" yaml:"opensearch_password"`
	InsecureSkipVerify bool   `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	TimeoutSeconds     int    `json:"timeout_seconds" yaml:"timeout_seconds"`

	// 索引
	IndexName string `json:"index_name" yaml:"index_name"`
	Analyzer  string `json:"analyzer" yaml:"analyzer"`

	// 检索
	RankingMode           RankingMode `json:"ranking_mode" yaml:"ranking_mode"`
	SemanticConfiguration string      `json:"semantic_configuration" yaml:"semantic_configuration"`
	TopK                  int         `json:"top_k" yaml:"top_k"`

	// 缓存 TTL（秒），0=禁用
	CacheTTL int `json:"cache_ttl" yaml:"cache_ttl"`
	// 上传文件大小上限（MB）
	MaxFileSize int `json:"max_file_size" yaml:"max_file_size"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		TimeoutSeconds:        30,
		IndexName:             "docs-index",
		Analyzer:              DefaultAnalyzer,
		RankingMode:           RankingSemantic,
		SemanticConfiguration: "docs-semantic",
		TopK:                  10,
		CacheTTL:              0,
		MaxFileSize:           16,
	}
}

// MaxUploadBytes 上传大小上限（字节）
func (c *Config) MaxUploadBytes() int64 {
	if c.MaxFileSize <= 0 {
		return MaxUploadBytes
	}
	return int64(c.MaxFileSize) << 20
}

// HasCache 是否启用缓存
func (c *Config) HasCache() bool {
	return c.CacheTTL > 0
}
