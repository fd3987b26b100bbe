package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"docsearch/internal/domain/document"
)

// 文档存储驱动
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// AppConfig 全局配置。启动时统一加载，再按模块提取使用。
type AppConfig struct {
	LogLevel  string          `json:"log_level" yaml:"log_level"`
	LogFormat string          `json:"log_format" yaml:"log_format"`
	Server    ServerConfig    `json:"server" yaml:"server"`
	Store     StoreConfig     `json:"store" yaml:"store"`
	Database  DatabaseConfig  `json:"database" yaml:"database"`
	SQLite    SQLiteConfig    `json:"sqlite" yaml:"sqlite"`
	Redis     RedisConfig     `json:"redis" yaml:"redis"`
	Auth      AuthConfig      `json:"auth" yaml:"auth"`
	Runtime   RuntimeConfig   `json:"runtime" yaml:"runtime"`
	Search    document.Config `json:"search" yaml:"search"`
}

type ServerConfig struct {
	Host                string  `json:"host" yaml:"host"`
	Port                int     `json:"port" yaml:"port"`
	ReadTimeoutSeconds  int     `json:"read_timeout_seconds" yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int     `json:"write_timeout_seconds" yaml:"write_timeout_seconds"`
	UploadRateLimit     float64 `json:"upload_rate_limit" yaml:"upload_rate_limit"` // 每秒上传数，0=不限
	UploadRateBurst     int     `json:"upload_rate_burst" yaml:"upload_rate_burst"`
}

type StoreConfig struct {
	Driver string `json:"driver" yaml:"driver"` // postgres | sqlite
}

type DatabaseConfig struct {
	URL                    string `json:"url" yaml:"url"`
	MaxOpenConns           int    `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds" yaml:"conn_max_lifetime_seconds"`
}

type SQLiteConfig struct {
	Path string `json:"path" yaml:"path"`
}

type RedisConfig struct {
	URL string `json:"url" yaml:"url"`
}

type AuthConfig struct {
	JWTSecret string `json:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer string `json:"jwt_issuer" yaml:"jwt_issuer"`
}

type RuntimeConfig struct {
	MigrationTimeoutSeconds      int `json:"migration_timeout_seconds" yaml:"migration_timeout_seconds"`
	OpenSearchPingTimeoutSeconds int `json:"opensearch_ping_timeout_seconds" yaml:"opensearch_ping_timeout_seconds"`
	RedisPingTimeoutSeconds      int `json:"redis_ping_timeout_seconds" yaml:"redis_ping_timeout_seconds"`
	ShutdownTimeoutSeconds       int `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
}

// Default 返回默认配置。
func Default() *AppConfig {
	return &AppConfig{
		LogLevel:  "info",
		LogFormat: "text",
		Server: ServerConfig{
			Host:                "0.0.0.0",
			Port:                8080,
			ReadTimeoutSeconds:  60,
			WriteTimeoutSeconds: 60,
			UploadRateBurst:     5,
		},
		Store: StoreConfig{
			Driver: StorePostgres,
		},
		Database: DatabaseConfig{
			MaxOpenConns:           25,
			MaxIdleConns:           5,
			ConnMaxLifetimeSeconds: 300,
		},
		Runtime: RuntimeConfig{
			MigrationTimeoutSeconds:      30,
			OpenSearchPingTimeoutSeconds: 5,
			RedisPingTimeoutSeconds:      5,
			ShutdownTimeoutSeconds:       15,
		},
		Search: *document.DefaultConfig(),
	}
}

// Load 加载全局配置：默认值 -> 配置文件 -> 环境变量。
// 配置文件路径通过 APP_CONFIG_FILE 指定（.json / .yaml / .yml）。
func Load() (*AppConfig, error) {
	// .env 非必需，忽略错误
	_ = godotenv.Load()

	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("APP_CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read APP_CONFIG_FILE %q failed: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("parse APP_CONFIG_FILE %q failed: %w", path, err)
	}
	return nil
}

func (c *AppConfig) applyEnv() {
	applyString("LOG_LEVEL", &c.LogLevel)
	applyString("LOG_FORMAT", &c.LogFormat)

	applyString("HOST", &c.Server.Host)
	applyInt("PORT", &c.Server.Port)
	applyInt("SERVER_READ_TIMEOUT", &c.Server.ReadTimeoutSeconds)
	applyInt("SERVER_WRITE_TIMEOUT", &c.Server.WriteTimeoutSeconds)
	applyFloat64("UPLOAD_RATE_LIMIT", &c.Server.UploadRateLimit)
	applyInt("UPLOAD_RATE_BURST", &c.Server.UploadRateBurst)

	applyString("DOCUMENT_STORE", &c.Store.Driver)
	applyString("DATABASE_URL", &c.Database.URL)
	applyInt("DATABASE_MAX_OPEN_CONNS", &c.Database.MaxOpenConns)
	applyInt("DATABASE_MAX_IDLE_CONNS", &c.Database.MaxIdleConns)
	applyInt("DATABASE_CONN_MAX_LIFETIME", &c.Database.ConnMaxLifetimeSeconds)
	applyString("SQLITE_PATH", &c.SQLite.Path)

	applyString("REDIS_URL", &c.Redis.URL)

	applyString("JWT_SECRET", &c.Auth.JWTSecret)
	applyString("JWT_ISSUER", &c.Auth.JWTIssuer)

	applyString("OPENSEARCH_URL", &c.Search.OpenSearchURL)
	applyString("OPENSEARCH_USERNAME", &c.Search.OpenSearchUsername)
	applyString("OPENSEARCH_PASSWORD", &c.Search.OpenSearchPassword)
	applyBool("OPENSEARCH_INSECURE_SKIP_VERIFY", &c.Search.InsecureSkipVerify)
	applyInt("OPENSEARCH_TIMEOUT", &c.Search.TimeoutSeconds)
	applyString("SEARCH_INDEX_NAME", &c.Search.IndexName)
	applyString("SEARCH_ANALYZER", &c.Search.Analyzer)
	if v := os.Getenv("SEARCH_RANKING_MODE"); v != "" {
		c.Search.RankingMode = document.RankingMode(strings.ToLower(v))
	}
	applyString("SEARCH_SEMANTIC_CONFIGURATION", &c.Search.SemanticConfiguration)
	applyInt("SEARCH_TOP_K", &c.Search.TopK)
	applyInt("SEARCH_CACHE_TTL", &c.Search.CacheTTL)
	applyInt("MAX_UPLOAD_MB", &c.Search.MaxFileSize)
}

func (c *AppConfig) normalize() {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if c.Store.Driver == "" {
		c.Store.Driver = StorePostgres
	}
	if c.Search.RankingMode == "" {
		c.Search.RankingMode = document.RankingSemantic
	}
	if c.Search.IndexName == "" {
		c.Search.IndexName = document.DefaultConfig().IndexName
	}
	if c.Search.MaxFileSize <= 0 {
		c.Search.MaxFileSize = document.DefaultConfig().MaxFileSize
	}
}

func (c *AppConfig) validate() error {
	if strings.TrimSpace(c.Search.OpenSearchURL) == "" {
		return fmt.Errorf("OPENSEARCH_URL is required")
	}
	switch c.Store.Driver {
	case StorePostgres:
		if strings.TrimSpace(c.Database.URL) == "" {
			return fmt.Errorf("DATABASE_URL is required when DOCUMENT_STORE=postgres")
		}
	case StoreSQLite:
		if strings.TrimSpace(c.SQLite.Path) == "" {
			return fmt.Errorf("SQLITE_PATH is required when DOCUMENT_STORE=sqlite")
		}
	default:
		return fmt.Errorf("unknown DOCUMENT_STORE %q (postgres | sqlite)", c.Store.Driver)
	}
	switch c.Search.RankingMode {
	case document.RankingSemantic, document.RankingSimple:
	default:
		return fmt.Errorf("unknown SEARCH_RANKING_MODE %q (semantic | simple)", c.Search.RankingMode)
	}
	return nil
}

func applyString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func applyInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func applyFloat64(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			*target = n
		}
	}
}

func applyBool(key string, target *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}
