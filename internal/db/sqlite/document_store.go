package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"docsearch/internal/domain/document"
)

var _ document.Store = (*DocumentStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL DEFAULT '',
	filename         TEXT NOT NULL,
	content          TEXT NOT NULL,
	upload_timestamp TEXT NOT NULL,
	created_at       TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
	updated_at       TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_documents_user ON documents(user_id);
`

// DocumentStore 单机部署用的 SQLite 文档存储
type DocumentStore struct {
	db *sql.DB
}

// NewDocumentStore 打开（或创建）SQLite 数据库并建表
func NewDocumentStore(path string) (*DocumentStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// 单连接：写入串行化，:memory: 也只对应一个库
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &DocumentStore{db: db}, nil
}

// Close 关闭数据库
func (s *DocumentStore) Close() error {
	return s.db.Close()
}

// Ping 检查数据库可用
func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Upsert 以 id 为键写入文档
func (s *DocumentStore) Upsert(ctx context.Context, doc *document.Document) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("upsert document: id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, user_id, filename, content, upload_timestamp)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			filename = excluded.filename,
			content = excluded.content,
			upload_timestamp = excluded.upload_timestamp,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
		doc.ID, doc.UserID, doc.Filename, doc.Content, doc.UploadTimestamp)
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.ID, err)
	}
	return nil
}

// Get 按 id 读取文档，不存在返回 nil, nil
func (s *DocumentStore) Get(ctx context.Context, id string) (*document.Document, error) {
	doc := &document.Document{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, filename, content, upload_timestamp FROM documents WHERE id = ?`, id,
	).Scan(&doc.ID, &doc.UserID, &doc.Filename, &doc.Content, &doc.UploadTimestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return doc, nil
}
