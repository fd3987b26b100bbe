package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"docsearch/internal/domain/document"
)

var _ document.Store = (*Repository)(nil)

// Repository PostgreSQL 文档主存储
type Repository struct {
	db *sql.DB
}

// NewRepository 创建 PostgreSQL 存储
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EnsureDocumentsTable 确保 documents 表存在
func (r *Repository) EnsureDocumentsTable(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS documents (
		id               TEXT PRIMARY KEY,
		user_id          TEXT NOT NULL DEFAULT '',
		filename         VARCHAR(255) NOT NULL,
		content          TEXT NOT NULL,
		upload_timestamp VARCHAR(64) NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_documents_user ON documents(user_id);
	CREATE INDEX IF NOT EXISTS idx_documents_uploaded ON documents(upload_timestamp);
	`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Ping 检查数据库连通性
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Upsert 以 id 为键写入文档，冲突时覆盖
func (r *Repository) Upsert(ctx context.Context, doc *document.Document) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("upsert document: id is required")
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (id, user_id, filename, content, upload_timestamp)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			filename = EXCLUDED.filename,
			content = EXCLUDED.content,
			upload_timestamp = EXCLUDED.upload_timestamp,
			updated_at = NOW()`,
		doc.ID, doc.UserID, doc.Filename, doc.Content, doc.UploadTimestamp)
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.ID, err)
	}
	return nil
}

// Get 按 id 读取文档，不存在返回 nil, nil
func (r *Repository) Get(ctx context.Context, id string) (*document.Document, error) {
	doc := &document.Document{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, filename, content, upload_timestamp FROM documents WHERE id = $1`, id,
	).Scan(&doc.ID, &doc.UserID, &doc.Filename, &doc.Content, &doc.UploadTimestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return doc, nil
}
