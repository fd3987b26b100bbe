//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsearch/internal/domain/document"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}
	db, err := sql.Open("postgres", url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestIntegration_UpsertAndGet(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.EnsureDocumentsTable(ctx))
	// 幂等
	require.NoError(t, repo.EnsureDocumentsTable(ctx))

	doc := &document.Document{
		ID:              uuid.New().String(),
		UserID:          "u1",
		Filename:        "notes.txt",
		Content:         "hello world",
		UploadTimestamp: "2026-01-01T00:00:00Z",
	}
	require.NoError(t, repo.Upsert(ctx, doc))

	got, err := repo.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	doc.Content = "updated"
	require.NoError(t, repo.Upsert(ctx, doc))
	got, err = repo.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Content)

	missing, err := repo.Get(ctx, uuid.New().String())
	require.NoError(t, err)
	assert.Nil(t, missing)
}
