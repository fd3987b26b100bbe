package document

import (
	"context"
	"fmt"
	"time"

	applog "docsearch/internal/platform/log"

	"github.com/google/uuid"
)

// MaxUploadBytes 上传文件大小上限（16 MiB）
const MaxUploadBytes int64 = 16 << 20

// 拒绝原因（面向用户）
const (
	ReasonNoFile         = "no file selected"
	ReasonTypeNotAllowed = "file type not allowed"
	ReasonTooLarge       = "file too large"
	ReasonNoText         = "could not extract text"
	ReasonStorage        = "storage error"
)

const (
	msgStoredAndIndexed = "File uploaded, stored and indexed"
	msgStoredNotIndexed = "File uploaded and stored, but not searchable yet"
)

// IndexEnsurer 确保索引存在
type IndexEnsurer interface {
	EnsureIndex(ctx context.Context) error
}

// Ingestor 上传入库流程：Validate → Extract → Persist → IndexOrDegrade → Cleanup
type Ingestor struct {
	extractor *Extractor
	schema    IndexEnsurer
	store     Store
	writer    IndexWriter
	cache     QueryCache // 可选：索引成功后清除检索缓存
	maxBytes  int64

	newID func() string
	now   func() time.Time
}

// NewIngestor 创建入库流程
func NewIngestor(extractor *Extractor, schema IndexEnsurer, store Store, writer IndexWriter) *Ingestor {
	if extractor == nil {
		extractor = NewExtractor(nil)
	}
	return &Ingestor{
		extractor: extractor,
		schema:    schema,
		store:     store,
		writer:    writer,
		maxBytes:  MaxUploadBytes,
		newID:     func() string { return uuid.New().String() },
		now:       time.Now,
	}
}

// SetCache 设置检索缓存
func (in *Ingestor) SetCache(c QueryCache) {
	in.cache = c
}

// SetMaxBytes 设置上传大小上限
func (in *Ingestor) SetMaxBytes(n int64) {
	if n > 0 {
		in.maxBytes = n
	}
}

// MaxBytes 返回上传大小上限
func (in *Ingestor) MaxBytes() int64 {
	return in.maxBytes
}

// Ingest 处理单次上传。
// 主存储写入成功后索引失败不会回滚，返回 Accepted 且 Indexed=false。
func (in *Ingestor) Ingest(ctx context.Context, req *IngestRequest) *IngestResult {
	start := time.Now()
	defer in.cleanup(req)

	filename := SanitizeFilename(req.Filename)

	// 1. 校验
	if err := in.validate(req, filename); err != nil {
		applog.Info("[Ingest] Upload rejected", "filename", req.Filename, "reason", ReasonOf(err))
		return rejected(err)
	}

	// 2. 提取文本
	text, err := in.extractor.Extract(req.Data, filename)
	if err != nil {
		applog.Warn("[Ingest] Extraction failed", "filename", filename, "error", err)
		return rejected(err)
	}

	// 3. 写入主存储
	doc := &Document{
		ID:              in.newID(),
		UserID:          req.UserID,
		Filename:        filename,
		Content:         text,
		UploadTimestamp: NewTimestamp(in.now()),
	}
	logger := applog.With("doc_id", doc.ID, "filename", filename)
	if err := in.store.Upsert(ctx, doc); err != nil {
		logger.Error("[Ingest] Document store write failed", "error", err)
		return rejected(newError(KindStorage, "persist", ReasonStorage, err))
	}

	// 4. 写入检索索引（失败降级，不回滚）
	if err := in.index(ctx, doc); err != nil {
		logger.Warn("[Ingest] Document stored but not indexed", "error", err)
		return &IngestResult{
			Status:     IngestAccepted,
			DocumentID: doc.ID,
			Indexed:    false,
			Message:    msgStoredNotIndexed,
			Err:        err,
		}
	}

	if in.cache != nil {
		in.cache.Invalidate(ctx)
	}

	logger.Info("[Ingest] Document ingested",
		"user_id", doc.UserID,
		"chars", len(doc.Content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	return &IngestResult{
		Status:     IngestAccepted,
		DocumentID: doc.ID,
		Indexed:    true,
		Message:    msgStoredAndIndexed,
	}
}

func (in *Ingestor) validate(req *IngestRequest, filename string) error {
	const op = "validate"
	switch {
	case filename == "":
		return newError(KindValidation, op, ReasonNoFile, nil)
	case !in.extractor.Parsers().Allowed(filename):
		return newError(KindValidation, op, ReasonTypeNotAllowed, fmt.Errorf("extension %q", extOf(filename)))
	case int64(len(req.Data)) > in.maxBytes:
		return newError(KindValidation, op, ReasonTooLarge, fmt.Errorf("%d bytes exceeds %d", len(req.Data), in.maxBytes))
	}
	return nil
}

func (in *Ingestor) index(ctx context.Context, doc *Document) error {
	if in.schema == nil || in.writer == nil {
		return newError(KindBackendUnavailable, "index", "search index not configured", nil)
	}
	if err := in.schema.EnsureIndex(ctx); err != nil {
		return err
	}
	if err := in.writer.UploadDocuments(ctx, []Document{*doc}); err != nil {
		return newError(KindIndex, "index", "index write failed", err)
	}
	return nil
}

func (in *Ingestor) cleanup(req *IngestRequest) {
	if req.Cleanup == nil {
		return
	}
	if err := req.Cleanup(); err != nil {
		applog.Warn("[Ingest] Failed to clean up upload artifacts", "filename", req.Filename, "error", err)
	}
}

func rejected(err error) *IngestResult {
	reason := ReasonOf(err)
	if IsKind(err, KindUnsupported) || IsKind(err, KindExtraction) {
		reason = ReasonNoText
	}
	return &IngestResult{
		Status:  IngestRejected,
		Message: reason,
		Err:     err,
	}
}
