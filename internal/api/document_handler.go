package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"docsearch/internal/domain/document"
	applog "docsearch/internal/platform/log"
)

// multipart 头部等开销，叠加在文件大小上限之上
const multipartOverhead = 1 << 20

// 超出上限的部分落盘临时文件，由 RemoveAll 清理
const multipartMemory = 8 << 20

// DocumentHandler 文档上传与检索 API
type DocumentHandler struct {
	ingestor *document.Ingestor
	searcher *document.Searcher
	store    document.Store
	limiter  *uploadLimiter
}

// NewDocumentHandler 创建文档处理器
func NewDocumentHandler(ingestor *document.Ingestor, searcher *document.Searcher, store document.Store, limiter *uploadLimiter) *DocumentHandler {
	return &DocumentHandler{
		ingestor: ingestor,
		searcher: searcher,
		store:    store,
		limiter:  limiter,
	}
}

// RegisterRoutes 注册文档路由
func (h *DocumentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Route)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/documents", h.Upload)
		r.Get("/documents/{id}", h.GetDocument)
		r.Post("/search", h.Search)
	})
}

// Route 单入口：带 file 字段的 multipart 请求走上传，否则按 query 检索
func (h *DocumentHandler) Route(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, h.ingestor.MaxBytes()+multipartOverhead)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			h.writeParseError(w, r, err)
			return
		}
		if hasFileField(r) {
			h.ingest(w, r)
			return
		}
		defer removeMultipart(r)
		h.search(w, r, r.FormValue("query"), false)
	case "application/json":
		query, ok := decodeQuery(w, r)
		if !ok {
			return
		}
		h.search(w, r, query, false)
	default:
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form body")
			return
		}
		h.search(w, r, r.FormValue("query"), false)
	}
}

// Upload multipart 上传（字段 file，可选 user_id）
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.ingestor.MaxBytes()+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.writeParseError(w, r, err)
		return
	}
	h.ingest(w, r)
}

// Search JSON 检索 {"query": "..."}
func (h *DocumentHandler) Search(w http.ResponseWriter, r *http.Request) {
	query, ok := decodeQuery(w, r)
	if !ok {
		return
	}
	h.search(w, r, query, true)
}

// GetDocument 从主存储读取文档
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := h.store.Get(r.Context(), id)
	if err != nil {
		applog.FromContext(r.Context()).Error("[Store] Get document failed", "doc_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get document")
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// ingest 要求已完成 ParseMultipartForm
func (h *DocumentHandler) ingest(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.admit(w) {
		removeMultipart(r)
		return
	}

	req := &document.IngestRequest{
		UserID:  userIDFrom(r),
		Cleanup: func() error { return removeMultipart(r) },
	}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// 空文件名：交给 Ingestor 给出 "no file selected"
	case err != nil:
		removeMultipart(r)
		writeError(w, http.StatusBadRequest, "invalid upload")
		return
	default:
		defer file.Close()
		req.Filename = header.Filename
		// 多读 1 字节即可判断是否超限
		req.Data, err = io.ReadAll(io.LimitReader(file, h.ingestor.MaxBytes()+1))
		if err != nil {
			removeMultipart(r)
			applog.FromContext(r.Context()).Warn("[Ingest] Failed to read upload", "filename", header.Filename, "error", err)
			writeError(w, http.StatusBadRequest, "failed to read upload")
			return
		}
	}

	res := h.ingestor.Ingest(r.Context(), req)
	writeResponse(w, ingestHTTPStatus(res), res.Message, res)
}

func (h *DocumentHandler) search(w http.ResponseWriter, r *http.Request, query string, strict bool) {
	out := h.searcher.Search(r.Context(), query)

	status := http.StatusOK
	switch out.Status {
	case document.SearchPrompt:
		if strict {
			status = http.StatusBadRequest
		}
	case document.SearchDegraded:
		status = http.StatusServiceUnavailable
	}

	message := out.Message
	if message == "" {
		message = "ok"
	}
	writeResponse(w, status, message, out)
}

func (h *DocumentHandler) writeParseError(w http.ResponseWriter, r *http.Request, err error) {
	removeMultipart(r)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
		writeResponse(w, http.StatusRequestEntityTooLarge, document.ReasonTooLarge, &document.IngestResult{
			Status:  document.IngestRejected,
			Message: document.ReasonTooLarge,
		})
		return
	}
	writeError(w, http.StatusBadRequest, "invalid multipart body")
}

// ingestHTTPStatus 入库结果 → HTTP 状态码
func ingestHTTPStatus(res *document.IngestResult) int {
	if res.Accepted() {
		if res.Indexed {
			return http.StatusCreated
		}
		return http.StatusAccepted
	}

	switch res.Kind() {
	case document.KindValidation:
		switch res.Message {
		case document.ReasonTooLarge:
			return http.StatusRequestEntityTooLarge
		case document.ReasonTypeNotAllowed:
			return http.StatusUnsupportedMediaType
		}
		return http.StatusBadRequest
	case document.KindUnsupported:
		return http.StatusUnsupportedMediaType
	case document.KindExtraction:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func hasFileField(r *http.Request) bool {
	if r.MultipartForm == nil {
		return false
	}
	if len(r.MultipartForm.File["file"]) > 0 {
		return true
	}
	// 浏览器未选择文件时提交的是空文件名的普通字段
	_, ok := r.MultipartForm.Value["file"]
	return ok
}

func removeMultipart(r *http.Request) error {
	if r.MultipartForm == nil {
		return nil
	}
	return r.MultipartForm.RemoveAll()
}

func decodeQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	var body struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	return body.Query, true
}
