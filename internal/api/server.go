package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"docsearch/internal/domain/document"
	applog "docsearch/internal/platform/log"
)

// ServerConfig 服务配置
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ReadyTimeout    time.Duration
	JWTSecret       string  // 可选：配置后接受 Bearer token，sub 作为 userId
	JWTIssuer       string  // 可选签发者校验
	UploadRateLimit float64 // 每秒上传数，0=不限
	UploadRateBurst int
}

// DefaultServerConfig 默认配置
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		ReadyTimeout: 5 * time.Second,
	}
}

// Pinger 就绪检查依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies 由 main 构建后注入
type Dependencies struct {
	Ingestor *document.Ingestor
	Searcher *document.Searcher
	Schema   document.IndexEnsurer
	Store    document.Store
	// Probes 就绪检查（名称 → 依赖），如 store / redis
	Probes map[string]Pinger
}

// Server HTTP 服务器
type Server struct {
	config  *ServerConfig
	deps    Dependencies
	httpSrv *http.Server
}

// NewServer 创建服务器
func NewServer(config *ServerConfig, deps Dependencies) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}
	return &Server{
		config: config,
		deps:   deps,
	}
}

// Start 启动服务器
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.buildRouter(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	applog.Infof("🚀 Document search server starting on %s", addr)
	return s.httpSrv.ListenAndServe()
}

// Stop 优雅停机
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv != nil {
		return s.httpSrv.Shutdown(ctx)
	}
	return nil
}

// Handler 返回 HTTP Handler（用于测试）
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", s.ready)

	r.Group(func(r chi.Router) {
		if strings.TrimSpace(s.config.JWTSecret) != "" {
			r.Use(authMiddleware(&JWTConfig{
				Secret: s.config.JWTSecret,
				Issuer: s.config.JWTIssuer,
			}))
		} else {
			applog.Info("🔓 JWT not configured, requests are attributed via X-User-ID / user_id")
		}

		limiter := newUploadLimiter(s.config.UploadRateLimit, s.config.UploadRateBurst)
		NewDocumentHandler(s.deps.Ingestor, s.deps.Searcher, s.deps.Store, limiter).RegisterRoutes(r)
	})

	return r
}

// ready 确保索引存在并检查各依赖
func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	timeout := s.config.ReadyTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	checks := make(map[string]string, len(s.deps.Probes)+1)
	healthy := true

	if s.deps.Schema != nil {
		if err := s.deps.Schema.EnsureIndex(ctx); err != nil {
			checks["index"] = document.ReasonOf(err)
			healthy = false
		} else {
			checks["index"] = "ok"
		}
	}
	for name, p := range s.deps.Probes {
		if err := p.Ping(ctx); err != nil {
			applog.FromContext(r.Context()).Warn("[Ready] Probe failed", "probe", name, "error", err)
			checks[name] = "unavailable"
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	if !healthy {
		writeResponse(w, http.StatusServiceUnavailable, "not ready", checks)
		return
	}
	writeJSON(w, http.StatusOK, checks)
}

// corsMiddleware CORS 中间件
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
