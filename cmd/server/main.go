package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"

	"docsearch/internal/api"
	"docsearch/internal/db/opensearch"
	"docsearch/internal/db/postgres"
	redisdb "docsearch/internal/db/redis"
	"docsearch/internal/db/sqlite"
	"docsearch/internal/domain/document"
	"docsearch/internal/platform/config"
	applog "docsearch/internal/platform/log"
)

// storeHandle 主存储（附带就绪检查）
type storeHandle interface {
	document.Store
	api.Pinger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Config load failed: %v\n", err)
		os.Exit(1)
	}

	applog.Init(applog.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	defer applog.Sync()

	store, closeStore := openStore(cfg)
	defer closeStore()

	searchCfg := &cfg.Search
	osClient := opensearch.NewClient(searchCfg)
	defer osClient.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Runtime.OpenSearchPingTimeoutSeconds)*time.Second)
	err = osClient.Ping(pingCtx)
	pingCancel()
	if err != nil {
		// 不阻止启动：检索降级，上传仍写入主存储
		applog.Warnf("⚠️  OpenSearch ping failed: %v (search degraded until reachable)", err)
	} else {
		applog.Info("✅ Connected to OpenSearch")
	}

	schema := document.NewSchemaManager(osClient, searchCfg.IndexName, searchCfg.Analyzer)
	extractor := document.NewExtractor(nil)
	applog.Infof("✅ Parser registry initialized (types: %s)", extractor.Parsers().SupportedTypes())

	ingestor := document.NewIngestor(extractor, schema, store, osClient)
	ingestor.SetMaxBytes(searchCfg.MaxUploadBytes())
	searcher := document.NewSearcher(schema, osClient, searchCfg)

	probes := map[string]api.Pinger{
		"store":      store,
		"opensearch": osClient,
	}

	if rdb := openRedis(cfg); rdb != nil {
		defer rdb.Close()
		schema.SetLock(redisdb.NewIndexLock(rdb))
		applog.Info("✅ Index creation lock enabled (Redis)")

		if searchCfg.HasCache() {
			cache := redisdb.NewSearchCache(rdb, searchCfg.CacheTTL)
			searcher.SetCache(cache)
			ingestor.SetCache(cache)
			applog.Infof("✅ Search cache initialized (TTL: %ds)", searchCfg.CacheTTL)
		}
		probes["redis"] = redisPinger{rdb}
	}

	// 启动时先尝试建索引；失败不致命，每个请求还会重试
	ensureCtx, ensureCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Runtime.OpenSearchPingTimeoutSeconds)*time.Second)
	if err := schema.EnsureIndex(ensureCtx); err != nil {
		applog.Warnf("⚠️  Failed to ensure search index %q: %v", searchCfg.IndexName, err)
	} else {
		applog.Infof("✅ Search index ready (%s, ranking: %s)", searchCfg.IndexName, searchCfg.RankingMode)
	}
	ensureCancel()

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.Server.Host
	serverConfig.Port = cfg.Server.Port
	serverConfig.ReadTimeout = time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second
	serverConfig.WriteTimeout = time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second
	serverConfig.JWTSecret = cfg.Auth.JWTSecret
	serverConfig.JWTIssuer = cfg.Auth.JWTIssuer
	serverConfig.UploadRateLimit = cfg.Server.UploadRateLimit
	serverConfig.UploadRateBurst = cfg.Server.UploadRateBurst

	server := api.NewServer(serverConfig, api.Dependencies{
		Ingestor: ingestor,
		Searcher: searcher,
		Schema:   schema,
		Store:    store,
		Probes:   probes,
	})

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		applog.Info("🔄 Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Runtime.ShutdownTimeoutSeconds)*time.Second)
		defer cancel()

		if err := server.Stop(ctx); err != nil {
			applog.Errorf("❌ Server shutdown error: %v", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		applog.Fatalf("❌ Server error: %v", err)
	}

	applog.Info("👋 Server stopped")
}

// openStore 按 DOCUMENT_STORE 打开主存储
func openStore(cfg *config.AppConfig) (storeHandle, func()) {
	switch cfg.Store.Driver {
	case config.StoreSQLite:
		store, err := sqlite.NewDocumentStore(cfg.SQLite.Path)
		if err != nil {
			applog.Fatalf("❌ Failed to open SQLite store: %v", err)
		}
		applog.Infof("✅ SQLite document store ready (%s)", cfg.SQLite.Path)
		return store, func() { store.Close() }

	default:
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			applog.Fatalf("❌ Failed to connect to database: %v", err)
		}

		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetimeSeconds) * time.Second)

		if err := db.Ping(); err != nil {
			applog.Fatalf("❌ Failed to ping database: %v", err)
		}
		applog.Info("✅ Connected to PostgreSQL")

		repo := postgres.NewRepository(db)
		migrateCtx, migrateCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Runtime.MigrationTimeoutSeconds)*time.Second)
		defer migrateCancel()
		if err := repo.EnsureDocumentsTable(migrateCtx); err != nil {
			applog.Fatalf("❌ Failed to ensure documents table: %v", err)
		}
		applog.Info("✅ Documents table ready")

		return repo, func() { db.Close() }
	}
}

// openRedis Redis 可选：未配置或不可达时返回 nil
func openRedis(cfg *config.AppConfig) *goredis.Client {
	if cfg.Redis.URL == "" {
		applog.Info("ℹ️  No REDIS_URL set, search cache and index lock disabled")
		return nil
	}

	opt, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		applog.Warnf("⚠️  Redis URL invalid, Redis features disabled: %v", err)
		return nil
	}

	client := goredis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Runtime.RedisPingTimeoutSeconds)*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		applog.Warnf("⚠️  Redis connection failed, Redis features disabled: %v", err)
		client.Close()
		return nil
	}
	applog.Info("✅ Connected to Redis")
	return client
}

type redisPinger struct {
	client *goredis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
