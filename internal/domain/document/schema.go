package document

import (
	"context"
	"errors"
	"time"

	applog "docsearch/internal/platform/log"

	"golang.org/x/sync/singleflight"
)

// SchemaManager 确保检索索引存在（幂等，每个请求都会调用，以便索引被外部删除后自愈）
type SchemaManager struct {
	admin    IndexAdmin
	name     string
	analyzer string
	lock     IndexLock // 可选：跨进程创建锁
	group    singleflight.Group

	lockPolls     int
	lockInterval  time.Duration
	ensureTimeout time.Duration // 合并后的共享检查不随单个调用方取消，由它兜底
}

// NewSchemaManager 创建 Schema 管理器
func NewSchemaManager(admin IndexAdmin, indexName, analyzer string) *SchemaManager {
	return &SchemaManager{
		admin:        admin,
		name:         indexName,
		analyzer:     analyzer,
		lockPolls:     5,
		lockInterval:  200 * time.Millisecond,
		ensureTimeout: 30 * time.Second,
	}
}

// SetLock 设置跨进程创建锁
func (m *SchemaManager) SetLock(l IndexLock) {
	m.lock = l
}

// IndexName 返回索引名称
func (m *SchemaManager) IndexName() string {
	return m.name
}

// Schema 返回固定的索引 Schema
func (m *SchemaManager) Schema() *IndexSchema {
	return NewIndexSchema(m.name, m.analyzer)
}

// EnsureIndex 索引存在或创建成功返回 nil，否则返回 KindBackendUnavailable。
// 同一进程内的并发调用合并为一次检查；调用方取消只影响自己。
func (m *SchemaManager) EnsureIndex(ctx context.Context) error {
	ch := m.group.DoChan(m.name, func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.ensureTimeout)
		defer cancel()
		return nil, m.ensure(shared)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return newError(KindBackendUnavailable, "ensure index", "index unavailable", ctx.Err())
	}
}

func (m *SchemaManager) ensure(ctx context.Context) error {
	_, err := m.admin.GetIndex(ctx, m.name)
	if err == nil {
		return nil
	}

	// 无法区分的检查错误也按“不存在”处理并尝试创建，但单独记录
	var checkErr error
	if errors.Is(err, ErrIndexNotFound) {
		applog.Info("[Index] Index not found, creating", "index", m.name)
	} else {
		checkErr = err
		applog.Warn("[Index] Index existence check failed, attempting creation", "index", m.name, "error", err)
	}

	if m.lock != nil {
		acquired, lerr := m.lock.Acquire(ctx, m.name)
		switch {
		case lerr != nil:
			applog.Warn("[Index] Creation lock unavailable, creating without lock", "index", m.name, "error", lerr)
		case !acquired:
			if m.waitForIndex(ctx) {
				return nil
			}
		default:
			defer func() {
				if err := m.lock.Release(context.WithoutCancel(ctx), m.name); err != nil {
					applog.Warn("[Index] Failed to release creation lock", "index", m.name, "error", err)
				}
			}()
		}
	}

	err = m.admin.CreateIndex(ctx, m.Schema())
	if err == nil {
		applog.Info("[Index] Index created", "index", m.name)
		return nil
	}
	if errors.Is(err, ErrIndexExists) {
		applog.Info("[Index] Index created concurrently", "index", m.name)
		return nil
	}

	if checkErr != nil {
		err = errors.Join(checkErr, err)
	}
	applog.Error("[Index] Index creation failed", "index", m.name, "error", err)
	return newError(KindBackendUnavailable, "ensure index", "index unavailable", err)
}

// waitForIndex 其他进程持有创建锁时，轮询等待索引出现
func (m *SchemaManager) waitForIndex(ctx context.Context) bool {
	for i := 0; i < m.lockPolls; i++ {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(m.lockInterval):
		}
		if _, err := m.admin.GetIndex(ctx, m.name); err == nil {
			return true
		}
	}
	applog.Warn("[Index] Index did not appear while lock held elsewhere", "index", m.name)
	return false
}
