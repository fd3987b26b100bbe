package api

import (
	"context"
	"fmt"
)

// AnonymousUser 未提供身份时的 userId
const AnonymousUser = "anonymous"

// Scope 调用方身份（注入到 context）
type Scope struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles,omitempty"`
}

type scopeContextKey struct{}

// WithScope 注入 Scope 到 context
func WithScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, scope)
}

// ScopeFrom 从 context 提取 Scope
func ScopeFrom(ctx context.Context) (*Scope, error) {
	scope, ok := ctx.Value(scopeContextKey{}).(*Scope)
	if !ok || scope == nil {
		return nil, fmt.Errorf("scope not found in context")
	}
	return scope, nil
}
