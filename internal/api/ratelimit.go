package api

import (
	"net/http"

	"golang.org/x/time/rate"
)

// uploadLimiter 进程级上传令牌桶；nil 表示不限流
type uploadLimiter struct {
	limiter *rate.Limiter
}

func newUploadLimiter(limit float64, burst int) *uploadLimiter {
	if limit <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &uploadLimiter{limiter: rate.NewLimiter(rate.Limit(limit), burst)}
}

// admit 超限时写 429 并返回 false
func (u *uploadLimiter) admit(w http.ResponseWriter) bool {
	if u == nil || u.limiter.Allow() {
		return true
	}
	w.Header().Set("Retry-After", "1")
	writeErrorCode(w, http.StatusTooManyRequests, "rate_limited", "Too many uploads, retry later")
	return false
}
