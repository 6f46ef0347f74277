package security

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"quizhub_backend/internal/util"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

var (
	corsAllowHeaders = strings.Join([]string{
		"Content-Type", "Content-Length", "Accept-Encoding",
		"Authorization", "Accept", "Origin", "Cache-Control", "X-Requested-With",
	}, ", ")
	corsAllowMethods = strings.Join([]string{
		http.MethodGet, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions,
	}, ", ")
)

// CORS 只回显白名单内的 Origin，带凭证跨域要求精确匹配而不是 *
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Vary", "Origin")
			}
		}
		h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
		h.Set("Access-Control-Allow-Methods", corsAllowMethods)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Secure 给所有响应补安全相关头
func Secure() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		// HSTS 只在 TLS 连接上有意义
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		}
		c.Next()
	}
}

// clientLimits 按客户端 IP 维护令牌桶，空闲条目定期回收防止无界增长
type clientLimits struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	seen    map[string]time.Time
	rate    rate.Limit
	burst   int
}

func newClientLimits(maxRequests int, window time.Duration) *clientLimits {
	return &clientLimits{
		buckets: make(map[string]*rate.Limiter),
		seen:    make(map[string]time.Time),
		rate:    rate.Every(window / time.Duration(maxRequests)),
		burst:   maxRequests,
	}
}

func (l *clientLimits) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[ip]
	if !ok {
		b = rate.NewLimiter(l.rate, l.burst)
		l.buckets[ip] = b
	}
	l.seen[ip] = time.Now()
	return b.Allow()
}

func (l *clientLimits) prune(idle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, last := range l.seen {
		if time.Since(last) > idle {
			delete(l.buckets, ip)
			delete(l.seen, ip)
		}
	}
}

// RateLimiter 按 IP 限流；窗口内超过 maxRequests 的请求返回 429
func RateLimiter(maxRequests int, window time.Duration) gin.HandlerFunc {
	limits := newClientLimits(maxRequests, window)

	idle := window * 3
	if idle < time.Minute {
		idle = time.Minute
	}
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			limits.prune(idle)
		}
	}()

	return func(c *gin.Context) {
		if !limits.allow(c.ClientIP()) {
			util.Error(c, http.StatusTooManyRequests, "too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}
