package app

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/akdenizcse/akdeniz-chatbot-go/internal/ctxutil"
	apperrors "github.com/akdenizcse/akdeniz-chatbot-go/internal/errors"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/logger"
	"github.com/akdenizcse/akdeniz-chatbot-go/internal/ratelimit"
)

// Header names shared by middleware and handlers.
const (
	HeaderAuth      = "x-auth"
	HeaderRequestID = "X-Request-ID"
	HeaderUserID    = "X-User-ID"
)

// maxBodyBytes caps request bodies; chat messages are short.
const maxBodyBytes = 64 << 10

// requestIDMiddleware propagates an incoming X-Request-ID or assigns a new
// one, and stores it in the request context for logs and error reports.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = c.GetHeader("X-Correlation-ID")
		}
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Writer.Header().Set(HeaderRequestID, requestID)
		c.Request = c.Request.WithContext(ctxutil.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

// corsMiddleware allows every origin when origins is empty.
func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodHead, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", HeaderAuth, HeaderRequestID, HeaderUserID},
		ExposeHeaders: []string{HeaderRequestID, "Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// securityHeadersMiddleware adds security headers to responses.
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'none'")
		c.Header("X-Permitted-Cross-Domain-Policies", "none")
		c.Next()
	}
}

// limitBodyMiddleware caps the request body; reads past the cap fail.
func limitBodyMiddleware(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}

// rateLimitMiddleware throttles callers by X-User-ID, falling back to the
// client IP. A nil limiter disables it.
func rateLimitMiddleware(limiter *ratelimit.KeyedLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		if !limiter.Allow(callerKey(c)) {
			c.Header("Retry-After", "1")
			_ = c.Error(apperrors.ErrRateLimitExceeded)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": apperrors.ErrRateLimitExceeded.Error()})
			return
		}
		c.Next()
	}
}

func callerKey(c *gin.Context) string {
	if user := c.GetHeader(HeaderUserID); user != "" {
		return "user:" + user
	}
	return "ip:" + c.ClientIP()
}

// loggingMiddleware logs HTTP requests with status-based levels:
// 5xx=Error, 4xx=Warn, everything else Debug.
func loggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := log.WithField("http_method", c.Request.Method).
			WithField("http_path", c.Request.URL.Path).
			WithField("http_status", status).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			WithField("client_ip", c.ClientIP())
		if requestID, ok := ctxutil.GetRequestID(c.Request.Context()); ok {
			entry = entry.WithRequestID(requestID)
		}

		switch {
		case status >= 500:
			entry.Error("HTTP request failed")
		case status >= 400 && status != http.StatusNotFound:
			entry.Warn("HTTP request rejected")
		default:
			entry.Debug("HTTP request completed")
		}
	}
}
