package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"workledger/internal/handler"
	"workledger/internal/model"
	"workledger/pkg/metrics"
	"workledger/pkg/trace"
)

const (
	HeaderPrincipalKind = "X-Principal-Kind"
	HeaderPrincipalID   = "X-Principal-ID"
)

type PrincipalResolver interface {
	Resolve(ctx context.Context, ref model.PrincipalRef) (model.Principal, error)
}

// PrincipalMiddleware resolves the requester the gateway forwards as a
// tagged reference. Authentication happens upstream.
func PrincipalMiddleware(resolver PrincipalResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, err := model.ParsePrincipalKind(c.GetHeader(HeaderPrincipalKind))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid principal kind"})
			return
		}
		id, err := strconv.Atoi(c.GetHeader(HeaderPrincipalID))
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid principal id"})
			return
		}

		principal, err := resolver.Resolve(c.Request.Context(), model.PrincipalRef{Kind: kind, ID: id})
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown principal"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve principal"})
			return
		}
		if !principal.IsActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "principal is inactive"})
			return
		}

		c.Set(handler.ContextPrincipalKey, principal)
		c.Next()
	}
}

// TraceMiddleware adopts or creates a trace id and echoes it back.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := trace.Ensure(c.Request.Context(), c.GetHeader(trace.HeaderName))
		c.Request = c.Request.WithContext(ctx)
		c.Header(trace.HeaderName, trace.FromContext(ctx))
		c.Next()
	}
}

// RequestLogMiddleware 请求日志与延迟指标
func RequestLogMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequestDuration(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), latency)
		logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.String("trace_id", trace.FromContext(c.Request.Context())),
		)
	}
}
