package classifier

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg/views"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/services/risk-api/internal/observability"
	"go.uber.org/zap"
)

// ContextKey is where the middleware stores the Result for downstream handlers.
const ContextKey = "request_classification"

// AuditSink receives one event per counted request. Enqueue must not block.
type AuditSink interface {
	Enqueue(evt views.RequestLogEvent) bool
}

type MiddlewareConfig struct {
	Logger         *zap.Logger
	Counter        *Counter
	Sink           AuditSink
	ExemptPrefixes []string // blocked requests under these paths are still served
	SkipPrefixes   []string // neither counted nor logged
	Now            func() time.Time
}

// Middleware classifies every request and rejects blocked ones with 429 unless the path is exempt.
func Middleware(cfg MiddlewareConfig) gin.HandlerFunc {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if hasAnyPrefix(path, cfg.SkipPrefixes) {
			c.Next()
			return
		}

		sourceID := SourceID(c)
		result := cfg.Counter.Classify(sourceID)
		c.Set(ContextKey, result)
		observability.RequestsClassified.WithLabelValues(string(result.Classification)).Inc()

		if cfg.Sink != nil {
			evt := views.RequestLogEvent{
				ID:           uuid.NewString(),
				Timestamp:    now().UTC(),
				IP:           sourceID,
				Method:       c.Request.Method,
				URL:          c.Request.URL.RequestURI(),
				UserAgent:    headerOr(c, pkg.HeaderUserAgent, pkg.UnknownSource),
				Referer:      headerOr(c, pkg.HeaderReferer, pkg.DirectReferer),
				Status:       result.Classification,
				RequestCount: result.Count,
				Destination:  c.Request.Host,
			}
			if !cfg.Sink.Enqueue(evt) {
				cfg.Logger.Debug("audit_event_dropped", zap.String(pkg.SourceId, sourceID))
			}
		}

		if result.Blocked() && !hasAnyPrefix(path, cfg.ExemptPrefixes) {
			observability.RequestsRejected.Inc()
			cfg.Logger.Warn("request_blocked",
				zap.String(pkg.SourceId, sourceID),
				zap.String("path", path),
				zap.Int("count", result.Count))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}

// SourceID resolves the bucket key: gin's client IP, then the first X-Forwarded-For entry, else "Unknown".
func SourceID(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	if fwd := c.GetHeader(pkg.HeaderForwardedFor); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	return pkg.UnknownSource
}

// ResultFrom returns the classification stored by Middleware.
func ResultFrom(c *gin.Context) (Result, bool) {
	v, ok := c.Get(ContextKey)
	if !ok {
		return Result{}, false
	}
	r, ok := v.(Result)
	return r, ok
}

func headerOr(c *gin.Context, key, fallback string) string {
	if v := c.GetHeader(key); v != "" {
		return v
	}
	return fallback
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
