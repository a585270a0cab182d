package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/church-class-api/pkg/middleware/requestid"
)

const responseMetaKey = "response_meta"

// responseMeta collects what a handler reports about how a response was served.
type responseMeta struct {
	started  time.Time
	cacheHit *bool
}

// WithResponseMeta starts the clock for the meta block rendered by ExtractMeta.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, &responseMeta{started: time.Now()})
		c.Next()
	}
}

// SetCacheHit marks whether the payload came from the class cache.
func SetCacheHit(c *gin.Context, hit bool) {
	if meta := metaFrom(c); meta != nil {
		meta.cacheHit = &hit
	}
}

// ExtractMeta renders the meta block for the envelope. It is nil when
// WithResponseMeta did not run for the request.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	meta := metaFrom(c)
	if meta == nil {
		return nil
	}
	out := map[string]interface{}{
		"processing_time_ms": time.Since(meta.started).Milliseconds(),
	}
	if meta.cacheHit != nil {
		out["cache_hit"] = *meta.cacheHit
	}
	if id := requestid.Value(c); id != "" {
		out["request_id"] = id
	}
	return out
}

func metaFrom(c *gin.Context) *responseMeta {
	if c == nil {
		return nil
	}
	v, ok := c.Get(responseMetaKey)
	if !ok {
		return nil
	}
	meta, _ := v.(*responseMeta)
	return meta
}
