package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/caching/localcache"
	"github.com/iyedjb/edutokudte-sub000/internal/infrastructure/observability/logging"
)

// CacheHandlers expose the caller's local cache scope.
type CacheHandlers struct {
	logger *logging.ChanneledLogger
}

func NewCacheHandlers(logger *logging.ChanneledLogger) *CacheHandlers {
	return &CacheHandlers{logger: logger}
}

// GetCache handles GET /api/v1/cache - keys with their metadata
func (h *CacheHandlers) GetCache(c *gin.Context) {
	sess, ok := mustSession(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	cache := sess.Cache()

	entries := make(map[string]localcache.Metadata)
	for _, key := range cache.ListKeys(ctx) {
		if meta, ok := cache.GetMetadata(ctx, key); ok {
			entries[key.String()] = meta
		}
	}
	c.JSON(http.StatusOK, gin.H{"warmed": sess.Warmed(), "entries": entries})
}

// DeleteCache handles DELETE /api/v1/cache - clears the scope. The next
// session open warms it again.
func (h *CacheHandlers) DeleteCache(c *gin.Context) {
	sess, ok := mustSession(c)
	if !ok {
		return
	}
	sess.Cache().Clear(c.Request.Context())
	sess.ResetWarmed()
	h.logger.Cache().Info("Cache scope cleared", "uid", logging.MaskID(sess.UID()))
	c.JSON(http.StatusOK, gin.H{"success": true})
}
