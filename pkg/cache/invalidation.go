package cache

import (
	"fmt"
	"net/http"
)

// CacheManager holds separate cache instances for the schema and submission
// read endpoints, each with its own TTL. It provides targeted invalidation
// methods so a write only clears the affected caches.
type CacheManager struct {
	schemas     *LRUCache
	submissions *LRUCache
}

// NewCacheManager creates a CacheManager from the given configuration.
// If cfg is nil or disabled, it returns nil; a nil manager is a no-op.
func NewCacheManager(cfg *CacheConfig) *CacheManager {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	return &CacheManager{
		schemas:     NewLRUCache(cfg.MaxSize, cfg.SchemaTTL),
		submissions: NewLRUCache(cfg.MaxSize, cfg.SubmissionTTL),
	}
}

// InvalidateForm drops the cached schema of one form. Schema changes can
// reshape submission payloads, so the submission cache is cleared too.
func (cm *CacheManager) InvalidateForm(name string) {
	if cm == nil {
		return
	}
	cm.schemas.Invalidate(fmt.Sprintf("/api/forms/%s", name))
	cm.schemas.Invalidate(fmt.Sprintf("/api/forms/%s/view", name))
	cm.submissions.InvalidateAll()
}

// InvalidateSubmission drops the cached value tree of one submission.
func (cm *CacheManager) InvalidateSubmission(id int64) {
	if cm == nil {
		return
	}
	cm.submissions.Invalidate(fmt.Sprintf("/api/submissions/%d", id))
}

// InvalidateAll clears both caches entirely.
func (cm *CacheManager) InvalidateAll() {
	if cm == nil {
		return
	}
	cm.schemas.InvalidateAll()
	cm.submissions.InvalidateAll()
}

// SchemaMiddleware returns HTTP middleware that caches responses of the form
// schema endpoints.
func (cm *CacheManager) SchemaMiddleware() func(http.Handler) http.Handler {
	return CacheMiddleware(cm.schemas)
}

// SubmissionMiddleware returns HTTP middleware that caches responses of the
// submission read endpoints.
func (cm *CacheManager) SubmissionMiddleware() func(http.Handler) http.Handler {
	return CacheMiddleware(cm.submissions)
}
