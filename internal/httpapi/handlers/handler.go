package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/ai-training/internal/httpapi/middleware"
	"github.com/suPer8Hu/ai-training/internal/store/redisstore"
	"github.com/suPer8Hu/ai-training/internal/training"
)

// StatusCache is the read side of the redis status cache.
type StatusCache interface {
	GetStatus(ctx context.Context, moduleID string) (*redisstore.CachedStatus, error)
}

type Handler struct {
	Training *training.Service
	Status   StatusCache // optional
}

func NewHandler(svc *training.Service, cache StatusCache) *Handler {
	return &Handler{Training: svc, Status: cache}
}

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok && id != 0
}
