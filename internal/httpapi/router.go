package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/ai-training/internal/common"
	"github.com/suPer8Hu/ai-training/internal/config"
	"github.com/suPer8Hu/ai-training/internal/httpapi/handlers"
	"github.com/suPer8Hu/ai-training/internal/httpapi/middleware"
)

func NewRouter(cfg config.Config, h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	r.GET("/ping", func(c *gin.Context) {
		common.OK(c, gin.H{"pong": true})
	})

	// Training (JWT required)
	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.POST("/training/modules", h.SubmitModule)
	authGroup.GET("/training/modules", h.ListModules)
	authGroup.GET("/training/modules/:id", h.GetModule)
	authGroup.GET("/training/modules/:id/status", h.GetModuleStatus)
	return r
}
