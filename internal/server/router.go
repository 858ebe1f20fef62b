package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kapu/adgenius-go/pkg/errors"
)

func (s *Server) newRouter() *gin.Engine {
	r := gin.New()
	r.Use(
		RequestID(),
		Logging(s.logger),
		Recovery(s.logger),
		CORS(s.cfg.AllowedOrigins),
	)

	r.GET("/health", s.handleHealth)
	r.GET("/media/:id", s.handleMedia)
	r.HEAD("/media/:id", s.handleMedia)

	api := r.Group("/api/sessions")
	api.POST("", s.handleCreateSession)
	api.GET("/:id", s.handleGetSession)
	api.DELETE("/:id", s.handleDeleteSession)
	api.PUT("/:id/product", s.handleUpdateProduct)
	api.POST("/:id/benefits", s.handleAddBenefit)
	api.PUT("/:id/benefits/:index", s.handleUpdateBenefit)
	api.POST("/:id/import", s.handleImport)
	api.POST("/:id/analyze", s.handleAnalyze)
	api.POST("/:id/video", s.handleVideo)
	api.POST("/:id/key", s.handleSelectKey)
	api.POST("/:id/dismiss", s.handleDismiss)
	api.GET("/:id/events", s.handleEvents)

	r.NoRoute(func(c *gin.Context) {
		abortWithError(c, http.StatusNotFound, errors.CodeNotFound, "route not found")
	})
	return r
}
