package api

import "github.com/gin-gonic/gin"

func RegisterRoutes(r *gin.Engine, h *Handler) {
	api := r.Group("/api")
	{
		api.GET("/health", h.health)

		api.GET("/actors", h.listActors)
		api.GET("/actors/:id", h.getActor)
		api.GET("/actors/:id/qr", h.actorQR)

		api.POST("/sessions", h.openSession)
		api.GET("/sessions/:id", h.getSession)
		api.DELETE("/sessions/:id", h.closeSession)
		api.POST("/sessions/:id/layers", h.addLayer)
		api.POST("/sessions/:id/layers/upload", h.uploadLayer)
		api.GET("/sessions/:id/views/:view", h.renderView)
		api.GET("/sessions/:id/files", h.listFiles)
		api.POST("/sessions/:id/submit", h.submit)
	}
}
