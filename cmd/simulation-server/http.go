package main

import (
	"net/http"

	"speakcity/shared"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// NewRouter wires the HTTP API and the viewer WebSocket.
func NewRouter(core *SimulationCore, ws *WebSocketServer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "tick": core.GetTickCount()})
	})
	router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, core.Snapshot())
	})
	router.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"metrics": core.Metrics(), "viewers": ws.ViewerCount()})
	})
	router.POST("/api/commands", func(c *gin.Context) {
		var batch shared.CommandBatch
		if err := c.ShouldBindJSON(&batch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if len(batch.Commands) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "empty command batch"})
			return
		}
		if batch.RequestID == "" {
			batch.RequestID = uuid.NewString()
		}
		c.JSON(http.StatusOK, core.ExecuteBatch(batch))
	})
	router.GET("/ws", ws.HandleViewer)
	return router
}
