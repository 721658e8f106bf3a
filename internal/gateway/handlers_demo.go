package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (g *Gateway) loadDemo(c *gin.Context) {
	if err := g.store.LoadDemo(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "demo dataset loaded"})
}

func (g *Gateway) demoStatus(c *gin.Context) {
	status, err := g.store.DemoStatus(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (g *Gateway) clearDemo(c *gin.Context) {
	if err := g.store.ClearDemo(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
