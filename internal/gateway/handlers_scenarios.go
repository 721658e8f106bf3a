package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wardops/simcore/internal/simulation"
)

// ScenarioRequest is the create/update request body. Parameters arrive
// as plain JSON numbers from the client; the store layer handles the
// decimal round-trip on the way into Postgres.
type ScenarioRequest struct {
	Name        string                `json:"name" binding:"required"`
	Description string                `json:"description"`
	Parameters  simulation.Parameters `json:"parameters" binding:"required"`
}

func (g *Gateway) listScenarios(c *gin.Context) {
	scenarios, err := g.store.ListScenarios(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scenarios": scenarios})
}

func (g *Gateway) createScenario(c *gin.Context) {
	var req ScenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	scenario, err := g.store.CreateScenario(c.Request.Context(), req.Name, req.Description, req.Parameters, false)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, scenario)
}

func (g *Gateway) getScenario(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	scenario, err := g.store.GetScenario(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, scenario)
}

func (g *Gateway) updateScenario(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req ScenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	scenario, err := g.store.UpdateScenario(c.Request.Context(), id, req.Name, req.Description, req.Parameters)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, scenario)
}

func (g *Gateway) deleteScenario(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := g.store.DeleteScenario(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (g *Gateway) listScenarioRuns(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	runs, err := g.store.ListRunsByScenario(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (g *Gateway) latestScenarioResult(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	run, err := g.store.LatestCompletedResult(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}
