package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wardops/simcore/internal/simerrors"
	"github.com/wardops/simcore/internal/simulation"
	"github.com/wardops/simcore/internal/store"
)

func (g *Gateway) createRun(c *gin.Context) {
	if c.Query("scenario_id") == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "scenario_id is required"})
		return
	}
	scenarioID, err := uuid.Parse(c.Query("scenario_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid scenario_id"})
		return
	}

	seed := int64(queryIntDefault(c, "seed", 0))

	run, err := g.runner.StartRun(c.Request.Context(), scenarioID, seed)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, run)
}

func (g *Gateway) runStatus(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("job_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid job_id"})
		return
	}
	run, err := g.store.GetRun(c.Request.Context(), runID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (g *Gateway) cancelRun(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("job_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid job_id"})
		return
	}
	if err := g.runner.RequestCancel(c.Request.Context(), runID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "cancellation requested"})
}

// CompareRequest fans a scenario out across N independent seeds, run
// synchronously within the request (unlike /simulation/run, there's no
// job to poll — the engine is fast enough per run that a bounded
// concurrent fan-out finishes within an HTTP timeout for reasonable N).
type CompareRequest struct {
	ScenarioID uuid.UUID `json:"scenario_id" binding:"required"`
	Seeds      []int64   `json:"seeds" binding:"required"`
}

// SeedSummary is one seed's outcome within a comparison.
type SeedSummary struct {
	Seed    int64              `json:"seed"`
	Metrics simulation.Metrics `json:"metrics"`
}

const maxCompareConcurrency = 4

func (g *Gateway) compareScenario(c *gin.Context) {
	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	if len(req.Seeds) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "seeds must be non-empty"})
		return
	}

	scenario, err := g.store.GetScenario(c.Request.Context(), req.ScenarioID)
	if err != nil {
		respondError(c, err)
		return
	}
	params, err := store.UnmarshalParameters(scenario.Parameters)
	if err != nil {
		respondError(c, err)
		return
	}

	results := make([]SeedSummary, len(req.Seeds))
	sem := make(chan struct{}, maxCompareConcurrency)
	eg, ctx := errgroup.WithContext(c.Request.Context())

	for i, seed := range req.Seeds {
		i, seed := i, seed
		eg.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			defer func() { <-sem }()

			engine, err := simulation.NewEngine(params, seed, nil)
			if err != nil {
				return simerrors.Wrap(simerrors.EngineFault, "build engine", err)
			}
			result, err := engine.Run()
			if err != nil {
				return simerrors.Wrap(simerrors.EngineFault, "run simulation", err)
			}
			results[i] = SeedSummary{Seed: seed, Metrics: result.Metrics}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"scenario_id":      req.ScenarioID,
		"per_seed":         results,
		"averaged_metrics": averageMetrics(results),
	})
}

func averageMetrics(results []SeedSummary) simulation.Metrics {
	var avg simulation.Metrics
	n := float64(len(results))
	if n == 0 {
		return avg
	}
	for _, r := range results {
		avg.TotalPatients += r.Metrics.TotalPatients
		avg.AvgWaitTimeMinutes += r.Metrics.AvgWaitTimeMinutes
		avg.MedianWaitTimeMinutes += r.Metrics.MedianWaitTimeMinutes
		avg.MaxWaitTimeMinutes += r.Metrics.MaxWaitTimeMinutes
		avg.AvgLOSMinutes += r.Metrics.AvgLOSMinutes
		avg.SLABreaches += r.Metrics.SLABreaches
		avg.AvgOccupancy += r.Metrics.AvgOccupancy
		avg.PeakOccupancy += r.Metrics.PeakOccupancy
		avg.AvgNurseLoad += r.Metrics.AvgNurseLoad
	}
	avg.TotalPatients = int(float64(avg.TotalPatients) / n)
	avg.AvgWaitTimeMinutes /= n
	avg.MedianWaitTimeMinutes /= n
	avg.MaxWaitTimeMinutes /= n
	avg.AvgLOSMinutes /= n
	avg.SLABreaches = int(float64(avg.SLABreaches) / n)
	avg.AvgOccupancy /= n
	avg.PeakOccupancy /= n
	avg.AvgNurseLoad /= n
	return avg
}
