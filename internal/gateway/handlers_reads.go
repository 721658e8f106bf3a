package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wardops/simcore/internal/kpi"
	"github.com/wardops/simcore/internal/store"
)

func (g *Gateway) listUnits(c *gin.Context) {
	units, err := g.store.ListUnits(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"units": units})
}

func (g *Gateway) getUnit(c *gin.Context) {
	id, ok := parseIntParam(c, "id")
	if !ok {
		return
	}
	unit, err := g.store.GetUnit(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, unit)
}

func (g *Gateway) unitBeds(c *gin.Context) {
	id, ok := parseIntParam(c, "id")
	if !ok {
		return
	}
	beds, err := g.store.UnitBeds(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"beds": beds})
}

func (g *Gateway) listPatients(c *gin.Context) {
	var unitID *int
	if raw := c.Query("unit_id"); raw != "" {
		v := queryIntDefault(c, "unit_id", 0)
		unitID = &v
	}
	activeOnly := c.Query("active_only") != "false"
	limit := queryIntDefault(c, "limit", 50)
	offset := queryIntDefault(c, "offset", 0)

	patients, err := g.store.ListPatients(c.Request.Context(), unitID, activeOnly, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"patients": patients})
}

func (g *Gateway) getPatient(c *gin.Context) {
	id, ok := parseIntParam(c, "id")
	if !ok {
		return
	}
	patient, err := g.store.GetPatient(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, patient)
}

func (g *Gateway) patientTrace(c *gin.Context) {
	id, ok := parseIntParam(c, "id")
	if !ok {
		return
	}
	trace, err := g.kpi.PatientTrace(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trace)
}

func (g *Gateway) listEvents(c *gin.Context) {
	filter := store.EventFilter{
		EventType: c.Query("event_type"),
		Limit:     queryIntDefault(c, "limit", 100),
		Offset:    queryIntDefault(c, "offset", 0),
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}
	if raw := c.Query("unit_id"); raw != "" {
		v := queryIntDefault(c, "unit_id", 0)
		filter.UnitID = &v
	}
	if raw := c.Query("patient_id"); raw != "" {
		v := queryIntDefault(c, "patient_id", 0)
		filter.PatientID = &v
	}
	start, err := queryTime(c, "start_time")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid start_time"})
		return
	}
	filter.StartTime = start
	end, err := queryTime(c, "end_time")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid end_time"})
		return
	}
	filter.EndTime = end

	events, err := g.store.QueryEvents(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (g *Gateway) listNurses(c *gin.Context) {
	var unitID *int
	if raw := c.Query("unit_id"); raw != "" {
		v := queryIntDefault(c, "unit_id", 0)
		unitID = &v
	}
	nurses, err := g.store.ListNurses(c.Request.Context(), unitID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nurses": nurses})
}

func (g *Gateway) kpiSnapshot(c *gin.Context) {
	unitID := queryIntDefault(c, "unit_id", 1)

	var snap *kpi.KPISnapshot
	err := g.breakers.Execute(c.Request.Context(), "kpi-read", func() error {
		var err error
		snap, err = g.kpi.KPISnapshot(c.Request.Context(), unitID)
		return err
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}
