package api

import (
	"context"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/onco-rwe-platform/internal/dataset"
	"github.com/onco-rwe-platform/internal/domain"
	"github.com/onco-rwe-platform/internal/epi"
	"github.com/onco-rwe-platform/internal/simulate"
)

func respondError(c *gin.Context, status int, code, message, details string) {
	c.JSON(status, domain.NewAPIError(code, message, details, c.GetString("correlation_id")))
}

// handleHealth reports component statuses: server, warehouse, cache.
func (s *Server) handleHealth(c *gin.Context) {
	components := gin.H{"server": "healthy"}
	status := http.StatusOK
	overall := "healthy"

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db != nil {
		if err := s.db.Health(ctx); err != nil {
			components["database"] = "unhealthy"
			overall = "degraded"
			status = http.StatusServiceUnavailable
		} else {
			components["database"] = "healthy"
		}
	}

	if s.redis != nil {
		if latency, err := s.redis.Check(ctx); err != nil {
			components["cache"] = "unhealthy"
			overall = "degraded"
			status = http.StatusServiceUnavailable
		} else {
			components["cache"] = "healthy"
			components["cache_latency"] = latency.String()
		}
	}

	c.JSON(status, gin.H{
		"status":     overall,
		"components": components,
		"timestamp":  time.Now().UTC(),
	})
}

// GenerateCohortRequest is the POST /api/v1/cohorts body.
type GenerateCohortRequest struct {
	Patients int   `json:"patients"`
	Seed     int64 `json:"seed"`
}

// handleGenerateCohort generates a cohort, caches it, and streams per-patient
// progress to websocket subscribers.
func (s *Server) handleGenerateCohort(c *gin.Context) {
	var req GenerateCohortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput,
			"Invalid request body", err.Error())
		return
	}

	if req.Patients == 0 {
		req.Patients = s.cfg.Generator.DefaultPatients
	}
	if req.Patients < 1 {
		respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput,
			"patients must be at least 1", "")
		return
	}
	if req.Patients > s.cfg.Generator.MaxCohortSize {
		respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput,
			domain.ErrCohortTooBig.Error(),
			"maximum is "+strconv.Itoa(s.cfg.Generator.MaxCohortSize))
		return
	}
	if req.Seed == 0 {
		req.Seed = time.Now().UnixNano()
	}

	start := time.Now()
	gen := simulate.New(req.Seed, s.log).WithPlan(simulate.Plan{
		MinCycles:    s.cfg.Generator.MinCycles,
		MaxCycles:    s.cfg.Generator.MaxCycles,
		CycleGapDays: s.cfg.Generator.CycleGapDays,
		StartYear:    s.cfg.Generator.StartYear,
		EndYear:      s.cfg.Generator.EndYear,
	})
	cohort := gen.GenerateCohort(req.Patients)
	s.metrics.GenerationSeconds.Observe(time.Since(start).Seconds())

	cycles := 0
	for i, p := range cohort.Patients {
		cycles += len(p.Cycles)
		s.hub.Broadcast(ProgressEvent{
			RunID:     cohort.RunID,
			PatientID: p.PatientID,
			Index:     i + 1,
			Total:     len(cohort.Patients),
			Cycles:    len(p.Cycles),
			Timestamp: time.Now().UTC(),
		})
	}

	s.metrics.CohortsGenerated.Inc()
	s.metrics.PatientsGenerated.Add(float64(len(cohort.Patients)))
	s.metrics.CyclesGenerated.Add(float64(cycles))

	s.cohorts.Put(c.Request.Context(), &cohort)
	s.persistCohort(c.Request.Context(), &cohort)

	c.JSON(http.StatusCreated, gin.H{
		"run_id":       cohort.RunID,
		"seed":         cohort.Seed,
		"patients":     len(cohort.Patients),
		"total_cycles": cycles,
		"generated_at": cohort.GeneratedAt,
		"registry":     dataset.BuildRegistry(cohort),
	})
}

// persistCohort writes the cohort and its claims to the warehouse when one is
// wired. Generation already succeeded, so a write failure is logged rather
// than surfaced to the client.
func (s *Server) persistCohort(ctx context.Context, cohort *domain.Cohort) {
	if s.warehouse == nil {
		return
	}

	if err := s.warehouse.Save(ctx, cohort); err != nil {
		s.log.WithError(err).WithField("run_id", cohort.RunID).
			Error("Failed to persist cohort to warehouse")
		return
	}

	claims := dataset.BuildClaims(rand.New(rand.NewSource(cohort.Seed)), *cohort)
	if err := s.warehouse.SaveClaims(ctx, cohort.RunID, claims); err != nil {
		s.log.WithError(err).WithField("run_id", cohort.RunID).
			Error("Failed to persist claims to warehouse")
	}
}

// handleCohortTable returns one flattened table for a generated cohort.
func (s *Server) handleCohortTable(c *gin.Context) {
	runID := c.Param("id")
	name := c.Param("name")

	cohort, ok := s.cohorts.Get(c.Request.Context(), runID)
	if !ok {
		respondError(c, http.StatusNotFound, domain.ErrCodeNotFound,
			"Cohort not found", "run ID "+runID)
		return
	}

	var rows interface{}
	var count int
	switch name {
	case "rwe":
		t := dataset.BuildRWE(*cohort)
		rows, count = t, len(t)
	case "tcga":
		t := dataset.BuildTCGA(*cohort)
		rows, count = t, len(t)
	case "ehr":
		t := dataset.BuildEHR(*cohort)
		rows, count = t, len(t)
	case "registry":
		t := dataset.BuildRegistry(*cohort)
		rows, count = t, len(t)
	case "claims":
		// Claims costs are sampled outside the cohort stream; reseeding from
		// the cohort seed keeps the table stable across requests.
		t := dataset.BuildClaims(rand.New(rand.NewSource(cohort.Seed)), *cohort)
		rows, count = t, len(t)
	default:
		respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput,
			"Unknown table", "valid tables: rwe, tcga, ehr, registry, claims")
		return
	}

	s.metrics.TableRequests.WithLabelValues(name).Inc()

	c.JSON(http.StatusOK, gin.H{
		"run_id": runID,
		"table":  name,
		"count":  count,
		"rows":   rows,
	})
}

// parseEpiFilter reads the chart filter from query parameters.
func (s *Server) parseEpiFilter(c *gin.Context) (epi.Filter, error) {
	filter := epi.Filter{
		StartYear: s.cfg.Epi.StartYear,
		EndYear:   s.cfg.Epi.EndYear,
	}

	if v := c.Query("start_year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return filter, domain.ErrInvalidFilter
		}
		filter.StartYear = year
	}
	if v := c.Query("end_year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return filter, domain.ErrInvalidFilter
		}
		filter.EndYear = year
	}
	if v := c.Query("cancer_types"); v != "" {
		for _, name := range strings.Split(v, ",") {
			filter.CancerTypes = append(filter.CancerTypes, domain.Disease(strings.TrimSpace(name)))
		}
	}
	if v := c.Query("stages"); v != "" {
		for _, raw := range strings.Split(v, ",") {
			stage, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil || stage < domain.MinStage || stage > domain.MaxStage {
				return filter, domain.ErrInvalidFilter
			}
			filter.Stages = append(filter.Stages, stage)
		}
	}

	return filter, nil
}

// handleEpiSeries serves one aggregated chart metric with filters applied.
func (s *Server) handleEpiSeries(metric epi.Metric) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := s.parseEpiFilter(c)
		if err != nil {
			respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput,
				"Invalid filter", "year and stage filters must be integers")
			return
		}

		filtered := filter.Apply(s.epiRecords)
		series := epi.Aggregate(filtered, metric)

		c.JSON(http.StatusOK, gin.H{
			"metric": metric,
			"filter": gin.H{
				"start_year":   filter.StartYear,
				"end_year":     filter.EndYear,
				"cancer_types": filter.CancerTypes,
				"stages":       filter.Stages,
			},
			"series": series,
		})
	}
}

// handleMarketSales serves the competitor sales rows, optionally clipped to a
// month range. Month labels sort lexically, so string compares suffice.
func (s *Server) handleMarketSales(c *gin.Context) {
	startMonth := c.DefaultQuery("start_month", s.cfg.Market.StartMonth)
	endMonth := c.DefaultQuery("end_month", s.cfg.Market.EndMonth)

	var rows []domain.SalesRecord
	for _, row := range s.salesRows {
		if row.Month >= startMonth && row.Month <= endMonth {
			rows = append(rows, row)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"start_month": startMonth,
		"end_month":   endMonth,
		"count":       len(rows),
		"rows":        rows,
	})
}
