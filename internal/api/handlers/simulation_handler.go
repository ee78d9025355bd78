package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/andresuchdata/stocksim/internal/ingest"
	"github.com/andresuchdata/stocksim/internal/repository"
	"github.com/andresuchdata/stocksim/internal/service"
	"github.com/andresuchdata/stocksim/internal/simulation"
)

const defaultListLimit = 50

// SimulationRunner is the part of service.SimulationService the handlers use.
type SimulationRunner interface {
	Run(ctx context.Context, params domain.SimulationParams, confirmer simulation.Confirmer) (*domain.SimulationRun, error)
	RunScenarios(ctx context.Context, scenarios []domain.SimulationParams, parallelism int) ([]*domain.SimulationRun, error)
	GetRun(ctx context.Context, id string) (*domain.SimulationRun, error)
	ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error)
}

var _ SimulationRunner = (*service.SimulationService)(nil)

type SimulationHandler struct {
	service SimulationRunner
}

func NewSimulationHandler(service SimulationRunner) *SimulationHandler {
	return &SimulationHandler{service: service}
}

type runRequest struct {
	Name         string  `json:"name"`
	LeadTimeDays int     `json:"lead_time_days"`
	CoverDays    float64 `json:"cover_days"`
	MinTruckTons float64 `json:"min_truck_tons"`
	MaxTruckTons float64 `json:"max_truck_tons"`
}

func (r runRequest) params() domain.SimulationParams {
	return domain.SimulationParams{
		Name:         r.Name,
		LeadTimeDays: r.LeadTimeDays,
		CoverDays:    r.CoverDays,
		MinTruckTons: r.MinTruckTons,
		MaxTruckTons: r.MaxTruckTons,
	}
}

type scenariosRequest struct {
	Scenarios   []runRequest `json:"scenarios"`
	Parallelism int          `json:"parallelism"`
}

// CreateRun runs one non-interactive simulation. An empty body uses the configured defaults.
func (h *SimulationHandler) CreateRun(c *gin.Context) {
	var req runRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
	}

	run, err := h.service.Run(c.Request.Context(), req.params(), simulation.AlwaysApprove)
	if err != nil {
		h.fail(c, err, "failed to run simulation")
		return
	}

	c.JSON(http.StatusCreated, run)
}

func (h *SimulationHandler) CreateScenarios(c *gin.Context) {
	var req scenariosRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	scenarios := make([]domain.SimulationParams, len(req.Scenarios))
	for i, s := range req.Scenarios {
		scenarios[i] = s.params()
	}

	runs, err := h.service.RunScenarios(c.Request.Context(), scenarios, req.Parallelism)
	if err != nil {
		h.fail(c, err, "failed to run scenarios")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": runs})
}

func (h *SimulationHandler) ListRuns(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	runs, err := h.service.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err, "failed to list runs")
		return
	}
	if runs == nil {
		runs = make([]domain.RunSummary, 0)
	}

	c.JSON(http.StatusOK, gin.H{"data": runs})
}

func (h *SimulationHandler) GetRun(c *gin.Context) {
	run, err := h.service.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to get run")
		return
	}

	c.JSON(http.StatusOK, run)
}

func (h *SimulationHandler) fail(c *gin.Context, err error, msg string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repository.ErrRunNotFound):
		status = http.StatusNotFound
	case errors.Is(err, simulation.ErrInvalidConfig), errors.Is(err, service.ErrNoScenarios):
		status = http.StatusBadRequest
	case errors.Is(err, ingest.ErrMissingInput), errors.Is(err, ingest.ErrMissingColumn):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg(msg)
	}
	c.JSON(status, gin.H{"error": msg + ": " + err.Error()})
}
