package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/andresuchdata/stocksim/internal/ingest"
	"github.com/andresuchdata/stocksim/internal/repository"
	"github.com/andresuchdata/stocksim/internal/service"
	"github.com/andresuchdata/stocksim/internal/simulation"
)

type fakeRunner struct {
	lastParams   domain.SimulationParams
	lastLimit    int
	lastParallel int
	confirmer    simulation.Confirmer
	err          error
	runs         map[string]*domain.SimulationRun
}

func (f *fakeRunner) Run(_ context.Context, params domain.SimulationParams, confirmer simulation.Confirmer) (*domain.SimulationRun, error) {
	f.lastParams = params
	f.confirmer = confirmer
	if f.err != nil {
		return nil, f.err
	}
	return &domain.SimulationRun{RunSummary: domain.RunSummary{ID: "r1", Name: params.Name, FillRatePct: 97.5}}, nil
}

func (f *fakeRunner) RunScenarios(_ context.Context, scenarios []domain.SimulationParams, parallelism int) ([]*domain.SimulationRun, error) {
	f.lastParallel = parallelism
	if len(scenarios) == 0 {
		return nil, service.ErrNoScenarios
	}
	out := make([]*domain.SimulationRun, len(scenarios))
	for i, s := range scenarios {
		out[i] = &domain.SimulationRun{RunSummary: domain.RunSummary{ID: fmt.Sprintf("s%d", i), Name: s.Name, Params: s}}
	}
	return out, nil
}

func (f *fakeRunner) GetRun(_ context.Context, id string) (*domain.SimulationRun, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, repository.ErrRunNotFound
	}
	return run, nil
}

func (f *fakeRunner) ListRuns(_ context.Context, limit int) ([]domain.RunSummary, error) {
	f.lastLimit = limit
	return nil, nil
}

func newTestRouter(runner *fakeRunner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(&Services{SimulationService: runner}, []string{"*"})
}

func do(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(newTestRouter(&fakeRunner{}), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCreateRun(t *testing.T) {
	runner := &fakeRunner{}
	router := newTestRouter(runner)

	rec := do(router, http.MethodPost, "/api/v1/simulations", `{"name":"fast","lead_time_days":3,"max_truck_tons":14}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var run domain.SimulationRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "r1", run.ID)
	assert.Equal(t, 97.5, run.FillRatePct)
	assert.Equal(t, domain.SimulationParams{Name: "fast", LeadTimeDays: 3, MaxTruckTons: 14}, runner.lastParams)
	assert.NotNil(t, runner.confirmer)

	rec = do(router, http.MethodPost, "/api/v1/simulations", "")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, domain.SimulationParams{}, runner.lastParams)

	rec = do(router, http.MethodPost, "/api/v1/simulations", `{"lead_time_days":"soon"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRunErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid config", fmt.Errorf("%w: min exceeds max", simulation.ErrInvalidConfig), http.StatusBadRequest},
		{"missing feed", &ingest.InputError{Input: ingest.InputEOQ, Path: "eoq.csv", Err: ingest.ErrMissingInput}, http.StatusUnprocessableEntity},
		{"unexpected", fmt.Errorf("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(newTestRouter(&fakeRunner{err: tt.err}), http.MethodPost, "/api/v1/simulations", "")
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestCreateScenarios(t *testing.T) {
	runner := &fakeRunner{}
	router := newTestRouter(runner)

	rec := do(router, http.MethodPost, "/api/v1/simulations/scenarios",
		`{"parallelism":3,"scenarios":[{"name":"a","lead_time_days":2},{"name":"b","cover_days":30}]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 3, runner.lastParallel)

	var body struct {
		Data []domain.SimulationRun `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, "a", body.Data[0].Name)
	assert.Equal(t, 30.0, body.Data[1].Params.CoverDays)

	rec = do(router, http.MethodPost, "/api/v1/simulations/scenarios", `{"scenarios":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAndGetRuns(t *testing.T) {
	runner := &fakeRunner{runs: map[string]*domain.SimulationRun{
		"r9": {RunSummary: domain.RunSummary{ID: "r9", Name: "kept"}},
	}}
	router := newTestRouter(runner)

	rec := do(router, http.MethodGet, "/api/v1/simulations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[]}`, rec.Body.String())
	assert.Equal(t, 50, runner.lastLimit)

	rec = do(router, http.MethodGet, "/api/v1/simulations?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, runner.lastLimit)

	rec = do(router, http.MethodGet, "/api/v1/simulations?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodGet, "/api/v1/simulations/r9", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"kept"`)

	rec = do(router, http.MethodGet, "/api/v1/simulations/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNormalizeAllowedOrigins(t *testing.T) {
	parsed, all := normalizeAllowedOrigins([]string{"http://a.test, http://b.test", " "})
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, parsed)
	assert.False(t, all)

	_, all = normalizeAllowedOrigins([]string{"*"})
	assert.True(t, all)
}
