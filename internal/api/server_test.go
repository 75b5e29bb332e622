package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trial-eligibility-engine/internal/doid"
	"github.com/trial-eligibility-engine/internal/domain"
	"github.com/trial-eligibility-engine/internal/outcome"
	"github.com/trial-eligibility-engine/internal/rules"
	"github.com/trial-eligibility-engine/internal/service"
)

type testEnv struct {
	server *Server
	store  outcome.Store
}

func newTestEnv(t *testing.T, withStore bool) *testEnv {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	graph := doid.NewGraph(
		map[string][]string{
			"162":  {"4"},
			"1324": {"162"},
			"3908": {"1324"},
			"3910": {"3908"},
		},
		map[string]string{
			"4":    "disease",
			"162":  "cancer",
			"1324": "lung cancer",
			"3908": "lung non-small cell carcinoma",
			"3910": "lung adenocarcinoma",
		},
	)
	model, err := doid.NewModel(graph, doid.WithLogger(logger))
	require.NoError(t, err)

	registry, err := rules.FromSpecs([]domain.RuleSpec{
		{Name: "HAS_NSCLC", Type: rules.TypePrimaryTumorOfType, Doid: "3908"},
		{Name: "EGFR_WILD_TYPE", Type: rules.TypeGeneIsWildType, Gene: "EGFR"},
	}, rules.Dependencies{Model: model, Logger: logger})
	require.NoError(t, err)

	var store outcome.Store
	if withStore {
		sqlite, err := outcome.NewSQLiteStore(filepath.Join(t.TempDir(), "outcomes.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = sqlite.Close() })
		store = sqlite
	}

	svc := service.NewEligibilityService(registry, store, domain.EvaluationConfig{MaxConcurrency: 2}, logger)
	return &testEnv{
		server: NewServer(domain.ServerConfig{Port: 8080}, svc, model, logger),
		store:  store,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func nsclcPatient() domain.PatientRecord {
	return domain.PatientRecord{
		PatientID: "ACTN-01",
		Tumor:     domain.Tumor{Doids: []string{"3910"}},
		MolecularTests: []domain.MolecularTest{
			{ExperimentType: domain.ExperimentWholeGenome, HasSufficientQuality: true},
		},
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(2), body["rules"])
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
}

func TestListRules(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodGet, "/api/v1/rules", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Rules []rules.Rule `json:"rules"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Rules, 2)
	assert.Equal(t, "EGFR_WILD_TYPE", body.Rules[0].Name)
	assert.Equal(t, "HAS_NSCLC", body.Rules[1].Name)
}

func TestEvaluateAndListOutcomes(t *testing.T) {
	env := newTestEnv(t, true)

	w := env.do(t, http.MethodPost, "/api/v1/evaluations", nsclcPatient())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report service.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "ACTN-01", report.PatientID)
	require.Len(t, report.Results, 2)
	for _, r := range report.Results {
		assert.Equal(t, domain.PASS, r.Evaluation.Result, r.RuleName)
	}
	assert.Equal(t, 2, report.Summary.Counts[domain.PASS])

	w = env.do(t, http.MethodGet, "/api/v1/patients/ACTN-01/outcomes?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var listing struct {
		Outcomes []outcome.Outcome `json:"outcomes"`
		Limit    int               `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	assert.Len(t, listing.Outcomes, 2)
	assert.Equal(t, 10, listing.Limit)
	assert.Equal(t, report.RunID, listing.Outcomes[0].RunID)
}

func TestEvaluateRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t, false)

	t.Run("Malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/evaluations", bytes.NewBufferString("{"))
		w := httptest.NewRecorder()
		env.server.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Missing patient id", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/evaluations", domain.PatientRecord{})
		require.Equal(t, http.StatusBadRequest, w.Code)

		var apiErr domain.APIError
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
		assert.Equal(t, domain.ErrCodeValidation, apiErr.Code)
		assert.Equal(t, "patient_id", apiErr.Details)
	})
}

func TestEvaluateRule(t *testing.T) {
	env := newTestEnv(t, false)

	patient := nsclcPatient()
	patient.Tumor.Doids = nil

	w := env.do(t, http.MethodPost, "/api/v1/rules/HAS_NSCLC/evaluate", patient)
	require.Equal(t, http.StatusOK, w.Code)

	var result service.RuleResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, domain.UNDETERMINED, result.Evaluation.Result)

	w = env.do(t, http.MethodPost, "/api/v1/rules/NOPE/evaluate", patient)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListOutcomesWithoutStore(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodGet, "/api/v1/patients/ACTN-01/outcomes", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/patients/ACTN-01/outcomes?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetDoid(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodGet, "/api/v1/ontology/doids/3910", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Term      string   `json:"term"`
		Parents   []string `json:"parents"`
		Ancestors []string `json:"ancestors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "lung adenocarcinoma", body.Term)
	assert.Equal(t, []string{"3908"}, body.Parents)
	assert.Equal(t, []string{"1324", "162", "3908", "3910", "4"}, body.Ancestors)

	w = env.do(t, http.MethodGet, "/api/v1/ontology/doids/999999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
