package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeu5/counting-rm/automaton"
	"github.com/zeu5/counting-rm/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testMachine() *automaton.Machine {
	def := automaton.NewDefinition("letter", automaton.NewAlphabet("A", "B")).
		WithCounters(0).
		WithSampler(automaton.FixedCounters([]int{0}, []int{1}))
	def.From(0).
		OnValue("A / (-)", 0, 0, 1).
		OnValue("B / (NZ)", 1, 0, -1).
		OnValue("not A and not B / (-)", 0, 0, 0)
	def.From(1).
		OnValue("/ (Z)", automaton.Terminal, 5, 0).
		OnValue("B / (NZ)", 1, 1, -1)
	return automaton.MustNew(def)
}

func setupTestServer(t *testing.T) (*Server, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	s := NewServer(":0", slog.New(slog.NewTextHandler(io.Discard, nil)), reg)
	s.Register(testMachine())
	return s, reg
}

func do(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		bs, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(bs)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s, _ := setupTestServer(t)
	w := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","machines":1}`, w.Body.String())
}

func TestListAndGetMachines(t *testing.T) {
	s, _ := setupTestServer(t)

	w := do(t, s, http.MethodGet, "/v1/machines", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []MachineSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "letter", list[0].Name)
	assert.Equal(t, []int{0, 1}, list[0].States)
	assert.Equal(t, []int{2}, list[0].Terminal)
	assert.False(t, list[0].RewardMachine)

	w = do(t, s, http.MethodGet, "/v1/machines/letter", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail MachineDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	require.Len(t, detail.Table[0], 3)
	assert.Equal(t, "B / (NZ)", detail.Table[0][1].Expr)
	assert.Equal(t, "(NZ)", detail.Table[0][1].Pattern)
	assert.Equal(t, 2, detail.Table[1][0].Next)
	assert.Equal(t, [][]int{{0}, {1}}, detail.Samples)

	w = do(t, s, http.MethodGet, "/v1/machines/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTransition(t *testing.T) {
	s, _ := setupTestServer(t)

	w := do(t, s, http.MethodPost, "/v1/machines/letter/transition", TransitionRequest{
		State:    1,
		Counters: []int{0},
		Events:   []string{"B"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var resp TransitionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.State)
	assert.Equal(t, 5.0, resp.Reward)
	assert.True(t, resp.Terminal)
	assert.Equal(t, 0, resp.Entry)
}

func TestTransitionErrors(t *testing.T) {
	s, _ := setupTestServer(t)

	cases := map[string]struct {
		path string
		body interface{}
		code int
	}{
		"unknown machine":     {"/v1/machines/office/transition", TransitionRequest{Counters: []int{0}}, http.StatusNotFound},
		"malformed body":      {"/v1/machines/letter/transition", `{"state": "zero"`, http.StatusBadRequest},
		"missing counters":    {"/v1/machines/letter/transition", `{"state": 0}`, http.StatusBadRequest},
		"unknown proposition": {"/v1/machines/letter/transition", TransitionRequest{Counters: []int{0}, Events: []string{"C"}}, http.StatusBadRequest},
		"terminal state":      {"/v1/machines/letter/transition", TransitionRequest{State: 2, Counters: []int{0}}, http.StatusUnprocessableEntity},
		"incomplete table":    {"/v1/machines/letter/transition", TransitionRequest{State: 1, Counters: []int{1}}, http.StatusUnprocessableEntity},
		"wrong arity":         {"/v1/machines/letter/transition", TransitionRequest{Counters: []int{0, 0}}, http.StatusUnprocessableEntity},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, c.path, c.body)
			assert.Equal(t, c.code, w.Code, w.Body.String())
		})
	}
}

func TestCounterfactual(t *testing.T) {
	s, _ := setupTestServer(t)

	w := do(t, s, http.MethodPost, "/v1/machines/letter/counterfactual", CounterfactualRequest{
		Events: []string{"B"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var resp CounterfactualResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	// (0, 0) has no transition on B
	assert.Equal(t, 1, resp.Skipped)
	assert.Len(t, resp.Experiences, 3)
	for _, e := range resp.Experiences {
		assert.False(t, e.State == 0 && e.Counters[0] == 0)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, reg := setupTestServer(t)
	collector := metrics.NewCollector(reg)
	collector.RecordStep("letter", 0, 1)

	w := do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `crm_steps_total{machine="letter"} 1`)
}
