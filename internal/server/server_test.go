package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willst/krotov/internal/config"
	"github.com/willst/krotov/internal/logging"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{Environment: "test"}
	cfg.HTTP.Port = 8080
	cfg.HTTP.ReadTimeout = 30 * time.Second
	cfg.HTTP.WriteTimeout = 30 * time.Second
	cfg.Logging.Level = "error"
	cfg.Logging.Output = "stderr"
	cfg.Optimization.IterStop = 5
	cfg.Optimization.DefaultLambdaA = 5
	cfg.Optimization.ParallelObjectives = false
	cfg.Optimization.MaxJobs = 10
	return cfg
}

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	return logging.New(logging.ErrorLevel, io.Discard)
}

func newTestRouter(t *testing.T) (*Server, chi.Router) {
	t.Helper()
	srv := NewServer(testConfig(t), testLogger(t))
	r := chi.NewRouter()
	srv.RegisterRoutes(r)
	return srv, r
}

func TestRegisterRoutes(t *testing.T) {
	_, r := newTestRouter(t)

	tests := []struct {
		method      string
		path        string
		shouldExist bool
	}{
		{"POST", "/api/v1/optimize", true},
		{"GET", "/api/v1/status/123", true},
		{"DELETE", "/api/v1/optimization/123", true},
		{"POST", "/rpc", true},
		{"GET", "/nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)
			if tt.shouldExist && rr.Code == http.StatusNotFound {
				t.Errorf("route %s %s should exist but returned 404", tt.method, tt.path)
			}
		})
	}
}

func TestJSONRPCParseError(t *testing.T) {
	_, r := newTestRouter(t)

	req := httptest.NewRequest("POST", "/rpc", bytes.NewBufferString("{not json"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	errObj, ok := response["error"].(map[string]interface{})
	require.True(t, ok, "response should contain an error object")
	assert.Equal(t, float64(-32700), errObj["code"])
}

func TestJSONRPCMethodNotFound(t *testing.T) {
	_, r := newTestRouter(t)

	body, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "optimization.nope",
	})
	req := httptest.NewRequest("POST", "/rpc", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	errObj, ok := response["error"].(map[string]interface{})
	require.True(t, ok, "response should contain an error object")
	assert.Equal(t, float64(-32601), errObj["code"])
}

func TestOptimizeRejectsBadRequest(t *testing.T) {
	_, r := newTestRouter(t)

	body, _ := json.Marshal(JobRequest{Omega: 1.0, TFinal: -1, TimeSteps: 10})
	req := httptest.NewRequest("POST", "/api/v1/optimize", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestJobLifecycle(t *testing.T) {
	_, r := newTestRouter(t)

	body, _ := json.Marshal(JobRequest{
		Omega:     1.0,
		TFinal:    5.0,
		TimeSteps: 50,
		LambdaA:   5.0,
		IterStop:  2,
	})
	req := httptest.NewRequest("POST", "/api/v1/optimize", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code)

	var started map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&started))
	id, ok := started["optimization_id"].(string)
	require.True(t, ok, "response should contain an optimization id")

	// Poll until the job reaches a terminal state.
	deadline := time.Now().Add(30 * time.Second)
	var status map[string]interface{}
	for {
		req = httptest.NewRequest("GET", "/api/v1/status/"+id, nil)
		rr = httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&status))

		switch status["status"] {
		case "completed", "failed":
		default:
			if time.Now().Before(deadline) {
				time.Sleep(50 * time.Millisecond)
				continue
			}
		}
		break
	}

	require.Equal(t, "completed", status["status"], "job should complete: %v", status["error"])
	assert.Contains(t, status["message"], "Reached")
	control, ok := status["optimized_control"].([]interface{})
	require.True(t, ok, "status should contain the optimized control")
	assert.Len(t, control, 50)
}

func TestCancelUnknownJob(t *testing.T) {
	_, r := newTestRouter(t)

	req := httptest.NewRequest("DELETE", "/api/v1/optimization/does-not-exist", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStatusUnknownJob(t *testing.T) {
	_, r := newTestRouter(t)

	req := httptest.NewRequest("GET", "/api/v1/status/does-not-exist", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRespondWithError(t *testing.T) {
	srv := NewServer(testConfig(t), testLogger(t))

	rr := httptest.NewRecorder()
	srv.respondWithError(rr, -32600, "Invalid Request", "abc")

	assert.Equal(t, http.StatusOK, rr.Code)
	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	errObj, ok := response["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(-32600), errObj["code"])
	assert.Equal(t, "Invalid Request", errObj["message"])
	assert.Equal(t, "abc", response["id"])
}

func TestClose(t *testing.T) {
	srv := NewServer(testConfig(t), testLogger(t))
	assert.NoError(t, srv.Close())
}
